package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/seia/seia-translator/internal/doctor"
	"github.com/seia/seia-translator/internal/events"
	"github.com/seia/seia-translator/internal/playback"
	"github.com/seia/seia-translator/internal/project"
	"github.com/seia/seia-translator/internal/translate"
	"github.com/seia/seia-translator/internal/upload"
	"github.com/seia/seia-translator/internal/workflow"
)

type fakePipeline struct {
	dir          string
	transcribeFn func(ctx context.Context, id, language string) (*workflow.TranscribeResult, error)
	exportFn     func(ctx context.Context, id, name string) (*workflow.ExportResult, error)
}

func (f *fakePipeline) Transcribe(ctx context.Context, id, language string) (*workflow.TranscribeResult, error) {
	if f.transcribeFn == nil {
		return nil, errors.New("not implemented")
	}
	return f.transcribeFn(ctx, id, language)
}

func (f *fakePipeline) Export(ctx context.Context, id, name string) (*workflow.ExportResult, error) {
	if f.exportFn == nil {
		return nil, errors.New("not implemented")
	}
	return f.exportFn(ctx, id, name)
}

func (f *fakePipeline) SaveSubtitles(segments []project.Segment, filename string) (string, string, error) {
	if len(segments) == 0 || filename == "" {
		return "", "", workflow.ErrInvalidInput
	}
	return filename + ".srt", "1\n00:00:00,000 --> 00:00:01,000\n" + segments[0].Text + "\n", nil
}

func (f *fakePipeline) ListSubtitles() ([]workflow.SubtitleFile, error) {
	return []workflow.SubtitleFile{{Name: "a.srt", Path: filepath.Join(f.dir, "subtitles", "a.srt"), Size: 3}}, nil
}

func (f *fakePipeline) LoadSubtitles(filename string) (*workflow.SubtitleDocument, error) {
	if filename != "a.srt" {
		return nil, os.ErrNotExist
	}
	return &workflow.SubtitleDocument{Filename: filename, Content: "x", Segments: []project.Segment{}}, nil
}

func (f *fakePipeline) SubtitlePath(filename string) (string, error) {
	return filepath.Join(f.dir, "subtitles", filepath.Base(filename)), nil
}

func (f *fakePipeline) OutputPath(filename string) (string, error) {
	if filename != filepath.Base(filename) {
		return "", workflow.ErrInvalidInput
	}
	return filepath.Join(f.dir, "output", filename), nil
}

type fakeStreamer struct {
	events []translate.Event
	req    translate.Request
}

func (f *fakeStreamer) Translate(ctx context.Context, req translate.Request) <-chan translate.Event {
	f.req = req
	ch := make(chan translate.Event)
	go func() {
		defer close(ch)
		for _, ev := range f.events {
			ch <- ev
		}
	}()
	return ch
}

type fakeDoctor struct {
	report *doctor.Report
	err    error
}

func (f *fakeDoctor) Get(ctx context.Context) (*doctor.Report, error) {
	return f.report, f.err
}

type harness struct {
	dir      string
	store    *project.Service
	pipeline *fakePipeline
	streamer *fakeStreamer
	doctor   *fakeDoctor
	hub      *events.Hub
	cfg      ServerConfig
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	for _, sub := range []string{"uploads", "subtitles", "output"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			t.Fatal(err)
		}
	}
	repo, err := project.NewFileRepository(filepath.Join(dir, "projects.json"))
	if err != nil {
		t.Fatal(err)
	}
	hub := events.NewHub(8, nil)
	t.Cleanup(hub.Close)

	h := &harness{
		dir:      dir,
		store:    project.NewService(repo, nil, project.WithNotifier(hub)),
		pipeline: &fakePipeline{dir: dir},
		streamer: &fakeStreamer{},
		doctor:   &fakeDoctor{report: &doctor.Report{Ready: true}},
		hub:      hub,
	}
	h.cfg = ServerConfig{
		DataDir:    dir,
		Projects:   h.store,
		Pipeline:   h.pipeline,
		Translator: h.streamer,
		Uploads:    upload.NewStore(filepath.Join(dir, "uploads"), 1024, nil),
		Files:      playback.NewServer(nil),
		Doctor:     h.doctor,
		Changes:    hub,
		Info:       ConfigResponse{OllamaModel: "llama3.1", WhisperModel: "base"},
		StartTime:  time.Now(),
		Version:    "test",
	}
	return h
}

// createProject registers a project backed by a real file.
func (h *harness) createProject(t *testing.T) *project.Project {
	t.Helper()
	video := filepath.Join(h.dir, "uploads", "abc-talk.mp4")
	if err := os.WriteFile(video, []byte("0123456789"), 0644); err != nil {
		t.Fatal(err)
	}
	p, err := h.store.Create(context.Background(), video, "talk.mp4")
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
