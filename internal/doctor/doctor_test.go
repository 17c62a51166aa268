package doctor

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/seia/seia-translator/internal/media"
)

type fakeRunner struct {
	stdout string
	err    error
	calls  []media.Command
}

func (f *fakeRunner) Run(ctx context.Context, c media.Command) (media.Result, error) {
	f.calls = append(f.calls, c)
	if f.err != nil {
		return media.Result{ExitCode: 1}, f.err
	}
	if c.Stdout != nil {
		c.Stdout.Write([]byte(f.stdout))
	}
	return media.Result{}, nil
}

type fakeOllama struct {
	models []string
	err    error
	model  string
}

func (f *fakeOllama) Models(ctx context.Context) ([]string, error) { return f.models, f.err }
func (f *fakeOllama) Model() string                                { return f.model }
func (f *fakeOllama) BaseURL() string                              { return "http://localhost:11434" }

func newTestProbe(cfg Config, runner media.CommandRunner, ollama ModelLister, found ...string) *Probe {
	p := NewProbe(cfg, runner, ollama)
	p.lookPath = func(name string) (string, error) {
		for _, f := range found {
			if f == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", exec.ErrNotFound
	}
	return p
}

func TestProbe_AllAvailable(t *testing.T) {
	runner := &fakeRunner{stdout: "ffmpeg version 6.1 Copyright (c)\nbuilt with gcc\n"}
	ollama := &fakeOllama{models: []string{"llama3.1:latest", "mistral:7b"}, model: "llama3.1"}
	p := newTestProbe(Config{}, runner, ollama, "ffmpeg", "whisper")

	r, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if !r.FFmpeg.Available || r.FFmpeg.Version != "ffmpeg version 6.1 Copyright (c)" {
		t.Errorf("FFmpeg = %+v", r.FFmpeg)
	}
	if !r.Whisper.Available || r.Whisper.Path != "/usr/bin/whisper" {
		t.Errorf("Whisper = %+v", r.Whisper)
	}
	if !r.ModelPulled {
		t.Error("llama3.1 should match llama3.1:latest")
	}
	if !r.Ready || len(r.Missing()) != 0 {
		t.Errorf("Ready = %v, Missing = %v", r.Ready, r.Missing())
	}
	if len(runner.calls) != 1 || runner.calls[0].Args[0] != "-version" {
		t.Errorf("runner calls = %+v", runner.calls)
	}
}

func TestProbe_Missing(t *testing.T) {
	ollama := &fakeOllama{err: errors.New("connection refused"), model: "llama3.1"}
	p := newTestProbe(Config{}, &fakeRunner{}, ollama, "ffmpeg")

	r, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if r.Whisper.Available {
		t.Error("whisper should be missing")
	}
	if r.CanTranscribe {
		t.Error("CanTranscribe without whisper or openai")
	}
	if r.Ollama.Available || !strings.Contains(r.Ollama.Error, "connection refused") {
		t.Errorf("Ollama = %+v", r.Ollama)
	}
	if r.Ready {
		t.Error("Ready = true")
	}
	missing := strings.Join(r.Missing(), ",")
	if missing != "whisper,ollama" {
		t.Errorf("Missing() = %q", missing)
	}
}

func TestProbe_OpenAIFallback(t *testing.T) {
	ollama := &fakeOllama{models: []string{"mistral"}, model: "llama3.1"}
	p := newTestProbe(Config{OpenAIEnabled: true}, &fakeRunner{}, ollama, "ffmpeg")

	r, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if !r.CanTranscribe {
		t.Error("OpenAI fallback should enable transcription")
	}
	if r.ModelPulled || r.CanTranslate {
		t.Error("configured model is not pulled")
	}
	if got := r.Missing(); len(got) != 1 || got[0] != "ollama model llama3.1" {
		t.Errorf("Missing() = %v", got)
	}
}

func TestProbe_FFmpegBroken(t *testing.T) {
	runner := &fakeRunner{err: &media.CommandError{Name: "ffmpeg", ExitCode: 127}}
	p := newTestProbe(Config{}, runner, nil, "ffmpeg", "whisper")

	r, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if r.FFmpeg.Available || r.FFmpeg.Error == "" {
		t.Errorf("FFmpeg = %+v", r.FFmpeg)
	}
	if r.CanExport {
		t.Error("CanExport with broken ffmpeg")
	}
}

func TestProbe_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := newTestProbe(Config{}, &fakeRunner{}, nil)
	if _, err := p.Probe(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Probe() error = %v, want context.Canceled", err)
	}
}

type fakeProber struct {
	calls int
	fn    func() (*Report, error)
}

func (f *fakeProber) Probe(ctx context.Context) (*Report, error) {
	f.calls++
	return f.fn()
}

func TestCachedDoctor_TTL(t *testing.T) {
	fake := &fakeProber{fn: func() (*Report, error) { return &Report{Ready: true}, nil }}
	now := time.Unix(1000, 0)

	doc := NewCachedDoctor(fake, time.Minute, nil)
	doc.now = func() time.Time { return now }
	ctx := context.Background()

	r1, err := doc.Get(ctx)
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}
	r2, _ := doc.Get(ctx)
	if r1 != r2 || fake.calls != 1 {
		t.Errorf("expected cached result, calls = %d", fake.calls)
	}

	now = now.Add(2 * time.Minute)
	if _, err := doc.Get(ctx); err != nil {
		t.Fatalf("third Get (after TTL): %v", err)
	}
	if fake.calls != 2 {
		t.Errorf("expected 2 calls after TTL expiry, got %d", fake.calls)
	}
}

func TestCachedDoctor_StaleOnFailure(t *testing.T) {
	fail := false
	fake := &fakeProber{fn: func() (*Report, error) {
		if fail {
			return nil, errors.New("probe failed")
		}
		return &Report{Ready: true}, nil
	}}
	doc := NewCachedDoctor(fake, time.Minute, nil)
	ctx := context.Background()

	first, err := doc.Refresh(ctx)
	if err != nil {
		t.Fatal(err)
	}
	fail = true
	stale, err := doc.Refresh(ctx)
	if err != nil || stale != first {
		t.Errorf("Refresh() = %v, %v; want stale report", stale, err)
	}

	doc.Invalidate()
	if doc.Peek() != nil {
		t.Error("Peek() after Invalidate should be nil")
	}
	if _, err := doc.Get(ctx); err == nil {
		t.Error("expected error without a cached report")
	}
}
