package translate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/seia/seia-translator/internal/project"
)

type fakeTranslator struct {
	mu    sync.Mutex
	calls []string
	fail  map[int]bool
	// onCall runs before each translation with the 0-based call index.
	onCall func(i int)
}

func (f *fakeTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	f.mu.Lock()
	i := len(f.calls)
	f.calls = append(f.calls, text)
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall(i)
	}
	if f.fail[i] {
		return "", errors.New("ollama down")
	}
	return fmt.Sprintf("%s-%s", strings.ToUpper(text), target), nil
}

func newStore(t *testing.T) *project.Service {
	t.Helper()
	repo, err := project.NewFileRepository(filepath.Join(t.TempDir(), "projects.json"))
	if err != nil {
		t.Fatalf("NewFileRepository() error = %v", err)
	}
	return project.NewService(repo, nil)
}

func seedProject(t *testing.T, store *project.Service, n int) *project.Project {
	t.Helper()
	ctx := context.Background()
	p, err := store.Create(ctx, "/v/a.mp4", "a.mp4")
	if err != nil {
		t.Fatal(err)
	}
	segs := make([]project.Segment, n)
	for i := range segs {
		segs[i] = project.Segment{Start: float64(i), End: float64(i) + 0.9, Text: fmt.Sprintf("s%d", i)}
	}
	p, err = store.Update(ctx, p.ID, project.Patch{Segments: &segs, Status: project.Ptr(project.StatusTranscribed)})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func collect(ch <-chan Event) []Event {
	var events []Event
	for e := range ch {
		events = append(events, e)
	}
	return events
}

func TestOrchestrator_HappyPath(t *testing.T) {
	store := newStore(t)
	p := seedProject(t, store, 3)
	tr := &fakeTranslator{}

	events := collect(NewOrchestrator(store, tr, nil).Translate(context.Background(), Request{
		ProjectID: p.ID, SourceLanguage: "en", TargetLanguage: "fr",
	}))

	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	for i := 0; i < 3; i++ {
		e := events[i]
		if e.Type != EventProgress || e.Current != i+1 || e.Total != 3 {
			t.Errorf("event %d = %+v", i, e)
		}
		if e.Segment.TranslatedText != fmt.Sprintf("S%d-fr", i) {
			t.Errorf("event %d translated = %q", i, e.Segment.TranslatedText)
		}
	}

	done := events[3]
	if done.Type != EventComplete || !done.Success || len(done.TranslatedSegments) != 3 {
		t.Fatalf("terminal event = %+v", done)
	}
	if done.Project.Status != project.StatusTranslated || done.Project.TargetLanguage != "fr" {
		t.Errorf("project = %+v", done.Project)
	}

	stored, _ := store.Get(context.Background(), p.ID)
	if len(stored.TranslatedSegments) != len(stored.Segments) {
		t.Fatalf("stored translation misaligned: %d vs %d", len(stored.TranslatedSegments), len(stored.Segments))
	}
	for i := range stored.Segments {
		if stored.TranslatedSegments[i].Start != stored.Segments[i].Start || stored.TranslatedSegments[i].End != stored.Segments[i].End {
			t.Errorf("segment %d timing changed", i)
		}
	}
}

func TestOrchestrator_SegmentFailureSubstitutesSource(t *testing.T) {
	store := newStore(t)
	p := seedProject(t, store, 3)
	tr := &fakeTranslator{fail: map[int]bool{1: true}}

	events := collect(NewOrchestrator(store, tr, nil).Translate(context.Background(), Request{
		ProjectID: p.ID, TargetLanguage: "de",
	}))

	if len(events) != 4 || events[3].Type != EventComplete {
		t.Fatalf("events = %+v", events)
	}
	if got := events[3].TranslatedSegments[1].TranslatedText; got != "s1" {
		t.Errorf("failed segment translatedText = %q, want source text", got)
	}
	if events[3].Project.SourceLanguage != "en" {
		t.Errorf("source language should fall back to the project's, got %q", events[3].Project.SourceLanguage)
	}
}

func TestOrchestrator_Preconditions(t *testing.T) {
	store := newStore(t)
	empty, _ := store.Create(context.Background(), "/v/b.mp4", "b.mp4")
	full := seedProject(t, store, 1)

	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"missing project", Request{ProjectID: "nope", TargetLanguage: "fr"}, "not found"},
		{"no segments", Request{ProjectID: empty.ID, TargetLanguage: "fr"}, "no segments"},
		{"no target", Request{ProjectID: full.ID}, "targetLanguage"},
		{"no id", Request{TargetLanguage: "fr"}, "projectId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTranslator{}
			events := collect(NewOrchestrator(store, tr, nil).Translate(context.Background(), tt.req))
			if len(events) != 1 || events[0].Type != EventError || !strings.Contains(events[0].Error, tt.want) {
				t.Errorf("events = %+v", events)
			}
			if len(tr.calls) != 0 {
				t.Errorf("translator called %d times", len(tr.calls))
			}
		})
	}

	got, _ := store.Get(context.Background(), empty.ID)
	if got.Status != project.StatusUploaded {
		t.Errorf("status changed on precondition failure: %s", got.Status)
	}
}

func TestOrchestrator_CancellationKeepsAlignment(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	p := seedProject(t, store, 4)

	prev := make([]project.Segment, len(p.Segments))
	for i, s := range p.Segments {
		s.TranslatedText = "old"
		prev[i] = s
	}
	if _, err := store.Update(ctx, p.ID, project.Patch{TranslatedSegments: &prev, Status: project.Ptr(project.StatusTranslated)}); err != nil {
		t.Fatal(err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	tr := &fakeTranslator{onCall: func(i int) {
		if i == 2 {
			cancel()
		}
	}}

	events := collect(NewOrchestrator(store, tr, nil).Translate(runCtx, Request{ProjectID: p.ID, TargetLanguage: "es"}))

	last := events[len(events)-1]
	if last.Type != EventError || !strings.Contains(last.Error, "cancelled") {
		t.Fatalf("terminal event = %+v", last)
	}
	progress := 0
	for _, e := range events {
		if e.Type == EventProgress {
			progress++
		}
	}
	if progress > 3 {
		t.Errorf("progress events = %d after cancellation at call 2", progress)
	}
	if len(tr.calls) != 3 {
		t.Errorf("translator calls = %d, want 3 (no calls after cancellation)", len(tr.calls))
	}

	stored, _ := store.Get(ctx, p.ID)
	if stored.Status != project.StatusTranslated {
		t.Errorf("status = %s, want restored translated", stored.Status)
	}
	if len(stored.TranslatedSegments) != 4 {
		t.Fatalf("translated length = %d, want 4", len(stored.TranslatedSegments))
	}
	if stored.TranslatedSegments[0].TranslatedText != "S0-es" || stored.TranslatedSegments[3].TranslatedText != "old" {
		t.Errorf("merged translation = %+v", stored.TranslatedSegments)
	}
}

func TestOrchestrator_CancelledBeforeStart(t *testing.T) {
	store := newStore(t)
	p := seedProject(t, store, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := &fakeTranslator{}
	events := collect(NewOrchestrator(store, tr, nil).Translate(ctx, Request{ProjectID: p.ID, TargetLanguage: "fr"}))

	if len(events) != 1 || events[0].Type != EventError {
		t.Fatalf("events = %+v", events)
	}
	stored, _ := store.Get(context.Background(), p.ID)
	if stored.Status != project.StatusTranscribed || len(stored.TranslatedSegments) != 0 {
		t.Errorf("project = %+v", stored)
	}
}
