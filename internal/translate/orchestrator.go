package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/seia/seia-translator/internal/project"
)

// EventType tags an Event.
type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one message of a translation stream. Progress events carry
// Current, Total and Segment; the complete event carries
// TranslatedSegments and Project; the error event carries Error.
type Event struct {
	Type               EventType         `json:"type"`
	Current            int               `json:"current,omitempty"`
	Total              int               `json:"total,omitempty"`
	Segment            *project.Segment  `json:"segment,omitempty"`
	Success            bool              `json:"success,omitempty"`
	TranslatedSegments []project.Segment `json:"translatedSegments,omitempty"`
	Project            *project.Project  `json:"project,omitempty"`
	Error              string            `json:"error,omitempty"`
}

// Terminal reports whether e ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// Translator translates one piece of text.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// ProjectStore is the part of the project store the orchestrator needs.
type ProjectStore interface {
	Get(ctx context.Context, id string) (*project.Project, error)
	Update(ctx context.Context, id string, patch project.Patch) (*project.Project, error)
}

// Request selects the project and languages of one batch. An empty
// SourceLanguage falls back to the project's.
type Request struct {
	ProjectID      string
	SourceLanguage string
	TargetLanguage string
}

// Orchestrator translates a project's segments one at a time.
type Orchestrator struct {
	store      ProjectStore
	translator Translator
	logger     *slog.Logger
}

func NewOrchestrator(store ProjectStore, translator Translator, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{store: store, translator: translator, logger: logger}
}

// Translate starts a batch and returns its event stream. The stream
// carries one progress event per segment in order, then exactly one
// complete or error event, and is then closed. The channel is unbuffered:
// segment i+1 is not requested until progress i has been received, so the
// caller must drain the channel to the end.
func (o *Orchestrator) Translate(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)
		o.run(ctx, req, events)
	}()
	return events
}

func (o *Orchestrator) run(ctx context.Context, req Request, events chan<- Event) {
	logger := o.logger.With("project_id", req.ProjectID)
	fail := func(msg string) {
		events <- Event{Type: EventError, Error: msg}
	}

	if strings.TrimSpace(req.ProjectID) == "" {
		fail("projectId is required")
		return
	}
	target := strings.TrimSpace(req.TargetLanguage)
	if target == "" {
		fail("targetLanguage is required")
		return
	}

	p, err := o.store.Get(ctx, req.ProjectID)
	if errors.Is(err, project.ErrNotFound) {
		fail("project not found")
		return
	}
	if err != nil {
		fail(fmt.Sprintf("load project: %v", err))
		return
	}
	if !p.CanTranslate() {
		fail("project has no segments to translate")
		return
	}

	source := strings.TrimSpace(req.SourceLanguage)
	if source == "" {
		source = p.SourceLanguage
	}

	prevStatus := p.Status
	if _, err := o.store.Update(ctx, p.ID, project.Patch{Status: project.Ptr(project.StatusTranslating)}); err != nil {
		fail(fmt.Sprintf("save project: %v", err))
		return
	}

	segments := p.Segments
	var previous []project.Segment
	if len(p.TranslatedSegments) == len(segments) {
		previous = p.TranslatedSegments
	}

	logger.Info("translation started", "segments", len(segments), "source", source, "target", target)

	translated := make([]project.Segment, 0, len(segments))
	for i, seg := range segments {
		if ctx.Err() != nil {
			o.cancelled(ctx, logger, p.ID, prevStatus, segments, previous, translated)
			fail("translation cancelled")
			return
		}

		out := seg
		text, err := o.translator.Translate(ctx, seg.Text, source, target)
		switch {
		case err == nil:
			out.TranslatedText = text
		case ctx.Err() != nil:
			o.cancelled(ctx, logger, p.ID, prevStatus, segments, previous, translated)
			fail("translation cancelled")
			return
		default:
			logger.Warn("segment translation failed, keeping source text", "index", i, "error", err)
			out.TranslatedText = seg.Text
		}
		translated = append(translated, out)

		events <- Event{Type: EventProgress, Current: i + 1, Total: len(segments), Segment: &out}
	}

	updated, err := o.store.Update(context.WithoutCancel(ctx), p.ID, project.Patch{
		TranslatedSegments: &translated,
		Status:             project.Ptr(project.StatusTranslated),
		SourceLanguage:     &source,
		TargetLanguage:     &target,
	})
	if err != nil {
		logger.Error("failed to save translation", "error", err)
		o.restoreStatus(ctx, logger, p.ID, prevStatus)
		fail(fmt.Sprintf("save translation: %v", err))
		return
	}

	logger.Info("translation complete", "segments", len(translated))
	events <- Event{Type: EventComplete, Success: true, TranslatedSegments: translated, Project: updated}
}

// cancelled persists the finished prefix merged over any previous
// translation and puts the status back.
func (o *Orchestrator) cancelled(ctx context.Context, logger *slog.Logger, id string, prevStatus project.Status, segments, previous, done []project.Segment) {
	logger.Info("translation cancelled", "completed", len(done), "total", len(segments))
	if len(done) == 0 {
		o.restoreStatus(ctx, logger, id, prevStatus)
		return
	}

	merged := make([]project.Segment, len(segments))
	for i := range segments {
		switch {
		case i < len(done):
			merged[i] = done[i]
		case previous != nil:
			merged[i] = previous[i]
		default:
			merged[i] = segments[i]
		}
	}

	if _, err := o.store.Update(context.WithoutCancel(ctx), id, project.Patch{
		TranslatedSegments: &merged,
		Status:             &prevStatus,
	}); err != nil {
		logger.Error("failed to save partial translation", "error", err)
	}
}

func (o *Orchestrator) restoreStatus(ctx context.Context, logger *slog.Logger, id string, status project.Status) {
	if _, err := o.store.Update(context.WithoutCancel(ctx), id, project.Patch{Status: &status}); err != nil {
		logger.Error("failed to restore project status", "status", status, "error", err)
	}
}
