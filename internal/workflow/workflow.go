// Package workflow composes the media, transcription and subtitle adapters
// with the project store into the transcribe and export steps.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/seia/seia-translator/internal/media"
	"github.com/seia/seia-translator/internal/project"
	"github.com/seia/seia-translator/internal/subtitle"
	"github.com/seia/seia-translator/internal/transcribe"
)

// ErrInvalidInput marks requests that cannot be processed as given.
var ErrInvalidInput = errors.New("invalid input")

// ExportSuffix is appended to the project name when no output filename
// is given.
const ExportSuffix = "_video_with_subtitles"

// Config holds the on-disk layout.
type Config struct {
	UploadsDir      string
	SubtitlesDir    string
	OutputDir       string
	DefaultLanguage string
}

// Workflow runs the long project steps.
type Workflow struct {
	cfg         Config
	store       project.Store
	ffmpeg      media.FFmpeg
	transcriber transcribe.Transcriber
	logger      *slog.Logger
}

func New(cfg Config, store project.Store, ffmpeg media.FFmpeg, transcriber transcribe.Transcriber, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Workflow{cfg: cfg, store: store, ffmpeg: ffmpeg, transcriber: transcriber, logger: logger}
}

// TranscribeResult is the outcome of Transcribe.
type TranscribeResult struct {
	Project  *project.Project
	Segments []project.Segment
	SRTPath  string
	SRT      string
}

// Transcribe extracts the project's audio, runs speech-to-text and stores
// the segments along with a fresh SRT. Any previous translation is cleared.
func (w *Workflow) Transcribe(ctx context.Context, projectID, language string) (*TranscribeResult, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("%w: projectId is required", ErrInvalidInput)
	}
	p, err := w.store.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(p.VideoPath); err != nil {
		return nil, fmt.Errorf("%w: video file not found", ErrInvalidInput)
	}

	language = strings.TrimSpace(language)
	if language == "" {
		language = w.cfg.DefaultLanguage
	}

	logger := w.logger.With("project_id", p.ID)
	prevStatus := p.Status
	if _, err := w.store.Update(ctx, p.ID, project.Patch{Status: project.Ptr(project.StatusTranscribing)}); err != nil {
		return nil, err
	}

	result, err := w.transcribe(ctx, p, language)
	if err != nil {
		logger.Error("transcription failed", "error", err)
		w.restoreStatus(ctx, p.ID, prevStatus)
		return nil, err
	}
	logger.Info("transcription stored", "segments", len(result.Segments))
	return result, nil
}

func (w *Workflow) transcribe(ctx context.Context, p *project.Project, language string) (*TranscribeResult, error) {
	audioPath := filepath.Join(w.cfg.UploadsDir, uuid.NewString()+".wav")
	defer os.Remove(audioPath)

	if err := w.ffmpeg.ExtractAudio(ctx, p.VideoPath, audioPath); err != nil {
		return nil, err
	}

	segments, err := w.transcriber.Transcribe(ctx, audioPath, language)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	srt := subtitle.Encode(segments, false)
	srtPath := filepath.Join(w.cfg.SubtitlesDir, p.ID+".srt")
	if err := writeFile(srtPath, srt); err != nil {
		return nil, err
	}

	patch := project.Patch{
		Segments:           &segments,
		TranslatedSegments: &[]project.Segment{},
		Subtitles:          &srtPath,
		Status:             project.Ptr(project.StatusTranscribed),
	}
	if !strings.EqualFold(language, "auto") {
		patch.SourceLanguage = &language
	}
	updated, err := w.store.Update(context.WithoutCancel(ctx), p.ID, patch)
	if err != nil {
		return nil, err
	}
	return &TranscribeResult{Project: updated, Segments: segments, SRTPath: srtPath, SRT: srt}, nil
}

// ExportResult is the outcome of Export.
type ExportResult struct {
	Project        *project.Project
	OutputFilename string
	OutputPath     string
}

// Export burns the project's subtitles into a copy of its video. The
// translated sequence is used when present, otherwise the source one.
func (w *Workflow) Export(ctx context.Context, projectID, outputFilename string) (*ExportResult, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("%w: projectId is required", ErrInvalidInput)
	}
	p, err := w.store.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !p.CanExport() {
		return nil, fmt.Errorf("%w: project has no subtitles to apply", ErrInvalidInput)
	}
	if _, err := os.Stat(p.VideoPath); err != nil {
		return nil, fmt.Errorf("%w: video file not found", ErrInvalidInput)
	}

	segments, translated := p.Segments, false
	if len(p.TranslatedSegments) > 0 {
		segments, translated = p.TranslatedSegments, true
	}
	srt := subtitle.Encode(segments, translated)
	if err := subtitle.Validate(srt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if strings.TrimSpace(outputFilename) == "" {
		outputFilename = p.Name + ExportSuffix
	}
	name := subtitle.WithExtension(subtitle.SanitizeFilename(outputFilename), ".mp4")
	outPath := filepath.Join(w.cfg.OutputDir, name)

	logger := w.logger.With("project_id", p.ID)
	if err := w.ffmpeg.BurnSubtitles(ctx, p.VideoPath, srt, outPath); err != nil {
		logger.Error("export failed", "error", err)
		return nil, err
	}

	srtPath := filepath.Join(w.cfg.SubtitlesDir, p.ID+".srt")
	if err := writeFile(srtPath, srt); err != nil {
		return nil, err
	}

	updated, err := w.store.Update(context.WithoutCancel(ctx), p.ID, project.Patch{
		ExportedVideo: &outPath,
		Subtitles:     &srtPath,
		Status:        project.Ptr(project.StatusExported),
	})
	if err != nil {
		return nil, err
	}

	logger.Info("export complete", "output", name, "translated", translated)
	return &ExportResult{Project: updated, OutputFilename: name, OutputPath: outPath}, nil
}

func (w *Workflow) restoreStatus(ctx context.Context, id string, status project.Status) {
	if _, err := w.store.Update(context.WithoutCancel(ctx), id, project.Patch{Status: &status}); err != nil {
		w.logger.Error("failed to restore project status", "project_id", id, "status", status, "error", err)
	}
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
