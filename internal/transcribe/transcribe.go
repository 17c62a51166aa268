// Package transcribe turns an audio file into timed speech segments using a
// chain of speech-to-text providers.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/seia/seia-translator/internal/project"
)

// ErrNoSpeech is returned when a provider produced no usable segment.
var ErrNoSpeech = errors.New("no speech segments produced")

// Transcriber converts audio to segments. language is a language code, or
// "auto"/empty to let the provider detect it.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, audioPath, language string) ([]project.Segment, error)
}

// Chain tries each provider in order and returns the first success.
type Chain struct {
	providers []Transcriber
	logger    *slog.Logger
}

func NewChain(logger *slog.Logger, providers ...Transcriber) *Chain {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Chain{providers: providers, logger: logger}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, ",")
}

// Providers returns the configured providers.
func (c *Chain) Providers() []Transcriber {
	return c.providers
}

func (c *Chain) Transcribe(ctx context.Context, audioPath, language string) ([]project.Segment, error) {
	if len(c.providers) == 0 {
		return nil, errors.New("no transcription provider configured")
	}

	var errs []error
	for _, p := range c.providers {
		segments, err := p.Transcribe(ctx, audioPath, language)
		if err == nil {
			c.logger.Info("transcription complete", "provider", p.Name(), "segments", len(segments))
			return segments, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("transcription provider failed", "provider", p.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return nil, fmt.Errorf("all transcription providers failed: %w", errors.Join(errs...))
}

// clean trims text and drops segments with invalid timing or no text.
func clean(in []project.Segment) []project.Segment {
	out := make([]project.Segment, 0, len(in))
	for _, s := range in {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" || !s.Valid() {
			continue
		}
		out = append(out, s)
	}
	return out
}

func detectLanguage(language string) bool {
	l := strings.ToLower(strings.TrimSpace(language))
	return l == "" || l == "auto"
}
