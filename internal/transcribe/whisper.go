package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/seia/seia-translator/internal/media"
	"github.com/seia/seia-translator/internal/project"
)

// wholeTextSpan is the duration given to a transcript that came back
// without per-segment timing.
const wholeTextSpan = 30.0

// WhisperConfig configures the local whisper CLI.
type WhisperConfig struct {
	Binary  string
	Model   string
	Timeout time.Duration
	TempDir string
}

// Whisper runs the openai-whisper command line tool.
type Whisper struct {
	cfg    WhisperConfig
	runner media.CommandRunner
}

func NewWhisper(cfg WhisperConfig, runner media.CommandRunner) *Whisper {
	if cfg.Binary == "" {
		cfg.Binary = "whisper"
	}
	if cfg.Model == "" {
		cfg.Model = "base"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &Whisper{cfg: cfg, runner: runner}
}

func (w *Whisper) Name() string { return "whisper" }

func (w *Whisper) Transcribe(ctx context.Context, audioPath, language string) ([]project.Segment, error) {
	outDir, err := os.MkdirTemp(w.cfg.TempDir, "whisper-*")
	if err != nil {
		return nil, fmt.Errorf("create whisper output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	args := []string{audioPath, "--model", w.cfg.Model}
	if !detectLanguage(language) {
		args = append(args, "--language", language)
	}
	args = append(args,
		"--fp16", "False",
		"--output_format", "json",
		"--output_dir", outDir,
	)

	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	if _, err := w.runner.Run(ctx, media.Command{Name: w.cfg.Binary, Args: args}); err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	data, err := os.ReadFile(filepath.Join(outDir, base+".json"))
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}
	return ParseWhisperJSON(data)
}

type whisperOutput struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// ParseWhisperJSON reads whisper's JSON output. When no segments are listed
// the whole text becomes one segment.
func ParseWhisperJSON(data []byte) ([]project.Segment, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}

	var segments []project.Segment
	if len(out.Segments) > 0 {
		segments = make([]project.Segment, 0, len(out.Segments))
		for _, s := range out.Segments {
			segments = append(segments, project.Segment{Start: s.Start, End: s.End, Text: s.Text})
		}
	} else if strings.TrimSpace(out.Text) != "" {
		segments = []project.Segment{{Start: 0, End: wholeTextSpan, Text: out.Text}}
	}

	segments = clean(segments)
	if len(segments) == 0 {
		return nil, ErrNoSpeech
	}
	return segments, nil
}
