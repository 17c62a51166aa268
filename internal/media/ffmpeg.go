package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FFmpeg is the media operation contract used by the workflow.
type FFmpeg interface {
	// ExtractAudio writes a 16 kHz mono PCM wav of the video's audio track.
	ExtractAudio(ctx context.Context, videoPath, outPath string) error
	// BurnSubtitles renders the SRT document onto the video.
	BurnSubtitles(ctx context.Context, videoPath, srt, outPath string) error
}

// FFmpegConfig holds the tool settings.
type FFmpegConfig struct {
	Binary     string
	ForceStyle string
	Timeout    time.Duration
	TempDir    string // parent for burn-in scratch dirs; empty = os.TempDir
	Logger     *slog.Logger
}

// Tool is the subprocess implementation of FFmpeg.
type Tool struct {
	cfg    FFmpegConfig
	runner CommandRunner
}

func NewFFmpeg(cfg FFmpegConfig, runner CommandRunner) *Tool {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Tool{cfg: cfg, runner: runner}
}

func (t *Tool) ExtractAudio(ctx context.Context, videoPath, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	start := time.Now()
	_, err := t.runner.Run(ctx, Command{
		Name: t.cfg.Binary,
		Args: []string{
			"-y",
			"-i", videoPath,
			"-vn",
			"-ac", "1",
			"-ar", "16000",
			"-c:a", "pcm_s16le",
			outPath,
		},
	})
	if err != nil {
		os.Remove(outPath)
		return fmt.Errorf("extract audio: %w", err)
	}

	t.cfg.Logger.Info("audio extracted", "output", filepath.Base(outPath), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// BurnSubtitles writes srt into a private scratch dir and runs ffmpeg there
// with a relative subtitles= filter, which sidesteps filter-graph escaping
// of arbitrary paths.
func (t *Tool) BurnSubtitles(ctx context.Context, videoPath, srt, outPath string) error {
	if strings.TrimSpace(srt) == "" {
		return errors.New("burn subtitles: empty subtitle document")
	}

	absVideo, err := filepath.Abs(videoPath)
	if err != nil {
		return fmt.Errorf("resolve video path: %w", err)
	}
	absOut, err := filepath.Abs(outPath)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absOut), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	workDir, err := os.MkdirTemp(t.cfg.TempDir, "burn-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	const subName = "subtitles.srt"
	if err := os.WriteFile(filepath.Join(workDir, subName), []byte(srt), 0644); err != nil {
		return fmt.Errorf("write temp subtitles: %w", err)
	}

	filter := "subtitles=" + subName
	if t.cfg.ForceStyle != "" {
		filter += ":force_style='" + t.cfg.ForceStyle + "'"
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	start := time.Now()
	_, err = t.runner.Run(ctx, Command{
		Name: t.cfg.Binary,
		Dir:  workDir,
		Args: []string{
			"-i", absVideo,
			"-vf", filter,
			"-c:a", "copy",
			"-y",
			absOut,
		},
	})
	if err != nil {
		os.Remove(absOut)
		return fmt.Errorf("burn subtitles: %w", err)
	}

	t.cfg.Logger.Info("subtitles burned", "output", filepath.Base(absOut), "duration_ms", time.Since(start).Milliseconds())
	return nil
}
