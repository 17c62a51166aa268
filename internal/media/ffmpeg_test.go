package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeRunner struct {
	calls []Command
	// onRun inspects the command while it "runs".
	onRun func(c Command) error
}

func (f *fakeRunner) Run(ctx context.Context, c Command) (Result, error) {
	f.calls = append(f.calls, c)
	if f.onRun != nil {
		if err := f.onRun(c); err != nil {
			return Result{ExitCode: 1}, err
		}
	}
	return Result{}, nil
}

func TestExtractAudio_Args(t *testing.T) {
	runner := &fakeRunner{}
	tool := NewFFmpeg(FFmpegConfig{Binary: "/opt/ffmpeg"}, runner)

	out := filepath.Join(t.TempDir(), "audio", "a.wav")
	if err := tool.ExtractAudio(context.Background(), "/v/in.mp4", out); err != nil {
		t.Fatalf("ExtractAudio() error = %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(runner.calls))
	}
	c := runner.calls[0]
	args := strings.Join(c.Args, " ")
	if c.Name != "/opt/ffmpeg" {
		t.Errorf("Name = %q", c.Name)
	}
	for _, want := range []string{"-i /v/in.mp4", "-vn", "-ac 1", "-ar 16000", "-c:a pcm_s16le", out} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestExtractAudio_FailureWrapsCommandError(t *testing.T) {
	runner := &fakeRunner{onRun: func(c Command) error {
		return &CommandError{Name: "ffmpeg", ExitCode: 1, StderrTail: "no audio stream"}
	}}
	tool := NewFFmpeg(FFmpegConfig{}, runner)

	err := tool.ExtractAudio(context.Background(), "/v/in.mp4", filepath.Join(t.TempDir(), "a.wav"))
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) || cmdErr.StderrTail != "no audio stream" {
		t.Errorf("ExtractAudio() error = %v", err)
	}
}

func TestBurnSubtitles_RunsInScratchDir(t *testing.T) {
	tmp := t.TempDir()
	out := filepath.Join(tmp, "output", "final.mp4")
	srt := "1\n00:00:00,000 --> 00:00:01,000\nSalut\n"

	var scratch string
	runner := &fakeRunner{onRun: func(c Command) error {
		scratch = c.Dir
		data, err := os.ReadFile(filepath.Join(c.Dir, "subtitles.srt"))
		if err != nil {
			t.Errorf("subtitle file not staged: %v", err)
		}
		if string(data) != srt {
			t.Errorf("staged srt = %q", data)
		}
		return os.WriteFile(c.Args[len(c.Args)-1], []byte("video"), 0644)
	}}
	tool := NewFFmpeg(FFmpegConfig{ForceStyle: "FontSize=18", TempDir: tmp}, runner)

	if err := tool.BurnSubtitles(context.Background(), "in.mp4", srt, out); err != nil {
		t.Fatalf("BurnSubtitles() error = %v", err)
	}

	args := runner.calls[0].Args
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-vf subtitles=subtitles.srt:force_style='FontSize=18'") {
		t.Errorf("filter missing from %q", joined)
	}
	if !strings.Contains(joined, "-c:a copy -y") {
		t.Errorf("audio copy flags missing from %q", joined)
	}
	if !filepath.IsAbs(args[1]) {
		t.Errorf("video path %q should be absolute", args[1])
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output not written: %v", err)
	}
	if _, err := os.Stat(scratch); !os.IsNotExist(err) {
		t.Errorf("scratch dir %s should be removed", scratch)
	}
}

func TestBurnSubtitles_EmptyDocument(t *testing.T) {
	tool := NewFFmpeg(FFmpegConfig{}, &fakeRunner{})
	if err := tool.BurnSubtitles(context.Background(), "in.mp4", "  ", "out.mp4"); err == nil {
		t.Error("BurnSubtitles() should reject an empty document")
	}
}
