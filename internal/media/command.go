// Package media runs external media tools (ffmpeg) as subprocesses.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
	waitDelay      = 2 * time.Second
)

// Command describes one subprocess invocation.
type Command struct {
	Name   string
	Args   []string
	Dir    string // working directory; empty = inherit
	Stdout io.Writer
}

// Result is the outcome of a finished command.
type Result struct {
	ExitCode   int
	StderrTail string
	Duration   time.Duration
}

// IsSuccess returns true if the command exited cleanly.
func (r Result) IsSuccess() bool {
	return r.ExitCode == 0
}

// CommandRunner executes subprocesses. Tests substitute a fake.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// CommandError reports a command that could not start or exited non-zero.
type CommandError struct {
	Name       string
	ExitCode   int
	StderrTail string
	Err        error
}

func (e *CommandError) Error() string {
	if e.StderrTail != "" {
		return fmt.Sprintf("%s exited %d: %s", e.Name, e.ExitCode, truncate(e.StderrTail, 512))
	}
	return fmt.Sprintf("%s exited %d: %v", e.Name, e.ExitCode, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExecRunner is the os/exec implementation of CommandRunner.
type ExecRunner struct {
	logger *slog.Logger
}

func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ExecRunner{logger: logger}
}

// Run executes c and returns a *CommandError when it fails. A cancelled or
// expired context is reported through the error's Unwrap chain.
func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = waitDelay

	// Capture stderr with bounded buffer
	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = io.Discard
	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	}

	r.logger.Debug("executing command", "name", c.Name, "args", c.Args, "dir", c.Dir)

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	result := Result{
		ExitCode:   exitCode,
		StderrTail: stderrBuf.String(),
		Duration:   elapsed,
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		r.logger.Warn("command failed",
			"name", c.Name,
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(result.StderrTail, 512),
		)
		return result, &CommandError{Name: c.Name, ExitCode: exitCode, StderrTail: result.StderrTail, Err: err}
	}

	r.logger.Debug("command succeeded", "name", c.Name, "duration_ms", elapsed.Milliseconds())
	return result, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		tail := make([]byte, lw.limit)
		copy(tail, b[len(b)-lw.limit:])
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
