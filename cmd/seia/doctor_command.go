package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seia/seia-translator/internal/config"
	"github.com/seia/seia-translator/internal/db"
	"github.com/seia/seia-translator/internal/doctor"
	"github.com/seia/seia-translator/internal/logging"
	"github.com/seia/seia-translator/internal/media"
	"github.com/seia/seia-translator/internal/translate"
)

var errNotReady = errors.New("some dependencies are unavailable")

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check ffmpeg, whisper, Ollama and the OpenAI fallback",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return err
		}
		logger := logging.New(cmd.ErrOrStderr(), "warn", "text")
		ollama := translate.NewClient(translate.Config{
			BaseURL: cfg.Ollama.BaseURL,
			Model:   cfg.Ollama.Model,
			Timeout: timeout,
		}, translate.WithRetryMaxAttempts(1))
		probe := doctor.NewProbe(doctor.Config{
			FFmpegBinary:  cfg.FFmpeg.Binary,
			WhisperBinary: cfg.Whisper.Binary,
			OpenAIEnabled: cfg.OpenAIEnabled(),
			Timeout:       timeout,
		}, media.NewExecRunner(logger), ollama)

		report, err := probe.Probe(cmd.Context())
		if err != nil {
			return err
		}
		var health *db.Health
		if cfg.Store.Backend == config.BackendSQLite {
			health = databaseHealth(cmd.Context(), cfg.DBPath(), logger)
		}

		if asJSON {
			if err := writeJSON(cmd, doctorOutput{Report: report, Database: health}); err != nil {
				return err
			}
		} else {
			rows := doctorRows(report)
			if health != nil {
				rows = append(rows, databaseRow(health))
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Component", "Status", "Detail"}, rows, nil))
		}
		if !report.Ready {
			return fmt.Errorf("%w: %s", errNotReady, strings.Join(report.Missing(), ", "))
		}
		if health != nil && !health.IntegrityOK {
			return fmt.Errorf("database %s failed its health check", health.Path)
		}
		return nil
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Per-check timeout")
	return cmd
}

type doctorOutput struct {
	*doctor.Report
	Database *db.Health `json:"database,omitempty"`
}

func databaseHealth(ctx context.Context, path string, logger *slog.Logger) *db.Health {
	database, err := db.New(path, logger)
	if err != nil {
		return &db.Health{Path: path, Error: err.Error()}
	}
	defer database.Close()
	h, _ := database.Health(ctx)
	return &h
}

func databaseRow(h *db.Health) []string {
	if h.Error != "" {
		return []string{"database", "missing", h.Error}
	}
	status := "ok"
	if !h.IntegrityOK {
		status = "corrupt"
	}
	return []string{"database", status, fmt.Sprintf("%d projects, %d migrations", h.Projects, len(h.Migrations))}
}

func doctorRows(r *doctor.Report) [][]string {
	model := r.OllamaModel
	if !r.ModelPulled {
		model += " (not pulled)"
	}
	return [][]string{
		checkRow("ffmpeg", r.FFmpeg),
		checkRow("whisper", r.Whisper),
		checkRow("ollama", r.Ollama),
		{"ollama model", yesNo(r.ModelPulled), model},
		checkRow("openai", r.OpenAI),
		{"transcribe", yesNo(r.CanTranscribe), ""},
		{"translate", yesNo(r.CanTranslate), ""},
		{"export", yesNo(r.CanExport), ""},
	}
}

func checkRow(name string, c doctor.Check) []string {
	detail := c.Version
	if detail == "" {
		detail = c.Path
	}
	if c.Error != "" {
		detail = c.Error
	}
	return []string{name, yesNo(c.Available), detail}
}

func yesNo(ok bool) string {
	if ok {
		return "ok"
	}
	return "missing"
}
