package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/seia/seia-translator/internal/api"
	"github.com/seia/seia-translator/internal/config"
	"github.com/seia/seia-translator/internal/doctor"
	"github.com/seia/seia-translator/internal/events"
	"github.com/seia/seia-translator/internal/logging"
	"github.com/seia/seia-translator/internal/media"
	"github.com/seia/seia-translator/internal/playback"
	"github.com/seia/seia-translator/internal/project"
	"github.com/seia/seia-translator/internal/transcribe"
	"github.com/seia/seia-translator/internal/translate"
	"github.com/seia/seia-translator/internal/ui"
	"github.com/seia/seia-translator/internal/upload"
	"github.com/seia/seia-translator/internal/watcher"
	"github.com/seia/seia-translator/internal/workflow"
)

const (
	shutdownTimeout = 10 * time.Second
	doctorCacheTTL  = time.Minute
)

type serveOptions struct {
	port     int
	headless bool
	static   string
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if opts.port != 0 {
				cfg.Server.Port = opts.port
			}
			if opts.headless {
				cfg.Server.Headless = true
			}
			if opts.static != "" {
				cfg.Server.StaticDir = opts.static
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Listen port (overrides config)")
	cmd.Flags().BoolVar(&opts.headless, "headless", false, "Run without the system tray")
	cmd.Flags().StringVar(&opts.static, "static", "", "Directory of frontend assets to serve at /")
	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	startTime := time.Now()

	for _, dir := range []string{cfg.DataDir(), cfg.UploadsDir(), cfg.SubtitlesDir(), cfg.OutputDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("starting seia", "version", Version, "data_dir", cfg.DataDir(), "store", cfg.Store.Backend)

	instance := flock.New(cfg.LockPath())
	locked, err := instance.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", cfg.LockPath(), err)
	}
	if !locked {
		return fmt.Errorf("another seia server is already using %s", cfg.DataDir())
	}
	defer instance.Unlock()

	hub := events.NewHub(events.DefaultBuffer, logging.WithComponent(logger, "events"))
	defer hub.Close()

	projects, closeStore, err := openService(cfg, logging.WithComponent(logger, "project"), project.WithNotifier(hub))
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	if n, err := projects.RecoverInterrupted(ctx); err != nil {
		logger.Warn("failed to recover interrupted projects", "error", err)
	} else if n > 0 {
		logger.Info("recovered interrupted projects", "count", n)
	}
	if cfg.Housekeeping.PurgeOnStart {
		housekeep(ctx, cfg, projects, logger)
	}

	runner := media.NewExecRunner(logging.WithComponent(logger, "exec"))
	ffmpeg := media.NewFFmpeg(media.FFmpegConfig{
		Binary:     cfg.FFmpeg.Binary,
		ForceStyle: cfg.FFmpeg.ForceStyle,
		Timeout:    cfg.FFmpegTimeout(),
		TempDir:    cfg.UploadsDir(),
		Logger:     logging.WithComponent(logger, "ffmpeg"),
	}, runner)

	providers := []transcribe.Transcriber{transcribe.NewWhisper(transcribe.WhisperConfig{
		Binary:  cfg.Whisper.Binary,
		Model:   cfg.Whisper.Model,
		Timeout: cfg.WhisperTimeout(),
		TempDir: cfg.UploadsDir(),
	}, runner)}
	if cfg.OpenAIEnabled() {
		providers = append(providers, transcribe.NewOpenAI(transcribe.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			Timeout: cfg.OpenAITimeout(),
		}))
		logger.Info("openai transcription fallback enabled", "model", cfg.OpenAI.Model)
	}
	transcriber := transcribe.NewChain(logging.WithComponent(logger, "transcribe"), providers...)

	ollama := translate.NewClient(translate.Config{
		BaseURL: cfg.Ollama.BaseURL,
		Model:   cfg.Ollama.Model,
		Timeout: cfg.OllamaTimeout(),
	}, translate.WithRetryMaxAttempts(cfg.Ollama.RetryAttempts))
	orchestrator := translate.NewOrchestrator(projects, ollama, logging.WithComponent(logger, "translate"))

	pipeline := workflow.New(workflow.Config{
		UploadsDir:      cfg.UploadsDir(),
		SubtitlesDir:    cfg.SubtitlesDir(),
		OutputDir:       cfg.OutputDir(),
		DefaultLanguage: cfg.Whisper.Language,
	}, projects, ffmpeg, transcriber, logging.WithComponent(logger, "workflow"))

	uploads := upload.NewStore(cfg.UploadsDir(), cfg.Upload.MaxBytes, logging.WithComponent(logger, "upload"))

	doc := doctor.NewCachedDoctor(doctor.NewProbe(doctor.Config{
		FFmpegBinary:  cfg.FFmpeg.Binary,
		WhisperBinary: cfg.Whisper.Binary,
		OpenAIEnabled: cfg.OpenAIEnabled(),
	}, runner, ollama), doctorCacheTTL, logging.WithComponent(logger, "doctor"))
	if report, err := doc.Refresh(ctx); err != nil {
		logger.Warn("initial doctor probe failed", "error", err)
	} else if missing := report.Missing(); len(missing) > 0 {
		logger.Warn("some dependencies are unavailable", "missing", missing)
	} else {
		logger.Info("all dependencies available", "ollama_model", report.OllamaModel)
	}

	if cfg.Watch.InboxDir != "" {
		inbox := watcher.New(cfg.Watch.InboxDir, upload.IsVideo, importHandler(uploads, projects, logger), logging.WithComponent(logger, "inbox"))
		go func() {
			if err := inbox.Run(ctx); err != nil {
				logger.Error("inbox watcher stopped", "error", err)
			}
		}()
		logger.Info("watching inbox", "dir", cfg.Watch.InboxDir)
	}

	apiServer := api.NewServer(api.ServerConfig{
		Addr:       cfg.Addr(),
		DataDir:    cfg.DataDir(),
		AuthToken:  cfg.Server.AuthToken,
		LocalOnly:  cfg.Server.AuthToken == "",
		StaticDir:  cfg.Server.StaticDir,
		Projects:   projects,
		Pipeline:   pipeline,
		Translator: orchestrator,
		Uploads:    uploads,
		Files:      playback.NewServer(logging.WithComponent(logger, "playback")),
		Doctor:     doc,
		Changes:    hub,
		Info: api.ConfigResponse{
			OllamaBaseURL:   ollama.BaseURL(),
			OllamaModel:     ollama.Model(),
			WhisperModel:    cfg.Whisper.Model,
			WhisperLanguage: cfg.Whisper.Language,
			OpenAIAvailable: cfg.OpenAIEnabled(),
			StoreBackend:    cfg.Store.Backend,
			MaxUploadBytes:  cfg.Upload.MaxBytes,
		},
		Logger:    logging.WithComponent(logger, "api"),
		StartTime: startTime,
		Version:   Version,
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- apiServer.Start()
	}()

	url := "http://" + cfg.Addr()
	if isatty.IsTerminal(os.Stdout.Fd()) {
		printBanner(url, cfg)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	quitCh := make(chan struct{})
	var quitOnce sync.Once
	var tray *ui.Tray
	if cfg.Server.Headless {
		logger.Info("running in headless mode (no system tray)")
	} else {
		trayChanges := hub.Subscribe()
		defer trayChanges.Close()
		tray = ui.NewTray(ui.TrayConfig{
			Projects: projects,
			Changes:  trayChanges.C,
			URL:      url,
			Logger:   logging.WithComponent(logger, "tray"),
			OnQuit: func() {
				quitOnce.Do(func() { close(quitCh) })
			},
		})
		go tray.Run()
	}

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case <-quitCh:
		logger.Info("quit requested from tray")
	case <-parent.Done():
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	if tray != nil {
		tray.Quit()
	}

	logger.Info("shutdown complete")
	return runErr
}

// importHandler turns a settled inbox file into a project.
func importHandler(uploads *upload.Store, projects project.Store, logger *slog.Logger) watcher.Handler {
	return func(ctx context.Context, path string) error {
		file, err := uploads.Import(path)
		if err != nil {
			if errors.Is(err, upload.ErrUnsupportedType) {
				return nil
			}
			return err
		}
		p, err := projects.Create(ctx, file.Path, file.OriginalName)
		if err != nil {
			os.Remove(file.Path)
			return err
		}
		logger.Info("imported inbox video", "project_id", p.ID, "file", filepath.Base(path))
		return nil
	}
}

func housekeep(ctx context.Context, cfg *config.Config, projects *project.Service, logger *slog.Logger) {
	referenced, err := projects.ReferencedFiles(ctx)
	if err != nil {
		logger.Warn("housekeeping skipped", "error", err)
		return
	}
	var rules []upload.SweepRule
	if h := cfg.Housekeeping.UploadMaxAgeHours; h > 0 {
		rules = append(rules, upload.SweepRule{Dir: cfg.UploadsDir(), MaxAge: time.Duration(h) * time.Hour})
	}
	if h := cfg.Housekeeping.OutputMaxAgeHours; h > 0 {
		rules = append(rules, upload.SweepRule{Dir: cfg.OutputDir(), MaxAge: time.Duration(h) * time.Hour})
	}
	if d := cfg.Housekeeping.SubtitleMaxAgeDays; d > 0 {
		rules = append(rules, upload.SweepRule{Dir: cfg.SubtitlesDir(), MaxAge: time.Duration(d) * 24 * time.Hour})
	}
	if len(rules) == 0 {
		return
	}

	removed, err := upload.Sweep(rules, referenced, time.Now(), logging.WithComponent(logger, "housekeeping"))
	if err != nil {
		logger.Warn("housekeeping finished with errors", "removed", removed, "error", err)
		return
	}
	if removed > 0 {
		logger.Info("housekeeping removed stale files", "removed", removed)
	}
}

func printBanner(url string, cfg *config.Config) {
	auth := "loopback clients only"
	if cfg.Server.AuthToken != "" {
		auth = "bearer token " + logging.SanitizeToken(cfg.Server.AuthToken)
	}
	fmt.Println()
	fmt.Printf("  seia %s\n", Version)
	fmt.Printf("  API URL:  %s\n", url)
	fmt.Printf("  Access:   %s\n", auth)
	fmt.Printf("  Data dir: %s\n", cfg.DataDir())
	fmt.Println()
}
