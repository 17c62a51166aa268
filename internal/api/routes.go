package api

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seia/seia-translator/internal/playback"
	"github.com/seia/seia-translator/internal/project"
	"github.com/seia/seia-translator/internal/upload"
	"github.com/seia/seia-translator/internal/workflow"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist(cfg.AllowedOrigins...))

	r.Get("/health", healthHandler(cfg))

	r.Route("/api", func(r chi.Router) {
		if cfg.AuthToken != "" {
			r.Use(AuthMiddleware(cfg.AuthToken, cfg.Logger))
		} else if cfg.LocalOnly {
			r.Use(LoopbackGuard())
		}

		r.Post("/upload", uploadHandler(cfg))
		r.Post("/transcribe", transcribeHandler(cfg))
		r.Post("/translate", translateHandler(cfg))
		r.Post("/apply-subtitles", applySubtitlesHandler(cfg))
		r.Post("/save-subtitles", saveSubtitlesHandler(cfg))

		r.Get("/projects", listProjectsHandler(cfg))
		r.Get("/projects/{id}", getProjectHandler(cfg))
		r.Put("/projects/{id}", updateProjectHandler(cfg))
		r.Delete("/projects/{id}", deleteProjectHandler(cfg))

		r.Get("/video/*", videoHandler(cfg))
		r.Get("/download/{type}/{filename}", downloadHandler(cfg))
		r.Get("/test-download/{filename}", outputFileHandler(cfg))
		r.Get("/subtitles", listSubtitlesHandler(cfg))
		r.Get("/subtitles/{filename}", loadSubtitlesHandler(cfg))

		r.Get("/config", configHandler(cfg))
		r.Get("/doctor", doctorHandler(cfg))
		r.Get("/events", eventsHandler(cfg))
	})

	if cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func configHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Info)
	}
}

func doctorHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Doctor == nil {
			WriteError(w, http.StatusServiceUnavailable, "doctor not configured", "UNAVAILABLE")
			return
		}
		report, err := cfg.Doctor.Get(r.Context())
		if err != nil {
			cfg.Logger.Error("doctor probe failed", "error", err)
			WriteError(w, http.StatusServiceUnavailable, "doctor probe failed: "+err.Error(), "UNAVAILABLE")
			return
		}
		status := http.StatusOK
		if !report.Ready {
			status = http.StatusServiceUnavailable
		}
		WriteJSON(w, status, report)
	}
}

// writeServiceError maps package errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error, action string) {
	switch {
	case errors.Is(err, project.ErrNotFound):
		WriteError(w, http.StatusNotFound, "project not found", "NOT_FOUND")
	case errors.Is(err, playback.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		WriteError(w, http.StatusNotFound, "file not found", "NOT_FOUND")
	case errors.Is(err, project.ErrInvalidPatch), errors.Is(err, workflow.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	case errors.Is(err, upload.ErrTooLarge):
		WriteError(w, http.StatusRequestEntityTooLarge, err.Error(), "TOO_LARGE")
	case errors.Is(err, upload.ErrNoFile), errors.Is(err, upload.ErrUnsupportedType):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	default:
		logger.Error(action+" failed", "error", err)
		WriteError(w, http.StatusInternalServerError, action+": "+err.Error(), "INTERNAL_ERROR")
	}
}
