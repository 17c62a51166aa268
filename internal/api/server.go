// Package api exposes the project store and pipelines over HTTP.
package api

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/seia/seia-translator/internal/doctor"
	"github.com/seia/seia-translator/internal/events"
	"github.com/seia/seia-translator/internal/project"
	"github.com/seia/seia-translator/internal/translate"
	"github.com/seia/seia-translator/internal/upload"
	"github.com/seia/seia-translator/internal/workflow"
)

// Pipeline is the transcribe/export surface.
type Pipeline interface {
	Transcribe(ctx context.Context, projectID, language string) (*workflow.TranscribeResult, error)
	Export(ctx context.Context, projectID, outputFilename string) (*workflow.ExportResult, error)
	SaveSubtitles(segments []project.Segment, filename string) (string, string, error)
	ListSubtitles() ([]workflow.SubtitleFile, error)
	LoadSubtitles(filename string) (*workflow.SubtitleDocument, error)
	SubtitlePath(filename string) (string, error)
	OutputPath(filename string) (string, error)
}

// TranslationStreamer starts a translation batch.
type TranslationStreamer interface {
	Translate(ctx context.Context, req translate.Request) <-chan translate.Event
}

// Uploads stores incoming media.
type Uploads interface {
	Save(originalName, contentType string, r io.Reader) (*upload.File, error)
	MaxBytes() int64
}

// FileServer streams files from disk.
type FileServer interface {
	ServeFile(w http.ResponseWriter, r *http.Request, path, contentType string) error
	ServeAttachment(w http.ResponseWriter, r *http.Request, path, filename, contentType string) error
}

// Doctor reports host capabilities.
type Doctor interface {
	Get(ctx context.Context) (*doctor.Report, error)
}

type ServerConfig struct {
	Addr      string
	DataDir   string
	AuthToken string
	// LocalOnly rejects non-loopback clients when no token is set.
	LocalOnly bool
	StaticDir string
	// AllowedOrigins extends the loopback CORS allowlist.
	AllowedOrigins []string

	Projects   project.Store
	Pipeline   Pipeline
	Translator TranslationStreamer
	Uploads    Uploads
	Files      FileServer
	Doctor     Doctor
	Changes    *events.Hub
	Info       ConfigResponse

	Logger    *slog.Logger
	StartTime time.Time
	Version   string
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
			// Uploads, SSE and downloads are long-lived.
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

// Start listens and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
	err := s.httpServer.Serve(ln)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
