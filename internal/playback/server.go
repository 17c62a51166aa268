// Package playback serves stored media with byte-range support.
package playback

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
)

// ErrNotFound is returned before any bytes are written when the file is
// missing or is a directory.
var ErrNotFound = errors.New("file not found")

// Server streams files from disk.
type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{logger: logger}
}

// ServeFile streams path, answering Range requests with 206 and
// unsatisfiable ones with 416. An empty contentType is derived from the
// extension.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, path, contentType string) error {
	file, size, err := open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(path))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", contentType)

	span, err := ParseSpan(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrRangeNotSatisfiable):
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return nil
	case err != nil:
		// Malformed ranges fall back to the whole file.
		span = nil
	}

	if span == nil {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return nil
		}
		s.copy(w, file, size, path)
		return nil
	}

	if _, err := file.Seek(span.Start, io.SeekStart); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	h.Set("Content-Length", strconv.FormatInt(span.Length(), 10))
	h.Set("Content-Range", span.Header(size))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return nil
	}
	s.copy(w, file, span.Length(), path)
	return nil
}

// ServeAttachment sends path as a download named filename.
func (s *Server) ServeAttachment(w http.ResponseWriter, r *http.Request, path, filename, contentType string) error {
	if filename == "" {
		filename = filepath.Base(path)
	}
	if err := stat(path); err != nil {
		return err
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	return s.ServeFile(w, r, path, contentType)
}

func (s *Server) copy(w io.Writer, file io.Reader, n int64, path string) {
	if _, err := io.CopyN(w, file, n); err != nil {
		// Usually the client went away mid-stream.
		s.logger.Debug("stream interrupted", "file", filepath.Base(path), "error", err)
	}
}

func open(path string) (*os.File, int64, error) {
	if err := stat(path); err != nil {
		return nil, 0, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("stat: %w", err)
	}
	return file, info.Size(), nil
}

func stat(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	return nil
}
