// Package upload stores incoming media in the uploads directory.
package upload

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/seia/seia-translator/internal/subtitle"
)

var (
	ErrNoFile          = errors.New("no video file provided")
	ErrUnsupportedType = errors.New("only video files are allowed")
	ErrTooLarge        = errors.New("video file too large")
)

// DefaultMaxBytes is the upload ceiling when none is configured.
const DefaultMaxBytes int64 = 2 << 30

var allowedExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".m4v":  true,
}

// File is a stored upload.
type File struct {
	Path         string
	OriginalName string
	Size         int64
}

// Store writes uploads into one directory.
type Store struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

func NewStore(dir string, maxBytes int64, logger *slog.Logger) *Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{dir: dir, maxBytes: maxBytes, logger: logger}
}

func (s *Store) Dir() string     { return s.dir }
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// IsVideo reports whether name carries an allowed video extension.
func IsVideo(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// CheckType accepts video/* content types, and a generic or empty content
// type when the extension is allowed.
func CheckType(name, contentType string) error {
	if !IsVideo(name) {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, filepath.Ext(name))
	}
	if contentType == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fmt.Errorf("%w: content type %q", ErrUnsupportedType, contentType)
	}
	switch {
	case strings.HasPrefix(mediaType, "video/"):
		return nil
	case mediaType == "application/octet-stream", mediaType == "binary/octet-stream":
		return nil
	}
	return fmt.Errorf("%w: content type %q", ErrUnsupportedType, mediaType)
}

// Save streams r into the uploads dir as <uuid>-<sanitized name>. Content
// past the ceiling aborts the write and removes the partial file.
func (s *Store) Save(originalName, contentType string, r io.Reader) (*File, error) {
	if strings.TrimSpace(originalName) == "" {
		return nil, ErrNoFile
	}
	if err := CheckType(originalName, contentType); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}

	path := filepath.Join(s.dir, s.storedName(originalName))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("create upload: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	switch {
	case err != nil:
		os.Remove(path)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, ErrTooLarge
		}
		return nil, fmt.Errorf("write upload: %w", err)
	case n > s.maxBytes:
		os.Remove(path)
		return nil, ErrTooLarge
	case n == 0:
		os.Remove(path)
		return nil, ErrNoFile
	}

	s.logger.Info("upload stored", "file", filepath.Base(path), "bytes", n)
	return &File{Path: path, OriginalName: originalName, Size: n}, nil
}

// Import moves a file already on disk into the uploads dir.
func (s *Store) Import(src string) (*File, error) {
	name := filepath.Base(src)
	if !IsVideo(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, filepath.Ext(name))
	}
	info, err := os.Stat(src)
	if err != nil {
		return nil, err
	}
	if info.Size() > s.maxBytes {
		return nil, ErrTooLarge
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}

	dst := filepath.Join(s.dir, s.storedName(name))
	if err := os.Rename(src, dst); err != nil {
		// Cross-device moves fall back to copy and remove.
		if err := copyFile(src, dst); err != nil {
			os.Remove(dst)
			return nil, fmt.Errorf("import %s: %w", name, err)
		}
		if err := os.Remove(src); err != nil {
			s.logger.Warn("failed to remove imported source", "path", src, "error", err)
		}
	}

	s.logger.Info("upload imported", "file", filepath.Base(dst), "bytes", info.Size())
	return &File{Path: dst, OriginalName: name, Size: info.Size()}, nil
}

func (s *Store) storedName(originalName string) string {
	return uuid.NewString() + "-" + subtitle.SanitizeFilename(filepath.Base(originalName))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
