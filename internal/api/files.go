package api

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seia/seia-translator/internal/playback"
)

const srtContentType = "text/plain; charset=utf-8"

// videoHandler streams a media file under the data directory. The
// wildcard is either a path relative to the data directory or an absolute
// path inside it.
func videoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := url.PathUnescape(chi.URLParam(r, "*"))
		if err != nil || raw == "" {
			WriteError(w, http.StatusBadRequest, "invalid video path", "BAD_REQUEST")
			return
		}
		path, ok := withinDataDir(cfg.DataDir, raw)
		if !ok {
			WriteError(w, http.StatusNotFound, "video file not found", "NOT_FOUND")
			return
		}

		contentType := ""
		if strings.EqualFold(filepath.Ext(path), ".mp4") {
			contentType = "video/mp4"
		}
		if err := cfg.Files.ServeFile(w, r, path, contentType); err != nil {
			writeServiceError(w, cfg.Logger, err, "serve video")
		}
	}
}

// withinDataDir resolves p and reports whether it stays inside dataDir.
func withinDataDir(dataDir, p string) (string, bool) {
	if dataDir == "" {
		return "", false
	}
	base, err := filepath.Abs(dataDir)
	if err != nil {
		return "", false
	}
	candidate := filepath.FromSlash(p)
	if !filepath.IsAbs(candidate) {
		// chi strips the leading slash of absolute paths.
		if abs := string(filepath.Separator) + candidate; strings.HasPrefix(abs, base+string(filepath.Separator)) {
			candidate = abs
		} else {
			candidate = filepath.Join(base, candidate)
		}
	}
	candidate = filepath.Clean(candidate)
	rel, err := filepath.Rel(base, candidate)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return candidate, true
}

func downloadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := chi.URLParam(r, "type")
		filename := chi.URLParam(r, "filename")

		var (
			path        string
			err         error
			contentType string
		)
		switch kind {
		case "video":
			path, err = cfg.Pipeline.OutputPath(filename)
			contentType = "video/mp4"
		case "srt":
			path, err = cfg.Pipeline.SubtitlePath(filename)
			contentType = srtContentType
		default:
			WriteError(w, http.StatusBadRequest, "invalid file type", "BAD_REQUEST")
			return
		}
		if err != nil {
			writeServiceError(w, cfg.Logger, err, "download")
			return
		}

		w.Header().Set("Cache-Control", "no-cache")
		if err := cfg.Files.ServeAttachment(w, r, path, filename, contentType); err != nil {
			writeServiceError(w, cfg.Logger, err, "download")
		}
	}
}

// outputFileHandler reports whether an export exists.
func outputFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")
		path, err := cfg.Pipeline.OutputPath(filename)
		if err != nil {
			writeServiceError(w, cfg.Logger, err, "check output")
			return
		}

		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			WriteJSON(w, http.StatusOK, OutputFileResponse{
				Exists:      true,
				Filename:    filename,
				Size:        info.Size(),
				DownloadURL: "/api/download/video/" + url.PathEscape(filename),
			})
			return
		}

		available := []string{}
		if entries, err := os.ReadDir(filepath.Dir(path)); err == nil {
			for _, e := range entries {
				if !e.IsDir() {
					available = append(available, e.Name())
				}
			}
		}
		sort.Strings(available)
		WriteJSON(w, http.StatusOK, OutputFileResponse{Filename: filename, AvailableFiles: available})
	}
}

func listSubtitlesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		files, err := cfg.Pipeline.ListSubtitles()
		if err != nil {
			writeServiceError(w, cfg.Logger, err, "list subtitles")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"files": files})
	}
}

func loadSubtitlesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := cfg.Pipeline.LoadSubtitles(chi.URLParam(r, "filename"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err, "load subtitles")
			return
		}
		WriteJSON(w, http.StatusOK, doc)
	}
}

var _ FileServer = (*playback.Server)(nil)
