package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"

	"github.com/seia/seia-translator/internal/translate"
	"github.com/seia/seia-translator/internal/upload"
)

// multipartOverhead is allowed on top of the file ceiling for boundaries
// and part headers.
const multipartOverhead = 1 << 20

func uploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.Uploads.MaxBytes()+multipartOverhead)

		mr, err := r.MultipartReader()
		if err != nil {
			WriteError(w, http.StatusBadRequest, "expected multipart/form-data with a video field", "BAD_REQUEST")
			return
		}

		var file *upload.File
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					writeServiceError(w, cfg.Logger, upload.ErrTooLarge, "upload")
					return
				}
				WriteError(w, http.StatusBadRequest, "malformed multipart body", "BAD_REQUEST")
				return
			}
			if part.FormName() != "video" || part.FileName() == "" {
				part.Close()
				continue
			}
			file, err = cfg.Uploads.Save(part.FileName(), part.Header.Get("Content-Type"), part)
			part.Close()
			if err != nil {
				writeServiceError(w, cfg.Logger, err, "upload")
				return
			}
			break
		}
		if file == nil {
			writeServiceError(w, cfg.Logger, upload.ErrNoFile, "upload")
			return
		}

		p, err := cfg.Projects.Create(r.Context(), file.Path, file.OriginalName)
		if err != nil {
			os.Remove(file.Path)
			writeServiceError(w, cfg.Logger, err, "create project")
			return
		}
		WriteJSON(w, http.StatusOK, UploadResponse{Success: true, Project: p})
	}
}

func transcribeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TranscribeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		res, err := cfg.Pipeline.Transcribe(r.Context(), req.ProjectID, req.Language)
		if err != nil {
			writeServiceError(w, cfg.Logger, err, "transcription")
			return
		}
		WriteJSON(w, http.StatusOK, TranscribeResponse{
			Success:       true,
			Transcription: res.Segments,
			SRTPath:       res.SRTPath,
			SRTContent:    res.SRT,
			Project:       res.Project,
		})
	}
}

func translateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TranslateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		stream := newEventStream(w)
		events := cfg.Translator.Translate(r.Context(), translate.Request{
			ProjectID:      req.ProjectID,
			SourceLanguage: req.SourceLanguage,
			TargetLanguage: req.TargetLanguage,
		})
		for ev := range events {
			if err := stream.Send(ev); err != nil {
				// Keep draining so the producer can finish and restore state.
				cfg.Logger.Debug("sse write failed", "project_id", req.ProjectID, "error", err)
			}
		}
	}
}

func applySubtitlesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ApplySubtitlesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		res, err := cfg.Pipeline.Export(r.Context(), req.ProjectID, req.OutputFilename)
		if err != nil {
			writeServiceError(w, cfg.Logger, err, "subtitle burn-in")
			return
		}
		WriteJSON(w, http.StatusOK, ApplySubtitlesResponse{
			Success:        true,
			OutputFilename: res.OutputFilename,
			OutputPath:     res.OutputPath,
			Message:        "subtitles applied",
			Project:        res.Project,
		})
	}
}

func saveSubtitlesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SaveSubtitlesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		name, content, err := cfg.Pipeline.SaveSubtitles(req.Segments, req.Filename)
		if err != nil {
			writeServiceError(w, cfg.Logger, err, "save subtitles")
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, content)
	}
}
