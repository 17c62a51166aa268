package api

import (
	"github.com/seia/seia-translator/internal/project"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type UploadResponse struct {
	Success bool             `json:"success"`
	Project *project.Project `json:"project"`
}

type TranscribeRequest struct {
	ProjectID string `json:"projectId"`
	Language  string `json:"language"`
}

type TranscribeResponse struct {
	Success       bool              `json:"success"`
	Transcription []project.Segment `json:"transcription"`
	SRTPath       string            `json:"srtPath"`
	SRTContent    string            `json:"srtContent"`
	Project       *project.Project  `json:"project"`
}

type TranslateRequest struct {
	ProjectID      string `json:"projectId"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
}

type ApplySubtitlesRequest struct {
	ProjectID      string `json:"projectId"`
	OutputFilename string `json:"outputFilename"`
}

type ApplySubtitlesResponse struct {
	Success        bool             `json:"success"`
	OutputFilename string           `json:"outputFilename"`
	OutputPath     string           `json:"outputPath"`
	Message        string           `json:"message"`
	Project        *project.Project `json:"project"`
}

type SaveSubtitlesRequest struct {
	Segments []project.Segment `json:"segments"`
	Filename string            `json:"filename"`
}

// UpdateProjectRequest is the PUT body. File paths are not settable here.
type UpdateProjectRequest struct {
	Name               *string            `json:"name"`
	Status             *project.Status    `json:"status"`
	SourceLanguage     *string            `json:"sourceLanguage"`
	TargetLanguage     *string            `json:"targetLanguage"`
	Segments           *[]project.Segment `json:"segments"`
	TranslatedSegments *[]project.Segment `json:"translatedSegments"`
}

func (r UpdateProjectRequest) Patch() project.Patch {
	return project.Patch{
		Name:               r.Name,
		Status:             r.Status,
		SourceLanguage:     r.SourceLanguage,
		TargetLanguage:     r.TargetLanguage,
		Segments:           r.Segments,
		TranslatedSegments: r.TranslatedSegments,
	}
}

type ConfigResponse struct {
	OllamaBaseURL   string `json:"ollamaBaseUrl"`
	OllamaModel     string `json:"ollamaModel"`
	WhisperModel    string `json:"whisperModel"`
	WhisperLanguage string `json:"whisperLanguage"`
	OpenAIAvailable bool   `json:"openaiAvailable"`
	StoreBackend    string `json:"storeBackend"`
	MaxUploadBytes  int64  `json:"maxUploadBytes"`
}

type OutputFileResponse struct {
	Exists         bool     `json:"exists"`
	Filename       string   `json:"filename"`
	Size           int64    `json:"size,omitempty"`
	DownloadURL    string   `json:"downloadUrl,omitempty"`
	AvailableFiles []string `json:"availableFiles,omitempty"`
}
