// Package project holds the project records that track a video through
// transcription, translation and export, and the stores that persist them.
package project

import (
	"strings"
	"time"
)

// Status is a project's position in the processing pipeline.
type Status string

const (
	StatusUploaded     Status = "uploaded"
	StatusTranscribing Status = "transcribing"
	StatusTranscribed  Status = "transcribed"
	StatusTranslating  Status = "translating"
	StatusTranslated   Status = "translated"
	StatusExported     Status = "exported"
)

// Segment is one timed span of speech. Start and End are seconds.
type Segment struct {
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Text           string  `json:"text"`
	TranslatedText string  `json:"translatedText,omitempty"`
}

// Valid reports whether the segment has a non-negative, non-empty time span.
func (s Segment) Valid() bool {
	return s.Start >= 0 && s.Start < s.End
}

// Project is the durable record of one uploaded video.
type Project struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	OriginalName       string    `json:"originalName"`
	VideoPath          string    `json:"videoPath"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
	Status             Status    `json:"status"`
	SourceLanguage     string    `json:"sourceLanguage"`
	TargetLanguage     string    `json:"targetLanguage"`
	Segments           []Segment `json:"segments"`
	TranslatedSegments []Segment `json:"translatedSegments"`
	Subtitles          string    `json:"subtitles,omitempty"`
	ExportedVideo      string    `json:"exportedVideo,omitempty"`
}

// Clone returns a deep copy so stored records never alias caller memory.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	c.Segments = cloneSegments(p.Segments)
	c.TranslatedSegments = cloneSegments(p.TranslatedSegments)
	return &c
}

// Files returns the on-disk artifacts owned by the project.
func (p *Project) Files() []string {
	var files []string
	for _, f := range []string{p.VideoPath, p.Subtitles, p.ExportedVideo} {
		if f != "" {
			files = append(files, f)
		}
	}
	return files
}

func (p *Project) normalize() {
	if p.Segments == nil {
		p.Segments = []Segment{}
	}
	if p.TranslatedSegments == nil {
		p.TranslatedSegments = []Segment{}
	}
}

func cloneSegments(in []Segment) []Segment {
	out := make([]Segment, len(in))
	copy(out, in)
	return out
}

// DisplayName derives a project name from an uploaded filename by dropping
// the final extension.
func DisplayName(originalName string) string {
	name := strings.TrimSpace(originalName)
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	if name == "" {
		return "Untitled"
	}
	return name
}
