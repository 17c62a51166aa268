package project

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPatch is returned when a patch or its merged result is malformed.
var ErrInvalidPatch = errors.New("invalid project update")

// Patch names the fields to replace. Nil fields are left untouched; set
// fields replace the stored value wholesale.
type Patch struct {
	Name               *string
	Status             *Status
	SourceLanguage     *string
	TargetLanguage     *string
	Segments           *[]Segment
	TranslatedSegments *[]Segment
	Subtitles          *string
	ExportedVideo      *string
}

// IsEmpty reports whether the patch changes nothing.
func (pt Patch) IsEmpty() bool {
	return pt.Name == nil && pt.Status == nil && pt.SourceLanguage == nil &&
		pt.TargetLanguage == nil && pt.Segments == nil && pt.TranslatedSegments == nil &&
		pt.Subtitles == nil && pt.ExportedVideo == nil
}

// Apply merges the patch into p.
func (pt Patch) Apply(p *Project) {
	if pt.Name != nil {
		p.Name = strings.TrimSpace(*pt.Name)
	}
	if pt.Status != nil {
		p.Status = *pt.Status
	}
	if pt.SourceLanguage != nil {
		p.SourceLanguage = *pt.SourceLanguage
	}
	if pt.TargetLanguage != nil {
		p.TargetLanguage = *pt.TargetLanguage
	}
	if pt.Segments != nil {
		p.Segments = cloneSegments(*pt.Segments)
	}
	if pt.TranslatedSegments != nil {
		p.TranslatedSegments = cloneSegments(*pt.TranslatedSegments)
	}
	if pt.Subtitles != nil {
		p.Subtitles = *pt.Subtitles
	}
	if pt.ExportedVideo != nil {
		p.ExportedVideo = *pt.ExportedVideo
	}
}

// Validate checks a merged record before it is persisted.
func Validate(p *Project) error {
	if p.Name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidPatch)
	}
	if !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidPatch, p.Status)
	}
	for i, s := range p.Segments {
		if !s.Valid() {
			return fmt.Errorf("%w: segment %d has invalid timing %.3f-%.3f", ErrInvalidPatch, i, s.Start, s.End)
		}
	}
	for i, s := range p.TranslatedSegments {
		if !s.Valid() {
			return fmt.Errorf("%w: translated segment %d has invalid timing %.3f-%.3f", ErrInvalidPatch, i, s.Start, s.End)
		}
	}
	if len(p.Segments) > 0 && len(p.TranslatedSegments) > 0 && len(p.Segments) != len(p.TranslatedSegments) {
		return fmt.Errorf("%w: %d translated segments for %d segments", ErrInvalidPatch, len(p.TranslatedSegments), len(p.Segments))
	}
	return nil
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}
