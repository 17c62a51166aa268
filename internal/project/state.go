package project

var statusRank = map[Status]int{
	StatusUploaded:     0,
	StatusTranscribing: 1,
	StatusTranscribed:  2,
	StatusTranslating:  3,
	StatusTranslated:   4,
	StatusExported:     5,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Rank orders statuses along the pipeline. Unknown statuses rank -1.
func (s Status) Rank() int {
	r, ok := statusRank[s]
	if !ok {
		return -1
	}
	return r
}

// Transient reports whether s marks work in progress.
func (s Status) Transient() bool {
	return s == StatusTranscribing || s == StatusTranslating
}

// CanTranslate reports whether the project has segments to translate.
func (p *Project) CanTranslate() bool {
	return len(p.Segments) > 0
}

// CanExport reports whether the project has anything to burn in.
func (p *Project) CanExport() bool {
	return len(p.Segments) > 0 || len(p.TranslatedSegments) > 0
}

// RecoveredStatus returns the status a project left in a transient state
// should fall back to, based on the data it already holds.
func RecoveredStatus(p *Project) Status {
	switch p.Status {
	case StatusTranscribing:
		if len(p.Segments) > 0 {
			return StatusTranscribed
		}
		return StatusUploaded
	case StatusTranslating:
		if len(p.TranslatedSegments) > 0 {
			return StatusTranslated
		}
		if len(p.Segments) > 0 {
			return StatusTranscribed
		}
		return StatusUploaded
	default:
		return p.Status
	}
}
