package subtitle

import (
	"regexp"
	"strings"
)

const (
	maxFilenameLen  = 200
	defaultFilename = "video_output"
)

var (
	reservedChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	trademarks    = regexp.MustCompile(`[®©™]`)
	whitespace    = regexp.MustCompile(`\s+`)
	disallowed    = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)
	dotRuns       = regexp.MustCompile(`\.{2,}`)
)

// SanitizeFilename reduces name to a safe ASCII filename. Reserved and
// trademark characters are dropped, whitespace becomes "_", anything
// outside [A-Za-z0-9_.-] is removed and dots are tidied. An empty result
// becomes "video_output".
func SanitizeFilename(name string) string {
	s := reservedChars.ReplaceAllString(name, "")
	s = trademarks.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, "_")
	s = disallowed.ReplaceAllString(s, "")
	s = strings.Trim(s, ".")
	s = dotRuns.ReplaceAllString(s, ".")
	if len(s) > maxFilenameLen {
		s = s[:maxFilenameLen]
	}
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return defaultFilename
	}
	return s
}

// WithExtension replaces the final extension of name with ext, which must
// include the leading dot. A name already ending in ext is kept.
func WithExtension(name, ext string) string {
	if strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext)) {
		return name
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return name + ext
}
