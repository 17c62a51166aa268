// Package subtitle encodes and decodes SubRip (.srt) subtitle files.
package subtitle

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/seia/seia-translator/internal/project"
)

// ErrNoCues is returned when a document holds no well-formed cue.
var ErrNoCues = errors.New("no valid subtitle blocks")

var timingLine = regexp.MustCompile(`(\d{2,}:\d{2}:\d{2},\d{3}) --> (\d{2,}:\d{2}:\d{2},\d{3})`)

// Encode renders segments as SRT. With useTranslated set, each cue carries
// the segment's translated text, or its source text when no translation
// is present.
func Encode(segments []project.Segment, useTranslated bool) string {
	blocks := make([]string, 0, len(segments))
	for i, seg := range segments {
		text := seg.Text
		if useTranslated && seg.TranslatedText != "" {
			text = seg.TranslatedText
		}
		blocks = append(blocks, fmt.Sprintf("%d\n%s --> %s\n%s\n",
			i+1, FormatTimestamp(seg.Start), FormatTimestamp(seg.End), text))
	}
	return strings.Join(blocks, "\n")
}

// Decode parses SRT text. Blocks whose timing line does not match are
// skipped.
func Decode(text string) []project.Segment {
	segments, _ := decode(text)
	return segments
}

func decode(text string) ([]project.Segment, int) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.Trim(text, "\n")
	segments := []project.Segment{}
	if strings.TrimSpace(text) == "" {
		return segments, 0
	}

	skipped := 0
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.Trim(block, "\n")
		if strings.TrimSpace(block) == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		if len(lines) < 3 {
			skipped++
			continue
		}
		m := timingLine.FindStringSubmatch(lines[1])
		if m == nil {
			skipped++
			continue
		}
		start, err := ParseTimestamp(m[1])
		if err != nil {
			skipped++
			continue
		}
		end, err := ParseTimestamp(m[2])
		if err != nil {
			skipped++
			continue
		}
		segments = append(segments, project.Segment{
			Start: start,
			End:   end,
			Text:  strings.Join(lines[2:], "\n"),
		})
	}
	return segments, skipped
}

// Validate reports whether text contains at least one well-formed cue.
func Validate(text string) error {
	segments, skipped := decode(text)
	if len(segments) == 0 {
		if skipped > 0 {
			return fmt.Errorf("%w: %d malformed blocks", ErrNoCues, skipped)
		}
		return fmt.Errorf("%w: document is empty", ErrNoCues)
	}
	return nil
}

// Report summarizes a subtitle document.
type Report struct {
	Cues     int
	Skipped  int
	Duration float64
	Issues   []string
}

// Check decodes text and lists problems a player would trip over.
func Check(text string) Report {
	segments, skipped := decode(text)
	r := Report{Cues: len(segments), Skipped: skipped}
	if len(segments) == 0 {
		r.Issues = append(r.Issues, "no_valid_cues")
		return r
	}
	if skipped > 0 {
		r.Issues = append(r.Issues, fmt.Sprintf("malformed_blocks: %d", skipped))
	}
	var prevEnd float64
	for i, seg := range segments {
		if !seg.Valid() {
			r.Issues = append(r.Issues, fmt.Sprintf("cue %d: end %s is not after start %s", i+1, FormatTimestamp(seg.End), FormatTimestamp(seg.Start)))
		}
		if i > 0 && seg.Start < prevEnd {
			r.Issues = append(r.Issues, fmt.Sprintf("cue %d: overlaps previous cue", i+1))
		}
		if strings.TrimSpace(seg.Text) == "" {
			r.Issues = append(r.Issues, fmt.Sprintf("cue %d: empty text", i+1))
		}
		prevEnd = seg.End
		if seg.End > r.Duration {
			r.Duration = seg.End
		}
	}
	return r
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	ms := int64(math.Floor(seconds*1000 + 1e-6))
	h := ms / 3_600_000
	m := (ms % 3_600_000) / 60_000
	s := (ms % 60_000) / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// ParseTimestamp parses HH:MM:SS,mmm into seconds.
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	clock, millis, ok := strings.Cut(value, ",")
	if !ok {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(clock, ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	secs, errS := strconv.Atoi(hms[2])
	ms, errMS := strconv.Atoi(millis)
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	total := int64(hours)*3_600_000 + int64(minutes)*60_000 + int64(secs)*1000 + int64(ms)
	return float64(total) / 1000, nil
}
