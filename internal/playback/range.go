package playback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformedRange marks a Range header the player sent in a form we
	// do not understand. Callers answer with the whole file.
	ErrMalformedRange = errors.New("malformed byte range")
	// ErrRangeNotSatisfiable marks a seek past the end of the media file.
	ErrRangeNotSatisfiable = errors.New("byte range outside media file")
)

// Span is the slice of a media file sent in one 206 response. Both ends
// are inclusive.
type Span struct {
	Start int64
	End   int64
}

// Length is the number of bytes in the span.
func (s Span) Length() int64 {
	return s.End - s.Start + 1
}

// Header renders the Content-Range value for a file of size total.
func (s Span) Header(total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", s.Start, s.End, total)
}

// ParseSpan resolves the Range header a video element sends while seeking
// into a span of a file with the given size. A missing header yields a nil
// span. Players only ever ask for one span, so any later ones are ignored.
// An open or overlong end is cut at the last byte.
func ParseSpan(header string, size int64) (*Span, error) {
	if header == "" {
		return nil, nil
	}
	set, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, ErrMalformedRange
	}
	set, _, _ = strings.Cut(set, ",")
	from, to, ok := strings.Cut(strings.TrimSpace(set), "-")
	switch {
	case !ok || (from == "" && to == ""):
		return nil, ErrMalformedRange
	case from == "":
		return tailSpan(to, size)
	}

	start, err := parseOffset(from)
	if err != nil {
		return nil, err
	}
	last := size - 1
	if to != "" {
		if last, err = parseOffset(to); err != nil {
			return nil, err
		}
	}
	if start >= size || start > last {
		return nil, ErrRangeNotSatisfiable
	}
	return &Span{Start: start, End: min(last, size-1)}, nil
}

// tailSpan handles "bytes=-N", the final N bytes of the file.
func tailSpan(n string, size int64) (*Span, error) {
	count, err := parseOffset(n)
	if err != nil || count == 0 {
		return nil, ErrMalformedRange
	}
	if size == 0 {
		return nil, ErrRangeNotSatisfiable
	}
	return &Span{Start: max(size-count, 0), End: size - 1}, nil
}

func parseOffset(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, ErrMalformedRange
	}
	return v, nil
}
