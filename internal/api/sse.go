package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// eventStream writes server-sent events, one JSON object per data frame.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newEventStream(w http.ResponseWriter) *eventStream {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s := &eventStream{w: w}
	s.flusher, _ = w.(http.Flusher)
	s.flush()
	return s
}

// Send writes "data: <json>\n\n" and flushes.
func (s *eventStream) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *eventStream) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
