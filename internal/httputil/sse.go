package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("httputil: streaming unsupported")

// EventStream writes server-sent events to an HTTP response.
type EventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewEventStream writes the event-stream headers and returns a stream. It
// fails when w does not implement http.Flusher.
func NewEventStream(w http.ResponseWriter) (*EventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &EventStream{w: w, flusher: flusher}, nil
}

// Send writes one event with v encoded as JSON and flushes it. An empty
// event name sends an unnamed message event.
func (s *EventStream) Send(event string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Comment writes an SSE comment line, used as a keep-alive.
func (s *EventStream) Comment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
