package dispatch

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Event is the envelope an external system publishes to the dispatch topic to
// start a pipeline run. Two identical events produce two independent runs.
type Event struct {
	RunID        string            `json:"run_id"`
	Inputs       map[string]string `json:"inputs"`
	ReceivedAt   string            `json:"received_at"`             // RFC3339
	TraceHeaders map[string]string `json:"trace_headers,omitempty"` // OTel trace propagation headers
}

// NewEvent wraps a dispatch payload with a fresh run ID and timestamp.
func NewEvent(inputs map[string]string, traceHeaders map[string]string) Event {
	return Event{
		RunID:        NewRunID(),
		Inputs:       inputs,
		ReceivedAt:   time.Now().UTC().Format(time.RFC3339),
		TraceHeaders: traceHeaders,
	}
}

// NewRunID mints a correlation ID for a single pipeline run.
func NewRunID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "run-" + time.Now().UTC().Format("20060102150405.000000000")
	}
	return "run-" + hex.EncodeToString(b)
}
