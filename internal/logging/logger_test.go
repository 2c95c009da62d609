package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		serviceName string
	}{
		{
			name:        "create logger with service name",
			serviceName: "test-service",
		},
		{
			name:        "create logger with empty service name",
			serviceName: "",
		},
		{
			name:        "create logger with complex service name",
			serviceName: "issuerelay-dispatcher-v1.2.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.serviceName)

			if logger == nil {
				t.Error("New() returned nil logger")
			}
			if logger.service != tt.serviceName {
				t.Errorf("New() service = %q, want %q", logger.service, tt.serviceName)
			}
		})
	}
}

func TestLogger_WithContext(t *testing.T) {
	// Set up test tracer for trace ID extraction
	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(trace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)

	tests := []struct {
		name     string
		hasTrace bool
	}{
		{name: "with trace context", hasTrace: true},
		{name: "without trace context", hasTrace: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New("test-service")
			ctx := context.Background()

			if tt.hasTrace {
				tracer := otel.Tracer("test-tracer")
				newCtx, span := tracer.Start(ctx, "test-span")
				ctx = newCtx
				defer span.End()
			}

			before := time.Now().UTC()
			entry := logger.WithContext(ctx)
			after := time.Now().UTC()

			if entry == nil {
				t.Fatal("WithContext() returned nil entry")
			}
			if entry.Service != "test-service" {
				t.Errorf("WithContext() Service = %q, want %q", entry.Service, "test-service")
			}
			if entry.Time.Before(before) || entry.Time.After(after) {
				t.Errorf("WithContext() Time %v not between %v and %v", entry.Time, before, after)
			}

			if tt.hasTrace && entry.TraceID == "" {
				t.Error("WithContext() TraceID should not be empty with trace context")
			}
			if !tt.hasTrace && entry.TraceID != "" {
				t.Errorf("WithContext() TraceID = %q, want empty string without trace", entry.TraceID)
			}
		})
	}
}

func TestLogEntry_FluentFields(t *testing.T) {
	entry := New("test-service").Plain().
		WithRun("run-123").
		WithIssue("ABC-123").
		WithTrigger("external").
		WithField("attempt", 1)

	if entry.RunID != "run-123" {
		t.Errorf("WithRun() RunID = %q, want %q", entry.RunID, "run-123")
	}
	if entry.IssueKey != "ABC-123" {
		t.Errorf("WithIssue() IssueKey = %q, want %q", entry.IssueKey, "ABC-123")
	}
	if entry.Trigger != "external" {
		t.Errorf("WithTrigger() Trigger = %q, want %q", entry.Trigger, "external")
	}
	if entry.Fields["attempt"] != 1 {
		t.Errorf("WithField() Fields[attempt] = %v, want 1", entry.Fields["attempt"])
	}
}

func TestLogEntry_WithError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantField bool
	}{
		{name: "non-nil error is recorded", err: errors.New("boom"), wantField: true},
		{name: "nil error adds nothing", err: nil, wantField: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := New("test-service").Plain().WithError(tt.err)

			_, ok := entry.Fields["error"]
			if ok != tt.wantField {
				t.Errorf("WithError() field present = %v, want %v", ok, tt.wantField)
			}
			if tt.wantField && entry.Fields["error"] != "boom" {
				t.Errorf("WithError() Fields[error] = %v, want %q", entry.Fields["error"], "boom")
			}
		})
	}
}

// captureStdout runs fn and returns what it wrote to stdout.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error: %v", err)
	}
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("read captured stdout: %v", err)
	}
	return buf.String()
}

func TestLogEntry_Output(t *testing.T) {
	tests := []struct {
		name      string
		log       func()
		wantLevel string
		wantMsg   string
	}{
		{
			name:      "info output",
			log:       func() { New("svc").Plain().Info("pipeline started") },
			wantLevel: "info",
			wantMsg:   "pipeline started",
		},
		{
			name:      "error output with formatting",
			log:       func() { New("svc").Plain().Errorf("report failed: status %d", 401) },
			wantLevel: "error",
			wantMsg:   "report failed: status 401",
		},
		{
			name:      "warn output",
			log:       func() { New("svc").Plain().WithIssue("ABC-1").Warn("empty result") },
			wantLevel: "warn",
			wantMsg:   "empty result",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureStdout(t, tt.log)

			var parsed LogEntry
			if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &parsed); err != nil {
				t.Fatalf("output is not valid JSON: %v (got %q)", err, out)
			}
			if string(parsed.Level) != tt.wantLevel {
				t.Errorf("output Level = %q, want %q", parsed.Level, tt.wantLevel)
			}
			if parsed.Message != tt.wantMsg {
				t.Errorf("output Message = %q, want %q", parsed.Message, tt.wantMsg)
			}
			if parsed.Service != "svc" {
				t.Errorf("output Service = %q, want %q", parsed.Service, "svc")
			}
		})
	}
}

func TestLogEntry_OutputOmitsEmptyFields(t *testing.T) {
	out := captureStdout(t, func() { New("svc").Plain().Info("hello") })

	if strings.Contains(out, `"fields"`) {
		t.Errorf("output should omit empty fields map, got %q", out)
	}
	if strings.Contains(out, `"run_id"`) {
		t.Errorf("output should omit unset run_id, got %q", out)
	}
}

func TestDefaultLoggerService(t *testing.T) {
	out := captureStdout(t, func() { Plain().Info("from default") })

	var parsed LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if parsed.Service != "issuerelay" {
		t.Errorf("default logger Service = %q, want %q", parsed.Service, "issuerelay")
	}
}
