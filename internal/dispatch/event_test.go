package dispatch

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewEvent(t *testing.T) {
	inputs := map[string]string{"jira_issue_key": "ABC-1", "target_email": "user@example.com"}
	headers := map[string]string{"traceparent": "00-abc-def-01"}

	ev := NewEvent(inputs, headers)

	if !strings.HasPrefix(ev.RunID, "run-") {
		t.Errorf("RunID = %q, want run- prefix", ev.RunID)
	}
	if ev.Inputs["jira_issue_key"] != "ABC-1" {
		t.Errorf("Inputs = %v, want dispatch payload preserved", ev.Inputs)
	}
	if ev.TraceHeaders["traceparent"] != "00-abc-def-01" {
		t.Errorf("TraceHeaders = %v, want propagation headers preserved", ev.TraceHeaders)
	}
	if _, err := time.Parse(time.RFC3339, ev.ReceivedAt); err != nil {
		t.Errorf("ReceivedAt %q not RFC3339: %v", ev.ReceivedAt, err)
	}
}

func TestNewEventRunIDsAreUnique(t *testing.T) {
	a := NewEvent(nil, nil)
	b := NewEvent(nil, nil)
	if a.RunID == b.RunID {
		t.Errorf("two events share run ID %q", a.RunID)
	}
}

func TestEventJSON(t *testing.T) {
	ev := NewEvent(map[string]string{"issueKey": "ABC-2"}, nil)

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "trace_headers") {
		t.Errorf("empty trace headers should be omitted, got %s", data)
	}

	var back Event
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.RunID != ev.RunID || back.Inputs["issueKey"] != "ABC-2" {
		t.Errorf("round-trip = %+v, want %+v", back, ev)
	}
}
