package trigger

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Kind identifies how a pipeline run was started.
type Kind string

const (
	KindScheduled Kind = "scheduled"
	KindManual    Kind = "manual"
	KindExternal  Kind = "external"
)

// Trigger is the parameter set a dispatch mechanism hands to a pipeline run.
// It is immutable for the duration of the run.
type Trigger struct {
	Kind       Kind              `json:"kind"`
	Inputs     map[string]string `json:"inputs,omitempty"`
	ReceivedAt time.Time         `json:"received_at"`
}

// Scheduled returns a trigger for a calendar recurrence with no caller
// parameters. CI schedules that need inputs go through FromEnv.
func Scheduled() Trigger {
	return Trigger{Kind: KindScheduled, ReceivedAt: time.Now().UTC()}
}

// Manual returns a trigger for an operator invocation with named inputs.
func Manual(inputs map[string]string) Trigger {
	return Trigger{Kind: KindManual, Inputs: inputs, ReceivedAt: time.Now().UTC()}
}

// External returns a trigger for an inbound dispatch event payload.
func External(inputs map[string]string) Trigger {
	return Trigger{Kind: KindExternal, Inputs: inputs, ReceivedAt: time.Now().UTC()}
}

// FromPayload parses an external dispatch payload: a flat JSON object of
// string key-values, e.g. {"target_email":"a@b.com","jira_issue_key":"ABC-1"}.
func FromPayload(raw []byte) (Trigger, error) {
	var inputs map[string]string
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return Trigger{}, fmt.Errorf("invalid dispatch payload: %w", err)
	}
	return External(inputs), nil
}

// envInputKeys are the well-known parameter variables a CI run passes in.
var envInputKeys = map[string]string{
	"issueKey":     "ISSUE_KEY",
	"projectKey":   "PROJECT_KEY",
	"target_email": "TARGET_EMAIL",
}

// FromEnv builds a trigger from the process environment: TRIGGER_KIND selects
// the variant and the well-known parameter variables become inputs. Scheduled
// runs collect inputs too; for them the variables are the job's own
// configuration rather than caller-supplied parameters.
func FromEnv() (Trigger, error) {
	kind := Kind(strings.ToLower(os.Getenv("TRIGGER_KIND")))
	if kind == "" {
		kind = KindScheduled
	}
	switch kind {
	case KindScheduled, KindManual, KindExternal:
	default:
		return Trigger{}, fmt.Errorf("unknown trigger kind %q", kind)
	}

	inputs := make(map[string]string)
	for input, envKey := range envInputKeys {
		if v := os.Getenv(envKey); v != "" {
			inputs[input] = v
		}
	}
	return Trigger{Kind: kind, Inputs: inputs, ReceivedAt: time.Now().UTC()}, nil
}

// Get returns the named input, or "" when absent.
func (t Trigger) Get(key string) string {
	return t.Inputs[key]
}

// IssueKey returns the issue to report to, accepting both spellings seen in
// dispatch payloads.
func (t Trigger) IssueKey() string {
	if v := t.Inputs["issueKey"]; v != "" {
		return v
	}
	return t.Inputs["jira_issue_key"]
}

// TargetEmail returns the target account email, if supplied.
func (t Trigger) TargetEmail() string {
	if v := t.Inputs["target_email"]; v != "" {
		return v
	}
	return t.Inputs["targetEmail"]
}

// Require fails when any named input is absent or blank. Callers validate
// before running the task script or touching the network.
func (t Trigger) Require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if strings.TrimSpace(t.Inputs[k]) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("trigger %s missing required inputs: %s", t.Kind, strings.Join(missing, ", "))
	}
	return nil
}
