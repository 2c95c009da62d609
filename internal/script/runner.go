package script

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/PatrickEleganceGroup/issuerelay/internal/trigger"
)

// Result is one task script outcome: the captured text plus whether the
// script itself failed. The text is immutable once produced.
type Result struct {
	Text   string
	Failed bool
	Err    error // process-level error when Failed
}

// Runner executes the task script as an opaque collaborator: trigger inputs
// go in through the environment, one text result comes out.
type Runner struct {
	Path       string
	Args       []string
	ResultFile string
}

// Run executes the script and returns its result. The script contract: emit a
// non-empty text result on every invocation, success or failure, so the
// reporting step always has something to transmit. Empty output on a clean
// exit violates the contract and is an error. A non-zero exit produces a
// Failed result carrying whatever text the script emitted.
func (r *Runner) Run(ctx context.Context, trig trigger.Trigger) (Result, error) {
	if r.Path == "" {
		return Result{}, fmt.Errorf("no task script configured")
	}

	cmd := exec.CommandContext(ctx, r.Path, r.Args...)
	cmd.Env = append(os.Environ(), envForTrigger(trig)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	text := strings.TrimRight(stdout.String(), "\n")

	if runErr != nil {
		if text == "" {
			// The script aborted without explaining itself; surface stderr
			// so the failure is not silent.
			text = strings.TrimRight(stderr.String(), "\n")
		}
		if text == "" {
			text = fmt.Sprintf("task script failed with no output: %v", runErr)
		}
		res := Result{Text: text, Failed: true, Err: runErr}
		r.writeResultFile(text)
		return res, nil
	}

	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("task script %s produced an empty result", r.Path)
	}

	if err := r.writeResultFile(text); err != nil {
		return Result{}, err
	}
	return Result{Text: text}, nil
}

func (r *Runner) writeResultFile(text string) error {
	if r.ResultFile == "" {
		return nil
	}
	if err := os.WriteFile(r.ResultFile, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write result file %s: %w", r.ResultFile, err)
	}
	return nil
}

// envForTrigger maps trigger inputs onto the environment variables the task
// scripts read.
func envForTrigger(trig trigger.Trigger) []string {
	env := []string{"TRIGGER_KIND=" + string(trig.Kind)}
	if v := trig.IssueKey(); v != "" {
		env = append(env, "ISSUE_KEY="+v)
	}
	if v := trig.Get("projectKey"); v != "" {
		env = append(env, "PROJECT_KEY="+v)
	}
	if v := trig.TargetEmail(); v != "" {
		env = append(env, "TARGET_EMAIL="+v)
	}
	return env
}

// ReadResult reads the intermediate result file. Contract: exists and is
// non-empty when the script succeeded.
func ReadResult(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read result file: %w", err)
	}
	text := strings.TrimRight(string(data), "\n")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("result file %s is empty", path)
	}
	return text, nil
}
