package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/PatrickEleganceGroup/issuerelay/internal/config"
	"github.com/PatrickEleganceGroup/issuerelay/internal/logging"
	"github.com/PatrickEleganceGroup/issuerelay/internal/metrics"
	"github.com/PatrickEleganceGroup/issuerelay/internal/script"
	"github.com/PatrickEleganceGroup/issuerelay/internal/tracker"
	"github.com/PatrickEleganceGroup/issuerelay/internal/tracing"
	"github.com/PatrickEleganceGroup/issuerelay/internal/trigger"
)

// Outcome summarizes one pipeline run for operator logging.
type Outcome struct {
	RunID        string
	IssueKey     string
	ResultText   string
	ReportStatus int  // HTTP status of the comment call, 0 if never attempted
	TaskFailed   bool // the task script failed; its failure text was the result
}

// Pipeline wires one run: validate trigger, execute the task, report the
// result to the issue tracker. Strictly sequential; errors propagate, nothing
// is retried.
type Pipeline struct {
	cfg    config.Config
	client *tracker.Client
	runner *script.Runner
	logger *logging.Logger
}

func New(cfg config.Config, logger *logging.Logger) (*Pipeline, error) {
	client, err := tracker.New(cfg.Tracker)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:    cfg,
		client: client,
		runner: &script.Runner{
			Path:       cfg.Pipeline.ScriptPath,
			Args:       cfg.Pipeline.ScriptArgs,
			ResultFile: cfg.Pipeline.ResultFile,
		},
		logger: logger,
	}, nil
}

// Run executes one pipeline invocation. runID is the caller's correlation ID
// (dispatch event run ID, or fresh for CI runs).
func (p *Pipeline) Run(ctx context.Context, trig trigger.Trigger, runID string) (Outcome, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.run",
		attribute.String("run_id", runID),
		attribute.String("trigger", string(trig.Kind)),
	)
	defer span.End()

	out := Outcome{RunID: runID}
	status := "failed"
	defer func() { metrics.RecordRun(string(trig.Kind), status) }()

	// Validate before any side effect: no script run, no network call.
	issueKey := trig.IssueKey()
	if issueKey == "" {
		err := fmt.Errorf("trigger %s is missing an issue key", trig.Kind)
		tracing.SetSpanError(ctx, err)
		return out, err
	}
	out.IssueKey = issueKey
	span.SetAttributes(attribute.String("issue_key", issueKey))

	if p.cfg.Pipeline.ScriptPath == "" {
		// Built-in restore flow needs the target account.
		if trig.TargetEmail() == "" {
			err := fmt.Errorf("trigger %s is missing target_email", trig.Kind)
			tracing.SetSpanError(ctx, err)
			return out, err
		}
	}

	resultText, taskFailed, err := p.runTask(ctx, trig)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return out, err
	}
	out.ResultText = resultText
	out.TaskFailed = taskFailed

	if taskFailed && !p.cfg.Pipeline.ReportOnFailure {
		err := errors.New("task script failed and failure reporting is disabled")
		p.logger.WithContext(ctx).WithRun(runID).WithIssue(issueKey).
			WithField("result", resultText).Error("task failed, skipping report")
		tracing.SetSpanError(ctx, err)
		return out, err
	}

	reportStatus, err := p.report(ctx, issueKey, resultText)
	out.ReportStatus = reportStatus
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return out, err
	}

	if taskFailed {
		// The failure is now visible on the issue; the run itself still
		// fails so the hosting CI reflects it.
		return out, errors.New("task script failed; failure text was reported")
	}

	status = "ok"
	p.logger.WithContext(ctx).WithRun(runID).WithIssue(issueKey).
		WithTrigger(string(trig.Kind)).
		WithField("report_status", reportStatus).Info("pipeline completed")
	return out, nil
}

// runTask produces the result text: the configured task script, or the
// built-in account-restore flow when no script is configured.
func (p *Pipeline) runTask(ctx context.Context, trig trigger.Trigger) (string, bool, error) {
	if p.cfg.Pipeline.ScriptPath != "" {
		tracing.AddSpanEvent(ctx, "script.run")
		res, err := p.runner.Run(ctx, trig)
		if err != nil {
			return "", false, err
		}
		if res.Failed {
			p.logger.WithContext(ctx).WithTrigger(string(trig.Kind)).
				WithError(res.Err).Warn("task script failed")
		}
		return res.Text, res.Failed, nil
	}

	tracing.AddSpanEvent(ctx, "tracker.restore_user")
	text, err := p.client.RestoreUser(ctx, trig.TargetEmail())
	if err != nil {
		return "", false, err
	}
	return text, false, nil
}

// report posts the result text as a comment and records the attempt.
func (p *Pipeline) report(ctx context.Context, issueKey, resultText string) (int, error) {
	tracing.AddSpanEvent(ctx, "tracker.add_comment")
	start := time.Now()
	reportStatus, err := p.client.AddComment(ctx, issueKey, resultText)
	metrics.RecordReport(classifyReport(err, reportStatus), time.Since(start))
	if err != nil {
		return reportStatus, fmt.Errorf("report to issue %s: %w", issueKey, err)
	}
	return reportStatus, nil
}

func classifyReport(err error, status int) string {
	if err == nil {
		return "ok"
	}
	var se *tracker.StatusError
	if errors.As(err, &se) {
		switch {
		case se.Status >= 500:
			return "http_5xx"
		case se.Status >= 400:
			return "http_4xx"
		default:
			return "http_other"
		}
	}
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return "timeout"
	}
	return "network"
}
