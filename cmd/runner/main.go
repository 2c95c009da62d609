package main

import (
	"context"
	"os"

	"github.com/PatrickEleganceGroup/issuerelay/internal/config"
	"github.com/PatrickEleganceGroup/issuerelay/internal/dispatch"
	"github.com/PatrickEleganceGroup/issuerelay/internal/logging"
	"github.com/PatrickEleganceGroup/issuerelay/internal/pipeline"
	"github.com/PatrickEleganceGroup/issuerelay/internal/tracing"
	"github.com/PatrickEleganceGroup/issuerelay/internal/trigger"
)

// runner is the single-shot entrypoint for hosted CI jobs: read the trigger
// from the environment, run the pipeline once, exit non-zero on failure.
func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()
	ctx := context.Background()

	logger := logging.New("issuerelay-runner")

	shutdown, err := tracing.InitTracing(ctx, "issuerelay-runner")
	if err != nil {
		logger.Plain().WithError(err).Error("failed to initialize tracing")
		return 1
	}
	defer shutdown()

	trig, err := trigger.FromEnv()
	if err != nil {
		logger.Plain().WithError(err).Error("invalid trigger")
		return 1
	}

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		logger.Plain().WithError(err).Error("pipeline setup failed")
		return 1
	}

	runID := dispatch.NewRunID()
	out, err := p.Run(ctx, trig, runID)
	if err != nil {
		logger.Plain().WithRun(runID).WithIssue(out.IssueKey).
			WithTrigger(string(trig.Kind)).WithError(err).Error("run failed")
		return 1
	}

	logger.Plain().WithRun(runID).WithIssue(out.IssueKey).
		WithTrigger(string(trig.Kind)).
		WithField("report_status", out.ReportStatus).Info("run completed")
	return 0
}
