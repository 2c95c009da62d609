package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PatrickEleganceGroup/issuerelay/internal/config"
	"github.com/PatrickEleganceGroup/issuerelay/internal/dispatch"
	"github.com/PatrickEleganceGroup/issuerelay/internal/health"
	"github.com/PatrickEleganceGroup/issuerelay/internal/logging"
	"github.com/PatrickEleganceGroup/issuerelay/internal/metrics"
	"github.com/PatrickEleganceGroup/issuerelay/internal/pipeline"
	"github.com/PatrickEleganceGroup/issuerelay/internal/tracing"
	"github.com/PatrickEleganceGroup/issuerelay/internal/tracker"
	"github.com/PatrickEleganceGroup/issuerelay/internal/trigger"

	"go.opentelemetry.io/otel/attribute"
)

// dispatcher consumes external dispatch events from NSQ and runs the pipeline
// once per event. Runs are never retried: a failed run is logged and the
// message finished, the same way two identical events produce two runs.
func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	logger := logging.New("issuerelay-dispatcher")

	shutdown, err := tracing.InitTracing(ctx, "issuerelay-dispatcher")
	if err != nil {
		logger.Plain().WithError(err).Fatal("failed to initialize tracing")
	}
	defer shutdown()

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		logger.Plain().WithError(err).Fatal("pipeline setup failed")
	}

	// Prom metrics
	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	// HTTP health/metrics
	trackerClient, err := tracker.New(cfg.Tracker)
	if err != nil {
		logger.Plain().WithError(err).Fatal("tracker client setup failed")
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", health.HTTPHandler(trackerClient))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	httpSrv := &http.Server{Addr: cfg.Dispatcher.HTTPPort, Handler: mux}
	go func() {
		logger.Plain().WithField("addr", httpSrv.Addr).Info("dispatcher HTTP server starting")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Plain().WithError(err).Fatal("dispatcher HTTP server failed")
		}
	}()

	// NSQ consumer
	conf := nsq.NewConfig()
	conf.MaxInFlight = 1
	consumer, err := nsq.NewConsumer(cfg.NSQ.DispatchTopic, cfg.NSQ.DispatchChannel, conf)
	if err != nil {
		logger.Plain().WithError(err).Fatal("nsq consumer creation failed")
	}

	startBacklogMonitor(cfg)

	consumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
		m.DisableAutoResponse()
		defer func() {
			if !m.HasResponded() {
				m.Finish()
			}
		}()

		ev, err := decodeDispatchEvent(m.Body)
		if err != nil {
			logger.Plain().WithError(err).Error("bad dispatch payload")
			metrics.RecordRun(string(trigger.KindExternal), "bad_payload")
			m.Finish() // terminal: don't retry bad payloads
			return nil
		}

		ctx := tracing.ExtractTraceFromDispatch(ctx, ev.TraceHeaders)
		ctx, span := tracing.StartSpan(ctx, "dispatcher.event",
			attribute.String("run_id", ev.RunID),
			attribute.String("received_at", ev.ReceivedAt),
		)
		defer span.End()

		trig := trigger.External(ev.Inputs)
		out, err := p.Run(ctx, trig, ev.RunID)
		if err != nil {
			// The pipeline already classified and counted the failure;
			// dispatch events are not requeued.
			logger.WithContext(ctx).WithRun(ev.RunID).WithIssue(out.IssueKey).
				WithError(err).Error("dispatched run failed")
			m.Finish()
			return nil
		}

		logger.WithContext(ctx).WithRun(ev.RunID).WithIssue(out.IssueKey).
			WithField("report_status", out.ReportStatus).Info("dispatched run completed")
		m.Finish()
		return nil
	}))

	// Connecting directly to NSQD forces channel creation, instead of the channel being lazily created on first publish
	if err := consumer.ConnectToNSQD(cfg.NSQ.NsqdTCPAddr); err != nil {
		logger.Plain().WithError(err).Fatal("connect to nsqd failed")
	}
	if err := consumer.ConnectToNSQLookupd(cfg.NSQ.LookupHTTPAddr); err != nil {
		logger.Plain().WithError(err).Fatal("connect to lookupd failed")
	}

	logger.Plain().Info("dispatcher service started")

	// Graceful stop
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	logger.Plain().Info("Shutting down dispatcher service")
	consumer.Stop()
	<-consumer.StopChan
	_ = httpSrv.Shutdown(context.Background())
	logger.Plain().Info("dispatcher service stopped")
}

// startBacklogMonitor periodically reads nsqd stats and updates the dispatch
// backlog gauge for the configured topic and channel.
func startBacklogMonitor(cfg config.Config) {
	go func() {
		logger := logging.New("issuerelay-dispatcher-monitor")
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		httpClient := &http.Client{Timeout: 5 * time.Second}

		for range ticker.C {
			// nsqd serves stats over HTTP one port above its TCP listener
			nsqdHTTPAddr := strings.Replace(cfg.NSQ.NsqdTCPAddr, ":4150", ":4151", 1)
			resp, err := httpClient.Get(fmt.Sprintf("http://%s/stats?format=json", nsqdHTTPAddr))
			if err != nil {
				logger.Plain().WithError(err).Error("Failed to get NSQ stats")
				continue
			}

			depth, err := dispatchBacklogDepth(resp.Body, cfg.NSQ.DispatchTopic, cfg.NSQ.DispatchChannel)
			resp.Body.Close()
			if err != nil {
				logger.Plain().WithError(err).Error("Failed to decode NSQ stats")
				continue
			}
			metrics.UpdateDispatchBacklog(float64(depth))
		}
	}()
}

// decodeDispatchEvent accepts either the full event envelope or a bare flat
// input object. Bare payloads get a fresh run ID.
func decodeDispatchEvent(body []byte) (dispatch.Event, error) {
	var ev dispatch.Event
	if err := json.Unmarshal(body, &ev); err == nil && len(ev.Inputs) > 0 {
		if ev.RunID == "" {
			ev.RunID = dispatch.NewRunID()
		}
		return ev, nil
	}

	bare, err := trigger.FromPayload(body)
	if err != nil {
		return dispatch.Event{}, err
	}
	if len(bare.Inputs) == 0 {
		return dispatch.Event{}, fmt.Errorf("dispatch payload has no inputs")
	}
	return dispatch.NewEvent(bare.Inputs, nil), nil
}

type nsqStats struct {
	Topics []struct {
		Name     string `json:"topic_name"`
		Channels []struct {
			Name  string `json:"channel_name"`
			Depth int64  `json:"depth"`
		} `json:"channels"`
	} `json:"topics"`
}

// dispatchBacklogDepth extracts the channel depth for topic/channel from an
// nsqd stats response. Missing topic or channel reads as zero backlog.
func dispatchBacklogDepth(r io.Reader, topic, channel string) (int64, error) {
	var stats nsqStats
	if err := json.NewDecoder(r).Decode(&stats); err != nil {
		return 0, err
	}
	for _, t := range stats.Topics {
		if t.Name != topic {
			continue
		}
		for _, c := range t.Channels {
			if c.Name == channel {
				return c.Depth, nil
			}
		}
	}
	return 0, nil
}
