package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/amityadav/clipping/internal/core"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner is the ingestion entry point the worker triggers.
type Runner interface {
	Run(ctx context.Context) (*core.RunReport, error)
}

// Worker triggers ingestion runs on a cron schedule. A tick that fires
// while the previous run is still going is skipped.
type Worker struct {
	runner  Runner
	spec    string
	timeout time.Duration
	cron    *cron.Cron
	log     *zap.Logger
}

func NewWorker(runner Runner, spec string, loc *time.Location, timeout time.Duration, log *zap.Logger) *Worker {
	if loc == nil {
		loc = time.UTC
	}
	log = log.Named("scheduler")
	return &Worker{
		runner:  runner,
		spec:    spec,
		timeout: timeout,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{log})),
		),
		log: log,
	}
}

// Start schedules the run job and starts the cron loop.
func (w *Worker) Start() error {
	if _, err := w.cron.AddFunc(w.spec, w.RunOnce); err != nil {
		return fmt.Errorf("invalid ingest schedule %q: %w", w.spec, err)
	}
	w.cron.Start()
	w.log.Info("scheduled ingestion", zap.String("schedule", w.spec))
	return nil
}

// Stop stops scheduling and waits for a running job to finish.
func (w *Worker) Stop(ctx context.Context) {
	select {
	case <-w.cron.Stop().Done():
	case <-ctx.Done():
		w.log.Warn("stopped before the running job finished")
	}
	w.log.Info("stopped")
}

// RunOnce performs one bounded run and logs its outcome.
func (w *Worker) RunOnce() {
	ctx := context.Background()
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	report, err := w.runner.Run(ctx)
	if err != nil {
		w.log.Error("scheduled run failed", zap.Error(err))
		return
	}
	w.log.Info("scheduled run complete",
		zap.String("run_id", report.RunID),
		zap.Int("stored", report.ArticlesStored),
		zap.Int("errors", len(report.Errors)))
}

// cronLogger adapts zap to cron's logger interface.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
