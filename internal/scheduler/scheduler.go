package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	appLog "engagecal/internal/log"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// cronLogger routes robfig/cron's own logging through our logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}

// Validate parses spec with the standard five-field parser (plus
// descriptors such as "@hourly").
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Run executes job once immediately, then on every tick of spec until ctx is
// done. A run still in progress when the next tick fires causes that tick to
// be skipped. Job errors are logged, not returned.
func Run(ctx context.Context, spec string, job Job) error {
	if err := Validate(spec); err != nil {
		return err
	}

	logger := cronLogger{}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))

	id, err := c.AddJob(spec, cron.FuncJob(func() {
		runOnce(ctx, job)
	}))
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	// The wrapped job shares the SkipIfStillRunning guard with cron ticks,
	// so the initial run is serialized with them.
	wrapped := c.Entry(id).WrappedJob

	c.Start()
	appLog.Info("scheduler started", "schedule", spec)

	wrapped.Run()

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	appLog.Info("scheduler stopped")
	return nil
}

func runOnce(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	if err := job(ctx); err != nil {
		appLog.Error("scheduled run failed", err)
	}
}
