package pipeline

import (
	"context"
	"fmt"
	"time"

	"engagecal/internal/engage"
	"engagecal/internal/ics"
	appLog "engagecal/internal/log"
	"engagecal/internal/metrics"
	"engagecal/internal/model"
	"engagecal/internal/publish"
)

// Fetcher yields the complete raw feed.
type Fetcher interface {
	FetchAll(ctx context.Context) (engage.Result, error)
}

// Runner executes one fetch -> map -> assemble -> verify -> publish pass.
type Runner struct {
	Fetcher Fetcher
	Mapper  *ics.Mapper
	Sink    publish.Sink
	ProdID  string
	// Metrics is optional.
	Metrics *metrics.Recorder
	// Now defaults to time.Now.
	Now func() time.Time
}

// Summary describes a finished run.
type Summary struct {
	Events      int
	Pages       int
	Bytes       int
	Destination string
	Duration    time.Duration
}

// Run performs one pass. The artifact is only published once the whole
// feed was fetched and the document verified; on any error nothing is
// written.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	start := now()

	sum, err := r.run(ctx, start)
	sum.Duration = now().Sub(start)

	if r.Metrics != nil {
		r.Metrics.Observe(metrics.Run{
			Events:   sum.Events,
			Pages:    sum.Pages,
			Bytes:    sum.Bytes,
			Duration: sum.Duration,
			Err:      err,
		})
	}
	return sum, err
}

func (r *Runner) run(ctx context.Context, stamp time.Time) (Summary, error) {
	res, err := r.Fetcher.FetchAll(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch events: %w", err)
	}

	doc := r.Render(res.Events, stamp)

	if err := ics.Verify(doc, len(res.Events)); err != nil {
		return Summary{}, err
	}

	if err := r.Sink.Publish(ctx, doc); err != nil {
		return Summary{}, fmt.Errorf("publish %s: %w", r.Sink, err)
	}

	appLog.Info("calendar published",
		"destination", r.Sink.String(),
		"events", len(res.Events),
		"pages", res.Pages,
		"bytes", len(doc),
	)

	return Summary{
		Events:      len(res.Events),
		Pages:       res.Pages,
		Bytes:       len(doc),
		Destination: r.Sink.String(),
	}, nil
}

// Render maps every record (in order) and assembles the calendar. All
// events share one DTSTAMP.
func (r *Runner) Render(events []model.RawEvent, stamp time.Time) []byte {
	blocks := make([][]string, 0, len(events))
	for _, ev := range events {
		blocks = append(blocks, r.Mapper.Lines(ev, stamp))
	}
	return ics.Assemble(r.ProdID, blocks)
}
