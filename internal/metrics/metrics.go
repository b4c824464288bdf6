package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder holds the per-run gauges of the calendar job. Each Recorder owns
// its registry so tests and scheduled runs do not collide on the default one.
type Recorder struct {
	reg *prometheus.Registry

	events      prometheus.Gauge
	pages       prometheus.Gauge
	outputBytes prometheus.Gauge
	duration    prometheus.Gauge
	lastSuccess prometheus.Gauge
	runs        *prometheus.CounterVec
}

// Run describes one pipeline execution.
type Run struct {
	Events   int
	Pages    int
	Bytes    int
	Duration time.Duration
	Err      error
}

func NewRecorder() *Recorder {
	r := &Recorder{reg: prometheus.NewRegistry()}

	r.events = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "engagecal",
		Name:      "events",
		Help:      "Events written in the last successful run",
	})
	r.pages = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "engagecal",
		Name:      "pages_fetched",
		Help:      "Feed pages requested in the last successful run",
	})
	r.outputBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "engagecal",
		Name:      "output_bytes",
		Help:      "Size of the last published calendar",
	})
	r.duration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "engagecal",
		Name:      "run_duration_seconds",
		Help:      "Wall time of the last run",
	})
	r.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "engagecal",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful run",
	})
	r.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "engagecal",
		Name:      "runs_total",
		Help:      "Runs by result",
	}, []string{"result"})

	r.reg.MustRegister(r.events, r.pages, r.outputBytes, r.duration, r.lastSuccess, r.runs)
	return r
}

// Observe records run. Gauges describing output only move on success.
func (r *Recorder) Observe(run Run) {
	r.duration.Set(run.Duration.Seconds())
	if run.Err != nil {
		r.runs.WithLabelValues("failure").Inc()
		return
	}
	r.runs.WithLabelValues("success").Inc()
	r.events.Set(float64(run.Events))
	r.pages.Set(float64(run.Pages))
	r.outputBytes.Set(float64(run.Bytes))
	r.lastSuccess.SetToCurrentTime()
}

// Push sends the current values to a Pushgateway under job.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	return push.New(url, job).Gatherer(r.reg).PushContext(ctx)
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}
