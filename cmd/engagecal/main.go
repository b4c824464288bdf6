package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"engagecal/internal/config"
	"engagecal/internal/engage"
	"engagecal/internal/ics"
	appLog "engagecal/internal/log"
	"engagecal/internal/metrics"
	"engagecal/internal/pipeline"
	"engagecal/internal/publish"
	"engagecal/internal/scheduler"
)

type flagConfig struct {
	configPath string
	envFile    string
	logLevel   string
	once       bool
}

func main() {
	flags := parseFlags()

	if err := config.LoadDotEnv(flags.envFile); err != nil {
		appLog.Error("failed to load env file", err, "path", flags.envFile)
		os.Exit(1)
	}

	conf, err := config.Resolve(flags.configPath, os.LookupEnv)
	if err != nil {
		appLog.Error("invalid configuration", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	level := conf.LogLevel
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(level))

	appLog.Info("engagecal starting", "version", "0.1.0")
	appLog.Info("effective config",
		"output", conf.OutputPath,
		"page_size", conf.PageSize,
		"timeout", conf.Timeout,
		"uid_domain", conf.UIDDomain,
		"ascii_only", conf.ASCIIOnly,
		"fields", conf.Fields.Version,
		"schedule", conf.Schedule,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx, conf, flags.once); err != nil {
		appLog.Error("engagecal failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, conf *config.Config, once bool) error {
	fetcher, err := engage.NewFetcher(engage.Options{
		BaseURL:           conf.APIURL,
		APIKey:            conf.APIKey,
		APIKeyHeader:      conf.APIKeyHeader,
		PageSize:          conf.PageSize,
		Timeout:           conf.Timeout,
		RequestsPerSecond: conf.RequestsPerSecond,
	})
	if err != nil {
		return err
	}

	sink, err := publish.Open(ctx, conf.OutputPath, publish.Options{
		S3Region:   conf.S3.Region,
		S3Endpoint: conf.S3.Endpoint,
	})
	if err != nil {
		return err
	}
	defer sink.Close()

	rec := metrics.NewRecorder()
	runner := &pipeline.Runner{
		Fetcher: fetcher,
		Mapper:  ics.NewMapper(conf.Fields, conf.UIDDomain, conf.ASCIIOnly),
		Sink:    sink,
		ProdID:  conf.ProdID,
		Metrics: rec,
	}

	if conf.Schedule == "" || once {
		return runOnce(ctx, conf, runner, rec)
	}

	if conf.Metrics.Listen != "" {
		srv := &http.Server{Addr: conf.Metrics.Listen, Handler: rec.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			appLog.Info("serving metrics", "listen", conf.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				appLog.Error("metrics server failed", err)
			}
		}()
		defer srv.Close()
	}

	return scheduler.Run(ctx, conf.Schedule, func(ctx context.Context) error {
		sum, err := runner.Run(ctx)
		if err != nil {
			return err
		}
		report(conf, sum)
		return nil
	})
}

func runOnce(ctx context.Context, conf *config.Config, runner *pipeline.Runner, rec *metrics.Recorder) error {
	sum, runErr := runner.Run(ctx)

	if conf.Metrics.Pushgateway != "" {
		if err := rec.Push(ctx, conf.Metrics.Pushgateway, conf.Metrics.Job); err != nil {
			appLog.Error("metrics push failed", err, "pushgateway", conf.Metrics.Pushgateway)
		}
	}

	if runErr != nil {
		return runErr
	}
	report(conf, sum)
	return nil
}

func report(conf *config.Config, sum pipeline.Summary) {
	appLog.Info("wrote calendar",
		"destination", sum.Destination,
		"events", sum.Events,
		"source_tz_hint", conf.TimezoneHint,
		"duration", sum.Duration.Round(time.Millisecond),
	)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "", "Path to YAML config file (optional; created with defaults if missing)")
	flag.StringVar(&cfg.envFile, "env-file", ".env", "Path to a .env file to load before reading the environment")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config")
	flag.BoolVar(&cfg.once, "once", false, "Run a single fetch+publish cycle even if a schedule is configured")

	flag.Parse()

	return cfg
}
