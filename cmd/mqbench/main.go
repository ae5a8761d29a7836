package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/torosent/mqbench/internal/config"
	"github.com/torosent/mqbench/internal/dashboard"
	"github.com/torosent/mqbench/internal/logging"
	"github.com/torosent/mqbench/internal/metrics"
	"github.com/torosent/mqbench/internal/output"
	"github.com/torosent/mqbench/internal/runner"
	"github.com/torosent/mqbench/internal/threshold"
	"github.com/torosent/mqbench/internal/tracing"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitUnavailable = 2

	shutdownTimeout = 5 * time.Second
)

var errThresholdsFailed = errors.New("one or more thresholds failed")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps run errors to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, runner.ErrBackendUnavailable):
		return exitUnavailable
	default:
		return exitFailure
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	applyBackendLimits(cfg, logger)

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	open, err := NewBackendOpener(cfg, logger)
	if err != nil {
		return err
	}

	stats := metrics.NewStats()
	recorder := metrics.NewLatencyRecorder(cfg.LatencySample)

	if cfg.MetricsAddr != "" {
		_, stop, err := serveMetrics(cfg.MetricsAddr, stats, recorder, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	params := paramsFromConfig(cfg)
	quiet := cfg.JSONOutput || cfg.YAMLOutput || cfg.Dashboard
	if !quiet {
		output.PrintConfig(stdout, params)
	}

	var progress *output.ProgressReporter
	var onProgress func(runner.Progress)
	if !quiet {
		progress = output.NewProgressReporter(stdout)
		onProgress = progress.Report
	}

	r, err := runner.New(runner.Options{
		Name:          string(cfg.Backend),
		MessageSize:   cfg.MessageSize,
		Duration:      cfg.Duration,
		Producers:     cfg.Producers,
		Consumers:     cfg.Consumers,
		NonBlocking:   cfg.NonBlocking,
		RandomPayload: cfg.RandomPayload,
		LatencySample: cfg.LatencySample,
		OpTimeout:     cfg.OpTimeout,
		DrainGrace:    cfg.DrainGrace,
		PrintInterval: cfg.PrintInterval,
		RatePerSecond: cfg.Rate,
		ArrivalModel:  toRunnerArrivalModel(cfg.Arrival.Model),
		Open:          open,
		Progress:      onProgress,
		Stats:         stats,
		Recorder:      recorder,
		Logger:        logger,
		Tracer:        tp.Tracer(),
	})
	if err != nil {
		return err
	}

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(stats, recorder, dashboardConfig(cfg), cancel)
		if err != nil {
			return err
		}
		dash.Start()
	}

	started := time.Now()
	res, err := r.Run(ctx)
	if dash != nil {
		dash.Stop()
	}
	if progress != nil {
		progress.Finish()
	}
	if err != nil {
		return err
	}

	record := output.NewRecord(params, started, res)
	switch {
	case cfg.JSONOutput:
		if err := output.PrintJSONReport(stdout, record); err != nil {
			return err
		}
	case cfg.YAMLOutput:
		if err := output.PrintYAMLReport(stdout, record); err != nil {
			return err
		}
	default:
		output.PrintAttributes(stdout, res.Backend)
		output.PrintReport(stdout, record)
	}

	if cfg.CSVPath != "" {
		if err := output.AppendCSV(cfg.CSVPath, record); err != nil {
			logger.Error("appending csv results", zap.String("path", cfg.CSVPath), zap.Error(err))
		}
	}

	if len(thresholds) > 0 {
		results := threshold.NewEvaluator(thresholds).Evaluate(record)
		if !cfg.JSONOutput && !cfg.YAMLOutput {
			fmt.Fprintln(stdout, "\nThresholds:")
			for _, tr := range results {
				fmt.Fprintf(stdout, "  %s\n", tr.Message)
			}
		}
		if !threshold.AllPassed(results) {
			return errThresholdsFailed
		}
	}
	return nil
}

func paramsFromConfig(cfg *config.Config) output.Params {
	p := output.Params{
		Backend:       string(cfg.Backend),
		Target:        cfg.Target(),
		MessageSize:   cfg.MessageSize,
		MaxInFlight:   cfg.MaxInFlight,
		Producers:     cfg.Producers,
		Consumers:     cfg.Consumers,
		Duration:      cfg.Duration,
		NonBlocking:   cfg.NonBlocking,
		RandomPayload: cfg.RandomPayload,
		LatencySample: cfg.LatencySample,
		Rate:          cfg.Rate,
	}
	if cfg.Rate > 0 {
		p.ArrivalModel = string(cfg.Arrival.Model)
	}
	return p
}

func dashboardConfig(cfg *config.Config) dashboard.RunConfig {
	return dashboard.RunConfig{
		Backend:     string(cfg.Backend),
		Target:      cfg.Target(),
		Producers:   cfg.Producers,
		Consumers:   cfg.Consumers,
		MessageSize: cfg.MessageSize,
		MaxInFlight: cfg.MaxInFlight,
		Duration:    cfg.Duration,
		Rate:        cfg.Rate,
		NonBlocking: cfg.NonBlocking,
		ConfigFile:  cfg.ConfigFile,
	}
}

func toRunnerArrivalModel(model config.ArrivalModel) runner.ArrivalModel {
	switch model {
	case config.ArrivalModelPoisson:
		return runner.ArrivalModelPoisson
	default:
		return runner.ArrivalModelUniform
	}
}

// serveMetrics exposes the live counters on addr until the returned stop
// function is called. It returns the bound address.
func serveMetrics(addr string, stats *metrics.Stats, recorder *metrics.LatencyRecorder, logger *zap.Logger) (string, func(), error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics.NewPrometheusCollector("mqbench", stats, recorder)); err != nil {
		return "", nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))

	return ln.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
