package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/torosent/mqbench/internal/backend"
	"github.com/torosent/mqbench/internal/metrics"
)

const (
	DefaultOpTimeout     = 100 * time.Millisecond
	DefaultPrintInterval = time.Second

	transientBackoff = 50 * time.Microsecond
	hardBackoff      = 100 * time.Microsecond
)

var (
	// ErrInvalidOptions is wrapped by every option validation failure.
	ErrInvalidOptions = errors.New("invalid run options")
	// ErrBackendUnavailable is wrapped when the backend cannot be opened.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// OpenFunc acquires the backend at the start of the Running phase.
type OpenFunc func(ctx context.Context) (backend.Backend, error)

// Progress is a point-in-time view handed to Options.Progress.
type Progress struct {
	Elapsed  time.Duration
	Snapshot metrics.Snapshot
}

// Options configure the Runner.
type Options struct {
	Name          string        // backend label for logs and spans
	MessageSize   int           // bytes per message (required)
	Duration      time.Duration // run length (required)
	Producers     int           // producer workers (required)
	Consumers     int           // consumer workers (required)
	NonBlocking   bool          // zero timeout on every backend call
	RandomPayload bool          // fill bytes after the header from a per-producer PRNG
	LatencySample int           // reservoir capacity; 0 disables latency recording
	OpTimeout     time.Duration // bound on each blocking backend call
	DrainGrace    time.Duration // Quiesce deadline after join
	PrintInterval time.Duration // Progress cadence
	RatePerSecond int           // total send rate across producers (0 means unlimited)
	ArrivalModel  ArrivalModel

	Open     OpenFunc       // backend factory (required)
	Progress func(Progress) // optional progress hook, called from the controller goroutine

	Stats    *metrics.Stats           // optional; shared with exporters
	Recorder *metrics.LatencyRecorder // optional; built from LatencySample when nil
	Logger   *zap.Logger
	Tracer   trace.Tracer

	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
	PoissonSampler func() float64              // optional injection for tests
	RandomSeed     int64
	Clock          func() uint64 // monotonic nanoseconds; wire.Now when nil
}

func (o *Options) normalize() {
	if o.OpTimeout <= 0 {
		o.OpTimeout = DefaultOpTimeout
	}
	if o.PrintInterval <= 0 {
		o.PrintInterval = DefaultPrintInterval
	}
	if o.DrainGrace < 0 {
		o.DrainGrace = 0
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.ArrivalModel == "" {
		o.ArrivalModel = ArrivalModelUniform
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = time.Now().UnixNano()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst equal to rps to smooth pacing under concurrency.
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Validate rejects options that would start a meaningless run. It runs
// before any backend is opened or worker spawned.
func (o Options) Validate() error {
	var issues []string
	if o.MessageSize < 1 {
		issues = append(issues, "message size must be >= 1")
	}
	if o.Duration <= 0 {
		issues = append(issues, "duration must be > 0")
	}
	if o.Producers < 1 {
		issues = append(issues, "producers must be >= 1")
	}
	if o.Consumers < 1 {
		issues = append(issues, "consumers must be >= 1")
	}
	if o.LatencySample < 0 {
		issues = append(issues, "latency sample capacity must be >= 0")
	}
	switch o.ArrivalModel {
	case "", ArrivalModelUniform, ArrivalModelPoisson:
	default:
		issues = append(issues, fmt.Sprintf("arrival model %q is not supported", o.ArrivalModel))
	}
	if o.Open == nil {
		issues = append(issues, "backend factory is required")
	}
	if len(issues) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(issues, "; "))
	}
	return nil
}

// callTimeout is the timeout passed to each backend call.
func (o Options) callTimeout() time.Duration {
	if o.NonBlocking {
		return 0
	}
	return o.OpTimeout
}
