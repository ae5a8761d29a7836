package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/torosent/mqbench/internal/backend"
	"github.com/torosent/mqbench/internal/metrics"
	"github.com/torosent/mqbench/internal/tracing"
	"github.com/torosent/mqbench/internal/wire"
)

// Phase is a Run Controller state.
type Phase int32

const (
	PhaseConfiguring Phase = iota
	PhaseRunning
	PhaseDraining
	PhaseReporting
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseConfiguring:
		return "configuring"
	case PhaseRunning:
		return "running"
	case PhaseDraining:
		return "draining"
	case PhaseReporting:
		return "reporting"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// Result captures execution summary.
type Result struct {
	Elapsed      time.Duration
	Stats        metrics.Snapshot
	Throughput   float64 // received messages per second
	Bandwidth    float64 // received bytes per second
	Percentiles  []metrics.Percentile
	Distribution metrics.Distribution
	LatencySeen  uint64 // latency observations offered to the recorder
	Interrupted  bool   // stopped by the caller before the deadline
	Backend      map[string]string
}

// Runner drives one benchmark run through its phases.
type Runner struct {
	opt      Options
	stats    *metrics.Stats
	recorder *metrics.LatencyRecorder
	arrival  arrivalController
	phase    atomic.Int32
}

// New validates opt (the Configuring phase). No backend is touched and no
// worker is started when it fails.
func New(opt Options) (*Runner, error) {
	opt.normalize()
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	if opt.Clock == nil {
		opt.Clock = wire.Now
	}
	if opt.Tracer == nil {
		opt.Tracer = noop.NewTracerProvider().Tracer("")
	}

	stats := opt.Stats
	if stats == nil {
		stats = metrics.NewStats()
	}
	recorder := opt.Recorder
	if recorder == nil {
		recorder = metrics.NewLatencyRecorder(opt.LatencySample)
	}

	return &Runner{
		opt:      opt,
		stats:    stats,
		recorder: recorder,
		arrival:  newArrivalController(opt),
	}, nil
}

// Stats exposes the live counters for exporters and dashboards.
func (r *Runner) Stats() *metrics.Stats { return r.stats }

// Recorder exposes the latency reservoir.
func (r *Runner) Recorder() *metrics.LatencyRecorder { return r.recorder }

// Phase returns the current phase.
func (r *Runner) Phase() Phase { return Phase(r.phase.Load()) }

func (r *Runner) setPhase(p Phase) {
	r.phase.Store(int32(p))
	r.opt.Logger.Debug("phase", zap.Stringer("phase", p))
}

// Run opens the backend, runs the workers until the duration elapses or ctx
// is cancelled, joins them and computes the Result. The backend is closed
// before Run returns whatever happened. Only a failure to open the backend
// is returned as an error; per-message failures end up in the counters.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	tracer := r.opt.Tracer
	ctx, runSpan := tracing.StartRunSpan(ctx, tracer, r.opt.Name,
		attribute.Int("mqbench.producers", r.opt.Producers),
		attribute.Int("mqbench.consumers", r.opt.Consumers),
		attribute.Int("mqbench.message_size", r.opt.MessageSize),
	)

	r.setPhase(PhaseRunning)
	runningCtx, runningSpan := tracing.StartPhaseSpan(ctx, tracer, PhaseRunning.String())

	be, err := r.opt.Open(runningCtx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
		tracing.EndSpan(runningSpan, err)
		tracing.EndSpan(runSpan, err)
		r.setPhase(PhaseDone)
		return Result{}, err
	}
	defer func() {
		if cerr := be.Close(); cerr != nil {
			r.opt.Logger.Warn("closing backend", zap.Error(cerr))
		}
		r.setPhase(PhaseDone)
	}()

	var attrs map[string]string
	if d, ok := be.(backend.Describer); ok {
		attrs = d.Describe()
	}

	workCtx, stop := context.WithTimeout(ctx, r.opt.Duration)
	defer stop()

	var wg sync.WaitGroup
	consumers := make([]*consumer, r.opt.Consumers)
	for i := range consumers {
		consumers[i] = newConsumer(i, be, r.stats, r.recorder, r.opt)
	}
	producers := make([]*producer, r.opt.Producers)
	for i := range producers {
		producers[i] = newProducer(i, be, r.stats, r.arrival, r.opt)
	}

	start := time.Now()
	wg.Add(len(consumers) + len(producers))
	for _, c := range consumers {
		go func() {
			defer wg.Done()
			c.run(workCtx)
		}()
	}
	for _, p := range producers {
		go func() {
			defer wg.Done()
			p.run(workCtx)
		}()
	}
	r.opt.Logger.Info("workers started",
		zap.String("backend", r.opt.Name),
		zap.Int("producers", len(producers)),
		zap.Int("consumers", len(consumers)),
		zap.Duration("duration", r.opt.Duration))

	r.awaitDeadline(workCtx, start)
	interrupted := ctx.Err() != nil
	tracing.EndSpan(runningSpan, nil)

	r.setPhase(PhaseDraining)
	_, drainSpan := tracing.StartPhaseSpan(ctx, tracer, PhaseDraining.String())
	stop()
	wg.Wait()
	elapsed := time.Since(start)
	qerr := r.quiesce(be)
	tracing.EndSpan(drainSpan, qerr)

	r.setPhase(PhaseReporting)
	_, reportSpan := tracing.StartPhaseSpan(ctx, tracer, PhaseReporting.String())
	hists := make([]*metrics.Histogram, len(consumers))
	for i, c := range consumers {
		hists[i] = c.hist
	}
	res := Result{
		Elapsed:      elapsed,
		Stats:        r.stats.Snapshot(),
		Percentiles:  metrics.Percentiles(r.recorder.Samples()),
		Distribution: metrics.Merge(hists...),
		LatencySeen:  r.recorder.Seen(),
		Interrupted:  interrupted,
		Backend:      attrs,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		res.Throughput = float64(res.Stats.RecvMessages) / secs
		res.Bandwidth = float64(res.Stats.RecvBytes) / secs
	}
	tracing.EndSpan(reportSpan, nil)
	tracing.EndSpan(runSpan, nil,
		attribute.Int64("mqbench.sent_messages", int64(res.Stats.SentMessages)),
		attribute.Int64("mqbench.recv_messages", int64(res.Stats.RecvMessages)),
		attribute.Float64("mqbench.throughput", res.Throughput),
	)
	return res, nil
}

// awaitDeadline blocks until ctx ends, emitting progress on the way.
func (r *Runner) awaitDeadline(ctx context.Context, start time.Time) {
	if r.opt.Progress == nil {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(r.opt.PrintInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.opt.Progress(Progress{Elapsed: time.Since(start), Snapshot: r.stats.Snapshot()})
		}
	}
}

// quiesce gives a backend with asynchronous completions up to DrainGrace to
// settle. Backends without a Quiescer are not waited for.
func (r *Runner) quiesce(be backend.Backend) error {
	q, ok := be.(backend.Quiescer)
	if !ok || r.opt.DrainGrace <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.opt.DrainGrace)
	defer cancel()
	err := q.Quiesce(ctx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		r.opt.Logger.Warn("backend quiesce", zap.Error(err))
		return err
	}
	return nil
}
