// Package runner is the benchmark engine: it spawns producer and consumer
// workers against one shared backend, bounds the run by a duration and a
// cancellation context, and computes the result once every worker has
// joined.
//
// # Basic Usage
//
//	r, err := runner.New(runner.Options{
//		Name:          "memory",
//		MessageSize:   256,
//		Duration:      5 * time.Second,
//		Producers:     2,
//		Consumers:     2,
//		LatencySample: 100000,
//		Open: func(ctx context.Context) (backend.Backend, error) {
//			return memqueue.Open(memqueue.Config{Capacity: 1024, MaxMessageSize: 256})
//		},
//	})
//	if err != nil {
//		return err
//	}
//	res, err := r.Run(ctx)
//
// # Phases
//
// A run moves through Configuring, Running, Draining, Reporting and Done.
// Validation happens in [New], before any backend is opened. [Runner.Run]
// opens the backend, starts consumers before producers and waits for the
// deadline or for ctx to end. Draining cancels the workers, joins them and
// gives a [backend.Quiescer] up to DrainGrace to settle. Reporting reads the
// counters and latency samples, which are never read while a worker is alive.
// The backend is closed on every path out of Run.
//
// # Failure Handling
//
// A would-block from the backend counts toward the would-block counters and
// backs off for 50µs. Any other error counts as a send or receive error and
// backs off for 100µs. Neither stops the worker.
//
// # Rate Limiting & Arrival Models
//
// RatePerSecond caps the aggregate send rate across all producers:
//   - [ArrivalModelUniform]: evenly spaced sends via a token bucket
//   - [ArrivalModelPoisson]: exponential inter-arrival times
package runner
