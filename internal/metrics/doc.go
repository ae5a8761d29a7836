// Package metrics provides the measurement primitives shared by benchmark
// workers.
//
// # Stats
//
// [Stats] is a set of monotonically increasing counters (messages and bytes
// in each direction, hard errors, would-block results). Workers update them
// with atomic adds and never take a lock:
//
//	stats := metrics.NewStats()
//	stats.SentMessages.Add(1)
//	stats.SentBytes.Add(uint64(len(msg)))
//	snap := stats.Snapshot()
//
// A [Snapshot] is not a consistent cut across counters.
//
// # Latency Recorder
//
// [LatencyRecorder] keeps a bounded, uniform random sample of latency
// observations using reservoir sampling. Any number of consumers may call
// [LatencyRecorder.Record] concurrently; after n calls every observation is
// in the reservoir with probability capacity/n.
//
// # Percentiles
//
// [Percentiles] interpolates p50/p90/p95/p99/p99.9 over a copied-out sample
// set. An empty set produces no percentiles rather than zeros.
//
// # Population Distribution
//
// Each consumer owns a [Histogram] (HDR, lock-free because it has a single
// writer). [Merge] combines them after the workers are joined into a
// [Distribution] with min, max, mean and standard deviation over every
// observation.
//
// # Prometheus
//
// [PrometheusCollector] exposes the live counters to a Prometheus registry.
package metrics
