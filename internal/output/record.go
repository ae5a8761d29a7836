// Package output renders run results: the human summary, JSON and YAML
// records, the live progress line and the CSV results log.
package output

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/torosent/mqbench/internal/metrics"
	"github.com/torosent/mqbench/internal/runner"
	"github.com/torosent/mqbench/internal/wire"
)

const mib = 1024.0 * 1024.0

// Params are the run parameters copied into every Record.
type Params struct {
	Backend       string
	Target        string
	MessageSize   int
	MaxInFlight   int
	Producers     int
	Consumers     int
	Duration      time.Duration
	NonBlocking   bool
	RandomPayload bool
	LatencySample int
	Rate          int
	ArrivalModel  string
}

// Record is the structured result of one run.
type Record struct {
	RunID     string    `json:"run_id" yaml:"run_id"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	Backend   string    `json:"backend" yaml:"backend"`
	Target    string    `json:"target" yaml:"target"`

	MessageSize     int     `json:"message_size" yaml:"message_size"`
	MaxInFlight     int     `json:"max_in_flight" yaml:"max_in_flight"`
	Producers       int     `json:"producers" yaml:"producers"`
	Consumers       int     `json:"consumers" yaml:"consumers"`
	DurationSeconds float64 `json:"duration_seconds" yaml:"duration_seconds"`
	NonBlocking     bool    `json:"non_blocking" yaml:"non_blocking"`
	RandomPayload   bool    `json:"random_payload" yaml:"random_payload"`
	LatencySample   int     `json:"latency_sample" yaml:"latency_sample"`
	Rate            int     `json:"rate,omitempty" yaml:"rate,omitempty"`
	ArrivalModel    string  `json:"arrival_model,omitempty" yaml:"arrival_model,omitempty"`

	ElapsedSeconds float64          `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	Interrupted    bool             `json:"interrupted" yaml:"interrupted"`
	Counters       metrics.Snapshot `json:"counters" yaml:"counters"`
	MessagesPerSec float64          `json:"throughput_msg_per_sec" yaml:"throughput_msg_per_sec"`
	BytesPerSec    float64          `json:"throughput_bytes_per_sec" yaml:"throughput_bytes_per_sec"`
	MiBPerSec      float64          `json:"throughput_mib_per_sec" yaml:"throughput_mib_per_sec"`
	Latency        Latency          `json:"latency" yaml:"latency"`

	BackendAttributes map[string]string `json:"backend_attributes,omitempty" yaml:"backend_attributes,omitempty"`
}

// Latency groups the reservoir percentiles with the full population summary.
type Latency struct {
	Available    bool                 `json:"available" yaml:"available"`
	Samples      uint64               `json:"samples" yaml:"samples"`
	Percentiles  []metrics.Percentile `json:"percentiles,omitempty" yaml:"percentiles,omitempty"`
	Distribution metrics.Distribution `json:"distribution" yaml:"distribution"`
}

// NewRecord combines run parameters with a runner Result.
func NewRecord(p Params, started time.Time, res runner.Result) Record {
	return Record{
		RunID:             ulid.Make().String(),
		StartedAt:         started.UTC(),
		Backend:           p.Backend,
		Target:            p.Target,
		MessageSize:       p.MessageSize,
		MaxInFlight:       p.MaxInFlight,
		Producers:         p.Producers,
		Consumers:         p.Consumers,
		DurationSeconds:   p.Duration.Seconds(),
		NonBlocking:       p.NonBlocking,
		RandomPayload:     p.RandomPayload,
		LatencySample:     p.LatencySample,
		Rate:              p.Rate,
		ArrivalModel:      p.ArrivalModel,
		ElapsedSeconds:    res.Elapsed.Seconds(),
		Interrupted:       res.Interrupted,
		Counters:          res.Stats,
		MessagesPerSec:    res.Throughput,
		BytesPerSec:       res.Bandwidth,
		MiBPerSec:         res.Bandwidth / mib,
		BackendAttributes: res.Backend,
		Latency: Latency{
			Available:    len(res.Percentiles) > 0,
			Samples:      res.LatencySeen,
			Percentiles:  res.Percentiles,
			Distribution: res.Distribution,
		},
	}
}

// latencyUnavailableReason explains an empty latency section.
func (r Record) latencyUnavailableReason() string {
	switch {
	case r.MessageSize < wire.HeaderSize:
		return "not available (message-size < header)"
	case r.LatencySample == 0:
		return "not available (latency sampling disabled)"
	default:
		return "not available (no messages received)"
	}
}

// Percentile returns the latency in microseconds for quantile q.
func (r Record) Percentile(q float64) (float64, bool) {
	p, ok := metrics.Lookup(r.Latency.Percentiles, q)
	return p.Micros, ok
}
