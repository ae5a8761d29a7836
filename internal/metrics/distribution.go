package metrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// maxTrackableNs bounds the histogram range: 1ns up to 60s.
const maxTrackableNs = int64(60 * time.Second)

// Histogram records every latency seen by a single consumer. It is owned by
// one goroutine and is not safe for concurrent use; owners merge their
// histograms after they have been joined.
type Histogram struct {
	hist *hdrhistogram.Histogram
}

// NewHistogram tracks latencies with 3 significant figures.
func NewHistogram() *Histogram {
	return &Histogram{hist: hdrhistogram.New(1, maxTrackableNs, 3)}
}

// Record adds one latency in nanoseconds, clamped to the trackable range.
func (h *Histogram) Record(valueNs uint64) {
	v := int64(valueNs)
	if valueNs > uint64(maxTrackableNs) {
		v = maxTrackableNs
	}
	if v < h.hist.LowestTrackableValue() {
		v = h.hist.LowestTrackableValue()
	}
	_ = h.hist.RecordValue(v)
}

// Count returns the number of recorded values.
func (h *Histogram) Count() int64 {
	return h.hist.TotalCount()
}

// Distribution summarizes the full latency population of a run. Unlike the
// reservoir percentiles it is built from every observation.
type Distribution struct {
	Count    int64   `json:"count" yaml:"count"`
	MinUs    float64 `json:"min_us" yaml:"min_us"`
	MaxUs    float64 `json:"max_us" yaml:"max_us"`
	MeanUs   float64 `json:"mean_us" yaml:"mean_us"`
	StdDevUs float64 `json:"stddev_us" yaml:"stddev_us"`
}

// Merge folds the given histograms into one Distribution. Nil entries are
// skipped.
func Merge(hs ...*Histogram) Distribution {
	total := hdrhistogram.New(1, maxTrackableNs, 3)
	for _, h := range hs {
		if h == nil {
			continue
		}
		total.Merge(h.hist)
	}
	if total.TotalCount() == 0 {
		return Distribution{}
	}
	return Distribution{
		Count:    total.TotalCount(),
		MinUs:    float64(total.Min()) / 1e3,
		MaxUs:    float64(total.Max()) / 1e3,
		MeanUs:   total.Mean() / 1e3,
		StdDevUs: total.StdDev() / 1e3,
	}
}
