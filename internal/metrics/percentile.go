package metrics

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// DefaultQuantiles is the reported percentile set: p50, p90, p95, p99, p99.9.
var DefaultQuantiles = []float64{0.5, 0.9, 0.95, 0.99, 0.999}

// Percentile is one interpolated latency percentile.
type Percentile struct {
	Quantile float64 `json:"quantile" yaml:"quantile"`
	Micros   float64 `json:"latency_us" yaml:"latency_us"`
}

// Label renders the quantile the way reports name it, e.g. "p50" or "p99.9".
func (p Percentile) Label() string {
	return QuantileLabel(p.Quantile)
}

// QuantileLabel formats q (0..1) as a percentile label.
func QuantileLabel(q float64) string {
	return "p" + strconv.FormatFloat(math.Round(q*1e6)/1e4, 'f', -1, 64)
}

// ParseQuantileLabel is the inverse of QuantileLabel. It also accepts the
// compact forms used in threshold expressions ("p999" for p99.9).
func ParseQuantileLabel(label string) (float64, error) {
	s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(label)), "p")
	if s == "" {
		return 0, fmt.Errorf("empty percentile label %q", label)
	}
	if !strings.Contains(s, ".") && len(s) > 2 && strings.HasPrefix(s, "99") {
		s = s[:2] + "." + s[2:]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid percentile label %q: %w", label, err)
	}
	if v <= 0 || v >= 100 {
		return 0, fmt.Errorf("percentile %q out of range", label)
	}
	return v / 100, nil
}

// Percentiles sorts samplesNs in place and returns the linearly interpolated
// value for each quantile, converted to microseconds. With no quantiles the
// DefaultQuantiles are used. An empty sample set yields nil.
func Percentiles(samplesNs []uint64, quantiles ...float64) []Percentile {
	n := len(samplesNs)
	if n == 0 {
		return nil
	}
	if len(quantiles) == 0 {
		quantiles = DefaultQuantiles
	}
	slices.Sort(samplesNs)

	out := make([]Percentile, 0, len(quantiles))
	for _, q := range quantiles {
		pos := q * float64(n-1)
		idx := int(math.Floor(pos))
		if idx < 0 {
			idx = 0
		}
		if idx > n-1 {
			idx = n - 1
		}
		idx2 := min(idx+1, n-1)
		frac := pos - float64(idx)
		ns := float64(samplesNs[idx])*(1-frac) + float64(samplesNs[idx2])*frac
		out = append(out, Percentile{Quantile: q, Micros: ns / 1000})
	}
	return out
}

// Lookup returns the percentile for q if present.
func Lookup(ps []Percentile, q float64) (Percentile, bool) {
	for _, p := range ps {
		if math.Abs(p.Quantile-q) < 1e-9 {
			return p, true
		}
	}
	return Percentile{}, false
}
