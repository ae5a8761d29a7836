// Package threshold evaluates pass/fail assertions against a run record.
package threshold

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/torosent/mqbench/internal/metrics"
	"github.com/torosent/mqbench/internal/output"
)

// ErrLatencyUnavailable is reported by latency thresholds on a run that
// recorded no latency samples.
var ErrLatencyUnavailable = errors.New("latency not available")

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string  // e.g., "latency", "throughput", "send_errors"
	Aggregate string  // e.g., "p99", "avg", "rate", "count"
	Operator  string  // e.g., "<", "<=", ">", ">=", "=="
	Value     float64 // The threshold value to compare against
	Raw       string  // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Evaluator evaluates thresholds against a run record.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against r.
func (e *Evaluator) Evaluate(r output.Record) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, e.evaluateOne(t, r))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func (e *Evaluator) evaluateOne(t Threshold, r output.Record) Result {
	actual, err := extractMetricValue(t, r)
	if err != nil {
		return Result{
			Threshold: t,
			Actual:    0,
			Pass:      false,
			Message:   fmt.Sprintf("✗ %s: error: %v", t.Raw, err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	message := fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value)
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   message,
	}
}

var thresholdPattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

var (
	validMetrics    = []string{"latency", "throughput", "messages", "send_errors", "recv_errors", "would_block"}
	validAggregates = []string{"p50", "p90", "p95", "p99", "p999", "avg", "min", "max", "stddev", "rate", "mib", "count", "sent", "recv"}
	validOperators  = []string{"<", "<=", ">", ">=", "=="}
)

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "latency:p99 < 500"         (latency percentile in µs; p50, p90, p95, p99, p999)
// - "latency:avg < 200"         (avg, min, max, stddev over every received message, µs)
// - "throughput:rate > 10000"   (received messages per second)
// - "throughput:mib > 100"      (received MiB per second)
// - "messages:recv > 0"         (messages received; "sent" for messages sent)
// - "send_errors:count == 0"    (hard send failures; "rate" as a share of attempts)
// - "recv_errors:rate < 0.01"   (hard receive failures)
// - "would_block:send < 1000"   (would-block results; "recv" for the consumer side)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := thresholdPattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric:aggregate operator value, e.g., 'latency:p99 < 500')", s)
	}

	metric := matches[1]
	aggregate := matches[2]
	operator := matches[3]
	valueStr := matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	if !slices.Contains(validMetrics, metric) {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: %s)", metric, strings.Join(validMetrics, ", "))
	}
	if !slices.Contains(validAggregates, aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate: %q (supported: %s)", aggregate, strings.Join(validAggregates, ", "))
	}
	if !slices.Contains(validOperators, operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errs []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errs = append(errs, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errs, "; "))
	}

	return result, nil
}

func extractMetricValue(t Threshold, r output.Record) (float64, error) {
	switch t.Metric {
	case "latency":
		return extractLatencyMetric(t.Aggregate, r)
	case "throughput":
		return extractThroughputMetric(t.Aggregate, r)
	case "messages":
		return extractMessageMetric(t.Aggregate, r)
	case "send_errors":
		return errorMetric(t, r.Counters.SendErrors, r.Counters.SentMessages)
	case "recv_errors":
		return errorMetric(t, r.Counters.RecvErrors, r.Counters.RecvMessages)
	case "would_block":
		return extractWouldBlockMetric(t.Aggregate, r)
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

func extractLatencyMetric(aggregate string, r output.Record) (float64, error) {
	if !r.Latency.Available {
		return 0, ErrLatencyUnavailable
	}
	d := r.Latency.Distribution
	switch aggregate {
	case "avg":
		return d.MeanUs, nil
	case "min":
		return d.MinUs, nil
	case "max":
		return d.MaxUs, nil
	case "stddev":
		return d.StdDevUs, nil
	}

	q, err := metrics.ParseQuantileLabel(aggregate)
	if err != nil {
		return 0, fmt.Errorf("unsupported aggregate %q for latency", aggregate)
	}
	v, ok := r.Percentile(q)
	if !ok {
		return 0, fmt.Errorf("percentile %s was not computed", aggregate)
	}
	return v, nil
}

func extractThroughputMetric(aggregate string, r output.Record) (float64, error) {
	switch aggregate {
	case "rate":
		return r.MessagesPerSec, nil
	case "mib":
		return r.MiBPerSec, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for throughput (use 'rate' or 'mib')", aggregate)
	}
}

func extractMessageMetric(aggregate string, r output.Record) (float64, error) {
	switch aggregate {
	case "sent":
		return float64(r.Counters.SentMessages), nil
	case "recv", "count":
		return float64(r.Counters.RecvMessages), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for messages (use 'sent' or 'recv')", aggregate)
	}
}

func extractWouldBlockMetric(aggregate string, r output.Record) (float64, error) {
	switch aggregate {
	case "send":
		return float64(r.Counters.SendWouldBlock), nil
	case "recv":
		return float64(r.Counters.RecvWouldBlock), nil
	case "count":
		return float64(r.Counters.SendWouldBlock + r.Counters.RecvWouldBlock), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for would_block (use 'send', 'recv' or 'count')", aggregate)
	}
}

// errorMetric reports hard failures as a count or as a share of all
// attempts that were not would-block.
func errorMetric(t Threshold, failures, successes uint64) (float64, error) {
	switch t.Aggregate {
	case "count":
		return float64(failures), nil
	case "rate":
		total := failures + successes
		if total == 0 {
			return 0, nil
		}
		return float64(failures) / float64(total), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for %s (use 'count' or 'rate')", t.Aggregate, t.Metric)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
