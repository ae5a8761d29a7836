package threshold

import (
	"errors"
	"testing"

	"github.com/torosent/mqbench/internal/metrics"
	"github.com/torosent/mqbench/internal/output"
)

func sampleRecord() output.Record {
	return output.Record{
		Counters: metrics.Snapshot{
			SentMessages:   1000,
			RecvMessages:   950,
			SendErrors:     50,
			RecvErrors:     0,
			SendWouldBlock: 12,
			RecvWouldBlock: 30,
		},
		MessagesPerSec: 123.45,
		MiBPerSec:      2.5,
		Latency: output.Latency{
			Available: true,
			Percentiles: []metrics.Percentile{
				{Quantile: 0.5, Micros: 80.5},
				{Quantile: 0.9, Micros: 200.25},
				{Quantile: 0.95, Micros: 300.5},
				{Quantile: 0.99, Micros: 400.5},
				{Quantile: 0.999, Micros: 480},
			},
			Distribution: metrics.Distribution{
				Count:    950,
				MinUs:    10.5,
				MaxUs:    500.25,
				MeanUs:   100.75,
				StdDevUs: 20,
			},
		},
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      Threshold
		wantError bool
	}{
		{
			name:  "valid p99 latency threshold",
			input: "latency:p99 < 500",
			want: Threshold{
				Metric:    "latency",
				Aggregate: "p99",
				Operator:  "<",
				Value:     500,
				Raw:       "latency:p99 < 500",
			},
		},
		{
			name:  "valid p999 latency with <=",
			input: "latency:p999 <= 1000",
			want: Threshold{
				Metric:    "latency",
				Aggregate: "p999",
				Operator:  "<=",
				Value:     1000,
				Raw:       "latency:p999 <= 1000",
			},
		},
		{
			name:  "valid error rate threshold",
			input: "send_errors:rate < 0.01",
			want: Threshold{
				Metric:    "send_errors",
				Aggregate: "rate",
				Operator:  "<",
				Value:     0.01,
				Raw:       "send_errors:rate < 0.01",
			},
		},
		{
			name:  "valid throughput threshold without spaces",
			input: "throughput:rate>100",
			want: Threshold{
				Metric:    "throughput",
				Aggregate: "rate",
				Operator:  ">",
				Value:     100,
				Raw:       "throughput:rate>100",
			},
		},
		{
			name:      "empty string",
			input:     "",
			wantError: true,
		},
		{
			name:      "invalid format - missing operator",
			input:     "latency:p95 500",
			wantError: true,
		},
		{
			name:      "unsupported metric",
			input:     "http_req_duration:p95 < 500",
			wantError: true,
		},
		{
			name:      "unsupported aggregate",
			input:     "latency:p42x < 500",
			wantError: true,
		},
		{
			name:      "unsupported operator",
			input:     "latency:p95 != 500",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantError {
				t.Fatalf("Parse() error = %v, wantError %v", err, tt.wantError)
			}
			if !tt.wantError && got != tt.want {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseMultiple(t *testing.T) {
	tests := []struct {
		name      string
		input     []string
		wantCount int
		wantError bool
	}{
		{
			name: "multiple valid thresholds",
			input: []string{
				"latency:p95 < 500",
				"recv_errors:rate < 0.01",
				"throughput:rate > 100",
			},
			wantCount: 3,
		},
		{
			name:      "empty slice",
			input:     []string{},
			wantCount: 0,
		},
		{
			name: "one valid, one invalid",
			input: []string{
				"latency:p95 < 500",
				"invalid threshold",
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMultiple(tt.input)
			if (err != nil) != tt.wantError {
				t.Errorf("ParseMultiple() error = %v, wantError %v", err, tt.wantError)
				return
			}
			if !tt.wantError && len(got) != tt.wantCount {
				t.Errorf("ParseMultiple() returned %d thresholds, want %d", len(got), tt.wantCount)
			}
		})
	}
}

func TestEvaluator(t *testing.T) {
	record := sampleRecord()

	tests := []struct {
		name       string
		thresholds []string
		wantPass   []bool
	}{
		{
			name: "all thresholds pass",
			thresholds: []string{
				"latency:p99 < 500",
				"send_errors:rate < 0.06",
				"throughput:rate > 50",
			},
			wantPass: []bool{true, true, true},
		},
		{
			name: "some thresholds fail",
			thresholds: []string{
				"latency:p99 < 300",
				"send_errors:rate < 0.01",
				"throughput:mib > 2",
			},
			wantPass: []bool{false, false, true},
		},
		{
			name: "latency percentiles",
			thresholds: []string{
				"latency:p50 < 100",
				"latency:p90 < 250",
				"latency:p999 < 450",
			},
			wantPass: []bool{true, true, false},
		},
		{
			name: "population latency",
			thresholds: []string{
				"latency:avg < 150",
				"latency:max < 600",
				"latency:min > 5",
				"latency:stddev <= 20",
			},
			wantPass: []bool{true, true, true, true},
		},
		{
			name: "message counts",
			thresholds: []string{
				"messages:recv > 900",
				"messages:sent == 1000",
				"recv_errors:count == 0",
				"would_block:count < 40",
			},
			wantPass: []bool{true, true, true, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thresholds, err := ParseMultiple(tt.thresholds)
			if err != nil {
				t.Fatalf("ParseMultiple() error = %v", err)
			}

			results := NewEvaluator(thresholds).Evaluate(record)
			if len(results) != len(tt.wantPass) {
				t.Fatalf("got %d results, want %d", len(results), len(tt.wantPass))
			}

			for i, result := range results {
				if result.Pass != tt.wantPass[i] {
					t.Errorf("threshold[%d] %q: got pass=%v, want %v (actual=%.2f)",
						i, result.Threshold.Raw, result.Pass, tt.wantPass[i], result.Actual)
				}
			}
			allPass := true
			for _, p := range tt.wantPass {
				allPass = allPass && p
			}
			if AllPassed(results) != allPass {
				t.Errorf("AllPassed() = %v, want %v", AllPassed(results), allPass)
			}
		})
	}
}

func TestEvaluatorLatencyUnavailable(t *testing.T) {
	record := sampleRecord()
	record.Latency = output.Latency{}

	thresholds, err := ParseMultiple([]string{"latency:p99 < 500"})
	if err != nil {
		t.Fatalf("ParseMultiple() error = %v", err)
	}
	results := NewEvaluator(thresholds).Evaluate(record)
	if len(results) != 1 || results[0].Pass {
		t.Fatalf("expected a failing result, got %+v", results)
	}

	_, err = extractMetricValue(thresholds[0], record)
	if !errors.Is(err, ErrLatencyUnavailable) {
		t.Errorf("expected ErrLatencyUnavailable, got %v", err)
	}
}

func TestEvaluatorNoThresholds(t *testing.T) {
	if results := NewEvaluator(nil).Evaluate(sampleRecord()); results != nil {
		t.Errorf("expected nil results, got %v", results)
	}
	if !AllPassed(nil) {
		t.Error("no results should count as passing")
	}
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		name     string
		actual   float64
		operator string
		expected float64
		want     bool
	}{
		{"less than true", 50, "<", 100, true},
		{"less than false", 100, "<", 50, false},
		{"less than equal", 100, "<", 100, false},
		{"less than or equal true", 50, "<=", 100, true},
		{"less than or equal equal", 100, "<=", 100, true},
		{"less than or equal false", 150, "<=", 100, false},
		{"greater than true", 150, ">", 100, true},
		{"greater than false", 50, ">", 100, false},
		{"greater than equal", 100, ">", 100, false},
		{"greater than or equal true", 150, ">=", 100, true},
		{"greater than or equal equal", 100, ">=", 100, true},
		{"greater than or equal false", 50, ">=", 100, false},
		{"equal true", 100, "==", 100, true},
		{"equal false", 100, "==", 101, false},
		{"equal with floating point precision", 100.0000000001, "==", 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compareValues(tt.actual, tt.operator, tt.expected)
			if got != tt.want {
				t.Errorf("compareValues(%.2f, %s, %.2f) = %v, want %v",
					tt.actual, tt.operator, tt.expected, got, tt.want)
			}
		})
	}
}

func TestExtractMetricValue(t *testing.T) {
	record := sampleRecord()

	tests := []struct {
		name      string
		threshold Threshold
		want      float64
		wantError bool
	}{
		{name: "latency p50", threshold: Threshold{Metric: "latency", Aggregate: "p50"}, want: 80.5},
		{name: "latency p95", threshold: Threshold{Metric: "latency", Aggregate: "p95"}, want: 300.5},
		{name: "latency p999", threshold: Threshold{Metric: "latency", Aggregate: "p999"}, want: 480},
		{name: "latency avg", threshold: Threshold{Metric: "latency", Aggregate: "avg"}, want: 100.75},
		{name: "latency min", threshold: Threshold{Metric: "latency", Aggregate: "min"}, want: 10.5},
		{name: "latency max", threshold: Threshold{Metric: "latency", Aggregate: "max"}, want: 500.25},
		{name: "throughput rate", threshold: Threshold{Metric: "throughput", Aggregate: "rate"}, want: 123.45},
		{name: "throughput mib", threshold: Threshold{Metric: "throughput", Aggregate: "mib"}, want: 2.5},
		{name: "send_errors rate", threshold: Threshold{Metric: "send_errors", Aggregate: "rate"}, want: 50.0 / 1050.0},
		{name: "send_errors count", threshold: Threshold{Metric: "send_errors", Aggregate: "count"}, want: 50},
		{name: "recv_errors rate", threshold: Threshold{Metric: "recv_errors", Aggregate: "rate"}, want: 0},
		{name: "messages sent", threshold: Threshold{Metric: "messages", Aggregate: "sent"}, want: 1000},
		{name: "would_block send", threshold: Threshold{Metric: "would_block", Aggregate: "send"}, want: 12},
		{name: "unsupported metric", threshold: Threshold{Metric: "invalid_metric", Aggregate: "p95"}, wantError: true},
		{name: "unsupported aggregate for metric", threshold: Threshold{Metric: "send_errors", Aggregate: "p95"}, wantError: true},
		{name: "percentile not computed", threshold: Threshold{Metric: "latency", Aggregate: "p75"}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractMetricValue(tt.threshold, record)
			if (err != nil) != tt.wantError {
				t.Errorf("extractMetricValue() error = %v, wantError %v", err, tt.wantError)
				return
			}
			if !tt.wantError && got != tt.want {
				t.Errorf("extractMetricValue() = %v, want %v", got, tt.want)
			}
		})
	}
}
