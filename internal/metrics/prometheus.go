package metrics

import "github.com/prometheus/client_golang/prometheus"

// PrometheusCollector exposes the run counters to a Prometheus registry. It
// reads the live atomics on every scrape and holds no state of its own.
type PrometheusCollector struct {
	stats    *Stats
	recorder *LatencyRecorder

	messages     *prometheus.Desc
	bytes        *prometheus.Desc
	errors       *prometheus.Desc
	wouldBlock   *prometheus.Desc
	observations *prometheus.Desc
	reservoir    *prometheus.Desc
}

// NewPrometheusCollector builds a collector under namespace. recorder may be nil.
func NewPrometheusCollector(namespace string, stats *Stats, recorder *LatencyRecorder) *PrometheusCollector {
	dir := []string{"direction"}
	return &PrometheusCollector{
		stats:    stats,
		recorder: recorder,
		messages: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "messages_total"),
			"Messages handed to or taken from the backend.", dir, nil),
		bytes: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "bytes_total"),
			"Payload bytes handed to or taken from the backend.", dir, nil),
		errors: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "errors_total"),
			"Hard backend errors.", dir, nil),
		wouldBlock: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "would_block_total"),
			"Transient would-block or timeout results.", dir, nil),
		observations: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "latency_observations_total"),
			"Latency observations offered to the reservoir.", nil, nil),
		reservoir: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "latency_reservoir_samples"),
			"Latency samples currently held in the reservoir.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.messages
	ch <- c.bytes
	ch <- c.errors
	ch <- c.wouldBlock
	ch <- c.observations
	ch <- c.reservoir
}

// Collect implements prometheus.Collector.
func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats.Snapshot()
	counter := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}
	counter(c.messages, s.SentMessages, "sent")
	counter(c.messages, s.RecvMessages, "received")
	counter(c.bytes, s.SentBytes, "sent")
	counter(c.bytes, s.RecvBytes, "received")
	counter(c.errors, s.SendErrors, "sent")
	counter(c.errors, s.RecvErrors, "received")
	counter(c.wouldBlock, s.SendWouldBlock, "sent")
	counter(c.wouldBlock, s.RecvWouldBlock, "received")

	var seen uint64
	var held int
	if c.recorder != nil {
		seen = c.recorder.Seen()
		held = c.recorder.Len()
	}
	counter(c.observations, seen)
	ch <- prometheus.MustNewConstMetric(c.reservoir, prometheus.GaugeValue, float64(held))
}
