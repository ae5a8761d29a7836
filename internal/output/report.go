package output

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// PrintConfig outputs the effective run configuration.
func PrintConfig(w io.Writer, p Params) {
	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  backend:           %s\n", p.Backend)
	fmt.Fprintf(w, "  target:            %s\n", p.Target)
	fmt.Fprintf(w, "  duration:          %s\n", p.Duration)
	fmt.Fprintf(w, "  message-size:      %d\n", p.MessageSize)
	fmt.Fprintf(w, "  max-in-flight:     %d\n", p.MaxInFlight)
	fmt.Fprintf(w, "  producers:         %d\n", p.Producers)
	fmt.Fprintf(w, "  consumers:         %d\n", p.Consumers)
	fmt.Fprintf(w, "  non-blocking:      %t\n", p.NonBlocking)
	fmt.Fprintf(w, "  random-payload:    %t\n", p.RandomPayload)
	fmt.Fprintf(w, "  latency-sample:    %d\n", p.LatencySample)
	if p.Rate > 0 {
		fmt.Fprintf(w, "  rate:              %d msg/s (%s)\n", p.Rate, p.ArrivalModel)
	}
}

// PrintAttributes outputs the attributes the backend negotiated at open.
func PrintAttributes(w io.Writer, attrs map[string]string) {
	if len(attrs) == 0 {
		return
	}
	fmt.Fprintln(w, "Backend attributes:")
	for _, k := range slices.Sorted(maps.Keys(attrs)) {
		fmt.Fprintf(w, "  %-18s %s\n", k+":", attrs[k])
	}
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, r Record) {
	c := r.Counters
	fmt.Fprintln(w, "\n--- Benchmark Results ---")
	fmt.Fprintf(w, "Run ID:            %s\n", r.RunID)
	fmt.Fprintf(w, "Backend:           %s (%s)\n", r.Backend, r.Target)
	fmt.Fprintf(w, "Elapsed:           %.3fs\n", r.ElapsedSeconds)
	if r.Interrupted {
		fmt.Fprintln(w, "Interrupted:       true")
	}
	fmt.Fprintf(w, "Messages Sent:     %d\n", c.SentMessages)
	fmt.Fprintf(w, "Messages Received: %d\n", c.RecvMessages)
	fmt.Fprintf(w, "Bytes Sent:        %d\n", c.SentBytes)
	fmt.Fprintf(w, "Bytes Received:    %d\n", c.RecvBytes)
	fmt.Fprintf(w, "Throughput:        %.2f msg/s\n", r.MessagesPerSec)
	fmt.Fprintf(w, "Bandwidth:         %.2f MiB/s\n", r.MiBPerSec)
	fmt.Fprintf(w, "Send Errors:       %d (would block %d)\n", c.SendErrors, c.SendWouldBlock)
	fmt.Fprintf(w, "Receive Errors:    %d (would block %d)\n", c.RecvErrors, c.RecvWouldBlock)

	fmt.Fprintln(w, "\nLatency:")
	if !r.Latency.Available {
		fmt.Fprintf(w, "  %s\n", r.latencyUnavailableReason())
		return
	}
	for _, p := range r.Latency.Percentiles {
		fmt.Fprintf(w, "  %-16s %.2fµs\n", strings.ToUpper(p.Label())+":", p.Micros)
	}
	if d := r.Latency.Distribution; d.Count > 0 {
		fmt.Fprintf(w, "  Min:             %.2fµs\n", d.MinUs)
		fmt.Fprintf(w, "  Max:             %.2fµs\n", d.MaxUs)
		fmt.Fprintf(w, "  Mean:            %.2fµs (stddev %.2fµs, n=%d)\n", d.MeanUs, d.StdDevUs, d.Count)
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, r Record) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
