package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/gofrs/flock"
)

// CSVHeader names the columns written by AppendCSV.
var CSVHeader = []string{
	"backend", "target", "duration_s", "message_size", "max_in_flight",
	"producers", "consumers", "non_blocking", "random_payload", "latency_sample",
	"elapsed_s", "recv_messages", "recv_bytes", "msg_per_s", "mib_per_s",
	"p50_us", "p90_us", "p95_us", "p99_us", "p999_us", "run_id",
}

// AppendCSV appends one row for r to the file at path, writing the header
// first when the file is new or empty. Concurrent runs appending to the same
// file are serialized through a sidecar lock file.
func AppendCSV(path string, r Record) (err error) {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, lock.Unlock())
	}()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat csv: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(CSVHeader); err != nil {
			return err
		}
	}
	if err := w.Write(csvRow(r)); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func csvRow(r Record) []string {
	pct := func(q float64) string {
		v, ok := r.Percentile(q)
		if !ok {
			v = math.NaN()
		}
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
	return []string{
		r.Backend,
		r.Target,
		strconv.FormatFloat(r.DurationSeconds, 'f', -1, 64),
		strconv.Itoa(r.MessageSize),
		strconv.Itoa(r.MaxInFlight),
		strconv.Itoa(r.Producers),
		strconv.Itoa(r.Consumers),
		boolDigit(r.NonBlocking),
		boolDigit(r.RandomPayload),
		strconv.Itoa(r.LatencySample),
		strconv.FormatFloat(r.ElapsedSeconds, 'f', 6, 64),
		strconv.FormatUint(r.Counters.RecvMessages, 10),
		strconv.FormatUint(r.Counters.RecvBytes, 10),
		strconv.FormatFloat(r.MessagesPerSec, 'f', 2, 64),
		strconv.FormatFloat(r.MiBPerSec, 'f', 2, 64),
		pct(0.5), pct(0.9), pct(0.95), pct(0.99), pct(0.999),
		r.RunID,
	}
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
