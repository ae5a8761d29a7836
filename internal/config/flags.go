package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mqbench",
		Short:         "Measure throughput and latency of a message queue backend",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set. Defaults
// mirror Defaults() so --help shows the effective values.
func configureFlags(flags *pflag.FlagSet) {
	d := Defaults()

	// Workload flags
	flags.StringP("backend", "b", string(d.Backend), "Backend to benchmark: memory, posixmq, redis, nats or amqp")
	flags.IntP("message-size", "s", d.MessageSize, "Message size in bytes (messages under 16 bytes carry no latency header)")
	flags.DurationP("duration", "d", d.Duration, "How long to run the benchmark (minimum 1s)")
	flags.IntP("max-in-flight", "m", d.MaxInFlight, "Queue depth bound (max messages in flight)")
	flags.IntP("producers", "p", d.Producers, "Number of producer workers")
	flags.IntP("consumers", "c", d.Consumers, "Number of consumer workers")
	flags.Bool("non-blocking", d.NonBlocking, "Use non-blocking backend calls instead of bounded timeouts")
	flags.Bool("random-payload", d.RandomPayload, "Fill payload bytes after the header with random data")
	flags.Int("latency-sample", d.LatencySample, "Latency reservoir size (0 disables latency recording)")
	flags.Duration("print-interval", d.PrintInterval, "Interval between progress lines")
	flags.Duration("op-timeout", d.OpTimeout, "Bound on each blocking backend call")
	flags.Duration("drain-grace", d.DrainGrace, "Max time to let the backend settle after workers stop")
	flags.IntP("rate", "r", d.Rate, "Total send rate across producers in messages/s (0 means unlimited)")
	flags.String("arrival-model", string(d.Arrival.Model), "Arrival model used when pacing sends (uniform or poisson)")

	// Output flags
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Bool("yaml-output", false, "Emit YAML formatted output")
	flags.String("csv", "", "Append one result row to this CSV file")
	flags.Bool("dashboard", false, "Show live terminal dashboard with metrics")
	flags.StringSlice("threshold", nil, "Pass/fail thresholds (repeatable, e.g., 'latency:p99 < 500')")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address during the run (e.g. :9090)")
	flags.String("log-level", d.LogLevel, "Log level: debug, info, warn or error")
	flags.String("log-format", d.LogFormat, "Log format: console or json")
	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint; enables tracing when set")
	flags.String("tracing-protocol", d.Tracing.Protocol, "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Use a plaintext connection to the collector")
	flags.String("tracing-service-name", d.Tracing.ServiceName, "service.name resource attribute")
	flags.Float64("tracing-sample-rate", d.Tracing.SampleRate, "Trace sampling ratio between 0 and 1")

	// Backend flags
	flags.String("mq-name", d.POSIXMQ.Name, "POSIX message queue name")
	flags.Bool("mq-unlink-at-start", d.POSIXMQ.UnlinkAtStart, "Unlink a stale POSIX queue before opening")
	flags.Bool("mq-unlink-at-end", d.POSIXMQ.UnlinkAtEnd, "Unlink the POSIX queue on exit")
	flags.String("redis-addr", d.Redis.Addr, "Redis server address")
	flags.String("redis-password", "", "Redis password")
	flags.Int("redis-db", d.Redis.DB, "Redis database number")
	flags.String("redis-key", d.Redis.Key, "Redis list key")
	flags.String("nats-url", d.NATS.URL, "NATS server URL")
	flags.String("nats-subject", d.NATS.Subject, "NATS subject")
	flags.String("nats-queue-group", d.NATS.QueueGroup, "NATS queue group shared by consumers")
	flags.String("amqp-url", d.AMQP.URL, "AMQP broker URL")
	flags.String("amqp-queue", d.AMQP.Queue, "AMQP queue name")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("backend") {
		val, err := fs.GetString("backend")
		if err != nil {
			return err
		}
		cfg.Backend = BackendKind(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("message-size") {
		val, err := fs.GetInt("message-size")
		if err != nil {
			return err
		}
		cfg.MessageSize = val
	}
	if fs.Changed("duration") {
		val, err := fs.GetDuration("duration")
		if err != nil {
			return err
		}
		cfg.Duration = val
	}
	if fs.Changed("max-in-flight") {
		val, err := fs.GetInt("max-in-flight")
		if err != nil {
			return err
		}
		cfg.MaxInFlight = val
	}
	if fs.Changed("producers") {
		val, err := fs.GetInt("producers")
		if err != nil {
			return err
		}
		cfg.Producers = val
	}
	if fs.Changed("consumers") {
		val, err := fs.GetInt("consumers")
		if err != nil {
			return err
		}
		cfg.Consumers = val
	}
	if fs.Changed("non-blocking") {
		val, err := fs.GetBool("non-blocking")
		if err != nil {
			return err
		}
		cfg.NonBlocking = val
	}
	if fs.Changed("random-payload") {
		val, err := fs.GetBool("random-payload")
		if err != nil {
			return err
		}
		cfg.RandomPayload = val
	}
	if fs.Changed("latency-sample") {
		val, err := fs.GetInt("latency-sample")
		if err != nil {
			return err
		}
		cfg.LatencySample = val
	}
	if fs.Changed("print-interval") {
		val, err := fs.GetDuration("print-interval")
		if err != nil {
			return err
		}
		cfg.PrintInterval = val
	}
	if fs.Changed("op-timeout") {
		val, err := fs.GetDuration("op-timeout")
		if err != nil {
			return err
		}
		cfg.OpTimeout = val
	}
	if fs.Changed("drain-grace") {
		val, err := fs.GetDuration("drain-grace")
		if err != nil {
			return err
		}
		cfg.DrainGrace = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("arrival-model") {
		val, err := fs.GetString("arrival-model")
		if err != nil {
			return err
		}
		cfg.Arrival.Model = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
	}

	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("yaml-output") {
		val, err := fs.GetBool("yaml-output")
		if err != nil {
			return err
		}
		cfg.YAMLOutput = val
	}
	if fs.Changed("csv") {
		val, err := fs.GetString("csv")
		if err != nil {
			return err
		}
		cfg.CSVPath = strings.TrimSpace(val)
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("metrics-addr") {
		val, err := fs.GetString("metrics-addr")
		if err != nil {
			return err
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("log-format") {
		val, err := fs.GetString("log-format")
		if err != nil {
			return err
		}
		cfg.LogFormat = strings.ToLower(strings.TrimSpace(val))
	}

	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-service-name") {
		val, err := fs.GetString("tracing-service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}

	if fs.Changed("mq-name") {
		val, err := fs.GetString("mq-name")
		if err != nil {
			return err
		}
		cfg.POSIXMQ.Name = strings.TrimSpace(val)
	}
	if fs.Changed("mq-unlink-at-start") {
		val, err := fs.GetBool("mq-unlink-at-start")
		if err != nil {
			return err
		}
		cfg.POSIXMQ.UnlinkAtStart = val
	}
	if fs.Changed("mq-unlink-at-end") {
		val, err := fs.GetBool("mq-unlink-at-end")
		if err != nil {
			return err
		}
		cfg.POSIXMQ.UnlinkAtEnd = val
	}
	if fs.Changed("redis-addr") {
		val, err := fs.GetString("redis-addr")
		if err != nil {
			return err
		}
		cfg.Redis.Addr = strings.TrimSpace(val)
	}
	if fs.Changed("redis-password") {
		val, err := fs.GetString("redis-password")
		if err != nil {
			return err
		}
		cfg.Redis.Password = val
	}
	if fs.Changed("redis-db") {
		val, err := fs.GetInt("redis-db")
		if err != nil {
			return err
		}
		cfg.Redis.DB = val
	}
	if fs.Changed("redis-key") {
		val, err := fs.GetString("redis-key")
		if err != nil {
			return err
		}
		cfg.Redis.Key = strings.TrimSpace(val)
	}
	if fs.Changed("nats-url") {
		val, err := fs.GetString("nats-url")
		if err != nil {
			return err
		}
		cfg.NATS.URL = strings.TrimSpace(val)
	}
	if fs.Changed("nats-subject") {
		val, err := fs.GetString("nats-subject")
		if err != nil {
			return err
		}
		cfg.NATS.Subject = strings.TrimSpace(val)
	}
	if fs.Changed("nats-queue-group") {
		val, err := fs.GetString("nats-queue-group")
		if err != nil {
			return err
		}
		cfg.NATS.QueueGroup = strings.TrimSpace(val)
	}
	if fs.Changed("amqp-url") {
		val, err := fs.GetString("amqp-url")
		if err != nil {
			return err
		}
		cfg.AMQP.URL = strings.TrimSpace(val)
	}
	if fs.Changed("amqp-queue") {
		val, err := fs.GetString("amqp-queue")
		if err != nil {
			return err
		}
		cfg.AMQP.Queue = strings.TrimSpace(val)
	}

	return nil
}
