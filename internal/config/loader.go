package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a
// Config. Precedence is defaults, then the config file, then explicit flags.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(rest, " "))
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(&cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(&cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Backend = BackendKind(strings.ToLower(strings.TrimSpace(string(cfg.Backend))))
	if cfg.Arrival.Model == "" {
		cfg.Arrival.Model = ArrivalModelUniform
	}

	return &cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "backend"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("backend: %w", err)
		}
		cfg.Backend = BackendKind(strings.ToLower(strings.TrimSpace(val)))
	}

	ints := []struct {
		keys []string
		dst  *int
	}{
		{[]string{"messagesize", "message_size", "message-size"}, &cfg.MessageSize},
		{[]string{"maxinflight", "max_in_flight", "max-in-flight"}, &cfg.MaxInFlight},
		{[]string{"producers"}, &cfg.Producers},
		{[]string{"consumers"}, &cfg.Consumers},
		{[]string{"latencysample", "latency_sample", "latency-sample"}, &cfg.LatencySample},
		{[]string{"rate"}, &cfg.Rate},
	}
	for _, field := range ints {
		if raw, ok := lookupSetting(settings, field.keys...); ok {
			val, err := asInt(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", field.keys[len(field.keys)-1], err)
			}
			*field.dst = val
		}
	}

	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		cfg.Duration = dur
	}
	if raw, ok := lookupSetting(settings, "printinterval", "print_interval", "print-interval"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("printInterval: %w", err)
		}
		cfg.PrintInterval = dur
	}
	if raw, ok := lookupSetting(settings, "optimeout", "op_timeout", "op-timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("opTimeout: %w", err)
		}
		cfg.OpTimeout = dur
	}
	if raw, ok := lookupSetting(settings, "draingrace", "drain_grace", "drain-grace"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("drainGrace: %w", err)
		}
		cfg.DrainGrace = dur
	}

	bools := []struct {
		keys []string
		dst  *bool
	}{
		{[]string{"nonblocking", "non_blocking", "non-blocking"}, &cfg.NonBlocking},
		{[]string{"randompayload", "random_payload", "random-payload"}, &cfg.RandomPayload},
		{[]string{"jsonoutput", "json_output", "json-output"}, &cfg.JSONOutput},
		{[]string{"yamloutput", "yaml_output", "yaml-output"}, &cfg.YAMLOutput},
		{[]string{"dashboard"}, &cfg.Dashboard},
	}
	for _, field := range bools {
		if raw, ok := lookupSetting(settings, field.keys...); ok {
			val, err := asBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", field.keys[len(field.keys)-1], err)
			}
			*field.dst = val
		}
	}

	strs := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"csvpath", "csv_path", "csv-path", "csv"}, &cfg.CSVPath},
		{[]string{"metricsaddr", "metrics_addr", "metrics-addr"}, &cfg.MetricsAddr},
		{[]string{"loglevel", "log_level", "log-level"}, &cfg.LogLevel},
		{[]string{"logformat", "log_format", "log-format"}, &cfg.LogFormat},
	}
	for _, field := range strs {
		if raw, ok := lookupSetting(settings, field.keys...); ok {
			val, err := asString(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", field.keys[len(field.keys)-1], err)
			}
			*field.dst = strings.TrimSpace(val)
		}
	}

	if raw, ok := lookupSetting(settings, "arrival"); ok {
		arrival, err := parseArrival(raw)
		if err != nil {
			return fmt.Errorf("arrival: %w", err)
		}
		if arrival.Model != "" {
			cfg.Arrival = arrival
		}
	} else if raw, ok := lookupSetting(settings, "arrivalmodel", "arrival_model", "arrival-model"); ok {
		arrival, err := parseArrival(raw)
		if err != nil {
			return fmt.Errorf("arrivalModel: %w", err)
		}
		if arrival.Model != "" {
			cfg.Arrival = arrival
		}
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := parseTracing(raw, &cfg.Tracing); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "posixmq"); ok {
		if err := parsePOSIXMQ(raw, &cfg.POSIXMQ); err != nil {
			return fmt.Errorf("posixmq: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "redis"); ok {
		if err := parseRedis(raw, &cfg.Redis); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "nats"); ok {
		if err := parseNATS(raw, &cfg.NATS); err != nil {
			return fmt.Errorf("nats: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "amqp"); ok {
		if err := parseAMQP(raw, &cfg.AMQP); err != nil {
			return fmt.Errorf("amqp: %w", err)
		}
	}

	return nil
}

func parseArrival(value interface{}) (ArrivalConfig, error) {
	if value == nil {
		return ArrivalConfig{}, nil
	}
	switch v := value.(type) {
	case string:
		model := strings.ToLower(strings.TrimSpace(v))
		if model == "" {
			return ArrivalConfig{}, nil
		}
		return ArrivalConfig{Model: ArrivalModel(model)}, nil
	default:
		entry, err := toStringKeyMap(value)
		if err != nil {
			return ArrivalConfig{}, err
		}
		if raw, ok := lookupSetting(entry, "model"); ok {
			val, err := asString(raw)
			if err != nil {
				return ArrivalConfig{}, fmt.Errorf("model: %w", err)
			}
			return ArrivalConfig{Model: ArrivalModel(strings.ToLower(strings.TrimSpace(val)))}, nil
		}
		return ArrivalConfig{}, fmt.Errorf("model field is required")
	}
}

// Section parsers overlay only the keys present, so defaults survive a
// partial section.

func parseTracing(value interface{}, tc *TracingConfig) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		tc.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		tc.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		tc.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
		tc.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		tc.SampleRate = val
	}
	return nil
}

func parsePOSIXMQ(value interface{}, pc *POSIXMQConfig) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("name: %w", err)
		}
		pc.Name = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "unlinkatstart", "unlink_at_start", "unlink-at-start"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("unlink_at_start: %w", err)
		}
		pc.UnlinkAtStart = val
	}
	if raw, ok := lookupSetting(settings, "unlinkatend", "unlink_at_end", "unlink-at-end"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("unlink_at_end: %w", err)
		}
		pc.UnlinkAtEnd = val
	}
	return nil
}

func parseRedis(value interface{}, rc *RedisConfig) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "addr", "address"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("addr: %w", err)
		}
		rc.Addr = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "password"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("password: %w", err)
		}
		rc.Password = val
	}
	if raw, ok := lookupSetting(settings, "db"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		rc.DB = val
	}
	if raw, ok := lookupSetting(settings, "key"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("key: %w", err)
		}
		rc.Key = strings.TrimSpace(val)
	}
	return nil
}

func parseNATS(value interface{}, nc *NATSConfig) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "url"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("url: %w", err)
		}
		nc.URL = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "subject"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("subject: %w", err)
		}
		nc.Subject = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "queuegroup", "queue_group", "queue-group"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("queue_group: %w", err)
		}
		nc.QueueGroup = strings.TrimSpace(val)
	}
	return nil
}

func parseAMQP(value interface{}, ac *AMQPConfig) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "url"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("url: %w", err)
		}
		ac.URL = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "queue"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("queue: %w", err)
		}
		ac.Queue = strings.TrimSpace(val)
	}
	return nil
}
