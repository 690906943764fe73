// Package config loads node settings from a YAML file, layered over
// defaults and under SNORE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full node configuration
type Config struct {
	Radio    RadioConfig    `yaml:"radio"`
	Storage  StorageConfig  `yaml:"storage"`
	Sampling SamplingConfig `yaml:"sampling"`
	Staging  StagingConfig  `yaml:"staging"`
	Store    StoreConfig    `yaml:"store"`
	Feed     FeedConfig     `yaml:"feed"`
	Trace    TraceConfig    `yaml:"trace"`
	Log      LogConfig      `yaml:"log"`
	Sensors  SensorsConfig  `yaml:"sensors"`
}

type RadioConfig struct {
	Transport string `yaml:"transport"` // udp, mqtt or loopback
	Group     int    `yaml:"group"`
	Encoding  string `yaml:"encoding"` // json or protobuf
	Serial    uint32 `yaml:"serial"`   // 0 picks a random serial

	Listen string `yaml:"listen"`
	Peer   string `yaml:"peer"`

	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      byte   `yaml:"qos"`
}

type StorageConfig struct {
	Dir string `yaml:"dir"`
}

type SamplingConfig struct {
	Interval            time.Duration `yaml:"interval"`
	MeasuresPerInterval int           `yaml:"measures_per_interval"`
	EmptyWindow         string        `yaml:"empty_window"` // skip or sentinel
	Sentinel            float64       `yaml:"sentinel"`
}

type StagingConfig struct {
	Policy string `yaml:"policy"` // retain or reset
}

type StoreConfig struct {
	// Interval between stored rows. Zero stores once per cycle, on each
	// received vol.
	Interval time.Duration `yaml:"interval"`
}

type FeedConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

type TraceConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SensorsConfig struct {
	Scenario string `yaml:"scenario"`
	Seed     int64  `yaml:"seed"`
}

// Default returns the stock configuration of a node pair on one machine
func Default() Config {
	return Config{
		Radio: RadioConfig{
			Transport: "udp",
			Group:     1,
			Encoding:  "json",
			Listen:    "127.0.0.1:7600",
			Peer:      "127.0.0.1:7601",
			Broker:    "tcp://127.0.0.1:1883",
			ClientID:  "snore",
			QoS:       0,
		},
		Storage: StorageConfig{Dir: "./snore-data"},
		Sampling: SamplingConfig{
			Interval:            200 * time.Millisecond,
			MeasuresPerInterval: 20,
			EmptyWindow:         "skip",
			Sentinel:            -1,
		},
		Staging: StagingConfig{Policy: "retain"},
		Feed: FeedConfig{
			Host: "127.0.0.1",
			Port: 7700,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Sensors: SensorsConfig{Scenario: "restful"},
	}
}

// Load returns defaults overlaid with the YAML file at path (skipped when
// path is empty) and then with SNORE_* environment variables
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables looked up with lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("SNORE_RADIO_TRANSPORT", &c.Radio.Transport)
	integer("SNORE_RADIO_GROUP", &c.Radio.Group)
	str("SNORE_RADIO_ENCODING", &c.Radio.Encoding)
	str("SNORE_RADIO_LISTEN", &c.Radio.Listen)
	str("SNORE_RADIO_PEER", &c.Radio.Peer)
	str("SNORE_MQTT_BROKER", &c.Radio.Broker)
	str("SNORE_MQTT_CLIENT_ID", &c.Radio.ClientID)
	str("SNORE_MQTT_USERNAME", &c.Radio.Username)
	str("SNORE_MQTT_PASSWORD", &c.Radio.Password)
	str("SNORE_STORAGE_DIR", &c.Storage.Dir)
	duration("SNORE_SAMPLING_INTERVAL", &c.Sampling.Interval)
	integer("SNORE_SAMPLING_MEASURES_PER_INTERVAL", &c.Sampling.MeasuresPerInterval)
	str("SNORE_SAMPLING_EMPTY_WINDOW", &c.Sampling.EmptyWindow)
	str("SNORE_STAGING_POLICY", &c.Staging.Policy)
	duration("SNORE_STORE_INTERVAL", &c.Store.Interval)
	str("SNORE_TRACE_PATH", &c.Trace.Path)
	str("SNORE_LOG_LEVEL", &c.Log.Level)
	str("SNORE_LOG_FORMAT", &c.Log.Format)
	str("SNORE_SCENARIO", &c.Sensors.Scenario)

	if v, ok := lookup("SNORE_RADIO_SERIAL"); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("SNORE_RADIO_SERIAL: %w", err))
		} else {
			c.Radio.Serial = uint32(n)
		}
	}
	if v, ok := lookup("SNORE_FEED_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SNORE_FEED_ENABLED: %w", err))
		} else {
			c.Feed.Enabled = b
		}
	}
	integer("SNORE_FEED_PORT", &c.Feed.Port)
	str("SNORE_FEED_HOST", &c.Feed.Host)

	if v, ok := lookup("SNORE_SAMPLING_SENTINEL"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("SNORE_SAMPLING_SENTINEL: %w", err))
		} else {
			c.Sampling.Sentinel = f
		}
	}
	if v, ok := lookup("SNORE_MQTT_QOS"); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			errs = append(errs, fmt.Errorf("SNORE_MQTT_QOS: %w", err))
		} else {
			c.Radio.QoS = byte(n)
		}
	}
	if v, ok := lookup("SNORE_SENSORS_SEED"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("SNORE_SENSORS_SEED: %w", err))
		} else {
			c.Sensors.Seed = n
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %w", errors.Join(errs...))
	}
	return nil
}

// Validate reports every invalid setting at once
func (c Config) Validate() error {
	var errs []error

	switch c.Radio.Transport {
	case "udp":
		if c.Radio.Listen == "" {
			errs = append(errs, errors.New("radio.listen is required for udp"))
		}
	case "mqtt":
		if c.Radio.Broker == "" {
			errs = append(errs, errors.New("radio.broker is required for mqtt"))
		}
	case "loopback":
	default:
		errs = append(errs, fmt.Errorf("radio.transport %q must be udp, mqtt or loopback", c.Radio.Transport))
	}
	if c.Radio.Group < 0 || c.Radio.Group > 255 {
		errs = append(errs, fmt.Errorf("radio.group %d out of range 0-255", c.Radio.Group))
	}
	switch c.Radio.Encoding {
	case "json", "protobuf":
	default:
		errs = append(errs, fmt.Errorf("radio.encoding %q must be json or protobuf", c.Radio.Encoding))
	}
	if c.Radio.QoS > 2 {
		errs = append(errs, fmt.Errorf("radio.qos %d must be 0, 1 or 2", c.Radio.QoS))
	}

	if c.Storage.Dir == "" {
		errs = append(errs, errors.New("storage.dir is required"))
	}

	if c.Sampling.Interval <= 0 {
		errs = append(errs, errors.New("sampling.interval must be positive"))
	}
	if c.Sampling.MeasuresPerInterval <= 0 {
		errs = append(errs, errors.New("sampling.measures_per_interval must be positive"))
	}
	switch c.Sampling.EmptyWindow {
	case "skip", "sentinel":
	default:
		errs = append(errs, fmt.Errorf("sampling.empty_window %q must be skip or sentinel", c.Sampling.EmptyWindow))
	}

	switch c.Staging.Policy {
	case "retain", "reset":
	default:
		errs = append(errs, fmt.Errorf("staging.policy %q must be retain or reset", c.Staging.Policy))
	}
	if c.Store.Interval < 0 {
		errs = append(errs, errors.New("store.interval must not be negative"))
	}

	if c.Feed.Enabled && (c.Feed.Port <= 0 || c.Feed.Port > 65535) {
		errs = append(errs, fmt.Errorf("feed.port %d out of range", c.Feed.Port))
	}

	return errors.Join(errs...)
}
