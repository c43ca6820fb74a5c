// Package config handles grb.yaml loading.
package config

import (
	"fmt"
	"time"
)

// Config represents a grb.yaml configuration file.
// All values are optional and act as defaults for grb receive flags.
// CLI flags always override config values.
type Config struct {
	Port    PortConfig    `yaml:"port"`
	Receive ReceiveConfig `yaml:"receive"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Notify  NotifyConfig  `yaml:"notify"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// PortConfig holds serial line defaults.
type PortConfig struct {
	Device   string `yaml:"device"`
	Baud     int    `yaml:"baud"`
	DataBits int    `yaml:"data_bits"`
	Parity   string `yaml:"parity"`
	StopBits int    `yaml:"stop_bits"`
}

// ReceiveConfig holds host loop defaults.
type ReceiveConfig struct {
	Timeout   Duration `yaml:"timeout"`
	MaxPolls  int      `yaml:"max_polls"`
	MaxErrors int      `yaml:"max_errors"`
	TraceWire bool     `yaml:"trace_wire"`
}

// StorageConfig selects where received files go.
type StorageConfig struct {
	Backend     string `yaml:"backend"` // dir (default) or s3
	Path        string `yaml:"path"`    // directory, or bucket/prefix for s3
	MaxSize     uint64 `yaml:"max_size"`
	Overwrite   bool   `yaml:"overwrite"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// LogConfig holds logging defaults.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// NotifyConfig holds Redis notifier defaults. An empty URL disables it.
type NotifyConfig struct {
	URL      string   `yaml:"url"`
	Channel  string   `yaml:"channel,omitempty"`
	Encoding string   `yaml:"encoding,omitempty"`
	Timeout  Duration `yaml:"timeout,omitempty"`
	Retries  *int     `yaml:"retries,omitempty"`
}

// MetricsConfig holds the metrics listener. An empty address disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Validate checks values that cannot be fixed by defaults.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "", "dir":
	case "s3":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	switch c.Notify.Encoding {
	case "", "json", "msgpack":
	default:
		return fmt.Errorf("unknown notify.encoding %q", c.Notify.Encoding)
	}
	if c.Receive.MaxPolls < 0 || c.Receive.MaxErrors < 0 {
		return fmt.Errorf("receive.max_polls and receive.max_errors must be >= 0")
	}
	return nil
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
