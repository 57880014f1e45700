// Package config loads pipe-capture settings from a YAML file with
// VIDEOPIPE_* environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override
// (e.g. VIDEOPIPE_PIPE_PATH, VIDEOPIPE_MQTT_BROKER).
const EnvPrefix = "VIDEOPIPE"

// Config represents the complete pipe-capture configuration
type Config struct {
	Pipe     PipeConfig     `yaml:"pipe"`
	Display  DisplayConfig  `yaml:"display"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Health   HealthConfig   `yaml:"health"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Log      LogConfig      `yaml:"log"`
}

// PipeConfig contains FIFO ingestion settings
type PipeConfig struct {
	Path            string          `yaml:"path"`
	ProbeTimeout    time.Duration   `yaml:"probe_timeout" split_words:"true"`
	MaxPayloadBytes int             `yaml:"max_payload_bytes" split_words:"true"`
	FrameRate       float64         `yaml:"frame_rate" split_words:"true"` // 0 = unpaced
	Reconnect       ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig bounds the backoff between failed opens
type ReconnectConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay" split_words:"true"`
	MaxDelay     time.Duration `yaml:"max_delay" split_words:"true"`
}

// DisplayConfig contains consumer-side settings
type DisplayConfig struct {
	UpdateRate float64 `yaml:"update_rate" split_words:"true"` // Update() calls per second
}

// UpdatePeriod is the interval between Update() calls. Only meaningful after
// Validate.
func (d DisplayConfig) UpdatePeriod() time.Duration {
	return time.Duration(float64(time.Second) / d.UpdateRate)
}

// SnapshotConfig controls writing delivered frames to disk
type SnapshotConfig struct {
	Dir         string `yaml:"dir"` // empty = disabled
	Format      string `yaml:"format"`
	Every       int    `yaml:"every"`
	JPEGQuality int    `yaml:"jpeg_quality" split_words:"true"`
}

// HealthConfig contains the HTTP health server settings
type HealthConfig struct {
	Addr string `yaml:"addr"` // empty = disabled
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker        string        `yaml:"broker"` // empty = disabled
	ClientID      string        `yaml:"client_id" split_words:"true"`
	TopicPrefix   string        `yaml:"topic_prefix" split_words:"true"`
	QOS           byte          `yaml:"qos"`
	StatsInterval time.Duration `yaml:"stats_interval" split_words:"true"`
}

// LogConfig contains logger settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and validates the result, filling in defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Only variables that are actually set touch the struct.
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
