package config

import (
	"fmt"
	"math"
	"time"
)

// Defaults applied by Validate to zero-valued fields.
const (
	DefaultProbeTimeout      = time.Second
	DefaultMaxPayloadBytes   = 256 << 20
	DefaultInitialDelay      = 100 * time.Millisecond
	DefaultMaxDelay          = 5 * time.Second
	DefaultUpdateRate        = 30.0
	DefaultSnapshotFormat    = "png"
	DefaultSnapshotEvery     = 1
	DefaultJPEGQuality       = 90
	DefaultMQTTClientID      = "video-pipe"
	DefaultMQTTTopicPrefix   = "videopipe"
	DefaultMQTTStatsInterval = 10 * time.Second
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

// Validate checks if the configuration is valid and sets defaults.
//
// The FIFO path is not required here: the CLI may supply it with -path.
func Validate(cfg *Config) error {
	// Pipe
	if cfg.Pipe.FrameRate < 0 || math.IsNaN(cfg.Pipe.FrameRate) || math.IsInf(cfg.Pipe.FrameRate, 0) {
		return fmt.Errorf("pipe.frame_rate must be >= 0, got %v", cfg.Pipe.FrameRate)
	}
	if cfg.Pipe.ProbeTimeout < 0 {
		return fmt.Errorf("pipe.probe_timeout must be > 0, got %s", cfg.Pipe.ProbeTimeout)
	}
	if cfg.Pipe.ProbeTimeout == 0 {
		cfg.Pipe.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.Pipe.MaxPayloadBytes < 0 {
		return fmt.Errorf("pipe.max_payload_bytes must be > 0, got %d", cfg.Pipe.MaxPayloadBytes)
	}
	if cfg.Pipe.MaxPayloadBytes == 0 {
		cfg.Pipe.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if cfg.Pipe.Reconnect.InitialDelay == 0 {
		cfg.Pipe.Reconnect.InitialDelay = DefaultInitialDelay
	}
	if cfg.Pipe.Reconnect.MaxDelay == 0 {
		cfg.Pipe.Reconnect.MaxDelay = DefaultMaxDelay
	}
	if cfg.Pipe.Reconnect.InitialDelay < 0 || cfg.Pipe.Reconnect.MaxDelay < cfg.Pipe.Reconnect.InitialDelay {
		return fmt.Errorf("pipe.reconnect: need 0 < initial_delay <= max_delay, got %s..%s",
			cfg.Pipe.Reconnect.InitialDelay, cfg.Pipe.Reconnect.MaxDelay)
	}

	// Display
	if cfg.Display.UpdateRate < 0 || math.IsNaN(cfg.Display.UpdateRate) || math.IsInf(cfg.Display.UpdateRate, 0) {
		return fmt.Errorf("display.update_rate must be > 0, got %v", cfg.Display.UpdateRate)
	}
	if cfg.Display.UpdateRate == 0 {
		cfg.Display.UpdateRate = DefaultUpdateRate
	}
	if cfg.Display.UpdatePeriod() < 1 {
		return fmt.Errorf("display.update_rate %v is too high (period under 1ns)", cfg.Display.UpdateRate)
	}

	// Snapshot
	if cfg.Snapshot.Format == "" {
		cfg.Snapshot.Format = DefaultSnapshotFormat
	}
	switch cfg.Snapshot.Format {
	case "png", "jpeg", "ppm":
	default:
		return fmt.Errorf("snapshot.format must be 'png', 'jpeg' or 'ppm', got '%s'", cfg.Snapshot.Format)
	}
	if cfg.Snapshot.Every < 0 {
		return fmt.Errorf("snapshot.every must be >= 1, got %d", cfg.Snapshot.Every)
	}
	if cfg.Snapshot.Every == 0 {
		cfg.Snapshot.Every = DefaultSnapshotEvery
	}
	if cfg.Snapshot.JPEGQuality == 0 {
		cfg.Snapshot.JPEGQuality = DefaultJPEGQuality
	}
	if cfg.Snapshot.JPEGQuality < 1 || cfg.Snapshot.JPEGQuality > 100 {
		return fmt.Errorf("snapshot.jpeg_quality must be 1-100, got %d", cfg.Snapshot.JPEGQuality)
	}

	// MQTT
	if cfg.MQTT.QOS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", cfg.MQTT.QOS)
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = DefaultMQTTClientID
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = DefaultMQTTTopicPrefix
	}
	if cfg.MQTT.StatsInterval < 0 {
		return fmt.Errorf("mqtt.stats_interval must be > 0, got %s", cfg.MQTT.StatsInterval)
	}
	if cfg.MQTT.StatsInterval == 0 {
		cfg.MQTT.StatsInterval = DefaultMQTTStatsInterval
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got '%s'", cfg.Log.Level)
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json', got '%s'", cfg.Log.Format)
	}

	return nil
}
