// Package emitter publishes pipe events to an MQTT broker as msgpack.
package emitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Topic suffixes under Config.TopicPrefix
const (
	TopicSize  = "size"
	TopicStats = "stats"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// ErrNotConnected is returned by Publish while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt not connected")

// Config contains MQTT broker settings
type Config struct {
	Broker      string // host:port or a full URL (tcp://, ssl://, ws://)
	ClientID    string
	TopicPrefix string
	QoS         byte
}

// MQTTEmitter publishes pipe events to an MQTT broker
type MQTTEmitter struct {
	cfg       Config
	newClient func(*mqtt.ClientOptions) mqtt.Client

	mu        sync.RWMutex
	client    mqtt.Client
	published map[string]uint64 // count per topic
	errors    uint64
	connected bool
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

// NewMQTTEmitter creates a new MQTT emitter
func NewMQTTEmitter(cfg Config) *MQTTEmitter {
	return &MQTTEmitter{
		cfg:       cfg,
		newClient: mqtt.NewClient,
		published: make(map[string]uint64),
	}
}

// Connect establishes the connection to the broker.
//
// The client keeps retrying in the background when the first attempt does not
// complete in time; Publish starts working once OnConnect fires.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	if e.cfg.Broker == "" {
		return fmt.Errorf("mqtt broker is required")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		slog.Info("emitter: mqtt connection established",
			"broker", e.cfg.Broker,
			"client_id", e.cfg.ClientID,
		)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		slog.Warn("emitter: mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", e.cfg.Broker,
		)
	}

	client := e.newClient(opts)
	e.mu.Lock()
	e.client = client
	e.mu.Unlock()

	slog.Info("emitter: connecting to mqtt broker", "broker", e.cfg.Broker)

	token := client.Connect()
	timer := time.NewTimer(connectTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

// Publish msgpack-encodes v and publishes it on <prefix>/<suffix>.
func (e *MQTTEmitter) Publish(suffix string, v any) error {
	topic := e.Topic(suffix)

	e.mu.RLock()
	client, connected := e.client, e.connected
	e.mu.RUnlock()

	if !connected || client == nil {
		e.countError()
		return ErrNotConnected
	}

	payload, err := msgpack.Marshal(v)
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	token := client.Publish(topic, e.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	slog.Debug("emitter: event published",
		"topic", topic,
		"qos", e.cfg.QoS,
		"size", len(payload),
	)
	return nil
}

// PublishSizeChanged stamps ev with an id and timestamp and publishes it.
func (e *MQTTEmitter) PublishSizeChanged(ev SizeChangedEvent) error {
	ev.ID = uuid.NewString()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	return e.Publish(TopicSize, ev)
}

// PublishStats stamps ev with an id and timestamp and publishes it.
func (e *MQTTEmitter) PublishStats(ev StatsEvent) error {
	ev.ID = uuid.NewString()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	return e.Publish(TopicStats, ev)
}

// Topic returns the full topic for suffix.
func (e *MQTTEmitter) Topic(suffix string) string {
	return strings.TrimSuffix(e.cfg.TopicPrefix, "/") + "/" + suffix
}

// Disconnect closes the MQTT connection
func (e *MQTTEmitter) Disconnect() error {
	e.mu.Lock()
	client := e.client
	e.connected = false
	e.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Disconnect(250) // 250ms grace period
		slog.Info("emitter: mqtt disconnected")
	}
	return nil
}

// IsConnected reports the connection status
func (e *MQTTEmitter) IsConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}

	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
	}
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}
