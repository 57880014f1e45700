package videopipe

import (
	"fmt"
	"math"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/fifo"
	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/ingest"
)

type options struct {
	sink          ImageSink
	frameRate     float64
	probeTimeout  time.Duration
	maxPayload    int
	maxLineLength int
	reconnect     ingest.ReconnectConfig
}

func defaultOptions() options {
	return options{
		sink:          NewPixelBuffer(),
		probeTimeout:  fifo.DefaultProbeTimeout,
		maxPayload:    ingest.DefaultMaxPayload,
		maxLineLength: fifo.DefaultMaxLineLength,
		reconnect:     ingest.DefaultReconnectConfig(),
	}
}

func (o options) validate() error {
	if o.sink == nil {
		return fmt.Errorf("video-pipe: sink is required")
	}
	if o.frameRate < 0 || math.IsNaN(o.frameRate) || math.IsInf(o.frameRate, 0) {
		return fmt.Errorf("video-pipe: invalid frame rate %.2f (must be >= 0)", o.frameRate)
	}
	if o.probeTimeout <= 0 {
		return fmt.Errorf("video-pipe: probe timeout must be > 0, got %s", o.probeTimeout)
	}
	if o.maxPayload <= 0 {
		return fmt.Errorf("video-pipe: max payload must be > 0, got %d", o.maxPayload)
	}
	if o.reconnect.RetryDelay <= 0 || o.reconnect.MaxRetryDelay < o.reconnect.RetryDelay {
		return fmt.Errorf("video-pipe: invalid reconnect delays %s..%s",
			o.reconnect.RetryDelay, o.reconnect.MaxRetryDelay)
	}
	return nil
}

// Option configures a VideoPipe.
type Option func(*options)

// WithSink sets where Update delivers frames (default: a PixelBuffer).
func WithSink(sink ImageSink) Option {
	return func(o *options) { o.sink = sink }
}

// WithFrameRate sets the initial ingestion rate (default 0: unpaced).
func WithFrameRate(rate float64) Option {
	return func(o *options) { o.frameRate = rate }
}

// WithProbeTimeout bounds each FIFO readiness probe (default 1s).
func WithProbeTimeout(d time.Duration) Option {
	return func(o *options) { o.probeTimeout = d }
}

// WithMaxPayload rejects frames larger than n bytes (default 256 MiB).
func WithMaxPayload(n int) Option {
	return func(o *options) { o.maxPayload = n }
}

// WithReconnect sets the backoff between failed FIFO opens.
func WithReconnect(initial, maxDelay time.Duration) Option {
	return func(o *options) {
		o.reconnect = ingest.ReconnectConfig{RetryDelay: initial, MaxRetryDelay: maxDelay}
	}
}
