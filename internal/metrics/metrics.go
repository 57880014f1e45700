// Package metrics exposes pipe statistics as Prometheus collectors.
//
// Collectors are function-backed: every scrape reads a fresh Snapshot, so the
// pipe never pushes values and nothing is double-counted across reopens.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "videopipe"

// Snapshot holds the values exported on each scrape
type Snapshot struct {
	FramesDecoded     uint64
	BytesRead         uint64
	ErrorsConnection  uint64
	ErrorsParse       uint64
	ErrorsStream      uint64
	Reopens           uint64
	FramesOverwritten uint64
	FramesConsumed    uint64
	Connected         bool
	FPS               float64
	// LastFrameAge is the time since the last decoded frame (negative if none)
	LastFrameAge time.Duration
	Width        int
	Height       int
}

// Metrics holds the registered collectors
type Metrics struct {
	snap       func() Snapshot
	collectors []prometheus.Collector
}

// New registers the pipe collectors on reg (prometheus.DefaultRegisterer when
// nil). snap is called once per collector per scrape and must be thread-safe.
func New(reg prometheus.Registerer, snap func() Snapshot) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{snap: snap}
	factory := promauto.With(reg)

	counter := func(name, help string, labels prometheus.Labels, value func(Snapshot) uint64) {
		m.collectors = append(m.collectors, factory.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        name,
				Help:        help,
				ConstLabels: labels,
			},
			func() float64 { return float64(value(m.snap())) },
		))
	}
	gauge := func(name, help string, value func(Snapshot) float64) {
		m.collectors = append(m.collectors, factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      name,
				Help:      help,
			},
			func() float64 { return value(m.snap()) },
		))
	}

	// Decode counters
	counter("frames_decoded_total", "Total number of complete frames read from the FIFO", nil,
		func(s Snapshot) uint64 { return s.FramesDecoded })
	counter("bytes_read_total", "Total payload bytes read from the FIFO", nil,
		func(s Snapshot) uint64 { return s.BytesRead })
	counter("reopens_total", "Number of times the FIFO was reopened after a writer change", nil,
		func(s Snapshot) uint64 { return s.Reopens })

	// Errors, one series per category
	counter("errors_total", "Total number of failed read attempts", prometheus.Labels{"category": "connection"},
		func(s Snapshot) uint64 { return s.ErrorsConnection })
	counter("errors_total", "Total number of failed read attempts", prometheus.Labels{"category": "parse"},
		func(s Snapshot) uint64 { return s.ErrorsParse })
	counter("errors_total", "Total number of failed read attempts", prometheus.Labels{"category": "stream"},
		func(s Snapshot) uint64 { return s.ErrorsStream })

	// Consumer side
	counter("frames_overwritten_total", "Frames replaced before the consumer saw them", nil,
		func(s Snapshot) uint64 { return s.FramesOverwritten })
	counter("frames_consumed_total", "Frames delivered to the consumer", nil,
		func(s Snapshot) uint64 { return s.FramesConsumed })

	// Gauges
	gauge("connected", "1 if a writer is attached to the FIFO", func(s Snapshot) float64 {
		if s.Connected {
			return 1
		}
		return 0
	})
	gauge("fps", "Measured decode rate in frames per second", func(s Snapshot) float64 {
		return s.FPS
	})
	gauge("last_frame_age_seconds", "Seconds since the last decoded frame (-1 if none)", func(s Snapshot) float64 {
		if s.LastFrameAge < 0 {
			return -1
		}
		return s.LastFrameAge.Seconds()
	})
	gauge("frame_width", "Width of the last decoded frame in pixels", func(s Snapshot) float64 {
		return float64(s.Width)
	})
	gauge("frame_height", "Height of the last decoded frame in pixels", func(s Snapshot) float64 {
		return float64(s.Height)
	})

	return m
}

// Unregister removes every collector from reg.
func (m *Metrics) Unregister(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range m.collectors {
		reg.Unregister(c)
	}
}
