package emitter

import "time"

// SizeChangedEvent is published on <prefix>/size when the delivered frame
// resolution changes.
type SizeChangedEvent struct {
	ID         string    `msgpack:"id"`
	Timestamp  time.Time `msgpack:"timestamp"`
	Path       string    `msgpack:"path"`
	Width      int       `msgpack:"width"`
	Height     int       `msgpack:"height"`
	PrevWidth  int       `msgpack:"prev_width"`
	PrevHeight int       `msgpack:"prev_height"`
}

// StatsEvent is published periodically on <prefix>/stats.
type StatsEvent struct {
	ID                string    `msgpack:"id"`
	Timestamp         time.Time `msgpack:"timestamp"`
	Path              string    `msgpack:"path"`
	Connected         bool      `msgpack:"connected"`
	FramesDecoded     uint64    `msgpack:"frames_decoded"`
	FramesConsumed    uint64    `msgpack:"frames_consumed"`
	FramesOverwritten uint64    `msgpack:"frames_overwritten"`
	ErrorsConnection  uint64    `msgpack:"errors_connection"`
	ErrorsParse       uint64    `msgpack:"errors_parse"`
	ErrorsStream      uint64    `msgpack:"errors_stream"`
	Reopens           uint64    `msgpack:"reopens"`
	FPSTarget         float64   `msgpack:"fps_target"`
	FPSReal           float64   `msgpack:"fps_real"`
	LatencyMS         int64     `msgpack:"latency_ms"`
	Width             int       `msgpack:"width"`
	Height            int       `msgpack:"height"`
	UptimeSeconds     int64     `msgpack:"uptime_seconds"`
}
