package videopipe

import (
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/framebuf"
	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/ppm"
	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/warmup"
)

// Frame is one decoded frame. Frames are immutable once published: never
// write to Frame.Data.
type Frame = framebuf.Frame

// Header is a parsed PPM header.
type Header = ppm.Header

// WarmupStats contains statistics collected during the warm-up phase.
type WarmupStats = warmup.Stats

// SizeChange is delivered to OnSizeChanged listeners when the delivered frame
// resolution changes (including the first frame).
type SizeChange struct {
	Width      int
	Height     int
	PrevWidth  int
	PrevHeight int
}

// Stats contains current pipeline statistics
type Stats struct {
	// Path is the FIFO path ("" before the first Open)
	Path string
	// IsRunning indicates the ingestion loop is active
	IsRunning bool
	// IsConnected indicates a writer is attached to the FIFO
	IsConnected bool
	// FramesDecoded is the total number of complete frames read
	FramesDecoded uint64
	// FramesConsumed is the number of frames delivered by Update
	FramesConsumed uint64
	// FramesOverwritten is the number of frames replaced before Update saw them
	FramesOverwritten uint64
	// DropRate is the percentage of decoded frames never delivered (0-100)
	DropRate float64
	// BytesRead is the total payload bytes read
	BytesRead uint64
	// ErrorsConnection counts failed probes/opens
	ErrorsConnection uint64
	// ErrorsParse counts rejected headers
	ErrorsParse uint64
	// ErrorsStream counts writer disconnects and read failures
	ErrorsStream uint64
	// Reopens is the number of times the FIFO was reopened after the first open
	Reopens uint64
	// FPSTarget is the configured ingestion rate (0 = unpaced)
	FPSTarget float64
	// FPSReal is the measured decode rate since Open
	FPSReal float64
	// LatencyMS is the time since the last decoded frame in milliseconds (-1 if none)
	LatencyMS int64
	// Width and Height of the last decoded frame
	Width  int
	Height int
	// Uptime since Open
	Uptime time.Duration
}
