package framebuf

import (
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/ppm"
)

// Frame is one fully decoded PPM frame.
//
// Immutability contract: once a Frame is handed to Buffer.Store nobody writes
// to it again, including Data. Readers may therefore keep and share the
// pointer without copying.
type Frame struct {
	// Header is the parsed header; always Valid for a stored frame.
	Header ppm.Header
	// Data is the packed RGB payload, len(Data) == Width*Height*Channels.
	Data []byte
	// Seq is the monotonic sequence number assigned by the reader (starts at 1).
	Seq uint64
	// Timestamp is when the payload finished reading.
	Timestamp time.Time
	// TraceID is a unique identifier for log correlation.
	TraceID string
}

// Width in pixels
func (f *Frame) Width() int { return f.Header.Width }

// Height in pixels
func (f *Frame) Height() int { return f.Header.Height }

// Channels per pixel (always 3)
func (f *Frame) Channels() int { return f.Header.Channels }
