// Package ppm parses the text header of binary PPM (P6) frames.
//
// Only the strict three-line form is accepted:
//
//	P6
//	<width> <height>
//	<maxval>
//
// followed by width*height*3 bytes of RGB payload. Comments and the P3/P5
// variants are not supported.
package ppm

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Magic is the only accepted format token.
const Magic = "P6"

// Channels is fixed for P6: packed RGB.
const Channels = 3

var (
	// ErrUnsupportedFormat is set when the first line is not "P6".
	ErrUnsupportedFormat = errors.New("ppm: unsupported format")
	// ErrInvalidDimensions is set when width or height is missing or not positive.
	ErrInvalidDimensions = errors.New("ppm: invalid dimensions")
	// ErrMalformedField is returned when a field cannot describe a payload
	// (width*height*channels overflows or exceeds the configured limit).
	ErrMalformedField = errors.New("ppm: malformed field")
	// ErrPayloadTooLarge is the over-limit case of ErrMalformedField. The
	// payload size is still known, so the frame can be skipped.
	ErrPayloadTooLarge = fmt.Errorf("%w: payload exceeds limit", ErrMalformedField)
)

// LineReader yields header lines without their terminator.
type LineReader interface {
	ReadLine() (string, error)
}

// Header is the decoded frame header.
//
// A Header is built fresh for every frame and never mutated once Parse returns.
// Fields after the one that failed keep their zero values.
type Header struct {
	Format   string
	Width    int
	Height   int
	Channels int
	MaxValue int
	// Err is the first parse or read error, nil when the header is valid.
	Err error
}

// Valid reports whether the header describes a frame that can be read.
func (h Header) Valid() bool {
	return h.Err == nil && h.Format == Magic && h.Width > 0 && h.Height > 0
}

// PayloadSize returns Width*Height*Channels.
//
// limit > 0 rejects payloads larger than limit bytes with ErrPayloadTooLarge;
// the size is returned alongside that error. Overflow of int is always
// rejected with size 0.
func (h Header) PayloadSize(limit int) (int, error) {
	if !h.Valid() {
		return 0, fmt.Errorf("%w: header is not valid", ErrMalformedField)
	}
	channels := h.Channels
	if channels <= 0 {
		channels = Channels
	}

	if h.Width > math.MaxInt/h.Height || h.Width*h.Height > math.MaxInt/channels {
		return 0, fmt.Errorf("%w: %dx%dx%d overflows", ErrMalformedField, h.Width, h.Height, channels)
	}
	size := h.Width * h.Height * channels
	if limit > 0 && size > limit {
		return size, fmt.Errorf("%w: %d bytes for %dx%d, limit %d",
			ErrPayloadTooLarge, size, h.Width, h.Height, limit)
	}
	return size, nil
}

// String returns "P6 640x480 maxval=255"
func (h Header) String() string {
	return fmt.Sprintf("%s %dx%d maxval=%d", h.Format, h.Width, h.Height, h.MaxValue)
}

// Parse reads the three header lines from r.
//
// The returned Header always has Channels set. Parse never returns an error
// separately: check Valid or Err. Read-layer errors are wrapped into Err so
// callers can still match them with errors.Is.
func Parse(r LineReader) Header {
	h := Header{Channels: Channels}

	line, err := r.ReadLine()
	if err != nil {
		h.Err = fmt.Errorf("ppm: reading format: %w", err)
		return h
	}
	h.Format = strings.TrimSpace(line)
	if h.Format != Magic {
		h.Err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, truncate(h.Format, 16))
		return h
	}

	line, err = r.ReadLine()
	if err != nil {
		h.Err = fmt.Errorf("ppm: reading dimensions: %w", err)
		return h
	}
	h.Width, h.Height = parseDimensions(line)
	if h.Width <= 0 || h.Height <= 0 {
		h.Err = fmt.Errorf("%w: width=%d height=%d", ErrInvalidDimensions, h.Width, h.Height)
		return h
	}

	line, err = r.ReadLine()
	if err != nil {
		h.Err = fmt.Errorf("ppm: reading maxval: %w", err)
		return h
	}
	// maxval is informational: an unparseable value leaves 0 and the frame is kept.
	h.MaxValue, _ = strconv.Atoi(strings.TrimSpace(line))

	return h
}

// parseDimensions reads "<w> <h>". Missing or unparseable tokens yield 0.
func parseDimensions(line string) (width, height int) {
	fields := strings.Fields(line)
	if len(fields) > 0 {
		width, _ = strconv.Atoi(fields[0])
	}
	if len(fields) > 1 {
		height, _ = strconv.Atoi(fields[1])
	}
	return width, height
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
