package ingest

import (
	"errors"

	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/fifo"
	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/ppm"
)

// ErrorCategory classifies ingestion failures for telemetry and recovery.
type ErrorCategory int

const (
	// CategoryConnection covers probe and open failures (FIFO missing, no writer yet).
	CategoryConnection ErrorCategory = iota
	// CategoryParse covers malformed headers. The descriptor stays open.
	CategoryParse
	// CategoryStream covers end of stream and read failures. The descriptor is
	// closed and the FIFO probed again on the next cycle.
	CategoryStream
	// CategoryUnknown covers anything else (including context cancellation).
	CategoryUnknown
)

// String returns a human-readable string representation of the error category
func (c ErrorCategory) String() string {
	switch c {
	case CategoryConnection:
		return "connection"
	case CategoryParse:
		return "parse"
	case CategoryStream:
		return "stream"
	default:
		return "unknown"
	}
}

// Classify maps an error returned by Reader.ReadFrame to its category.
//
// Stream errors are checked first: a header that failed because the writer
// hung up mid-line is a stream problem, not a parse problem.
func Classify(err error) ErrorCategory {
	switch {
	case err == nil:
		return CategoryUnknown
	case fifo.IsStreamError(err):
		return CategoryStream
	case errors.Is(err, ppm.ErrUnsupportedFormat),
		errors.Is(err, ppm.ErrInvalidDimensions),
		errors.Is(err, ppm.ErrMalformedField):
		return CategoryParse
	case errors.Is(err, fifo.ErrNotConfigured),
		errors.Is(err, fifo.ErrOpenFailed),
		errors.Is(err, fifo.ErrProbeFailed),
		errors.Is(err, fifo.ErrProbeTimeout):
		return CategoryConnection
	default:
		return CategoryUnknown
	}
}

// needsBackoff reports whether the loop should wait before the next attempt.
// A probe timeout has already waited for the probe bound, so it retries at once.
func needsBackoff(err error) bool {
	return Classify(err) == CategoryConnection && !errors.Is(err, fifo.ErrProbeTimeout)
}
