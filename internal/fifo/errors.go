package fifo

import (
	"errors"
	"fmt"
	"io"
)

// Connection errors, returned by Probe and Pipe.Open.
var (
	// ErrNotConfigured is returned when no FIFO path has been set.
	ErrNotConfigured = errors.New("fifo: path not configured")
	// ErrOpenFailed is returned when the path cannot be opened (missing, permissions).
	ErrOpenFailed = errors.New("fifo: open failed")
	// ErrProbeFailed is returned when the readiness poll itself fails.
	ErrProbeFailed = errors.New("fifo: probe failed")
	// ErrProbeTimeout is returned when no data became readable within the probe bound.
	// Not fatal: the caller is expected to retry.
	ErrProbeTimeout = errors.New("fifo: probe timeout")
)

// Stream errors, returned by the line and payload readers.
var (
	// ErrEndOfStream means the writer closed its end of the pipe.
	ErrEndOfStream = errors.New("fifo: end of stream")
	// ErrStreamFailure wraps any other read error, including reads on a closed pipe.
	ErrStreamFailure = errors.New("fifo: stream failure")
)

// IsStreamError reports whether err came from the read layer, meaning the
// descriptor should be closed and the FIFO probed again.
func IsStreamError(err error) bool {
	return errors.Is(err, ErrEndOfStream) || errors.Is(err, ErrStreamFailure)
}

func mapReadErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrEndOfStream
	}
	return fmt.Errorf("%w: %w", ErrStreamFailure, err)
}
