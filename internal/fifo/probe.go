package fifo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultProbeTimeout bounds how long Probe waits for the writer to produce data.
const DefaultProbeTimeout = time.Second

// pollSlice caps a single poll(2) call so a cancelled context aborts the probe quickly.
const pollSlice = 100 * time.Millisecond

// ProbeResult is the outcome of a readiness probe.
type ProbeResult int

const (
	// ProbeInitNotReady means no path was configured.
	ProbeInitNotReady ProbeResult = iota
	// ProbeOpenFailed means the path could not be opened.
	ProbeOpenFailed
	// ProbeFailed means poll(2) returned an error or an error condition.
	ProbeFailed
	// ProbeTimeout means nothing became readable within the bound.
	ProbeTimeout
	// ProbeSuccess means data is waiting to be read.
	ProbeSuccess
)

// String returns a human-readable name for the result
func (r ProbeResult) String() string {
	switch r {
	case ProbeInitNotReady:
		return "init_not_ready"
	case ProbeOpenFailed:
		return "open_failed"
	case ProbeFailed:
		return "probe_failed"
	case ProbeTimeout:
		return "timeout"
	case ProbeSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Probe checks whether the FIFO at path has data ready without committing to a
// blocking open.
//
// The path is opened read-only and non-blocking (which never waits for a writer),
// polled for readability for at most timeout, and closed again. The probe
// descriptor is always released before returning.
//
// A nil error is returned only together with ProbeSuccess. If ctx is cancelled
// while polling, ProbeTimeout is returned with the context error.
func Probe(ctx context.Context, path string, timeout time.Duration) (ProbeResult, error) {
	if path == "" {
		return ProbeInitNotReady, ErrNotConfigured
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return ProbeOpenFailed, fmt.Errorf("%w: %s: %w", ErrOpenFailed, path, err)
	}
	defer unix.Close(fd)

	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	deadline := time.Now().Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			return ProbeTimeout, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ProbeTimeout, fmt.Errorf("%w: no data on %s within %s", ErrProbeTimeout, path, timeout)
		}

		wait := min(remaining, pollSlice)
		n, err := unix.Poll(fds, int(wait/time.Millisecond))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return ProbeFailed, fmt.Errorf("%w: %s: %w", ErrProbeFailed, path, err)
		}
		if n == 0 {
			continue
		}

		revents := fds[0].Revents
		switch {
		case revents&unix.POLLIN != 0:
			return ProbeSuccess, nil
		case revents&(unix.POLLERR|unix.POLLNVAL) != 0:
			return ProbeFailed, fmt.Errorf("%w: %s: poll revents 0x%x", ErrProbeFailed, path, revents)
		default:
			// POLLHUP without data: the writer came and went. A fresh descriptor
			// on the next probe starts clean.
			return ProbeTimeout, fmt.Errorf("%w: writer hung up on %s", ErrProbeTimeout, path)
		}
	}
}
