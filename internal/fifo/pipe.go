package fifo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// State is the connection state of a Pipe.
type State int

const (
	// StateClosed means no descriptor is held. The next Open probes the FIFO.
	StateClosed State = iota
	// StateOpen means a read stream is attached.
	StateOpen
)

// String returns a human-readable name for the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Pipe owns the read side of a named pipe.
//
// Open probes the FIFO and attaches a read stream, Close releases it, and the
// next Open probes again. That cycle is how a restarted writer is picked up.
//
// Thread-safety: ReadLine and ReadExact belong to a single reader goroutine.
// Close is safe from any goroutine and interrupts a blocked read.
type Pipe struct {
	path         string
	probeTimeout time.Duration
	maxLine      int

	mu     sync.Mutex
	stream *Stream
}

// Option configures a Pipe.
type Option func(*Pipe)

// WithProbeTimeout sets the readiness probe bound (default 1s).
func WithProbeTimeout(d time.Duration) Option {
	return func(p *Pipe) {
		if d > 0 {
			p.probeTimeout = d
		}
	}
}

// WithMaxLineLength sets the header line cap (default 4096 bytes).
func WithMaxLineLength(n int) Option {
	return func(p *Pipe) {
		if n > 0 {
			p.maxLine = n
		}
	}
}

// New creates a closed Pipe for path. An empty path is accepted; Open then
// fails with ErrNotConfigured.
func New(path string, opts ...Option) *Pipe {
	p := &Pipe{
		path:         path,
		probeTimeout: DefaultProbeTimeout,
		maxLine:      DefaultMaxLineLength,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Path returns the configured FIFO path.
func (p *Pipe) Path() string {
	return p.path
}

// State returns the current connection state.
func (p *Pipe) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		return StateOpen
	}
	return StateClosed
}

// IsOpen reports whether a read stream is attached.
func (p *Pipe) IsOpen() bool {
	return p.State() == StateOpen
}

// Open transitions Closed → Open.
//
// The FIFO is probed first (bounded by the probe timeout) and only opened for
// streaming once the writer has produced data. Calling Open on an open Pipe is
// a no-op.
//
// The descriptor is published under the same lock that Close takes, after a
// final context check. A Close that races with Open therefore either sees the
// new stream and closes it, or Open sees the cancelled context and discards it.
func (p *Pipe) Open(ctx context.Context) error {
	if p.IsOpen() {
		return nil
	}

	result, err := Probe(ctx, p.path, p.probeTimeout)
	if result != ProbeSuccess {
		slog.Debug("fifo: probe did not succeed",
			"path", p.path,
			"result", result.String(),
			"error", err,
		)
		return err
	}

	// Non-blocking open registers the descriptor with the runtime poller, so
	// reads park the goroutine and Close wakes them.
	f, err := os.OpenFile(p.path, os.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOpenFailed, p.path, err)
	}
	s := NewStream(f, p.maxLine)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		s.Close()
		return err
	}
	if p.stream != nil {
		s.Close()
		return nil
	}
	p.stream = s

	slog.Info("fifo: pipe opened", "path", p.path)
	return nil
}

// Close transitions to Closed. Idempotent, and safe to call concurrently with
// a blocked ReadLine/ReadExact, which then fails with ErrStreamFailure.
func (p *Pipe) Close() error {
	p.mu.Lock()
	s := p.stream
	p.stream = nil
	p.mu.Unlock()

	if s == nil {
		return nil
	}

	slog.Debug("fifo: pipe closed", "path", p.path)
	return s.Close()
}

// ReadLine reads one header line from the attached stream.
func (p *Pipe) ReadLine() (string, error) {
	s, err := p.current()
	if err != nil {
		return "", err
	}
	return s.ReadLine()
}

// ReadExact reads exactly n payload bytes from the attached stream.
func (p *Pipe) ReadExact(n int) ([]byte, error) {
	s, err := p.current()
	if err != nil {
		return nil, err
	}
	return s.ReadExact(n)
}

// Discard skips n payload bytes on the attached stream.
func (p *Pipe) Discard(n int) error {
	s, err := p.current()
	if err != nil {
		return err
	}
	return s.Discard(n)
}

func (p *Pipe) current() (*Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return nil, fmt.Errorf("%w: %s is not open", ErrStreamFailure, p.path)
	}
	return p.stream, nil
}
