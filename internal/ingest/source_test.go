package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/fifo"
)

// memSource is an in-memory Source. Every successful Open attaches the next
// scripted session; errors queued in openErrs are returned first.
type memSource struct {
	mu       sync.Mutex
	sessions [][]byte
	openErrs []error
	stream   *fifo.Stream
	opens    int
	closes   int
}

func newMemSource(sessions ...[]byte) *memSource {
	return &memSource{sessions: sessions}
}

func (m *memSource) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		return nil
	}
	if len(m.openErrs) > 0 {
		err := m.openErrs[0]
		m.openErrs = m.openErrs[1:]
		return err
	}
	if len(m.sessions) == 0 {
		return fmt.Errorf("%w: no writer", fifo.ErrProbeTimeout)
	}
	m.stream = fifo.NewStream(io.NopCloser(bytes.NewReader(m.sessions[0])), 0)
	m.sessions = m.sessions[1:]
	m.opens++
	return nil
}

func (m *memSource) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream != nil
}

func (m *memSource) current() (*fifo.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream == nil {
		return nil, fmt.Errorf("%w: not open", fifo.ErrStreamFailure)
	}
	return m.stream, nil
}

func (m *memSource) ReadLine() (string, error) {
	s, err := m.current()
	if err != nil {
		return "", err
	}
	return s.ReadLine()
}

func (m *memSource) ReadExact(n int) ([]byte, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return s.ReadExact(n)
}

func (m *memSource) Discard(n int) error {
	s, err := m.current()
	if err != nil {
		return err
	}
	return s.Discard(n)
}

func (m *memSource) Close() error {
	m.mu.Lock()
	s := m.stream
	m.stream = nil
	m.closes++
	m.mu.Unlock()
	if s != nil {
		return s.Close()
	}
	return nil
}

func (m *memSource) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// blockingSource attaches an io.Pipe on Open; reads block until Close.
type blockingSource struct {
	mu     sync.Mutex
	stream *fifo.Stream
	writer *io.PipeWriter
}

func (b *blockingSource) Open(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stream == nil {
		pr, pw := io.Pipe()
		b.stream = fifo.NewStream(pr, 0)
		b.writer = pw
	}
	return nil
}

func (b *blockingSource) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stream != nil
}

func (b *blockingSource) ReadLine() (string, error) {
	b.mu.Lock()
	s := b.stream
	b.mu.Unlock()
	if s == nil {
		return "", fifo.ErrStreamFailure
	}
	return s.ReadLine()
}

func (b *blockingSource) ReadExact(n int) ([]byte, error) {
	b.mu.Lock()
	s := b.stream
	b.mu.Unlock()
	if s == nil {
		return nil, fifo.ErrStreamFailure
	}
	return s.ReadExact(n)
}

func (b *blockingSource) Discard(n int) error {
	b.mu.Lock()
	s := b.stream
	b.mu.Unlock()
	if s == nil {
		return fifo.ErrStreamFailure
	}
	return s.Discard(n)
}

func (b *blockingSource) Close() error {
	b.mu.Lock()
	s := b.stream
	b.stream = nil
	b.mu.Unlock()
	if s != nil {
		return s.Close()
	}
	return nil
}

// ppmFrame encodes a P6 frame with the given pixels.
func ppmFrame(w, h int, pixels []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "P6\n%d %d\n255\n", w, h)
	buf.Write(pixels)
	return buf.Bytes()
}

func concat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}
