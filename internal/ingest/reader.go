// Package ingest turns a byte stream of concatenated PPM frames into frames in
// a framebuf.Buffer.
//
// Reader performs one read attempt per call (open if needed, parse header,
// read payload, publish). Driver runs Reader in a background goroutine paced
// by a pacer.Pacer, with backoff when the FIFO cannot be opened.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/framebuf"
	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/ppm"
)

// Source is the byte stream the reader pulls frames from. *fifo.Pipe
// implements it.
type Source interface {
	// Open attaches the stream; a no-op when already open.
	Open(ctx context.Context) error
	// IsOpen reports whether a stream is attached.
	IsOpen() bool
	// ReadLine returns the next header line.
	ReadLine() (string, error)
	// ReadExact returns exactly n payload bytes.
	ReadExact(n int) ([]byte, error)
	// Discard skips exactly n payload bytes.
	Discard(n int) error
	// Close detaches the stream. Idempotent and safe from any goroutine.
	Close() error
}

// Stats is a snapshot of reader counters.
type Stats struct {
	FramesDecoded    uint64
	BytesRead        uint64
	ErrorsConnection uint64
	ErrorsParse      uint64
	ErrorsStream     uint64
	// Opens is the number of successful opens; Reopens excludes the first one.
	Opens       uint64
	Reopens     uint64
	Connected   bool
	LastFrameAt time.Time
	// LastWidth/LastHeight are the dimensions of the last decoded frame.
	LastWidth  int
	LastHeight int
}

// Reader decodes one frame per ReadFrame call.
//
// Thread-safety: ReadFrame must be called from a single goroutine. Stats and
// Interrupt are safe from any goroutine.
type Reader struct {
	src        Source
	buf        *framebuf.Buffer
	maxPayload int
	now        func() time.Time

	seq atomic.Uint64

	framesDecoded    atomic.Uint64
	bytesRead        atomic.Uint64
	errorsConnection atomic.Uint64
	errorsParse      atomic.Uint64
	errorsStream     atomic.Uint64
	opens            atomic.Uint64
	reopens          atomic.Uint64
	connected        atomic.Bool
	lastFrameAt      atomic.Int64
	lastDims         atomic.Uint64 // width<<32 | height
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithMaxPayload rejects frames whose payload would exceed n bytes (0 = no limit).
func WithMaxPayload(n int) ReaderOption {
	return func(r *Reader) { r.maxPayload = n }
}

// WithReaderClock replaces time.Now for frame timestamps.
func WithReaderClock(now func() time.Time) ReaderOption {
	return func(r *Reader) { r.now = now }
}

// DefaultMaxPayload is 256 MiB, comfortably above an 8K RGB frame.
const DefaultMaxPayload = 256 << 20

// NewReader creates a reader publishing into buf.
func NewReader(src Source, buf *framebuf.Buffer, opts ...ReaderOption) *Reader {
	r := &Reader{
		src:        src,
		buf:        buf,
		maxPayload: DefaultMaxPayload,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadFrame performs one read attempt.
//
// Steps:
//  1. Open the source if it is closed (probe + open)
//  2. Parse the header
//  3. Read exactly width*height*3 payload bytes
//  4. Store the frame in the buffer
//
// The buffer is touched only when all four steps succeed. On a stream error
// (writer gone, read failure) the source is closed so that the next call
// probes again; a parse error leaves it open. A payload over the size limit is
// read and dropped, keeping the stream aligned on frame boundaries.
//
// The returned error can be categorized with Classify.
func (r *Reader) ReadFrame(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !r.src.IsOpen() {
		if err := r.src.Open(ctx); err != nil {
			if ctx.Err() == nil {
				r.errorsConnection.Add(1)
			}
			return err
		}
		if r.opens.Add(1) > 1 {
			r.reopens.Add(1)
		}
		r.connected.Store(true)
	}

	header := ppm.Parse(r.src)
	if header.Err != nil {
		return r.fail(ctx, header.Err)
	}

	size, err := header.PayloadSize(r.maxPayload)
	if err != nil {
		return r.reject(ctx, size, err)
	}

	data, err := r.src.ReadExact(size)
	if err != nil {
		return r.fail(ctx, fmt.Errorf("ingest: reading %d byte payload for %dx%d: %w",
			size, header.Width, header.Height, err))
	}

	now := r.now()
	frame := &framebuf.Frame{
		Header:    header,
		Data:      data,
		Seq:       r.seq.Add(1),
		Timestamp: now,
		TraceID:   uuid.New().String(),
	}
	r.buf.Store(frame)

	r.framesDecoded.Add(1)
	r.bytesRead.Add(uint64(size))
	r.lastFrameAt.Store(now.UnixNano())
	r.lastDims.Store(uint64(header.Width)<<32 | uint64(uint32(header.Height)))

	return nil
}

// reject handles a valid header whose payload cannot be accepted. An
// over-limit payload is skipped so the next header lines up; when the size is
// unknown (overflow) there is nothing to skip to and the source is closed.
func (r *Reader) reject(ctx context.Context, size int, err error) error {
	if !errors.Is(err, ppm.ErrPayloadTooLarge) {
		r.src.Close()
		r.connected.Store(false)
		return r.fail(ctx, err)
	}
	if derr := r.src.Discard(size); derr != nil {
		return r.fail(ctx, fmt.Errorf("ingest: skipping %d byte payload: %w", size, derr))
	}
	return r.fail(ctx, err)
}

// fail records err and, for stream errors, closes the source for reopen.
// Failures caused by a cancelled context are not counted.
func (r *Reader) fail(ctx context.Context, err error) error {
	category := Classify(err)
	if category == CategoryStream {
		r.src.Close()
		r.connected.Store(false)
	}
	if ctx.Err() != nil {
		return err
	}

	switch category {
	case CategoryStream:
		r.errorsStream.Add(1)
	case CategoryParse:
		r.errorsParse.Add(1)
	}
	return err
}

// Interrupt closes the source, unblocking a ReadFrame stuck in a read.
func (r *Reader) Interrupt() error {
	r.connected.Store(false)
	return r.src.Close()
}

// Stats returns a snapshot of the counters.
func (r *Reader) Stats() Stats {
	s := Stats{
		FramesDecoded:    r.framesDecoded.Load(),
		BytesRead:        r.bytesRead.Load(),
		ErrorsConnection: r.errorsConnection.Load(),
		ErrorsParse:      r.errorsParse.Load(),
		ErrorsStream:     r.errorsStream.Load(),
		Opens:            r.opens.Load(),
		Reopens:          r.reopens.Load(),
		Connected:        r.connected.Load(),
	}
	if ns := r.lastFrameAt.Load(); ns != 0 {
		s.LastFrameAt = time.Unix(0, ns)
	}
	dims := r.lastDims.Load()
	s.LastWidth = int(dims >> 32)
	s.LastHeight = int(uint32(dims))
	return s
}
