// Package framebuf implements the single-slot handoff between the ingestion
// goroutine and the consumer.
//
// The producer overwrites the slot with every completed frame; the consumer
// takes it at its own pace. Only the newest frame is ever kept (JIT
// semantics): a frame replaced before anyone consumed it is counted as
// overwritten, never queued.
package framebuf

import (
	"context"
	"sync"
)

// Stats is a snapshot of buffer counters.
type Stats struct {
	// Stored is the number of frames handed to Store.
	Stored uint64
	// Consumed is the number of frames returned by ConsumeIfNew.
	Consumed uint64
	// Overwritten is the number of frames replaced while still unconsumed.
	Overwritten uint64
}

// Buffer holds the latest frame and a dirty flag under one mutex.
//
// dirty is true iff frame was replaced since the last ConsumeIfNew. Critical
// sections are limited to pointer swaps and flag updates; no I/O happens
// under the lock.
type Buffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  *Frame
	dirty  bool
	closed bool

	stored      uint64
	consumed    uint64
	overwritten uint64
}

// New creates an empty buffer.
func New() *Buffer {
	b := &Buffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Store replaces the held frame and marks it new.
//
// f must not be nil and must not be modified afterwards.
func (b *Buffer) Store(f *Frame) {
	b.mu.Lock()
	if b.dirty {
		b.overwritten++
	}
	b.frame = f
	b.dirty = true
	b.stored++
	b.cond.Broadcast()
	b.mu.Unlock()
}

// ConsumeIfNew returns the held frame and clears the dirty flag, or false if
// nothing new arrived since the previous call. A given Store is returned at
// most once.
func (b *Buffer) ConsumeIfNew() (*Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.dirty {
		return nil, false
	}
	b.dirty = false
	b.consumed++
	return b.frame, true
}

// HasNewFrame peeks at the dirty flag without consuming.
func (b *Buffer) HasNewFrame() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dirty
}

// Latest returns the most recently stored frame without touching the dirty flag.
func (b *Buffer) Latest() (*Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame, b.frame != nil
}

// WaitStored blocks until a frame with Seq > afterSeq is stored and returns it
// without consuming it. Used by observers (warmup, snapshots) that must not
// steal frames from the consumer.
//
// Returns ctx.Err() on cancellation and ErrClosed after Close.
func (b *Buffer) WaitStored(ctx context.Context, afterSeq uint64) (*Frame, error) {
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})
	defer stop()

	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		if b.frame != nil && b.frame.Seq > afterSeq {
			return b.frame, nil
		}
		if b.closed {
			return nil, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.cond.Wait()
	}
}

// Close wakes every WaitStored caller. Store, ConsumeIfNew and Latest keep
// working after Close so the consumer can drain the last frame.
func (b *Buffer) Close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Reset drops the held frame and reopens the buffer for WaitStored. Counters
// are kept.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.frame = nil
	b.dirty = false
	b.closed = false
	b.mu.Unlock()
}

// Stats returns a snapshot of the counters.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Stored:      b.stored,
		Consumed:    b.consumed,
		Overwritten: b.overwritten,
	}
}
