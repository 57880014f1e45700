package videopipe

import (
	"errors"
	"fmt"
	"sync"
)

// ImageSink receives frames from Update.
//
// SetFromPixels must copy data if it keeps it beyond the call; the slice is
// shared with other readers of the same frame.
type ImageSink interface {
	SetFromPixels(data []byte, width, height, channels int) error
}

// SinkFunc adapts a function to ImageSink.
type SinkFunc func(data []byte, width, height, channels int) error

// SetFromPixels calls f.
func (f SinkFunc) SetFromPixels(data []byte, width, height, channels int) error {
	return f(data, width, height, channels)
}

// MultiSink delivers each frame to every sink in order and joins their errors.
func MultiSink(sinks ...ImageSink) ImageSink {
	return SinkFunc(func(data []byte, width, height, channels int) error {
		var errs []error
		for _, s := range sinks {
			if err := s.SetFromPixels(data, width, height, channels); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// PixelBuffer is the default sink: a private copy of the last delivered frame.
type PixelBuffer struct {
	mu       sync.RWMutex
	data     []byte
	width    int
	height   int
	channels int
}

// NewPixelBuffer creates an empty (0x0) pixel buffer.
func NewPixelBuffer() *PixelBuffer {
	return &PixelBuffer{}
}

// SetFromPixels copies data, reusing the existing allocation when it is large enough.
func (p *PixelBuffer) SetFromPixels(data []byte, width, height, channels int) error {
	if width <= 0 || height <= 0 || channels <= 0 {
		return fmt.Errorf("video-pipe: invalid pixel geometry %dx%dx%d", width, height, channels)
	}
	if want := width * height * channels; len(data) != want {
		return fmt.Errorf("video-pipe: pixel data is %d bytes, want %d for %dx%dx%d",
			len(data), want, width, height, channels)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if cap(p.data) >= len(data) {
		p.data = p.data[:len(data)]
	} else {
		p.data = make([]byte, len(data))
	}
	copy(p.data, data)
	p.width, p.height, p.channels = width, height, channels
	return nil
}

// Pixels returns a copy of the current pixels.
func (p *PixelBuffer) Pixels() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]byte, len(p.data))
	copy(out, p.data)
	return out
}

// Width in pixels
func (p *PixelBuffer) Width() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.width
}

// Height in pixels
func (p *PixelBuffer) Height() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.height
}

// Channels per pixel
func (p *PixelBuffer) Channels() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.channels
}
