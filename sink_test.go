package videopipe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPixelBuffer_SetFromPixels(t *testing.T) {
	p := NewPixelBuffer()
	assert.Zero(t, p.Width())
	assert.Empty(t, p.Pixels())

	src := []byte{1, 2, 3, 4, 5, 6}
	require.NoError(t, p.SetFromPixels(src, 2, 1, 3))

	got := p.Pixels()
	assert.Equal(t, src, got)
	assert.Equal(t, 2, p.Width())
	assert.Equal(t, 1, p.Height())

	// Both the input and the returned slice are private copies.
	src[0] = 99
	got[1] = 99
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, p.Pixels())

	// Smaller frame reuses the allocation.
	require.NoError(t, p.SetFromPixels([]byte{7, 8, 9}, 1, 1, 3))
	assert.Equal(t, []byte{7, 8, 9}, p.Pixels())
}

func TestPixelBuffer_RejectsBadGeometry(t *testing.T) {
	p := NewPixelBuffer()

	assert.Error(t, p.SetFromPixels([]byte{1, 2, 3}, 2, 1, 3))
	assert.Error(t, p.SetFromPixels(nil, 0, 1, 3))
	assert.Error(t, p.SetFromPixels([]byte{1}, 1, 1, 0))
	assert.Zero(t, p.Width(), "rejected frame changed the buffer")
}

func TestMultiSink(t *testing.T) {
	a, b := NewPixelBuffer(), NewPixelBuffer()
	boom := errors.New("boom")
	failing := SinkFunc(func([]byte, int, int, int) error { return boom })

	sink := MultiSink(a, failing, b)
	err := sink.SetFromPixels([]byte{1, 2, 3}, 1, 1, 3)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []byte{1, 2, 3}, a.Pixels())
	assert.Equal(t, []byte{1, 2, 3}, b.Pixels(), "later sinks still receive the frame")
}
