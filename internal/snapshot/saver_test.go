package snapshot

import (
	"bytes"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/fifo"
	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/ppm"
)

var redGreen = []byte{255, 0, 0, 0, 255, 0}

func fixedClock() time.Time {
	return time.Date(2025, 11, 5, 23, 45, 17, 123_000_000, time.UTC)
}

func newTestSaver(t *testing.T, format string, every int) *Saver {
	t.Helper()
	s, err := NewSaver(t.TempDir(), format, every, 90)
	require.NoError(t, err)
	s.now = fixedClock
	return s
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestNewSaver_Validation(t *testing.T) {
	dir := t.TempDir()

	_, err := NewSaver(dir, "gif", 1, 90)
	assert.Error(t, err)
	_, err = NewSaver(dir, FormatPNG, 0, 90)
	assert.Error(t, err)
	_, err = NewSaver(dir, FormatJPEG, 1, 0)
	assert.Error(t, err)

	nested := filepath.Join(dir, "a", "b")
	s, err := NewSaver(nested, FormatPPM, 1, 0)
	require.NoError(t, err)
	assert.DirExists(t, nested)
	assert.Equal(t, nested, s.Dir())
}

func TestSaver_PNG(t *testing.T) {
	s := newTestSaver(t, FormatPNG, 1)
	require.NoError(t, s.SetFromPixels(redGreen, 2, 1, 3))

	files := listFiles(t, s.Dir())
	require.Equal(t, []string{"frame_000001_20251105_234517.123.png"}, files)

	f, err := os.Open(filepath.Join(s.Dir(), files[0]))
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
	r, g, b, a := img.At(0, 0).RGBA()
	assert.Equal(t, []uint32{0xffff, 0, 0, 0xffff}, []uint32{r, g, b, a})
	r, g, b, _ = img.At(1, 0).RGBA()
	assert.Equal(t, []uint32{0, 0xffff, 0}, []uint32{r, g, b})
}

func TestSaver_JPEG(t *testing.T) {
	s := newTestSaver(t, FormatJPEG, 1)
	pixels := bytes.Repeat([]byte{10, 20, 30}, 16*16)
	require.NoError(t, s.SetFromPixels(pixels, 16, 16, 3))

	files := listFiles(t, s.Dir())
	require.Len(t, files, 1)
	data, err := os.ReadFile(filepath.Join(s.Dir(), files[0]))
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Width)
	assert.Equal(t, 16, cfg.Height)
}

// TestSaver_PPMRoundTrip reads the written file back with the pipe's own
// header parser.
func TestSaver_PPMRoundTrip(t *testing.T) {
	s := newTestSaver(t, FormatPPM, 1)
	require.NoError(t, s.SetFromPixels(redGreen, 2, 1, 3))

	files := listFiles(t, s.Dir())
	require.Len(t, files, 1)
	f, err := os.Open(filepath.Join(s.Dir(), files[0]))
	require.NoError(t, err)

	stream := fifo.NewStream(f, fifo.DefaultMaxLineLength)
	defer stream.Close()

	h := ppm.Parse(stream)
	require.True(t, h.Valid(), h.Err)
	assert.Equal(t, 2, h.Width)
	assert.Equal(t, 1, h.Height)
	assert.Equal(t, 255, h.MaxValue)

	payload, err := stream.ReadExact(6)
	require.NoError(t, err)
	assert.Equal(t, redGreen, payload)
}

func TestSaver_Every(t *testing.T) {
	s := newTestSaver(t, FormatPPM, 3)
	n := 0
	s.now = func() time.Time {
		n++
		return fixedClock().Add(time.Duration(n) * time.Second)
	}

	for i := 0; i < 7; i++ {
		require.NoError(t, s.SetFromPixels(redGreen, 2, 1, 3))
	}

	// Frames 1, 4 and 7
	files := listFiles(t, s.Dir())
	require.Len(t, files, 3)
	assert.Contains(t, files[0], "frame_000001_")
	assert.Contains(t, files[1], "frame_000004_")
	assert.Contains(t, files[2], "frame_000007_")

	saved, dropped := s.Stats()
	assert.Equal(t, uint64(3), saved)
	assert.Zero(t, dropped)
}

func TestSaver_RejectsBadFrames(t *testing.T) {
	s := newTestSaver(t, FormatPNG, 1)

	assert.Error(t, s.SetFromPixels(redGreen, 3, 1, 3), "short data")
	assert.Error(t, s.SetFromPixels([]byte{1, 2}, 1, 1, 2), "two channels")

	ppmSaver := newTestSaver(t, FormatPPM, 1)
	assert.Error(t, ppmSaver.SetFromPixels([]byte{1, 2, 3, 4}, 1, 1, 4))

	_, dropped := s.Stats()
	assert.Equal(t, uint64(2), dropped)
	assert.Empty(t, listFiles(t, s.Dir()))
}

func TestSaver_GrayAndRGBA(t *testing.T) {
	s := newTestSaver(t, FormatPNG, 1)

	require.NoError(t, s.SetFromPixels([]byte{0, 128, 255, 64}, 2, 2, 1))
	s.now = func() time.Time { return fixedClock().Add(time.Second) }
	require.NoError(t, s.SetFromPixels(bytes.Repeat([]byte{1, 2, 3, 255}, 4), 2, 2, 4))

	saved, _ := s.Stats()
	assert.Equal(t, uint64(2), saved)
}
