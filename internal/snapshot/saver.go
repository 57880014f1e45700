// Package snapshot writes delivered frames to disk.
package snapshot

import (
	"bufio"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// Supported output formats
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatPPM  = "ppm"
)

// Saver is an image sink that saves every N-th frame it receives.
//
// Converts raw pixels to PNG, JPEG or binary PPM.
// Thread-safe: can be shared by several pipes.
type Saver struct {
	outputDir   string
	format      string
	every       uint64
	jpegQuality int
	now         func() time.Time

	framesOffered atomic.Uint64
	framesSaved   atomic.Uint64
	framesDropped atomic.Uint64
}

// NewSaver creates a saver with given output directory and format.
//
// Format: "png", "jpeg" or "ppm"
// Every: save one frame out of every N (1 = all)
// JPEGQuality: 1-100 (only used for JPEG)
func NewSaver(outputDir, format string, every, jpegQuality int) (*Saver, error) {
	switch format {
	case FormatPNG, FormatJPEG, FormatPPM:
	default:
		return nil, fmt.Errorf("unsupported format: %s (must be png, jpeg or ppm)", format)
	}
	if every < 1 {
		return nil, fmt.Errorf("every must be >= 1, got %d", every)
	}
	if format == FormatJPEG && (jpegQuality < 1 || jpegQuality > 100) {
		return nil, fmt.Errorf("jpeg quality must be 1-100, got %d", jpegQuality)
	}

	// Create output directory if it doesn't exist
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Saver{
		outputDir:   outputDir,
		format:      format,
		every:       uint64(every),
		jpegQuality: jpegQuality,
		now:         time.Now,
	}, nil
}

// SetFromPixels saves the frame if it is the first or an N-th one since.
//
// Filename format: frame_{n:06d}_{timestamp}.{ext}
// Example: frame_000042_20251105_234517.123.png
func (s *Saver) SetFromPixels(data []byte, width, height, channels int) error {
	n := s.framesOffered.Add(1)
	if (n-1)%s.every != 0 {
		return nil
	}

	if err := s.save(n, data, width, height, channels); err != nil {
		s.framesDropped.Add(1)
		return err
	}
	s.framesSaved.Add(1)
	return nil
}

func (s *Saver) save(n uint64, data []byte, width, height, channels int) error {
	if width <= 0 || height <= 0 || len(data) != width*height*channels {
		return fmt.Errorf("invalid frame: %dx%dx%d with %d bytes", width, height, channels, len(data))
	}

	var img image.Image
	if s.format != FormatPPM {
		var err error
		if img, err = toImage(data, width, height, channels); err != nil {
			return err
		}
	} else if channels != 3 {
		return fmt.Errorf("ppm output needs 3 channels, got %d", channels)
	}

	filename := fmt.Sprintf("frame_%06d_%s.%s",
		n,
		s.now().Format("20060102_150405.000"),
		s.format)
	path := filepath.Join(s.outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	switch s.format {
	case FormatPNG:
		err = png.Encode(file, img)
	case FormatJPEG:
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: s.jpegQuality})
	case FormatPPM:
		err = writePPM(file, data, width, height)
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("%s encode failed: %w", s.format, err)
	}
	return nil
}

// toImage wraps raw gray, RGB or RGBA pixels in an image.Image.
// RGB is expanded to RGBA with alpha 255.
func toImage(data []byte, width, height, channels int) (image.Image, error) {
	rect := image.Rect(0, 0, width, height)
	switch channels {
	case 1:
		img := image.NewGray(rect)
		copy(img.Pix, data)
		return img, nil
	case 3:
		img := image.NewRGBA(rect)
		for i := 0; i < width*height; i++ {
			img.Pix[i*4+0] = data[i*3+0] // R
			img.Pix[i*4+1] = data[i*3+1] // G
			img.Pix[i*4+2] = data[i*3+2] // B
			img.Pix[i*4+3] = 255         // A (opaque)
		}
		return img, nil
	case 4:
		img := image.NewRGBA(rect)
		copy(img.Pix, data)
		return img, nil
	default:
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
}

func writePPM(f *os.File, data []byte, width, height int) error {
	w := bufio.NewWriter(f)
	if _, err := fmt.Fprintf(w, "P6\n%d %d\n255\n", width, height); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.Flush()
}

// Stats returns current save statistics.
func (s *Saver) Stats() (saved, dropped uint64) {
	return s.framesSaved.Load(), s.framesDropped.Load()
}

// Dir returns the output directory.
func (s *Saver) Dir() string {
	return s.outputDir
}
