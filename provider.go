package videopipe

import (
	"context"
	"time"
)

// FrameSource defines the consumer-facing contract of a frame pipe
//
// Implementations must guarantee:
//   - Open() returns immediately; frames arrive asynchronously
//   - Close() is idempotent (safe to call multiple times)
//   - Update() delivers a given frame at most once
//   - Stats() is thread-safe (can be called from any goroutine)
//   - SetFrameRate() takes effect without reopening
type FrameSource interface {
	// Open starts ingesting from the FIFO at path.
	//
	// The FIFO does not need a writer yet (or even to exist): the background
	// loop keeps probing until one shows up.
	//
	// Returns an error if:
	//   - path is empty
	//   - the source is already open
	Open(path string) error

	// Close stops ingestion and releases the FIFO. The last delivered frame
	// stays in the sink.
	Close() error

	// Update delivers the newest frame to the sink if one arrived since the
	// previous call. Returns true when the sink changed.
	Update() bool

	// IsFrameNew reports whether the last Update delivered a frame.
	IsFrameNew() bool

	// Width and Height of the frame last delivered by Update.
	Width() int
	Height() int

	// SetFrameRate throttles the ingestion loop. 0 disables pacing.
	SetFrameRate(rate float64) error

	// Stats returns current pipeline statistics.
	Stats() Stats

	// Warmup observes frame arrivals for duration and reports their regularity.
	//
	// Example:
	//   stats, err := src.Warmup(ctx, 5*time.Second)
	//   if errors.Is(err, videopipe.ErrUnstable) {
	//       log.Printf("writer is jittery: %.2f fps ± %.2f", stats.FPSMean, stats.FPSStdDev)
	//   }
	Warmup(ctx context.Context, duration time.Duration) (*WarmupStats, error)
}

var _ FrameSource = (*VideoPipe)(nil)
