package warmup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/framebuf"
)

// ErrNotEnoughFrames is returned when fewer than two frames arrived.
var ErrNotEnoughFrames = errors.New("warmup: not enough frames")

// Collect observes buf for the given duration and returns arrival statistics.
//
// Frames are observed with WaitStored, so the consumer still receives them.
// Frames stored faster than this goroutine wakes up show up as gaps in the
// sequence numbers. They are reported in FramesMissed and contribute no
// timestamps.
func Collect(ctx context.Context, buf *framebuf.Buffer, duration time.Duration) (*Stats, error) {
	slog.Info("warmup: starting",
		"duration", duration,
		"reason", "measure real FPS and verify stability",
	)

	start := time.Now()
	windowCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	var lastSeq uint64
	if f, ok := buf.Latest(); ok {
		lastSeq = f.Seq
	}

	arrivals := make([]time.Time, 0, 128)
	missed := 0
	for {
		f, err := buf.WaitStored(windowCtx, lastSeq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			break
		}
		if f.Seq > lastSeq+1 {
			missed += int(f.Seq - lastSeq - 1)
		}
		lastSeq = f.Seq
		arrivals = append(arrivals, f.Timestamp)
		slog.Debug("warmup: frame observed",
			"seq", f.Seq,
			"frames_collected", len(arrivals),
		)
	}

	if len(arrivals) < 2 {
		return nil, fmt.Errorf("%w: got %d, need at least 2", ErrNotEnoughFrames, len(arrivals))
	}

	stats := CalculateFPSStats(arrivals, time.Since(start))
	stats.FramesMissed = missed

	slog.Info("warmup: complete",
		"frames", stats.FramesReceived,
		"missed", stats.FramesMissed,
		"duration", stats.Duration,
		"fps_mean", fmt.Sprintf("%.2f", stats.FPSMean),
		"fps_stddev", fmt.Sprintf("%.2f", stats.FPSStdDev),
		"fps_range", fmt.Sprintf("%.1f-%.1f", stats.FPSMin, stats.FPSMax),
		"stable", stats.IsStable,
	)
	return stats, nil
}
