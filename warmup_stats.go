package videopipe

import (
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/warmup"
)

// CalculateFPSStats calculates FPS statistics from frame timestamps
//
// Stability threshold:
//   - FPS: stddev < 15% of mean FPS
//   - Jitter: mean jitter < 20% of expected interval
//
// Useful for evaluating arrival times recorded outside Warmup, e.g. from
// Frame.Timestamp values collected by the consumer.
func CalculateFPSStats(frameTimes []time.Time, totalDuration time.Duration) *WarmupStats {
	return warmup.CalculateFPSStats(frameTimes, totalDuration)
}
