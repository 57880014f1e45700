package warmup

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/framebuf"
	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/ppm"
)

var base = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// evenArrivals returns n arrivals spaced by interval with ±jitterFraction noise.
func evenArrivals(n int, interval time.Duration, jitterFraction float64) []time.Time {
	rng := rand.New(rand.NewSource(42))
	times := make([]time.Time, n)
	times[0] = base
	for i := 1; i < n; i++ {
		noise := (rng.Float64()*2 - 1) * jitterFraction * float64(interval)
		times[i] = times[i-1].Add(interval + time.Duration(noise))
	}
	return times
}

func TestCalculateFPSStats_Perfect(t *testing.T) {
	arrivals := evenArrivals(11, 100*time.Millisecond, 0)
	stats := CalculateFPSStats(arrivals, 1100*time.Millisecond)

	if !stats.IsStable {
		t.Fatalf("perfectly even stream reported unstable: %+v", stats)
	}
	if d := stats.FPSMean - 10; d > 0.01 || d < -0.01 {
		t.Errorf("FPSMean = %.3f, want 10", stats.FPSMean)
	}
	if stats.FPSStdDev > 0.01 || stats.JitterMax > 0.001 {
		t.Errorf("expected no spread, got stddev=%.4f jitter_max=%.4f", stats.FPSStdDev, stats.JitterMax)
	}

	t.Logf("✅ %+v", *stats)
}

func TestCalculateFPSStats_LowJitterIsStable(t *testing.T) {
	arrivals := evenArrivals(30, 100*time.Millisecond, 0.05)
	stats := CalculateFPSStats(arrivals, 3*time.Second)

	if !stats.IsStable {
		t.Errorf("5%% jitter reported unstable (stddev %.2f%%, jitter %.2f%%)",
			stats.FPSStdDev/stats.FPSMean*100,
			stats.JitterMean*stats.FPSMean*100,
		)
	}
}

func TestCalculateFPSStats_BurstyIsUnstable(t *testing.T) {
	// Frames arrive in pairs: 10ms then 190ms, averaging 10 fps.
	arrivals := make([]time.Time, 20)
	arrivals[0] = base
	for i := 1; i < len(arrivals); i++ {
		gap := 10 * time.Millisecond
		if i%2 == 0 {
			gap = 190 * time.Millisecond
		}
		arrivals[i] = arrivals[i-1].Add(gap)
	}

	stats := CalculateFPSStats(arrivals, 2*time.Second)

	if stats.IsStable {
		t.Errorf("bursty arrivals reported stable: %+v", stats)
	}
	if stats.FPSMax < 90 || stats.FPSMin > 6 {
		t.Errorf("FPS range %.1f-%.1f does not reflect bursts", stats.FPSMin, stats.FPSMax)
	}
}

func TestCalculateFPSStats_EdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		arrivals []time.Time
		window   time.Duration
	}{
		{"zero frames", nil, time.Second},
		{"one frame", []time.Time{base}, time.Second},
		{"duplicate timestamps", []time.Time{base, base, base}, time.Second},
		{"zero window", []time.Time{base, base.Add(time.Second)}, 0},
		{"two frames", []time.Time{base, base.Add(time.Second)}, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := CalculateFPSStats(tt.arrivals, tt.window)
			if stats == nil {
				t.Fatal("CalculateFPSStats returned nil")
			}
			if stats.IsStable {
				t.Errorf("expected unstable for %s, got %+v", tt.name, stats)
			}
			if stats.FPSStdDev < 0 || stats.JitterMean < 0 || stats.JitterMax < stats.JitterMean {
				t.Errorf("invariant violated: %+v", stats)
			}
		})
	}
}

// TestCollect_ObservesWithoutConsuming feeds frames every 20ms and checks
// that warmup measures them while the consumer still gets the latest one.
func TestCollect_ObservesWithoutConsuming(t *testing.T) {
	buf := framebuf.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for seq := uint64(1); ; seq++ {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				buf.Store(&framebuf.Frame{
					Header:    ppm.Header{Format: ppm.Magic, Width: 1, Height: 1, Channels: ppm.Channels},
					Data:      []byte{0, 0, 0},
					Seq:       seq,
					Timestamp: now,
				})
			}
		}
	}()

	stats, err := Collect(ctx, buf, 300*time.Millisecond)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if stats.FramesReceived < 5 {
		t.Errorf("FramesReceived = %d, want >= 5", stats.FramesReceived)
	}
	if stats.FPSMean < 15 || stats.FPSMean > 80 {
		t.Errorf("FPSMean = %.1f, want about 50", stats.FPSMean)
	}
	if !buf.HasNewFrame() {
		t.Error("warmup consumed frames from the buffer")
	}

	t.Logf("✅ frames=%d fps=%.1f stable=%v", stats.FramesReceived, stats.FPSMean, stats.IsStable)
}

// TestCollect_CountsSequenceGaps stores a burst between observations and
// checks that every stored frame is either observed or counted as missed.
func TestCollect_CountsSequenceGaps(t *testing.T) {
	buf := framebuf.New()
	store := func(seq uint64) {
		buf.Store(&framebuf.Frame{
			Header:    ppm.Header{Format: ppm.Magic, Width: 1, Height: 1, Channels: ppm.Channels},
			Data:      []byte{0, 0, 0},
			Seq:       seq,
			Timestamp: time.Now(),
		})
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		store(1)
		time.Sleep(30 * time.Millisecond)
		for seq := uint64(2); seq <= 6; seq++ {
			store(seq)
		}
		time.Sleep(30 * time.Millisecond)
		store(7)
	}()

	stats, err := Collect(context.Background(), buf, 300*time.Millisecond)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got := stats.FramesReceived + stats.FramesMissed; got != 7 {
		t.Errorf("received %d + missed %d = %d, want 7",
			stats.FramesReceived, stats.FramesMissed, got)
	}

	t.Logf("✅ received=%d missed=%d", stats.FramesReceived, stats.FramesMissed)
}

func TestCollect_NotEnoughFrames(t *testing.T) {
	buf := framebuf.New()

	_, err := Collect(context.Background(), buf, 50*time.Millisecond)
	if !errors.Is(err, ErrNotEnoughFrames) {
		t.Errorf("err = %v, want ErrNotEnoughFrames", err)
	}
}

func TestCollect_Cancelled(t *testing.T) {
	buf := framebuf.New()
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := Collect(ctx, buf, 5*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func BenchmarkCalculateFPSStats(b *testing.B) {
	arrivals := evenArrivals(100, time.Second, 0.1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = CalculateFPSStats(arrivals, 100*time.Second)
	}
}
