package videopipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/fifo"
	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/framebuf"
	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/ingest"
	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/pacer"
	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/warmup"
)

var (
	// ErrNotOpen is returned by operations that need a running pipe.
	ErrNotOpen = errors.New("video-pipe: not open")
	// ErrUnstable is returned by Warmup together with its stats when frame
	// arrivals are too irregular.
	ErrUnstable = errors.New("video-pipe: frame rate unstable")
)

// VideoPipe implements FrameSource on top of a named pipe.
type VideoPipe struct {
	cfg    options
	buffer *framebuf.Buffer
	pacer  *pacer.Pacer

	// Lifecycle (Open/Close)
	mu     sync.Mutex
	pipe   *fifo.Pipe
	reader *ingest.Reader
	driver *ingest.Driver

	// Consumer-side state (Update)
	consumerMu sync.Mutex
	sink       ImageSink
	width      int
	height     int
	frameNew   bool
	current    *Frame

	listenersMu sync.RWMutex
	listeners   []func(SizeChange)
}

// New creates a closed VideoPipe with fail-fast option validation.
//
// Defaults: PixelBuffer sink, pacing disabled, 1s probe timeout, 256 MiB
// payload limit, 100ms→5s reopen backoff.
func New(opts ...Option) (*VideoPipe, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	p := pacer.New()
	if err := p.Configure(cfg.frameRate); err != nil {
		return nil, fmt.Errorf("video-pipe: %w", err)
	}

	v := &VideoPipe{
		cfg:    cfg,
		buffer: framebuf.New(),
		pacer:  p,
		sink:   cfg.sink,
	}

	slog.Info("video-pipe: created",
		"target_fps", cfg.frameRate,
		"probe_timeout", cfg.probeTimeout,
		"max_payload_bytes", cfg.maxPayload,
	)
	return v, nil
}

// Open starts the ingestion loop on the FIFO at path and returns immediately.
func (v *VideoPipe) Open(path string) error {
	if path == "" {
		return fmt.Errorf("video-pipe: %w", fifo.ErrNotConfigured)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.driver != nil {
		return fmt.Errorf("video-pipe: already open on %s", v.pipe.Path())
	}

	warnIfNotFIFO(path)

	v.buffer.Reset()
	pipe := fifo.New(path,
		fifo.WithProbeTimeout(v.cfg.probeTimeout),
		fifo.WithMaxLineLength(v.cfg.maxLineLength),
	)
	reader := ingest.NewReader(pipe, v.buffer, ingest.WithMaxPayload(v.cfg.maxPayload))
	driver := ingest.NewDriver(reader, v.pacer, ingest.WithReconnect(v.cfg.reconnect))

	if err := driver.Start(context.Background()); err != nil {
		return fmt.Errorf("video-pipe: %w", err)
	}

	v.pipe = pipe
	v.reader = reader
	v.driver = driver

	slog.Info("video-pipe: opened", "path", path)
	return nil
}

// Close stops the ingestion loop and releases the FIFO. Idempotent.
func (v *VideoPipe) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.driver == nil {
		return nil
	}

	err := v.driver.Stop()
	v.buffer.Close()
	v.driver = nil

	slog.Info("video-pipe: closed", "path", v.pipe.Path())
	return err
}

// Update copies the newest frame into the sink if one arrived since the
// previous call and fires size-change listeners when the resolution differs
// from the previously delivered frame.
//
// Listeners run synchronously on the calling goroutine after internal locks
// are released.
func (v *VideoPipe) Update() bool {
	v.consumerMu.Lock()
	v.frameNew = false

	f, ok := v.buffer.ConsumeIfNew()
	if !ok {
		v.consumerMu.Unlock()
		return false
	}

	if err := v.sink.SetFromPixels(f.Data, f.Width(), f.Height(), f.Channels()); err != nil {
		v.consumerMu.Unlock()
		slog.Warn("video-pipe: sink rejected frame",
			"error", err,
			"seq", f.Seq,
			"trace_id", f.TraceID,
		)
		return false
	}

	change := SizeChange{
		Width:      f.Width(),
		Height:     f.Height(),
		PrevWidth:  v.width,
		PrevHeight: v.height,
	}
	v.width, v.height = f.Width(), f.Height()
	v.current = f
	v.frameNew = true
	v.consumerMu.Unlock()

	if (change.Width != change.PrevWidth || change.Height != change.PrevHeight) &&
		change.Width > 0 && change.Height > 0 {
		slog.Info("video-pipe: frame size changed",
			"width", change.Width,
			"height", change.Height,
			"prev_width", change.PrevWidth,
			"prev_height", change.PrevHeight,
		)
		v.notifySizeChanged(change)
	}
	return true
}

// IsFrameNew reports whether the last Update delivered a frame.
func (v *VideoPipe) IsFrameNew() bool {
	v.consumerMu.Lock()
	defer v.consumerMu.Unlock()
	return v.frameNew
}

// Width of the frame last delivered by Update (0 before the first frame).
func (v *VideoPipe) Width() int {
	v.consumerMu.Lock()
	defer v.consumerMu.Unlock()
	return v.width
}

// Height of the frame last delivered by Update (0 before the first frame).
func (v *VideoPipe) Height() int {
	v.consumerMu.Lock()
	defer v.consumerMu.Unlock()
	return v.height
}

// Latest returns the frame last delivered by Update.
func (v *VideoPipe) Latest() (*Frame, bool) {
	v.consumerMu.Lock()
	defer v.consumerMu.Unlock()
	return v.current, v.current != nil
}

// Sink returns the sink frames are delivered to.
func (v *VideoPipe) Sink() ImageSink {
	return v.sink
}

// SetFrameRate changes the ingestion rate without reopening. 0 disables pacing.
func (v *VideoPipe) SetFrameRate(rate float64) error {
	old := v.pacer.Rate()
	if err := v.pacer.Configure(rate); err != nil {
		return fmt.Errorf("video-pipe: %w", err)
	}
	slog.Info("video-pipe: frame rate updated",
		"old_fps", old,
		"new_fps", rate,
		"millis_per_frame", v.pacer.MillisPerFrame(),
	)
	return nil
}

// OnSizeChanged registers a listener for resolution changes.
func (v *VideoPipe) OnSizeChanged(fn func(SizeChange)) {
	if fn == nil {
		return
	}
	v.listenersMu.Lock()
	v.listeners = append(v.listeners, fn)
	v.listenersMu.Unlock()
}

func (v *VideoPipe) notifySizeChanged(change SizeChange) {
	v.listenersMu.RLock()
	listeners := slices.Clone(v.listeners)
	v.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(change)
	}
}

// Running reports whether the ingestion loop is active.
func (v *VideoPipe) Running() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.driver != nil && v.driver.Running()
}

// Stats returns current pipeline statistics
//
// Thread-safe. Counters survive Close. Decode and error counters restart on
// the next Open; consumed/overwritten counters are cumulative.
func (v *VideoPipe) Stats() Stats {
	v.mu.Lock()
	reader, driver, pipe := v.reader, v.driver, v.pipe
	v.mu.Unlock()
	running := driver != nil

	stats := Stats{
		IsRunning: running,
		FPSTarget: v.pacer.Rate(),
		LatencyMS: -1,
	}

	buf := v.buffer.Stats()
	stats.FramesConsumed = buf.Consumed
	stats.FramesOverwritten = buf.Overwritten
	if buf.Stored > 0 {
		stats.DropRate = float64(buf.Overwritten) / float64(buf.Stored) * 100
	}

	if pipe != nil {
		stats.Path = pipe.Path()
	}
	if reader == nil {
		return stats
	}

	rs := reader.Stats()
	stats.IsConnected = rs.Connected && running
	stats.FramesDecoded = rs.FramesDecoded
	stats.BytesRead = rs.BytesRead
	stats.ErrorsConnection = rs.ErrorsConnection
	stats.ErrorsParse = rs.ErrorsParse
	stats.ErrorsStream = rs.ErrorsStream
	stats.Reopens = rs.Reopens
	stats.Width = rs.LastWidth
	stats.Height = rs.LastHeight

	if running {
		stats.Uptime = driver.Uptime()
		if secs := stats.Uptime.Seconds(); secs > 0 {
			stats.FPSReal = float64(rs.FramesDecoded) / secs
		}
	}
	if !rs.LastFrameAt.IsZero() {
		stats.LatencyMS = time.Since(rs.LastFrameAt).Milliseconds()
	}
	return stats
}

// Warmup observes frame arrivals for duration without consuming them.
//
// Returns the statistics and ErrUnstable when arrivals are irregular (FPS
// stddev ≥ 15% of mean or jitter ≥ 20% of the interval); the stats are
// still returned so the caller can decide. Fails if the pipe is not open,
// fewer than two frames arrive, or ctx is cancelled.
func (v *VideoPipe) Warmup(ctx context.Context, duration time.Duration) (*WarmupStats, error) {
	if !v.Running() {
		return nil, ErrNotOpen
	}

	stats, err := warmup.Collect(ctx, v.buffer, duration)
	if err != nil {
		return nil, fmt.Errorf("video-pipe: warmup: %w", err)
	}
	if !stats.IsStable {
		return stats, fmt.Errorf("%w (mean=%.2f Hz, stddev=%.2f, threshold=15%%)",
			ErrUnstable, stats.FPSMean, stats.FPSStdDev)
	}
	return stats, nil
}

// warnIfNotFIFO logs early hints for common misconfigurations. Neither case
// is fatal: the FIFO may be created later, and regular files are readable.
func warnIfNotFIFO(path string) {
	info, err := os.Stat(path)
	switch {
	case err != nil:
		slog.Warn("video-pipe: FIFO not present yet, will keep retrying",
			"path", path,
			"error", err,
		)
	case info.Mode()&os.ModeNamedPipe == 0:
		slog.Warn("video-pipe: path is not a named pipe",
			"path", path,
			"mode", info.Mode().String(),
		)
	}
}
