package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/pacer"
)

// stopWarnAfter is how long Stop waits before warning that the loop is slow to exit.
const stopWarnAfter = 3 * time.Second

// Driver runs the ingestion loop: ReadFrame, then Tick, until stopped.
//
// States: Stopped → (Start) → Running → (Stop) → Stopped. Data errors never
// end the loop; only Stop (or cancellation of the context passed to Start) does.
type Driver struct {
	reader       *Reader
	pacer        *pacer.Pacer
	reconnectCfg ReconnectConfig

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started time.Time

	// retries is owned by the loop goroutine.
	retries int
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithReconnect sets the open-failure backoff.
func WithReconnect(cfg ReconnectConfig) DriverOption {
	return func(d *Driver) {
		if cfg.RetryDelay > 0 {
			d.reconnectCfg.RetryDelay = cfg.RetryDelay
		}
		if cfg.MaxRetryDelay > 0 {
			d.reconnectCfg.MaxRetryDelay = cfg.MaxRetryDelay
		}
	}
}

// NewDriver creates a stopped driver.
func NewDriver(reader *Reader, p *pacer.Pacer, opts ...DriverOption) *Driver {
	d := &Driver{
		reader:       reader,
		pacer:        p,
		reconnectCfg: DefaultReconnectConfig(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the loop in a background goroutine and returns immediately.
//
// Returns an error if the driver is already running.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		return fmt.Errorf("ingest: driver already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.started = time.Now()
	d.retries = 0
	d.pacer.Reset()

	d.wg.Add(1)
	go d.run(loopCtx)

	slog.Info("ingest: driver started",
		"target_fps", d.pacer.Rate(),
		"millis_per_frame", d.pacer.MillisPerFrame(),
	)
	return nil
}

// Stop cancels the loop, closes the source to interrupt a blocked read and
// waits until the goroutine has exited. Idempotent.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel == nil {
		slog.Debug("ingest: driver not running, nothing to stop")
		return nil
	}

	slog.Info("ingest: stopping driver")

	d.cancel()
	d.reader.Interrupt()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(stopWarnAfter):
		slog.Warn("ingest: loop slow to exit, still waiting", "waited", stopWarnAfter)
		<-done
	}

	// A descriptor published between cancel and exit is released here.
	d.reader.Interrupt()

	stats := d.reader.Stats()
	slog.Info("ingest: driver stopped",
		"frames_decoded", stats.FramesDecoded,
		"reopens", stats.Reopens,
		"uptime", time.Since(d.started),
	)

	d.cancel = nil
	return nil
}

// Running reports whether the loop is active.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancel != nil
}

// Uptime returns how long the current run has lasted (0 when stopped).
func (d *Driver) Uptime() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel == nil {
		return 0
	}
	return time.Since(d.started)
}

func (d *Driver) run(ctx context.Context) {
	defer d.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		err := d.reader.ReadFrame(ctx)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			d.logFailure(err)
			if needsBackoff(err) {
				d.retries++
				delay := calculateBackoff(d.retries, d.reconnectCfg)
				slog.Debug("ingest: retrying open after backoff",
					"attempt", d.retries,
					"delay", delay,
				)
				if waitBackoff(ctx, delay) != nil {
					return
				}
			}
		}
		if err == nil || Classify(err) != CategoryConnection {
			d.retries = 0
		}

		if err := d.pacer.Tick(ctx); err != nil {
			return
		}
	}
}

func (d *Driver) logFailure(err error) {
	category := Classify(err)
	switch {
	case errors.Is(err, context.Canceled):
		return
	case category == CategoryConnection && !needsBackoff(err):
		// Probe timeouts repeat every second while no writer is attached.
		slog.Debug("ingest: FIFO not ready", "error", err)
	case category == CategoryStream:
		slog.Info("ingest: stream interrupted, will reopen",
			"error", err,
			"category", category.String(),
		)
	default:
		slog.Warn("ingest: frame read failed",
			"error", err,
			"category", category.String(),
			"retries", d.retries,
		)
	}
}
