package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	videopipe "github.com/e7canasta/orion-care-sensor/modules/video-pipe"
	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/emitter"
	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/health"
	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/metrics"
	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/snapshot"
)

// Version information
const version = "v0.1.0"

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "YAML config file (optional, VIDEOPIPE_* env vars override it)")
	pipePath := flag.String("path", "", "FIFO path (required unless set in config)")
	fps := flag.Float64("fps", 0, "Ingestion rate in frames per second (0 = unpaced)")
	updateRate := flag.Float64("update-rate", 0, "Consumer Update() calls per second (default 30)")
	outputDir := flag.String("output", "", "Directory to save delivered frames (optional)")
	outputFormat := flag.String("format", "", "Output format: png, jpeg, ppm (default png)")
	jpegQuality := flag.Int("jpeg-quality", 0, "JPEG quality (1-100, only for jpeg format)")
	every := flag.Int("every", 0, "Save one delivered frame out of every N")
	maxFrames := flag.Int("max-frames", 0, "Maximum frames to deliver (0 = unlimited)")
	statsInterval := flag.Int("stats-interval", 10, "Seconds between stats reports")
	healthAddr := flag.String("health-addr", "", "Health/metrics HTTP address, e.g. :8080 (optional)")
	mqttBroker := flag.String("mqtt-broker", "", "MQTT broker host:port for events (optional)")
	warmupDuration := flag.Duration("warmup", 5*time.Second, "Warmup duration")
	skipWarmup := flag.Bool("skip-warmup", false, "Skip FPS stability warmup")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	// Show version
	if *showVersion {
		fmt.Printf("pipe-capture %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Explicit flags win over file and environment
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "path":
			cfg.Pipe.Path = *pipePath
		case "fps":
			cfg.Pipe.FrameRate = *fps
		case "update-rate":
			cfg.Display.UpdateRate = *updateRate
		case "output":
			cfg.Snapshot.Dir = *outputDir
		case "format":
			cfg.Snapshot.Format = *outputFormat
		case "jpeg-quality":
			cfg.Snapshot.JPEGQuality = *jpegQuality
		case "every":
			cfg.Snapshot.Every = *every
		case "health-addr":
			cfg.Health.Addr = *healthAddr
		case "mqtt-broker":
			cfg.MQTT.Broker = *mqttBroker
		case "debug":
			if *debug {
				cfg.Log.Level = "debug"
			}
		}
	})
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Validate required settings
	if cfg.Pipe.Path == "" {
		fmt.Fprintf(os.Stderr, "Error: --path flag (or pipe.path / VIDEOPIPE_PIPE_PATH) is required\n\n")
		fmt.Fprintf(os.Stderr, "Usage example:\n")
		fmt.Fprintf(os.Stderr, "  mkfifo /tmp/video.fifo\n")
		fmt.Fprintf(os.Stderr, "  pipe-capture --path /tmp/video.fifo\n")
		fmt.Fprintf(os.Stderr, "  pipe-capture --path /tmp/video.fifo --fps 10 --output ./frames --every 30\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	setupLogging(cfg.Log)
	printBanner(cfg, *maxFrames)

	// Sink: in-memory pixels, plus disk snapshots when requested
	pixels := videopipe.NewPixelBuffer()
	var sink videopipe.ImageSink = pixels
	var saver *snapshot.Saver
	if cfg.Snapshot.Dir != "" {
		saver, err = snapshot.NewSaver(cfg.Snapshot.Dir, cfg.Snapshot.Format, cfg.Snapshot.Every, cfg.Snapshot.JPEGQuality)
		if err != nil {
			log.Fatalf("Failed to create snapshot saver: %v", err)
		}
		sink = videopipe.MultiSink(pixels, bestEffort(saver))
		slog.Info("Frame saving enabled",
			"directory", cfg.Snapshot.Dir,
			"format", cfg.Snapshot.Format,
			"every", cfg.Snapshot.Every,
		)
	}

	vp, err := videopipe.New(
		videopipe.WithSink(sink),
		videopipe.WithFrameRate(cfg.Pipe.FrameRate),
		videopipe.WithProbeTimeout(cfg.Pipe.ProbeTimeout),
		videopipe.WithMaxPayload(cfg.Pipe.MaxPayloadBytes),
		videopipe.WithReconnect(cfg.Pipe.Reconnect.InitialDelay, cfg.Pipe.Reconnect.MaxDelay),
	)
	if err != nil {
		log.Fatalf("Failed to create video pipe: %v", err)
	}

	// Ctrl+C / SIGTERM cancel ctx, including during warmup
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional MQTT event emitter
	var events *emitter.MQTTEmitter
	if cfg.MQTT.Broker != "" {
		events = emitter.NewMQTTEmitter(emitter.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QOS,
		})
		if err := events.Connect(ctx); err != nil {
			slog.Warn("MQTT not connected yet, events will resume after reconnect", "error", err)
		}
	}

	vp.OnSizeChanged(func(c videopipe.SizeChange) {
		fmt.Printf("\n→ Frame size changed: %dx%d (was %dx%d)\n\n", c.Width, c.Height, c.PrevWidth, c.PrevHeight)
		if events == nil {
			return
		}
		err := events.PublishSizeChanged(emitter.SizeChangedEvent{
			Path:       cfg.Pipe.Path,
			Width:      c.Width,
			Height:     c.Height,
			PrevWidth:  c.PrevWidth,
			PrevHeight: c.PrevHeight,
		})
		if err != nil {
			slog.Warn("Failed to publish size change", "error", err)
		}
	})

	// Prometheus collectors and health endpoints
	metrics.New(prometheus.DefaultRegisterer, func() metrics.Snapshot {
		return toSnapshot(vp.Stats())
	})

	var healthServer *health.Server
	if cfg.Health.Addr != "" {
		healthServer = health.New(cfg.Health.Addr, func() health.Probe {
			return toProbe(vp.Stats(), events)
		})
		if err := healthServer.Start(); err != nil {
			log.Fatalf("Failed to start health server: %v", err)
		}
	}

	// Open pipe (non-blocking, the writer may attach later)
	slog.Info("Opening video pipe...", "path", cfg.Pipe.Path)
	if err := vp.Open(cfg.Pipe.Path); err != nil {
		log.Fatalf("Failed to open pipe: %v", err)
	}

	// Warmup: measure FPS stability before consuming frames
	if !*skipWarmup {
		fmt.Printf("\n")
		fmt.Printf("Running warmup (%s) to measure stream stability...\n", *warmupDuration)
		warmupStats, err := vp.Warmup(ctx, *warmupDuration)
		switch {
		case warmupStats != nil:
			printWarmup(warmupStats)
			if errors.Is(err, videopipe.ErrUnstable) {
				fmt.Printf("\n⚠️  WARNING: Stream is unstable (high FPS variance or jitter)\n")
			}
		case ctx.Err() != nil:
			slog.Info("Warmup interrupted")
		case err != nil:
			slog.Warn("Warmup incomplete, continuing", "error", err)
		}
		fmt.Printf("\n")
	}

	startTime := time.Now()
	frameCount := 0
	if ctx.Err() == nil {
		fmt.Printf("Starting frame consumption at %.1f updates/s...\n", cfg.Display.UpdateRate)
		fmt.Printf("Press Ctrl+C to stop gracefully\n")
		fmt.Printf("═══════════════════════════════════════════════════════════\n\n")

		// Launch stats reporter goroutine
		interval := time.Duration(*statsInterval) * time.Second
		if interval <= 0 {
			interval = cfg.MQTT.StatsInterval
		}
		runCtx, cancel := context.WithCancel(ctx)
		go reportStats(runCtx, vp, saver, events, interval, startTime)

		frameCount = consume(ctx, vp, cfg.Display.UpdatePeriod(), *maxFrames)
		cancel()
	}

	slog.Info("Closing video pipe...")
	if err := vp.Close(); err != nil {
		slog.Error("Error closing pipe", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if healthServer != nil {
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error stopping health server", "error", err)
		}
	}
	if events != nil {
		events.Disconnect()
	}

	printFinal(vp.Stats(), saver, frameCount, time.Since(startTime))
	slog.Info("Pipe capture completed successfully")
}

// reportStats prints (and publishes) pipeline statistics every interval.
func reportStats(ctx context.Context, vp *videopipe.VideoPipe, saver *snapshot.Saver,
	events *emitter.MQTTEmitter, interval time.Duration, startTime time.Time) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := vp.Stats()
			printStats(stats, saver, events, time.Since(startTime))
			if events != nil && events.IsConnected() {
				if err := events.PublishStats(toStatsEvent(stats)); err != nil {
					slog.Warn("Failed to publish stats", "error", err)
				}
			}
		}
	}
}

// consume calls Update at the display rate until ctx is cancelled or
// maxFrames frames have been delivered. Returns the delivered count.
func consume(ctx context.Context, vp *videopipe.VideoPipe, period time.Duration, maxFrames int) int {
	updateTicker := time.NewTicker(period)
	defer updateTicker.Stop()

	frameCount := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\n\nReceived interrupt signal, shutting down...\n")
			return frameCount

		case <-updateTicker.C:
			if !vp.Update() {
				continue
			}
			frameCount++

			frame, _ := vp.Latest()
			fmt.Printf("[%s] Frame #%-6d | Seq: %-8d | %4dx%-4d | Size: %8.1f KB | Trace: %s\n",
				time.Now().Format("15:04:05"),
				frameCount,
				frame.Seq,
				frame.Width(),
				frame.Height(),
				float64(len(frame.Data))/1024,
				frame.TraceID[:8],
			)

			// Stop if max frames reached
			if maxFrames > 0 && frameCount >= maxFrames {
				fmt.Printf("\nReached maximum frames (%d), stopping...\n", maxFrames)
				return frameCount
			}
		}
	}
}

// bestEffort keeps snapshot failures from hiding frames from the consumer.
func bestEffort(saver *snapshot.Saver) videopipe.ImageSink {
	return videopipe.SinkFunc(func(data []byte, width, height, channels int) error {
		if err := saver.SetFromPixels(data, width, height, channels); err != nil {
			slog.Error("Failed to save frame", "error", err)
		}
		return nil
	})
}

func setupLogging(cfg config.LogConfig) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func toSnapshot(s videopipe.Stats) metrics.Snapshot {
	age := time.Duration(-1)
	if s.LatencyMS >= 0 {
		age = time.Duration(s.LatencyMS) * time.Millisecond
	}
	return metrics.Snapshot{
		FramesDecoded:     s.FramesDecoded,
		BytesRead:         s.BytesRead,
		ErrorsConnection:  s.ErrorsConnection,
		ErrorsParse:       s.ErrorsParse,
		ErrorsStream:      s.ErrorsStream,
		Reopens:           s.Reopens,
		FramesOverwritten: s.FramesOverwritten,
		FramesConsumed:    s.FramesConsumed,
		Connected:         s.IsConnected,
		FPS:               s.FPSReal,
		LastFrameAge:      age,
		Width:             s.Width,
		Height:            s.Height,
	}
}

func toProbe(s videopipe.Stats, events *emitter.MQTTEmitter) health.Probe {
	p := health.Probe{
		Running:       s.IsRunning,
		Connected:     s.IsConnected,
		FramesDecoded: s.FramesDecoded,
		LastFrameAge:  -1,
	}
	if s.LatencyMS >= 0 {
		p.LastFrameAge = time.Duration(s.LatencyMS) * time.Millisecond
	}
	if events != nil {
		p.MQTTEnabled = true
		p.MQTTConnected = events.IsConnected()
	}
	return p
}

func toStatsEvent(s videopipe.Stats) emitter.StatsEvent {
	return emitter.StatsEvent{
		Path:              s.Path,
		Connected:         s.IsConnected,
		FramesDecoded:     s.FramesDecoded,
		FramesConsumed:    s.FramesConsumed,
		FramesOverwritten: s.FramesOverwritten,
		ErrorsConnection:  s.ErrorsConnection,
		ErrorsParse:       s.ErrorsParse,
		ErrorsStream:      s.ErrorsStream,
		Reopens:           s.Reopens,
		FPSTarget:         s.FPSTarget,
		FPSReal:           s.FPSReal,
		LatencyMS:         s.LatencyMS,
		Width:             s.Width,
		Height:            s.Height,
		UptimeSeconds:     int64(s.Uptime.Seconds()),
	}
}
