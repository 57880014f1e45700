package main

import (
	"fmt"
	"time"

	videopipe "github.com/e7canasta/orion-care-sensor/modules/video-pipe"
	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/emitter"
	"github.com/e7canasta/orion-care-sensor/modules/video-pipe/internal/snapshot"
)

func printBanner(cfg *config.Config, maxFrames int) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║            Pipe Capture - Orion Video Pipe               ║\n")
	fmt.Printf("║                      Version %s                        ║\n", version)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  FIFO Path:     %s\n", cfg.Pipe.Path)
	if cfg.Pipe.FrameRate > 0 {
		fmt.Printf("  Target FPS:    %.2f\n", cfg.Pipe.FrameRate)
	} else {
		fmt.Printf("  Target FPS:    unpaced\n")
	}
	fmt.Printf("  Update Rate:   %.2f /s\n", cfg.Display.UpdateRate)
	fmt.Printf("  Probe Timeout: %s\n", cfg.Pipe.ProbeTimeout)
	if cfg.Snapshot.Dir != "" {
		fmt.Printf("  Output Dir:    %s (%s, every %d)\n", cfg.Snapshot.Dir, cfg.Snapshot.Format, cfg.Snapshot.Every)
	} else {
		fmt.Printf("  Output Dir:    (none - frames not saved)\n")
	}
	if cfg.Health.Addr != "" {
		fmt.Printf("  Health:        %s (/health, /readiness, /metrics)\n", cfg.Health.Addr)
	}
	if cfg.MQTT.Broker != "" {
		fmt.Printf("  MQTT:          %s → %s/{size,stats}\n", cfg.MQTT.Broker, cfg.MQTT.TopicPrefix)
	}
	if maxFrames > 0 {
		fmt.Printf("  Max Frames:    %d\n", maxFrames)
	} else {
		fmt.Printf("  Max Frames:    unlimited\n")
	}
	fmt.Printf("\n")
}

func printWarmup(warmupStats *videopipe.WarmupStats) {
	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ Warmup Complete\n")
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ Frames Received:    %6d frames\n", warmupStats.FramesReceived)
	if warmupStats.FramesMissed > 0 {
		fmt.Printf("│ Frames Missed:      %6d frames\n", warmupStats.FramesMissed)
	}
	fmt.Printf("│ Duration:           %6.1f seconds\n", warmupStats.Duration.Seconds())
	fmt.Printf("│ FPS Mean:           %6.2f fps\n", warmupStats.FPSMean)
	fmt.Printf("│ FPS StdDev:         %6.2f fps\n", warmupStats.FPSStdDev)
	fmt.Printf("│ FPS Range:          %6.1f - %.1f fps\n", warmupStats.FPSMin, warmupStats.FPSMax)
	fmt.Printf("│ Jitter Mean:        %6.3f s\n", warmupStats.JitterMean)
	fmt.Printf("│ Jitter Max:         %6.3f s\n", warmupStats.JitterMax)
	fmt.Printf("│ Stable:             %6v\n", warmupStats.IsStable)
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
}

func printStats(stats videopipe.Stats, saver *snapshot.Saver, events *emitter.MQTTEmitter, uptime time.Duration) {
	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ Pipe Statistics (Uptime: %s)\n", uptime.Round(time.Second))
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ Frames Decoded:     %6d frames\n", stats.FramesDecoded)
	fmt.Printf("│ Frames Delivered:   %6d frames\n", stats.FramesConsumed)
	if stats.FramesOverwritten > 0 {
		fmt.Printf("│ Overwritten:        %6d frames (%.1f%%)\n", stats.FramesOverwritten, stats.DropRate)
	}
	if saver != nil {
		saved, dropped := saver.Stats()
		fmt.Printf("│ Frames Saved:       %6d frames (%d failed)\n", saved, dropped)
	}
	fmt.Printf("│ Resolution:         %4dx%d\n", stats.Width, stats.Height)
	fmt.Printf("│ Target FPS:         %6.2f fps\n", stats.FPSTarget)
	fmt.Printf("│ Real FPS:           %6.2f fps\n", stats.FPSReal)
	fmt.Printf("│ Latency:            %6d ms\n", stats.LatencyMS)
	fmt.Printf("│ Bytes Read:         %6.2f MB\n", float64(stats.BytesRead)/1024/1024)
	fmt.Printf("│ Reopens:            %6d\n", stats.Reopens)
	fmt.Printf("│ Connected:          %6v\n", stats.IsConnected)
	// Show error telemetry if any errors occurred
	if stats.ErrorsConnection+stats.ErrorsParse+stats.ErrorsStream > 0 {
		fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
		fmt.Printf("│ Error Telemetry\n")
		fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
		fmt.Printf("│ Connection Errors:  %6d\n", stats.ErrorsConnection)
		fmt.Printf("│ Parse Errors:       %6d\n", stats.ErrorsParse)
		fmt.Printf("│ Stream Errors:      %6d\n", stats.ErrorsStream)
	}
	if events != nil {
		es := events.Stats()
		fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
		fmt.Printf("│ MQTT Connected:     %6v\n", es.Connected)
		fmt.Printf("│ Size Events:        %6d\n", es.Published[events.Topic(emitter.TopicSize)])
		fmt.Printf("│ Stats Events:       %6d\n", es.Published[events.Topic(emitter.TopicStats)])
		fmt.Printf("│ Publish Errors:     %6d\n", es.Errors)
	}
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
	fmt.Printf("\n")
}

func printFinal(stats videopipe.Stats, saver *snapshot.Saver, delivered int, uptime time.Duration) {
	fmt.Printf("\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("                     Final Statistics                      \n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("  Total Uptime:       %s\n", uptime.Round(time.Second))
	fmt.Printf("  Frames Decoded:     %d frames\n", stats.FramesDecoded)
	fmt.Printf("  Frames Delivered:   %d frames\n", delivered)
	fmt.Printf("  Frames Overwritten: %d frames\n", stats.FramesOverwritten)
	if saver != nil {
		saved, dropped := saver.Stats()
		fmt.Printf("  Frames Saved:       %d frames\n", saved)
		fmt.Printf("  Save Failures:      %d frames\n", dropped)
	}
	fmt.Printf("  Bytes Read:         %.2f MB\n", float64(stats.BytesRead)/1024/1024)
	fmt.Printf("  Reopen Count:       %d\n", stats.Reopens)
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("\n")
}
