package main

import (
	"context"
	"fmt"
	"time"

	videoplayer "github.com/HenryThomas9587/media-demo"
	"github.com/HenryThomas9587/media-demo/internal/render"
)

// reportStats periodically prints decoder and renderer statistics
func reportStats(ctx context.Context, interval time.Duration, controller *videoplayer.PlaybackController, pipeline *render.Pipeline) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	startTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			printLiveStats(time.Since(startTime), controller.Stats(), pipeline.Stats())
		}
	}
}

// printLiveStats prints current statistics from both sides of the mailbox
func printLiveStats(uptime time.Duration, dec videoplayer.DecoderStats, rnd render.Stats) {
	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ Playback Statistics (Uptime: %s)\n", uptime.Round(time.Second))
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ State:              %s\n", dec.State)
	fmt.Printf("│ Backend:            %s\n", dec.Backend)
	fmt.Printf("│ Resolution:         %s\n", dec.Resolution)
	fmt.Printf("│ Frames Decoded:     %6d frames\n", dec.FramesDecoded)
	fmt.Printf("│ Target FPS:         %6.2f fps\n", dec.FPSTarget)
	fmt.Printf("│ Real FPS:           %6.2f fps\n", dec.FPSReal)
	fmt.Printf("│ Latency:            %6d ms\n", dec.LatencyMS)
	fmt.Printf("│ Bytes Copied:       %6.2f MB\n", float64(dec.BytesCopied)/1024/1024)
	fmt.Printf("│ Buffers:            %6d allocated, %d reused\n", dec.BufferAllocs, dec.BufferReuses)

	// Cadence over the recent window
	if dec.Cadence.Frames > 1 {
		fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
		fmt.Printf("│ Cadence (last %d frames)\n", dec.Cadence.Frames)
		fmt.Printf("│ FPS Mean:           %6.2f fps\n", dec.Cadence.FPSMean)
		fmt.Printf("│ FPS StdDev:         %6.2f fps\n", dec.Cadence.FPSStdDev)
		fmt.Printf("│ Jitter Max:         %6.3f s\n", dec.Cadence.JitterMax)
		fmt.Printf("│ Stable:             %6v\n", dec.Cadence.IsStable)
	}

	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ Draws:              %6d (%d redraws, %d throttled)\n", rnd.Draws, rnd.Redraws, rnd.Throttled)
	fmt.Printf("│ Uploads:            %6d\n", rnd.Uploads)
	fmt.Printf("│ Frames Dropped:     %6d\n", rnd.FramesDropped)
	fmt.Printf("│ Reallocations:      %6d\n", rnd.Reallocations)
	if rnd.SurfaceLosses > 0 {
		fmt.Printf("│ Surface Losses:     %6d\n", rnd.SurfaceLosses)
	}

	// Show error telemetry if any errors occurred
	totalErrors := dec.ErrorsNetwork + dec.ErrorsCodec + dec.ErrorsResource + dec.ErrorsAuth + dec.ErrorsUnknown
	if totalErrors > 0 {
		fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
		fmt.Printf("│ Error Telemetry\n")
		fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
		fmt.Printf("│ Codec Errors:       %6d\n", dec.ErrorsCodec)
		fmt.Printf("│ Resource Errors:    %6d\n", dec.ErrorsResource)
		fmt.Printf("│ Network Errors:     %6d\n", dec.ErrorsNetwork)
		fmt.Printf("│ Auth Errors:        %6d\n", dec.ErrorsAuth)
		fmt.Printf("│ Unknown Errors:     %6d\n", dec.ErrorsUnknown)
	}
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
	fmt.Printf("\n")
}

// printFinalStats prints the summary shown on exit
func printFinalStats(uptime time.Duration, dec videoplayer.DecoderStats, rnd render.Stats) {
	fmt.Printf("\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("                     Final Statistics                      \n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("  Total Uptime:       %s\n", uptime.Round(time.Second))
	fmt.Printf("  Frames Decoded:     %d frames\n", dec.FramesDecoded)
	fmt.Printf("  Frames Uploaded:    %d frames\n", rnd.Uploads)
	fmt.Printf("  Frames Dropped:     %d frames\n", rnd.FramesDropped)
	fmt.Printf("  Average FPS:        %.2f fps\n", dec.FPSReal)
	fmt.Printf("  Bytes Copied:       %.2f MB\n", float64(dec.BytesCopied)/1024/1024)
	fmt.Printf("  End Of Stream:      %v\n", dec.EndOfStream)
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("\n")
}
