// Package videopipe reads raw PPM (P6) frames from a named pipe written by an
// external process and hands the newest one to a consumer at its own pace.
//
// A background goroutine probes the FIFO, parses each frame header, reads the
// exact payload and swaps the result into a single-slot buffer. The consumer
// calls Update from its own loop (render loop, encoder, analytics) and gets
// the latest complete frame copied into an ImageSink. Frames produced faster
// than the consumer reads them are overwritten, never queued.
//
// # Quick Start
//
//	vp, err := videopipe.New(videopipe.WithFrameRate(30))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer vp.Close()
//
//	vp.OnSizeChanged(func(c videopipe.SizeChange) {
//	    log.Printf("resolution now %dx%d", c.Width, c.Height)
//	})
//
//	if err := vp.Open("/tmp/video.fifo"); err != nil {
//	    log.Fatal(err)
//	}
//
//	for range time.Tick(16 * time.Millisecond) {
//	    if vp.Update() {
//	        pixels := vp.Sink().(*videopipe.PixelBuffer).Pixels()
//	        draw(pixels, vp.Width(), vp.Height())
//	    }
//	}
//
// Any process can feed the pipe, for example:
//
//	mkfifo /tmp/video.fifo
//	ffmpeg -re -i input.mp4 -f image2pipe -vcodec ppm -pix_fmt rgb24 - > /tmp/video.fifo
//
// # Frame Format
//
// Each frame is a strict three-line text header followed by binary RGB:
//
//	P6\n
//	<width> <height>\n
//	<maxval>\n
//	<width*height*3 bytes>
//
// Comments, P3/P5 and 16-bit samples are not supported. maxval is recorded
// but does not affect payload size.
//
// # Writer Restarts
//
// When the writer closes its end (or dies mid-frame) the descriptor is closed,
// the partial frame discarded and the FIFO probed again once per second until
// a new writer appears. The last complete frame stays available throughout.
// Opening a path that does not exist yet is retried with exponential backoff.
//
// # Pacing
//
// WithFrameRate / SetFrameRate throttle the ingestion loop (not the consumer):
// at most one read cycle per 1/rate seconds. Rate 0 reads as fast as the
// writer produces.
//
// # Thread Safety
//
// Update, IsFrameNew, Width, Height and Latest are meant for a single
// consumer goroutine but are safe from any goroutine. Open, Close, Stats,
// SetFrameRate and Warmup are safe for concurrent use.
package videopipe
