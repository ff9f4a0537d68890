// Package videoplayer decodes a local video file into YUV420 frames on a
// background goroutine and hands them to a GPU renderer that converts them to
// RGB with a BT.601 shader.
//
// # Quick Start
//
//	pipeline := render.NewPipeline(device, render.Config{})
//
//	player, err := videoplayer.NewPlaybackController(videoplayer.DecoderConfig{}, pipeline,
//	    videoplayer.WithErrorHandler(func(err error) {
//	        log.Printf("decode error: %v", err)
//	    }),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer player.Release()
//
//	if err := player.Start("/videos/clip.mp4"); err != nil {
//	    log.Fatal(err) // *videoplayer.InitializationError
//	}
//
//	// Render thread, once per display refresh:
//	for running {
//	    pipeline.DrawFrame()
//	    window.Swap()
//	}
//
// # Frame Flow
//
//	DecoderEngine (decode goroutine)
//	    │ copy out of the transient native buffer (pooled storage)
//	    ▼
//	Listener.OnFrameDecoded ──► render.Pipeline.SetFrame ──► mailbox (newest wins)
//	                                                            │
//	                                    render thread: DrawFrame ◄┘
//
// The decoder never waits for the renderer and the renderer never waits for
// the decoder. When decoding outpaces display, stale frames are dropped in the
// mailbox and their buffers go back to the pool.
//
// # Ownership
//
// A *VideoFrame has exactly one owner at a time. OnFrameDecoded transfers
// ownership to the listener, which must either hand the frame on or call
// Release. Plane slices must not be retained after Release.
//
// # Errors
//
//   - *InitializationError: returned by Init/Start. The session cannot proceed.
//   - *RuntimeDecodeError: delivered through Listener.OnError. Playback state
//     does not change; the caller decides whether to Stop.
//   - render.SurfaceLostError: render side only; the pipeline re-creates its
//     GPU resources on the next surface.
//
// Calling Start before Init, or Release twice, is logged and ignored.
//
// # Known Limitations
//
// Chroma planes are (width/2)×(height/2) with truncating division. For odd
// dimensions the last chroma column and row are dropped.
package videoplayer
