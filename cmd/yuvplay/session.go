package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	videoplayer "github.com/HenryThomas9587/media-demo"
	"github.com/HenryThomas9587/media-demo/internal/config"
	"github.com/HenryThomas9587/media-demo/internal/render"
)

// session bundles one controller with the channels the render loops select
// on.
type session struct {
	controller *videoplayer.PlaybackController
	pipeline   *render.Pipeline
	eos        chan struct{}
	signals    chan os.Signal
	cancel     context.CancelFunc
	startTime  time.Time
}

// startSession creates the controller, starts playback and the stats
// reporter. The caller must call close.
func startSession(cfg *config.Config, decCfg videoplayer.DecoderConfig, pipeline *render.Pipeline) (*session, error) {
	s := &session{
		pipeline:  pipeline,
		eos:       make(chan struct{}),
		signals:   make(chan os.Signal, 1),
		startTime: time.Now(),
	}

	controller, err := videoplayer.NewPlaybackController(decCfg, pipeline,
		videoplayer.WithErrorHandler(func(err error) {
			var rerr *videoplayer.RuntimeDecodeError
			if errors.As(err, &rerr) {
				slog.Warn("decode error, playback continues",
					"category", rerr.Category.String(),
					"frames_decoded", rerr.FramesDecoded,
				)
			}
		}),
		videoplayer.WithEndOfStreamHandler(func() {
			close(s.eos)
		}),
	)
	if err != nil {
		return nil, err
	}
	s.controller = controller

	if err := controller.Start(cfg.Source.Path); err != nil {
		controller.Release()
		return nil, err
	}

	md := controller.Metadata()
	slog.Info("playback started",
		"resolution", fmt.Sprintf("%dx%d", md.Width, md.Height),
		"fps", md.FrameRate,
		"backend", md.Backend,
		"session_id", md.SessionID,
	)

	signal.Notify(s.signals, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go reportStats(ctx, cfg.StatsInterval(), controller, pipeline)

	return s, nil
}

// close stops the stats reporter, releases the decoder and the pipeline and
// prints final statistics. Must run on the render thread.
func (s *session) close() {
	signal.Stop(s.signals)
	s.cancel()

	s.controller.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.controller.Wait(ctx); err != nil {
		slog.Warn("decode loop did not stop in time", "error", err)
	}

	decoderStats := s.controller.Stats()
	s.controller.Release()

	printFinalStats(time.Since(s.startTime), decoderStats, s.pipeline.Stats())
}
