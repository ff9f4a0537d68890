// Package gstreamer is the native backend for every container and codec the
// local GStreamer installation can demux and decode.
//
// Pipeline structure:
//
//	filesrc → decodebin → videoconvert → capsfilter(I420) → appsink
//	uridecodebin → videoconvert → capsfilter(I420) → appsink   (URIs)
//
// decodebin exposes its pads dynamically; the first raw video pad is linked
// in the pad-added callback and every other stream is left unlinked.
//
// The appsink is clock-synchronized, so pictures come out at presentation
// rate and the caller must not add its own pacing (Probe.SelfPaced).
package gstreamer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/HenryThomas9587/media-demo/internal/frame"
	"github.com/HenryThomas9587/media-demo/internal/native"
)

// BackendName is the registry name of this backend.
const BackendName = "gstreamer"

// DefaultPrerollTimeout bounds how long Init waits for the first picture.
const DefaultPrerollTimeout = 10 * time.Second

func init() {
	// No extensions: this is the auto-mode fallback for everything y4m
	// does not claim.
	native.Register(BackendName, func() native.Decoder {
		return New(WithPrerollTimeout(time.Duration(registryPreroll.Load())))
	})
}

// registryPreroll is the preroll timeout for decoders created through the
// backend registry (0 = DefaultPrerollTimeout).
var registryPreroll atomic.Int64

// SetPrerollTimeout sets the preroll timeout of decoders created through the
// backend registry.
func SetPrerollTimeout(d time.Duration) {
	registryPreroll.Store(int64(d))
}

// Decoder pulls I420 pictures from a GStreamer pipeline.
//
// Init and Release take the write lock; StartDecoding, StopDecoding and
// DecodeNext share the read lock, so state changes do not wait for a pull
// in progress.
type Decoder struct {
	mu       sync.RWMutex
	pipeline *gst.Pipeline
	sink     *app.Sink
	bus      *gst.Bus

	// Negotiated stream, updated when caps change mid-stream
	caps   string
	info   videoInfo
	layout planeLayout
	// scratch holds the repacked picture when GStreamer pads rows
	scratch []byte

	prerollTimeout time.Duration
	released       bool

	samples   uint64 // Atomic: samples pulled from appsink
	busErrors uint64 // Atomic: error messages seen on the bus
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithPrerollTimeout overrides DefaultPrerollTimeout.
func WithPrerollTimeout(d time.Duration) Option {
	return func(dec *Decoder) {
		if d > 0 {
			dec.prerollTimeout = d
		}
	}
}

// New creates an uninitialized decoder.
func New(opts ...Option) *Decoder {
	d := &Decoder{prerollTimeout: DefaultPrerollTimeout}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Init builds the pipeline, prerolls it and reads the negotiated caps.
//
// On any failure the pipeline is torn down before returning, so a failed
// Init leaves nothing running.
func (d *Decoder) Init(path string) (native.Probe, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return native.Probe{}, native.ErrReleased
	}
	if d.pipeline != nil {
		return native.Probe{}, fmt.Errorf("gstreamer: already initialized")
	}

	pipeline, sink, err := createPipeline(path)
	if err != nil {
		return native.Probe{}, &native.Error{Category: native.CategoryResource, Op: "init", Err: err}
	}
	d.pipeline = pipeline
	d.sink = sink
	d.bus = pipeline.GetPipelineBus()

	if err := d.preroll(); err != nil {
		d.teardown()
		return native.Probe{}, err
	}

	slog.Info("gstreamer: pipeline prerolled",
		"path", path,
		"width", d.info.Width,
		"height", d.info.Height,
		"fps", d.info.FrameRate,
		"caps", d.caps,
	)

	return native.Probe{
		Width:     d.info.Width,
		Height:    d.info.Height,
		FrameRate: d.info.FrameRate,
		SelfPaced: true,
	}, nil
}

// preroll moves the pipeline to PAUSED and waits until the appsink holds the
// first picture (or the pipeline fails).
func (d *Decoder) preroll() error {
	if err := d.pipeline.SetState(gst.StatePaused); err != nil {
		return &native.Error{Category: native.CategoryResource, Op: "init",
			Err: fmt.Errorf("gstreamer: set PAUSED: %w", err)}
	}

	deadline := time.Now().Add(d.prerollTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return &native.Error{Category: native.CategoryUnknown, Op: "init",
				Err: fmt.Errorf("gstreamer: preroll timed out after %s", d.prerollTimeout)}
		}

		msg := d.bus.TimedPop(min(remaining, 50*time.Millisecond))
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageAsyncDone:
			return d.readPrerollCaps()

		case gst.MessageEOS:
			return &native.Error{Category: native.CategoryCodec, Op: "init",
				Err: errors.New("gstreamer: stream ended before the first video frame")}

		case gst.MessageError:
			return d.busError("init", msg)
		}
	}
}

func (d *Decoder) readPrerollCaps() error {
	sample := d.sink.TryPullPreroll(d.prerollTimeout)
	if sample == nil {
		return &native.Error{Category: native.CategoryCodec, Op: "init",
			Err: errors.New("gstreamer: no video stream found")}
	}

	caps := sample.GetCaps()
	if caps == nil {
		return &native.Error{Category: native.CategoryCodec, Op: "init",
			Err: errors.New("gstreamer: preroll sample has no caps")}
	}

	if err := d.negotiate(caps.String()); err != nil {
		return &native.Error{Category: native.CategoryCodec, Op: "init", Err: err}
	}
	return nil
}

// negotiate records new caps and sizes the scratch buffer.
func (d *Decoder) negotiate(caps string) error {
	info, err := parseCaps(caps)
	if err != nil {
		return fmt.Errorf("gstreamer: %w", err)
	}

	d.caps = caps
	d.info = info
	d.layout = i420Layout(info.Width, info.Height)
	if !d.layout.tight(info.Width, info.Height) {
		d.scratch = make([]byte, frame.BufferSize(info.Width, info.Height))
	} else {
		d.scratch = nil
	}
	return nil
}

// StartDecoding sets the pipeline to PLAYING.
func (d *Decoder) StartDecoding() {
	d.setState(gst.StatePlaying)
}

// StopDecoding sets the pipeline to PAUSED.
func (d *Decoder) StopDecoding() {
	d.setState(gst.StatePaused)
}

func (d *Decoder) setState(state gst.State) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.released || d.pipeline == nil {
		return
	}
	if err := d.pipeline.SetState(state); err != nil {
		slog.Warn("gstreamer: state change failed", "state", state, "error", err)
	}
}

// DecodeNext pulls one sample from the appsink.
//
// Caps, layout and scratch are only touched here and in Init, which the
// caller never runs concurrently, so the read lock is enough.
func (d *Decoder) DecodeNext(timeout time.Duration, fn native.FrameFunc) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.released {
		return native.ErrReleased
	}
	if d.pipeline == nil {
		return native.ErrNotInitialized
	}

	// Errors and EOS are reported on the bus; check it without waiting.
	if err := d.drainBus(); err != nil {
		return err
	}

	sample := d.sink.TryPullSample(timeout)
	if sample == nil {
		if d.sink.IsEOS() {
			return io.EOF
		}
		return native.ErrNoFrame
	}
	atomic.AddUint64(&d.samples, 1)

	if caps := sample.GetCaps(); caps != nil {
		if s := caps.String(); s != d.caps {
			if err := d.negotiate(s); err != nil {
				return &native.Error{Category: native.CategoryCodec, Op: "decode", Err: err}
			}
			slog.Info("gstreamer: caps changed",
				"width", d.info.Width,
				"height", d.info.Height,
				"fps", d.info.FrameRate,
			)
		}
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		// A single bad sample should not end playback.
		slog.Warn("gstreamer: sample without buffer, skipping")
		return native.ErrNoFrame
	}

	mapInfo := buffer.Map(gst.MapRead)
	defer buffer.Unmap()

	data := mapInfo.Bytes()
	width, height := d.info.Width, d.info.Height

	if d.scratch == nil {
		if len(data) < frame.BufferSize(width, height) {
			return &native.Error{Category: native.CategoryCodec, Op: "decode",
				Err: fmt.Errorf("%w: sample has %d bytes for %dx%d", frame.ErrShortBuffer, len(data), width, height)}
		}
		fn(data, width, height)
		return nil
	}

	if err := repackI420(d.scratch, data, width, height, d.layout); err != nil {
		return &native.Error{Category: native.CategoryCodec, Op: "decode", Err: err}
	}
	fn(d.scratch, width, height)
	return nil
}

// drainBus pops every pending bus message without blocking.
func (d *Decoder) drainBus() error {
	for {
		msg := d.bus.TimedPop(0)
		if msg == nil {
			return nil
		}

		switch msg.Type() {
		case gst.MessageEOS:
			return io.EOF
		case gst.MessageError:
			return d.busError("decode", msg)
		case gst.MessageWarning:
			if gerr := msg.ParseWarning(); gerr != nil {
				slog.Warn("gstreamer: pipeline warning", "warning", gerr.Error(), "debug", gerr.DebugString())
			}
		}
	}
}

func (d *Decoder) busError(op string, msg *gst.Message) error {
	atomic.AddUint64(&d.busErrors, 1)

	gerr := msg.ParseError()
	if gerr == nil {
		return &native.Error{Category: native.CategoryUnknown, Op: op, Err: errors.New("gstreamer: pipeline error")}
	}

	category := classifyError(gerr.Error(), gerr.DebugString())
	slog.Error("gstreamer: pipeline error",
		"op", op,
		"error", gerr.Error(),
		"debug", gerr.DebugString(),
		"category", category.String(),
		"source", msg.Source(),
	)

	return &native.Error{Category: category, Op: op, Err: fmt.Errorf("gstreamer: %s", gerr.Error())}
}

// Release sets the pipeline to NULL and drops every reference. Idempotent.
func (d *Decoder) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return
	}
	d.released = true
	d.teardown()

	slog.Debug("gstreamer: decoder released",
		"samples", atomic.LoadUint64(&d.samples),
		"bus_errors", atomic.LoadUint64(&d.busErrors),
	)
}

func (d *Decoder) teardown() {
	if d.pipeline != nil {
		if err := d.pipeline.SetState(gst.StateNull); err != nil {
			slog.Warn("gstreamer: failed to set pipeline to NULL", "error", err)
		}
	}
	d.pipeline = nil
	d.sink = nil
	d.bus = nil
	d.scratch = nil
}

// createPipeline builds the element graph for path. The pipeline is left in
// the NULL state.
func createPipeline(path string) (*gst.Pipeline, *app.Sink, error) {
	// Safe to call multiple times
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, nil, fmt.Errorf("gstreamer: failed to create pipeline: %w", err)
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, nil, fmt.Errorf("gstreamer: failed to create videoconvert: %w", err)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, nil, fmt.Errorf("gstreamer: failed to create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString("video/x-raw,format=I420"))

	sink, err := app.NewAppSink()
	if err != nil {
		return nil, nil, fmt.Errorf("gstreamer: failed to create appsink: %w", err)
	}
	sink.SetProperty("sync", true)     // Deliver at presentation rate
	sink.SetProperty("max-buffers", 2) // Bounded queue; decode waits on display
	sink.SetProperty("drop", false)    // Drops happen in the player mailbox

	var source, decoder *gst.Element
	if strings.Contains(path, "://") {
		decoder, err = gst.NewElement("uridecodebin")
		if err != nil {
			return nil, nil, fmt.Errorf("gstreamer: failed to create uridecodebin: %w", err)
		}
		decoder.SetProperty("uri", path)
	} else {
		source, err = gst.NewElement("filesrc")
		if err != nil {
			return nil, nil, fmt.Errorf("gstreamer: failed to create filesrc: %w", err)
		}
		source.SetProperty("location", path)

		decoder, err = gst.NewElement("decodebin")
		if err != nil {
			return nil, nil, fmt.Errorf("gstreamer: failed to create decodebin: %w", err)
		}
	}

	elements := []*gst.Element{decoder, converter, capsfilter, sink.Element}
	if source != nil {
		elements = append([]*gst.Element{source}, elements...)
	}
	if err := pipeline.AddMany(elements...); err != nil {
		return nil, nil, fmt.Errorf("gstreamer: failed to add elements: %w", err)
	}

	if source != nil {
		if err := source.Link(decoder); err != nil {
			return nil, nil, fmt.Errorf("gstreamer: failed to link filesrc: %w", err)
		}
	}
	if err := gst.ElementLinkMany(converter, capsfilter, sink.Element); err != nil {
		return nil, nil, fmt.Errorf("gstreamer: failed to link conversion chain: %w", err)
	}

	// decodebin has dynamic pads (not known at pipeline creation time)
	if _, err := decoder.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		onPadAdded(srcPad, converter)
	}); err != nil {
		return nil, nil, fmt.Errorf("gstreamer: failed to connect pad-added: %w", err)
	}

	return pipeline, sink, nil
}

// onPadAdded links the first raw video pad of the decoder to the converter.
func onPadAdded(srcPad *gst.Pad, converter *gst.Element) {
	if caps := srcPad.GetCurrentCaps(); caps != nil {
		if !strings.HasPrefix(caps.String(), "video/") {
			slog.Debug("gstreamer: ignoring non-video pad", "pad", srcPad.GetName(), "caps", caps.String())
			return
		}
	}

	sinkPad := converter.GetStaticPad("sink")
	if sinkPad == nil {
		slog.Error("gstreamer: failed to get sink pad from videoconvert")
		return
	}
	if sinkPad.IsLinked() {
		slog.Debug("gstreamer: video already linked, ignoring extra stream", "pad", srcPad.GetName())
		return
	}

	if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
		slog.Error("gstreamer: failed to link pads",
			"src_pad", srcPad.GetName(),
			"sink_pad", sinkPad.GetName(),
			"ret", ret,
		)
		return
	}

	slog.Debug("gstreamer: video pad linked", "src_pad", srcPad.GetName())
}

var _ native.Decoder = (*Decoder)(nil)
