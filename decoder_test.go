package videoplayer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HenryThomas9587/media-demo/internal/frame"
	"github.com/HenryThomas9587/media-demo/internal/native"
	"github.com/HenryThomas9587/media-demo/internal/native/y4m"
)

// fakeDecoder is a scripted native decoder. Picture n is filled with byte(n)
// and the buffer is scribbled over as soon as the callback returns.
type fakeDecoder struct {
	probe   native.Probe
	initErr error

	mu     sync.Mutex
	errs   []error // Returned, in order, before any picture
	frames int     // Pictures left before EOF, -1 = endless
	sent   int
	buf    []byte

	started  atomic.Bool
	inits    atomic.Int32
	releases atomic.Int32
}

func newFakeDecoder(width, height, frames int) *fakeDecoder {
	return &fakeDecoder{
		probe:  native.Probe{Width: width, Height: height, FrameRate: 30},
		frames: frames,
		buf:    make([]byte, frame.BufferSize(width, height)),
	}
}

func (d *fakeDecoder) Init(string) (native.Probe, error) {
	d.inits.Add(1)
	return d.probe, d.initErr
}

func (d *fakeDecoder) StartDecoding() { d.started.Store(true) }
func (d *fakeDecoder) StopDecoding()  { d.started.Store(false) }
func (d *fakeDecoder) Release()       { d.releases.Add(1) }

func (d *fakeDecoder) DecodeNext(timeout time.Duration, fn native.FrameFunc) error {
	if d.releases.Load() > 0 {
		return native.ErrReleased
	}
	if !d.started.Load() {
		time.Sleep(time.Millisecond)
		return native.ErrNoFrame
	}

	d.mu.Lock()
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		d.mu.Unlock()
		return err
	}
	if d.frames == 0 {
		d.mu.Unlock()
		return io.EOF
	}
	if d.frames > 0 {
		d.frames--
	}
	n := d.sent
	d.sent++
	d.mu.Unlock()

	fillBytes(d.buf, byte(n))
	fn(d.buf, d.probe.Width, d.probe.Height)
	fillBytes(d.buf, 0xFF)
	return nil
}

func fillBytes(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

// recorder is a Listener that keeps a copy of every event.
type recorder struct {
	mu       sync.Mutex
	events   []string
	metadata []Metadata
	frames   [][]byte
	indexes  []uint64
	errs     []error
	eos      int

	onFrame func(f *VideoFrame)
}

func (r *recorder) OnVideoMetadataReady(width, height int, frameRate float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "metadata")
	r.metadata = append(r.metadata, Metadata{Width: width, Height: height, FrameRate: frameRate})
}

func (r *recorder) OnFrameDecoded(f *VideoFrame, width, height int) {
	r.mu.Lock()
	r.events = append(r.events, "frame")
	r.frames = append(r.frames, append([]byte(nil), f.Bytes()...))
	r.indexes = append(r.indexes, f.Index)
	hook := r.onFrame
	r.mu.Unlock()

	f.Release()
	if hook != nil {
		hook(f)
	}
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "error")
	r.errs = append(r.errs, err)
}

func (r *recorder) OnEndOfStream() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "eos")
	r.eos++
}

func (r *recorder) frameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func newFakeEngine(t *testing.T, dec *fakeDecoder, l Listener) *DecoderEngine {
	t.Helper()
	e, err := NewDecoderEngine(DecoderConfig{DisablePacing: true, DecodeTimeout: 5 * time.Millisecond}, l)
	require.NoError(t, err)
	e.factory = func() native.Decoder { return dec }
	return e
}

func waitLoop(t *testing.T, e *DecoderEngine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.Wait(ctx))
}

// writeY4M encodes n flat pictures where picture i has every byte set to i.
func writeY4M(t *testing.T, width, height, n, rateNum, rateDen int) string {
	t.Helper()

	var buf bytes.Buffer
	w, err := y4m.NewWriter(&buf, width, height, rateNum, rateDen)
	require.NoError(t, err)

	pic := make([]byte, frame.BufferSize(width, height))
	for i := 0; i < n; i++ {
		fillBytes(pic, byte(i))
		require.NoError(t, w.WriteFrame(pic))
	}
	require.NoError(t, w.Flush())

	path := filepath.Join(t.TempDir(), "clip.y4m")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestNewDecoderEngine_FailFast(t *testing.T) {
	tests := []struct {
		name string
		cfg  DecoderConfig
	}{
		{"negative decode timeout", DecoderConfig{DecodeTimeout: -time.Millisecond}},
		{"negative pool size", DecoderConfig{PoolSize: -1}},
		{"negative cadence window", DecoderConfig{CadenceWindow: -1}},
		{"unknown backend", DecoderConfig{Backend: "ffmpeg"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewDecoderEngine(tt.cfg, nil)
			assert.Error(t, err)
			assert.Nil(t, e)
		})
	}
}

func TestNewDecoderEngine_Defaults(t *testing.T) {
	e, err := NewDecoderEngine(DecoderConfig{}, nil)
	require.NoError(t, err)

	assert.Equal(t, native.BackendAuto, e.cfg.Backend)
	assert.Equal(t, DefaultDecodeTimeout, e.cfg.DecodeTimeout)
	assert.Equal(t, StateUninitialized, e.State())

	e, err = NewDecoderEngine(DecoderConfig{Backend: y4m.BackendName}, nil)
	require.NoError(t, err)
	assert.Equal(t, y4m.BackendName, e.cfg.Backend)
}

func TestDecoderEngine_InitMissingPath(t *testing.T) {
	rec := &recorder{}
	e, err := NewDecoderEngine(DecoderConfig{}, rec)
	require.NoError(t, err)
	defer e.Release()

	md, err := e.Init(filepath.Join(t.TempDir(), "missing.y4m"))

	var initErr *InitializationError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, y4m.BackendName, initErr.Backend)
	assert.Equal(t, CategoryResource, initErr.Category)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, Metadata{}, md)

	assert.Empty(t, rec.snapshot(), "no metadata event on failure")
	assert.Equal(t, StateUninitialized, e.State())

	// Start after a failed Init is a logged no-op
	e.Start()
	assert.Equal(t, StateUninitialized, e.State())
}

func TestDecoderEngine_InitErrors(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		rec := &recorder{}
		dec := newFakeDecoder(4, 4, 1)
		e := newFakeEngine(t, dec, rec)

		_, err := e.Init("")
		var initErr *InitializationError
		require.ErrorAs(t, err, &initErr)
		assert.Equal(t, int32(0), dec.inits.Load())
		assert.Empty(t, rec.snapshot())
	})

	t.Run("native failure", func(t *testing.T) {
		rec := &recorder{}
		dec := newFakeDecoder(4, 4, 1)
		dec.initErr = &native.Error{Category: native.CategoryNetwork, Op: "init", Err: errors.New("connection refused")}
		e := newFakeEngine(t, dec, rec)

		_, err := e.Init("rtsp://camera/stream")
		var initErr *InitializationError
		require.ErrorAs(t, err, &initErr)
		assert.Equal(t, CategoryNetwork, initErr.Category)
		assert.Equal(t, int32(1), dec.releases.Load(), "failed native decoder must be released")
		assert.Empty(t, rec.snapshot())
	})

	t.Run("invalid dimensions", func(t *testing.T) {
		rec := &recorder{}
		dec := newFakeDecoder(4, 4, 1)
		dec.probe.Width = 0
		e := newFakeEngine(t, dec, rec)

		_, err := e.Init("clip")
		var initErr *InitializationError
		require.ErrorAs(t, err, &initErr)
		assert.Equal(t, CategoryCodec, initErr.Category)
		assert.Equal(t, int32(1), dec.releases.Load())
		assert.Empty(t, rec.snapshot())
	})
}

func TestDecoderEngine_MetadataOnceBeforeFrames(t *testing.T) {
	rec := &recorder{}
	dec := newFakeDecoder(4, 2, 3)
	e := newFakeEngine(t, dec, rec)
	defer e.Release()

	md, err := e.Init("clip")
	require.NoError(t, err)
	assert.Equal(t, 4, md.Width)
	assert.Equal(t, 2, md.Height)
	assert.Equal(t, 30.0, md.FrameRate)
	assert.Equal(t, "custom", md.Backend)
	assert.NotEmpty(t, md.SessionID)

	// Second Init is a no-op that reports nothing new
	again, err := e.Init("other")
	require.NoError(t, err)
	assert.Equal(t, md, again)
	assert.Equal(t, int32(1), dec.inits.Load())

	e.Start()
	waitLoop(t, e)

	assert.Equal(t, []string{"metadata", "frame", "frame", "frame", "eos"}, rec.snapshot())
	assert.Equal(t, []uint64{0, 1, 2}, rec.indexes)
	assert.Len(t, rec.metadata, 1)
}

func TestDecoderEngine_CopiesNativeBuffer(t *testing.T) {
	rec := &recorder{}
	dec := newFakeDecoder(4, 4, 3)
	e := newFakeEngine(t, dec, rec)
	defer e.Release()

	_, err := e.Init("clip")
	require.NoError(t, err)
	e.Start()
	waitLoop(t, e)

	require.Len(t, rec.frames, 3)
	for i, data := range rec.frames {
		want := bytes.Repeat([]byte{byte(i)}, frame.BufferSize(4, 4))
		assert.Equal(t, want, data, "frame %d must not see the native buffer being reused", i)
	}
}

func TestDecoderEngine_EndOfStream(t *testing.T) {
	rec := &recorder{}
	dec := newFakeDecoder(2, 2, 2)
	e := newFakeEngine(t, dec, rec)
	defer e.Release()

	_, err := e.Init("clip")
	require.NoError(t, err)
	e.Start()
	waitLoop(t, e)

	assert.Equal(t, StateStopped, e.State())
	assert.Equal(t, 1, rec.eos)

	stats := e.Stats()
	assert.True(t, stats.EndOfStream)
	assert.Equal(t, uint64(2), stats.FramesDecoded)

	// Nothing left to decode
	e.Start()
	assert.Equal(t, StateStopped, e.State())
	assert.Equal(t, int32(0), dec.releases.Load())
}

func TestDecoderEngine_LifecycleIdempotent(t *testing.T) {
	rec := &recorder{}
	dec := newFakeDecoder(2, 2, -1)
	e := newFakeEngine(t, dec, rec)

	// Before Init
	e.Stop()
	e.Start()
	assert.Equal(t, StateUninitialized, e.State())

	_, err := e.Init("clip")
	require.NoError(t, err)

	e.Stop()
	assert.Equal(t, StateInitialized, e.State())

	e.Start()
	e.Start()
	assert.Equal(t, StateDecoding, e.State())
	require.Eventually(t, func() bool { return rec.frameCount() > 0 }, time.Second, time.Millisecond)

	e.Stop()
	e.Stop()
	assert.Equal(t, StateStopped, e.State())

	e.Release()
	e.Release()
	assert.Equal(t, StateReleased, e.State())

	e.Start()
	e.Stop()
	assert.Equal(t, StateReleased, e.State())

	_, err = e.Init("clip")
	assert.ErrorIs(t, err, ErrReleased)

	waitLoop(t, e)
	assert.Equal(t, int32(1), dec.releases.Load(), "native decoder released exactly once")

	// Nothing resumes after Release
	n := rec.frameCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, rec.frameCount())
}

func TestDecoderEngine_StopAndResume(t *testing.T) {
	rec := &recorder{}
	dec := newFakeDecoder(2, 2, -1)
	e := newFakeEngine(t, dec, rec)
	defer e.Release()

	_, err := e.Init("clip")
	require.NoError(t, err)

	e.Start()
	require.Eventually(t, func() bool { return rec.frameCount() >= 3 }, time.Second, time.Millisecond)

	e.Stop()
	waitLoop(t, e)
	stopped := rec.frameCount()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, rec.frameCount(), "no frames while stopped")

	e.Start()
	require.Eventually(t, func() bool { return rec.frameCount() > stopped }, time.Second, time.Millisecond)
	assert.Equal(t, StateDecoding, e.State())
	assert.Equal(t, int32(0), dec.releases.Load())
}

// TestDecoderEngine_StartRacesLoopExit drives both orders of a Start landing
// while a stopped loop is at its exit checkpoint.
func TestDecoderEngine_StartRacesLoopExit(t *testing.T) {
	// stopAtCheckpoint puts the engine where a stopped loop is about to
	// look at the stop request.
	stopAtCheckpoint := func(e *DecoderEngine) {
		e.mu.Lock()
		e.state = StateStopped
		e.stopReq = true
		e.running = true
		e.mu.Unlock()
	}
	isRunning := func(e *DecoderEngine) bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.running
	}

	t.Run("loop exits first", func(t *testing.T) {
		rec := &recorder{}
		dec := newFakeDecoder(2, 2, -1)
		e := newFakeEngine(t, dec, rec)
		defer e.Release()

		_, err := e.Init("clip")
		require.NoError(t, err)

		stopAtCheckpoint(e)
		_, ok := e.checkpoint(dec)
		require.False(t, ok)
		assert.False(t, isRunning(e), "exit must be visible to the next Start")

		e.Start()
		assert.Equal(t, StateDecoding, e.State())
		require.Eventually(t, func() bool { return rec.frameCount() >= 2 }, time.Second, time.Millisecond,
			"Start after the loop exited must spawn a new loop")
	})

	t.Run("start first", func(t *testing.T) {
		rec := &recorder{}
		dec := newFakeDecoder(2, 2, -1)
		e := newFakeEngine(t, dec, rec)

		_, err := e.Init("clip")
		require.NoError(t, err)

		stopAtCheckpoint(e)
		e.Start()
		_, ok := e.checkpoint(dec)
		assert.True(t, ok, "loop must keep going after a resume")
		assert.True(t, isRunning(e))
		assert.Equal(t, StateDecoding, e.State())

		// No real loop was spawned; hand the native release back to Release
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		e.Release()
		assert.Equal(t, int32(1), dec.releases.Load())
	})
}

func TestDecoderEngine_RuntimeErrors(t *testing.T) {
	rec := &recorder{}
	dec := newFakeDecoder(2, 2, 1)
	dec.errs = []error{
		&native.Error{Category: native.CategoryNetwork, Op: "decode", Err: errors.New("connection reset")},
		errors.New("boom"),
	}
	e := newFakeEngine(t, dec, rec)
	defer e.Release()

	_, err := e.Init("clip")
	require.NoError(t, err)
	e.Start()
	waitLoop(t, e)

	assert.Equal(t, []string{"metadata", "error", "error", "frame", "eos"}, rec.snapshot())

	var rerr *RuntimeDecodeError
	require.ErrorAs(t, rec.errs[0], &rerr)
	assert.Equal(t, CategoryNetwork, rerr.Category)
	assert.Equal(t, uint64(0), rerr.FramesDecoded)

	require.ErrorAs(t, rec.errs[1], &rerr)
	assert.Equal(t, CategoryUnknown, rerr.Category)
	assert.EqualError(t, errors.Unwrap(rerr), "boom")

	stats := e.Stats()
	assert.Equal(t, uint64(1), stats.ErrorsNetwork)
	assert.Equal(t, uint64(1), stats.ErrorsUnknown)
	assert.Equal(t, uint64(0), stats.ErrorsCodec)
}

func TestDecoderEngine_ReleaseFromFrameCallback(t *testing.T) {
	rec := &recorder{}
	dec := newFakeDecoder(2, 2, -1)
	e := newFakeEngine(t, dec, rec)
	rec.onFrame = func(*VideoFrame) { e.Release() }

	_, err := e.Init("clip")
	require.NoError(t, err)
	e.Start()
	waitLoop(t, e)

	assert.Equal(t, StateReleased, e.State())
	assert.Equal(t, 1, rec.frameCount())
	assert.Equal(t, int32(1), dec.releases.Load())
}

func TestDecoderEngine_NilListenerRecyclesBuffers(t *testing.T) {
	dec := newFakeDecoder(4, 4, 5)
	e := newFakeEngine(t, dec, nil)
	defer e.Release()

	_, err := e.Init("clip")
	require.NoError(t, err)
	e.Start()
	waitLoop(t, e)

	stats := e.Stats()
	assert.Equal(t, uint64(5), stats.FramesDecoded)
	assert.Equal(t, uint64(5*frame.BufferSize(4, 4)), stats.BytesCopied)
	assert.Equal(t, uint64(1), stats.BufferAllocs)
	assert.Equal(t, uint64(4), stats.BufferReuses)
}

func TestDecoderEngine_Y4MPlayback(t *testing.T) {
	path := writeY4M(t, 8, 4, 5, 1000, 1)

	rec := &recorder{}
	e, err := NewDecoderEngine(DecoderConfig{}, rec)
	require.NoError(t, err)
	defer e.Release()

	md, err := e.Init(path)
	require.NoError(t, err)
	assert.Equal(t, y4m.BackendName, md.Backend)
	assert.Equal(t, 1000.0, md.FrameRate)

	e.Start()
	waitLoop(t, e)

	require.Len(t, rec.frames, 5)
	for i, data := range rec.frames {
		assert.Equal(t, bytes.Repeat([]byte{byte(i)}, frame.BufferSize(8, 4)), data)
	}

	stats := e.Stats()
	assert.Equal(t, "8x4", stats.Resolution)
	assert.Equal(t, 1000.0, stats.FPSTarget)
	assert.True(t, stats.EndOfStream)
	assert.Equal(t, 5, stats.Cadence.Frames)
}

func TestDecoderEngine_FramePTS(t *testing.T) {
	var (
		mu  sync.Mutex
		pts []time.Duration
		ids = map[string]bool{}
	)
	l := ListenerFuncs{Frame: func(f *VideoFrame, _, _ int) {
		mu.Lock()
		pts = append(pts, f.PTS)
		ids[f.TraceID] = true
		mu.Unlock()
		f.Release()
	}}

	dec := newFakeDecoder(2, 2, 3)
	dec.probe.FrameRate = 25
	e := newFakeEngine(t, dec, l)
	defer e.Release()

	_, err := e.Init("clip")
	require.NoError(t, err)
	e.Start()
	waitLoop(t, e)

	assert.Equal(t, []time.Duration{0, 40 * time.Millisecond, 80 * time.Millisecond}, pts)
	assert.Len(t, ids, 3, "every frame gets its own trace id")
}

func TestPacer(t *testing.T) {
	t0 := time.Unix(1000, 0)

	var p pacer
	p.reset(10 * time.Millisecond)

	assert.Equal(t, time.Duration(0), p.delay(t0), "first frame is not delayed")
	p.delivered()
	assert.Equal(t, 8*time.Millisecond, p.delay(t0.Add(2*time.Millisecond)))
	p.delivered()
	assert.Equal(t, time.Duration(0), p.delay(t0.Add(25*time.Millisecond)), "late frames are not delayed")
	p.delivered()

	// Far behind: the clock restarts instead of bursting
	late := t0.Add(5 * time.Second)
	assert.Equal(t, time.Duration(0), p.delay(late))
	p.delivered()
	assert.Equal(t, 9*time.Millisecond, p.delay(late.Add(time.Millisecond)))

	p.reset(0)
	assert.Equal(t, time.Duration(0), p.delay(late), "zero interval is unpaced")
}
