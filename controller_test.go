package videoplayer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HenryThomas9587/media-demo/internal/native"
)

type fakeRenderer struct {
	mu       sync.Mutex
	dims     [][2]int
	frames   []uint64
	releases int
}

func (r *fakeRenderer) SetVideoDimensions(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dims = append(r.dims, [2]int{width, height})
}

func (r *fakeRenderer) SetFrame(f *VideoFrame) {
	r.mu.Lock()
	r.frames = append(r.frames, f.Index)
	r.mu.Unlock()
	f.Release()
}

func (r *fakeRenderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releases++
}

func (r *fakeRenderer) frameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// newFakeController wires every engine the controller creates to the next
// decoder from decs.
func newFakeController(t *testing.T, r Renderer, decs []*fakeDecoder, opts ...ControllerOption) *PlaybackController {
	t.Helper()

	c, err := NewPlaybackController(DecoderConfig{DisablePacing: true, DecodeTimeout: 5 * time.Millisecond}, r, opts...)
	require.NoError(t, err)

	c.newEngine = func(cfg DecoderConfig, l Listener) (*DecoderEngine, error) {
		e, err := NewDecoderEngine(cfg, l)
		if err != nil {
			return nil, err
		}
		require.NotEmpty(t, decs, "unexpected engine")
		dec := decs[0]
		decs = decs[1:]
		e.factory = func() native.Decoder { return dec }
		return e, nil
	}
	return c
}

func TestNewPlaybackController_FailFast(t *testing.T) {
	_, err := NewPlaybackController(DecoderConfig{}, nil)
	assert.Error(t, err)

	_, err = NewPlaybackController(DecoderConfig{Backend: "nope"}, &fakeRenderer{})
	assert.Error(t, err)
}

func TestPlaybackController_WiresRenderer(t *testing.T) {
	r := &fakeRenderer{}
	eos := make(chan struct{})
	dec := newFakeDecoder(6, 4, 3)

	c := newFakeController(t, r, []*fakeDecoder{dec},
		WithEndOfStreamHandler(func() { close(eos) }),
	)

	require.NoError(t, c.Start("clip"))

	select {
	case <-eos:
	case <-time.After(2 * time.Second):
		t.Fatal("end of stream not reported")
	}
	waitLoop(t, c.currentEngine())

	assert.Equal(t, [][2]int{{6, 4}}, r.dims)
	assert.Equal(t, []uint64{0, 1, 2}, r.frames)
	assert.Equal(t, 6, c.Metadata().Width)
	assert.Equal(t, uint64(3), c.Stats().FramesDecoded)

	c.Release()
	c.Release()
	assert.Equal(t, 1, r.releases)
	assert.Equal(t, int32(1), dec.releases.Load())

	assert.ErrorIs(t, c.Start("clip"), ErrReleased)
}

func TestPlaybackController_ErrorHandler(t *testing.T) {
	var (
		mu   sync.Mutex
		errs []error
	)
	dec := newFakeDecoder(2, 2, 1)
	dec.errs = []error{&native.Error{Category: native.CategoryCodec, Op: "decode", Err: assert.AnError}}

	c := newFakeController(t, &fakeRenderer{}, []*fakeDecoder{dec},
		WithErrorHandler(func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}),
	)
	defer c.Release()

	require.NoError(t, c.Start("clip"))
	waitLoop(t, c.currentEngine())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, errs, 1)

	var rerr *RuntimeDecodeError
	require.ErrorAs(t, errs[0], &rerr)
	assert.Equal(t, CategoryCodec, rerr.Category)
	assert.ErrorIs(t, errs[0], assert.AnError)
}

func TestPlaybackController_InitFailure(t *testing.T) {
	r := &fakeRenderer{}
	dec := newFakeDecoder(2, 2, 1)
	dec.initErr = &native.Error{Category: native.CategoryResource, Op: "init", Err: assert.AnError}

	c := newFakeController(t, r, []*fakeDecoder{dec})
	defer c.Release()

	err := c.Start("missing")
	var initErr *InitializationError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, CategoryResource, initErr.Category)

	assert.Empty(t, r.dims)
	assert.Nil(t, c.currentEngine())
	assert.Equal(t, Metadata{}, c.Metadata())
	assert.Equal(t, DecoderStats{}, c.Stats())

	// Stop without a session is a no-op
	c.Stop()
}

func TestPlaybackController_StopResumeAndSwitch(t *testing.T) {
	r := &fakeRenderer{}
	first := newFakeDecoder(2, 2, -1)
	second := newFakeDecoder(4, 4, 1)

	c := newFakeController(t, r, []*fakeDecoder{first, second})
	defer c.Release()

	require.NoError(t, c.Start("a"))
	require.Eventually(t, func() bool { return r.frameCount() > 0 }, time.Second, time.Millisecond)

	c.Stop()
	waitLoop(t, c.currentEngine())
	assert.Equal(t, StateStopped, c.Stats().State)

	// Same path resumes the same session
	sessionID := c.Metadata().SessionID
	require.NoError(t, c.Start("a"))
	assert.Equal(t, sessionID, c.Metadata().SessionID)
	assert.Equal(t, StateDecoding, c.Stats().State)

	// A new path replaces the session
	require.NoError(t, c.Start("b"))
	assert.NotEqual(t, sessionID, c.Metadata().SessionID)
	assert.Equal(t, 4, c.Metadata().Width)
	require.Eventually(t, func() bool { return first.releases.Load() == 1 }, time.Second, time.Millisecond)

	r.mu.Lock()
	assert.Equal(t, [][2]int{{2, 2}, {4, 4}}, r.dims)
	r.mu.Unlock()
}
