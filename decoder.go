package videoplayer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/HenryThomas9587/media-demo/internal/cadence"
	"github.com/HenryThomas9587/media-demo/internal/frame"
	"github.com/HenryThomas9587/media-demo/internal/native"
	// Pure-Go backend, always available. GStreamer is linked in by binaries
	// that import internal/native/gstreamer.
	_ "github.com/HenryThomas9587/media-demo/internal/native/y4m"
)

const (
	// DefaultDecodeTimeout bounds one DecodeNext call, and with it how long a
	// Stop or Release waits to be observed.
	DefaultDecodeTimeout = 50 * time.Millisecond

	// maxPacingLag resets the pacing clock when decoding falls this far
	// behind, instead of bursting to catch up.
	maxPacingLag = time.Second
)

// DecoderConfig configures a DecoderEngine. The zero value is usable.
type DecoderConfig struct {
	// Backend is a registered native backend name or "auto" (default)
	Backend string
	// DisablePacing delivers frames as fast as the backend decodes them.
	// Backends that are clock-synchronized are never paced.
	DisablePacing bool
	// DecodeTimeout bounds one native decode call (default 50ms)
	DecodeTimeout time.Duration
	// PoolSize is the number of idle copy buffers kept for reuse (default 4)
	PoolSize int
	// CadenceWindow is the number of recent frames cadence stats cover (default 120)
	CadenceWindow int
}

// DecoderEngine drives a native decoder on a dedicated goroutine and turns
// its transient buffers into owned VideoFrames.
//
// Thread-safety: all methods are safe for concurrent use.
type DecoderEngine struct {
	cfg     DecoderConfig
	factory native.Factory // Overrides cfg.Backend when set

	mu          sync.Mutex // Protects lifecycle fields below
	state       DecoderState
	native      native.Decoder
	probe       native.Probe
	metadata    Metadata
	running     bool   // Decode goroutine alive
	stopReq     bool   // Decode goroutine must exit at its next checkpoint
	generation  uint64 // Incremented by every Start; resets pacing
	eos         bool
	startedAt   time.Time
	interval    time.Duration // Pacing interval, 0 = unpaced
	curW, curH  int           // Decode goroutine only
	listener    atomic.Pointer[listenerRef]
	pool        *frame.Pool
	cadence     *cadence.Window
	wake        chan struct{}
	wg          sync.WaitGroup
	frames      uint64    // Atomic: frames copied and delivered
	bytesCopied uint64    // Atomic: bytes copied out of native buffers
	lastFrameAt int64     // Atomic: unix nanos of the last frame
	errorCounts [5]uint64 // Atomic: runtime errors indexed by ErrorCategory
}

// withDefaults validates cfg and fills in defaults.
func (cfg DecoderConfig) withDefaults() (DecoderConfig, error) {
	if cfg.DecodeTimeout < 0 {
		return cfg, fmt.Errorf("videoplayer: invalid decode timeout %s", cfg.DecodeTimeout)
	}
	if cfg.PoolSize < 0 {
		return cfg, fmt.Errorf("videoplayer: invalid pool size %d", cfg.PoolSize)
	}
	if cfg.CadenceWindow < 0 {
		return cfg, fmt.Errorf("videoplayer: invalid cadence window %d", cfg.CadenceWindow)
	}
	if cfg.Backend == "" {
		cfg.Backend = native.BackendAuto
	}
	if cfg.Backend != native.BackendAuto {
		if _, ok := native.Lookup(cfg.Backend); !ok {
			return cfg, fmt.Errorf("videoplayer: unknown backend %q (available: %v)", cfg.Backend, native.Backends())
		}
	}
	if cfg.DecodeTimeout == 0 {
		cfg.DecodeTimeout = DefaultDecodeTimeout
	}
	return cfg, nil
}

type listenerRef struct {
	Listener
}

// NewDecoderEngine creates an engine with fail-fast config validation.
//
// A nil listener is allowed; decoded frames are then released immediately.
func NewDecoderEngine(cfg DecoderConfig, listener Listener) (*DecoderEngine, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	e := &DecoderEngine{
		cfg:     cfg,
		pool:    frame.NewPool(cfg.PoolSize),
		cadence: cadence.NewWindow(cfg.CadenceWindow),
		wake:    make(chan struct{}, 1),
	}
	if listener != nil {
		e.listener.Store(&listenerRef{listener})
	}
	return e, nil
}

// Init opens path and probes the video stream.
//
// On success the listener receives OnVideoMetadataReady exactly once before
// Init returns. On failure the error is an *InitializationError and no
// metadata is delivered. A second call after success is a no-op that
// returns the cached metadata.
func (e *DecoderEngine) Init(path string) (Metadata, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateReleased:
		return Metadata{}, ErrReleased
	case StateUninitialized:
	default:
		slog.Debug("decoder: already initialized, ignoring init",
			"path", path,
			"session_id", e.metadata.SessionID,
		)
		return e.metadata, nil
	}

	if path == "" {
		return Metadata{}, &InitializationError{Path: path, Category: CategoryResource, Err: errors.New("empty path")}
	}

	backend, factory := "custom", e.factory
	if factory == nil {
		name, f, err := native.Select(path, e.cfg.Backend)
		if err != nil {
			return Metadata{}, &InitializationError{Path: path, Category: CategoryCodec, Err: err}
		}
		backend, factory = name, f
	}

	dec := factory()
	probe, err := dec.Init(path)
	if err == nil && (probe.Width <= 0 || probe.Height <= 0) {
		err = &native.Error{Category: native.CategoryCodec, Op: "init",
			Err: fmt.Errorf("invalid video dimensions %dx%d", probe.Width, probe.Height)}
	}
	if err != nil {
		dec.Release()
		initErr := &InitializationError{Path: path, Backend: backend, Category: native.CategoryOf(err), Err: err}
		slog.Error("decoder: initialization failed",
			"path", path,
			"backend", backend,
			"category", initErr.Category.String(),
			"error", err,
		)
		return Metadata{}, initErr
	}

	e.native = dec
	e.probe = probe
	e.curW, e.curH = probe.Width, probe.Height
	e.metadata = Metadata{
		Width:     probe.Width,
		Height:    probe.Height,
		FrameRate: probe.FrameRate,
		Backend:   backend,
		SessionID: uuid.NewString(),
	}
	if !e.cfg.DisablePacing && !probe.SelfPaced && probe.FrameRate > 0 {
		e.interval = time.Duration(float64(time.Second) / probe.FrameRate)
	}
	e.state = StateInitialized

	slog.Info("decoder: initialized",
		"path", path,
		"backend", backend,
		"resolution", fmt.Sprintf("%dx%d", probe.Width, probe.Height),
		"fps", probe.FrameRate,
		"paced", e.interval > 0,
		"session_id", e.metadata.SessionID,
	)

	if l := e.currentListener(); l != nil {
		l.OnVideoMetadataReady(probe.Width, probe.Height, probe.FrameRate)
	}

	return e.metadata, nil
}

// Start begins decoding on a dedicated goroutine.
//
// No-op when already decoding, before a successful Init, after Release, or
// once the stream has ended.
func (e *DecoderEngine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateUninitialized:
		slog.Warn("decoder: start called before successful init, ignoring")
		return
	case StateReleased:
		slog.Warn("decoder: start called after release, ignoring")
		return
	case StateDecoding:
		slog.Debug("decoder: already decoding, ignoring start")
		return
	}
	if e.eos {
		slog.Warn("decoder: stream already ended, ignoring start",
			"session_id", e.metadata.SessionID,
			"frames_decoded", atomic.LoadUint64(&e.frames),
		)
		return
	}

	e.state = StateDecoding
	e.stopReq = false
	e.generation++
	if e.startedAt.IsZero() {
		e.startedAt = time.Now()
	} else {
		// The pause would read as one long interval
		e.cadence.Reset()
	}
	e.native.StartDecoding()

	if e.running {
		// The previous loop has not reached its checkpoint yet and simply
		// keeps going.
		slog.Debug("decoder: resumed before decode loop exited")
		return
	}

	e.running = true
	e.wg.Add(1)
	go e.decodeLoop(e.native)

	slog.Info("decoder: decoding started",
		"session_id", e.metadata.SessionID,
		"generation", e.generation,
	)
}

// Stop asks the decode goroutine to halt after the unit in flight. No-op
// when not decoding.
func (e *DecoderEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateDecoding {
		slog.Debug("decoder: not decoding, ignoring stop", "state", e.state.String())
		return
	}

	e.state = StateStopped
	e.stopReq = true
	e.native.StopDecoding()
	e.signalWake()

	slog.Info("decoder: stop requested",
		"session_id", e.metadata.SessionID,
		"frames_decoded", atomic.LoadUint64(&e.frames),
	)
}

// Release tears down the native decoder, drops pooled buffers and forgets
// the listener. Idempotent.
//
// Release does not wait for the decode goroutine; if one is running it
// releases the native decoder itself at its next checkpoint. A frame already
// being delivered may still reach the listener. Use Wait to block until the
// goroutine is gone.
func (e *DecoderEngine) Release() {
	e.mu.Lock()
	if e.state == StateReleased {
		e.mu.Unlock()
		slog.Debug("decoder: already released")
		return
	}

	prev := e.state
	e.state = StateReleased
	e.stopReq = true
	dec, running := e.native, e.running
	e.native = nil
	e.mu.Unlock()

	e.listener.Store(nil)
	e.signalWake()

	if dec != nil && !running {
		dec.Release()
	}
	e.pool.Close()

	slog.Info("decoder: released",
		"previous_state", prev.String(),
		"session_id", e.metadata.SessionID,
		"frames_decoded", atomic.LoadUint64(&e.frames),
	)
}

// Wait blocks until the decode goroutine has exited or ctx is done.
func (e *DecoderEngine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("videoplayer: waiting for decode loop: %w", ctx.Err())
	}
}

// State returns the current lifecycle state.
func (e *DecoderEngine) State() DecoderState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Metadata returns the stream metadata (zero before Init). Width and Height
// follow mid-stream resolution changes.
func (e *DecoderEngine) Metadata() Metadata {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metadata
}

// Stats returns current decoder statistics.
//
// Thread-safe - uses atomic operations for counters.
func (e *DecoderEngine) Stats() DecoderStats {
	e.mu.Lock()
	state, md, eos, startedAt := e.state, e.metadata, e.eos, e.startedAt
	e.mu.Unlock()

	frames := atomic.LoadUint64(&e.frames)

	var fpsReal float64
	if !startedAt.IsZero() {
		if uptime := time.Since(startedAt).Seconds(); uptime > 0 {
			fpsReal = float64(frames) / uptime
		}
	}

	var latencyMS int64
	if last := atomic.LoadInt64(&e.lastFrameAt); last != 0 {
		latencyMS = time.Since(time.Unix(0, last)).Milliseconds()
	}

	var resolution string
	if md.Width > 0 {
		resolution = fmt.Sprintf("%dx%d", md.Width, md.Height)
	}

	pool := e.pool.Stats()

	return DecoderStats{
		State:          state,
		Backend:        md.Backend,
		Resolution:     resolution,
		FPSTarget:      md.FrameRate,
		FPSReal:        fpsReal,
		LatencyMS:      latencyMS,
		FramesDecoded:  frames,
		BytesCopied:    atomic.LoadUint64(&e.bytesCopied),
		BufferAllocs:   pool.Allocs,
		BufferReuses:   pool.Reuses,
		EndOfStream:    eos,
		ErrorsCodec:    atomic.LoadUint64(&e.errorCounts[CategoryCodec]),
		ErrorsResource: atomic.LoadUint64(&e.errorCounts[CategoryResource]),
		ErrorsNetwork:  atomic.LoadUint64(&e.errorCounts[CategoryNetwork]),
		ErrorsAuth:     atomic.LoadUint64(&e.errorCounts[CategoryAuth]),
		ErrorsUnknown:  atomic.LoadUint64(&e.errorCounts[CategoryUnknown]),
		Cadence:        e.cadence.Stats(),
	}
}

// decodeLoop pulls work units until Stop, Release or end of stream.
//
// The stop flag is only checked between units, so the unit in flight always
// completes.
func (e *DecoderEngine) decodeLoop(dec native.Decoder) {
	defer e.wg.Done()

	var (
		pace       pacer
		generation uint64
	)

	for {
		gen, ok := e.checkpoint(dec)
		if !ok {
			return
		}
		if gen != generation {
			generation = gen
			pace.reset(e.interval)
		}

		e.sleep(pace.delay(time.Now()))

		err := dec.DecodeNext(e.cfg.DecodeTimeout, e.onNativeFrame)
		switch {
		case err == nil:
			pace.delivered()

		case errors.Is(err, native.ErrNoFrame):
			// Nothing ready yet

		case errors.Is(err, io.EOF):
			e.endOfStream(dec)
			return

		case errors.Is(err, native.ErrReleased):
			e.exitLoop(dec)
			return

		default:
			e.reportError(err)
			// A persistent failure must not spin the loop
			e.sleep(e.cfg.DecodeTimeout)
		}
	}
}

// checkpoint returns false (and releases the native decoder if the engine
// was released) when the loop must exit. The stop request is observed and
// the loop marked gone in one critical section, so a concurrent Start either
// keeps this loop alive or sees it gone and spawns a new one.
func (e *DecoderEngine) checkpoint(dec native.Decoder) (uint64, bool) {
	e.mu.Lock()
	if !e.stopReq {
		gen := e.generation
		e.mu.Unlock()
		return gen, true
	}
	release := e.markExitedLocked()
	e.mu.Unlock()

	e.finishExit(dec, release)
	return 0, false
}

// exitLoop marks the loop as gone. Exactly one of exitLoop and Release sees
// the released state with no loop running, and that one releases dec.
func (e *DecoderEngine) exitLoop(dec native.Decoder) {
	e.mu.Lock()
	release := e.markExitedLocked()
	e.mu.Unlock()

	e.finishExit(dec, release)
}

// markExitedLocked clears running and reports whether the loop owns the
// native release. Caller holds e.mu.
func (e *DecoderEngine) markExitedLocked() bool {
	e.running = false
	return e.state == StateReleased
}

func (e *DecoderEngine) finishExit(dec native.Decoder, release bool) {
	if release {
		dec.Release()
	}

	slog.Debug("decoder: decode loop exited",
		"session_id", e.metadata.SessionID,
		"frames_decoded", atomic.LoadUint64(&e.frames),
	)
}

func (e *DecoderEngine) endOfStream(dec native.Decoder) {
	e.mu.Lock()
	e.eos = true
	if e.state == StateDecoding {
		e.state = StateStopped
	}
	release := e.markExitedLocked()
	e.mu.Unlock()

	e.finishExit(dec, release)
	// Nothing will be copied again; drop the idle buffers
	e.pool.Drain()

	slog.Info("decoder: end of stream",
		"session_id", e.metadata.SessionID,
		"frames_decoded", atomic.LoadUint64(&e.frames),
	)

	if l, ok := e.currentListener().(EndOfStreamListener); ok {
		l.OnEndOfStream()
	}
}

// onNativeFrame copies one transient native picture into pooled storage and
// hands it to the listener. Runs on the decode goroutine.
func (e *DecoderEngine) onNativeFrame(buf []byte, width, height int) {
	now := time.Now()

	f, err := e.pool.Copy(width, height, buf)
	if err != nil {
		e.reportError(&native.Error{Category: native.CategoryCodec, Op: "copy", Err: err})
		return
	}

	index := atomic.AddUint64(&e.frames, 1) - 1
	f.Index = index
	if e.probe.FrameRate > 0 {
		f.PTS = time.Duration(float64(index) * float64(time.Second) / e.probe.FrameRate)
	}
	f.DecodedAt = now
	f.TraceID = uuid.NewString()

	atomic.AddUint64(&e.bytesCopied, uint64(f.Size()))
	atomic.StoreInt64(&e.lastFrameAt, now.UnixNano())
	e.cadence.Add(now)

	if width != e.curW || height != e.curH {
		e.resolutionChanged(width, height)
	}

	l := e.currentListener()
	if l == nil {
		f.Release()
		return
	}

	slog.Debug("decoder: frame decoded",
		"index", index,
		"size_bytes", f.Size(),
		"trace_id", f.TraceID,
	)
	l.OnFrameDecoded(f, width, height)
}

func (e *DecoderEngine) resolutionChanged(width, height int) {
	slog.Info("decoder: resolution changed",
		"from", fmt.Sprintf("%dx%d", e.curW, e.curH),
		"to", fmt.Sprintf("%dx%d", width, height),
		"session_id", e.metadata.SessionID,
	)
	e.curW, e.curH = width, height

	e.mu.Lock()
	e.metadata.Width, e.metadata.Height = width, height
	e.mu.Unlock()
}

// reportError classifies err, counts it and hands a *RuntimeDecodeError to
// the listener. Decoder state is left alone.
func (e *DecoderEngine) reportError(err error) {
	category := native.CategoryOf(err)
	if int(category) < len(e.errorCounts) {
		atomic.AddUint64(&e.errorCounts[category], 1)
	}

	rerr := &RuntimeDecodeError{
		Category:      category,
		FramesDecoded: atomic.LoadUint64(&e.frames),
		Err:           err,
	}

	slog.Error("decoder: runtime decode error",
		"error", err,
		"category", category.String(),
		"frames_decoded", rerr.FramesDecoded,
		"session_id", e.metadata.SessionID,
	)

	if l := e.currentListener(); l != nil {
		l.OnError(rerr)
	}
}

func (e *DecoderEngine) currentListener() Listener {
	if ref := e.listener.Load(); ref != nil {
		return ref.Listener
	}
	return nil
}

// sleep waits for d or until Stop/Release wakes the loop.
func (e *DecoderEngine) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-e.wake:
	}
}

func (e *DecoderEngine) signalWake() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// pacer spaces frame delivery at a fixed interval for backends that decode
// faster than real time.
type pacer struct {
	interval time.Duration
	epoch    time.Time
	count    uint64
}

func (p *pacer) reset(interval time.Duration) {
	p.interval = interval
	p.epoch = time.Time{}
	p.count = 0
}

// delay returns how long to wait before decoding the next frame.
func (p *pacer) delay(now time.Time) time.Duration {
	if p.interval <= 0 {
		return 0
	}
	if p.epoch.IsZero() {
		p.epoch = now
		return 0
	}

	d := p.epoch.Add(time.Duration(p.count) * p.interval).Sub(now)
	if d < -maxPacingLag {
		p.epoch = now
		p.count = 0
		return 0
	}
	return max(d, 0)
}

func (p *pacer) delivered() {
	p.count++
}
