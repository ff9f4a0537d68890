package frame

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// DefaultMaxIdle is the number of released buffers a Pool keeps for reuse.
//
// One frame sits in the mailbox, one is being uploaded, one is being copied
// into; a fourth absorbs scheduling jitter.
const DefaultMaxIdle = 4

// Pool recycles frame storage between the decoder and the renderer.
//
// A buffer is reused when its capacity covers the requested size and is
// replaced only when the stream grows. Buffers only come back through
// VideoFrame.Release, so a buffer is never rewritten while another stage
// still owns the frame built on it.
//
// Thread-safety: all methods are safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	free    [][]byte
	maxIdle int
	closed  bool

	allocs uint64 // Atomic: buffers allocated (first use or growth)
	reuses uint64 // Atomic: buffers served from the free list
}

// PoolStats is a snapshot of Pool counters.
type PoolStats struct {
	Allocs uint64
	Reuses uint64
	Idle   int
}

// NewPool creates a pool that keeps at most maxIdle released buffers.
// maxIdle <= 0 selects DefaultMaxIdle.
func NewPool(maxIdle int) *Pool {
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}
	return &Pool{maxIdle: maxIdle}
}

// Copy builds an owned frame by copying an I420 image out of src.
//
// src may be reused by its producer as soon as Copy returns. Bytes past
// BufferSize(width, height) are ignored.
func (p *Pool) Copy(width, height int, src []byte) (*VideoFrame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("frame: invalid dimensions %dx%d", width, height)
	}

	size := BufferSize(width, height)
	if len(src) < size {
		return nil, fmt.Errorf("%w: got %d bytes, need %d for %dx%d",
			ErrShortBuffer, len(src), size, width, height)
	}

	buf := p.acquire(size)
	copy(buf, src[:size])

	f := &VideoFrame{
		Width:  width,
		Height: height,
		Format: FormatI420,
		pool:   p,
	}
	f.carve(buf)

	return f, nil
}

// Stats returns pool counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	idle := len(p.free)
	p.mu.Unlock()

	return PoolStats{
		Allocs: atomic.LoadUint64(&p.allocs),
		Reuses: atomic.LoadUint64(&p.reuses),
		Idle:   idle,
	}
}

// Drain drops every idle buffer.
func (p *Pool) Drain() {
	p.mu.Lock()
	p.free = nil
	p.mu.Unlock()
}

// Close drains the pool and stops it from keeping buffers released later.
// Copy still works after Close but always allocates.
func (p *Pool) Close() {
	p.mu.Lock()
	p.free = nil
	p.closed = true
	p.mu.Unlock()
}

// acquire pops the most recently released buffer if it is large enough.
func (p *Pool) acquire(size int) []byte {
	p.mu.Lock()
	for n := len(p.free); n > 0; n = len(p.free) {
		buf := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]

		if cap(buf) >= size {
			p.mu.Unlock()
			atomic.AddUint64(&p.reuses, 1)
			return buf[:size]
		}
		// Too small for the current stream: let it go.
	}
	p.mu.Unlock()

	atomic.AddUint64(&p.allocs, 1)
	return make([]byte, size)
}

func (p *Pool) put(buf []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || len(p.free) >= p.maxIdle {
		return
	}
	p.free = append(p.free, buf[:cap(buf)])
}
