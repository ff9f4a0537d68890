package frame

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i420(width, height int, y, u, v byte) []byte {
	ySize, cSize := PlaneSizes(width, height)
	buf := make([]byte, ySize+2*cSize)
	for i := 0; i < ySize; i++ {
		buf[i] = y
	}
	for i := 0; i < cSize; i++ {
		buf[ySize+i] = u
		buf[ySize+cSize+i] = v
	}
	return buf
}

func TestPlaneSizes(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		wantY, wantC  int
	}{
		{"720p", 1280, 720, 1280 * 720, 640 * 360},
		{"tiny", 2, 2, 4, 1},
		{"odd width truncates chroma", 5, 4, 20, 2 * 2},
		{"odd both", 3, 3, 9, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y, c := PlaneSizes(tt.width, tt.height)
			assert.Equal(t, tt.wantY, y)
			assert.Equal(t, tt.wantC, c)
		})
	}

	assert.Equal(t, 1280*720*3/2, BufferSize(1280, 720))
}

// TestPoolCopy_IsolatedFromSource validates that a frame never aliases the
// producer's transient buffer.
func TestPoolCopy_IsolatedFromSource(t *testing.T) {
	pool := NewPool(0)
	src := i420(4, 4, 16, 32, 48)

	f, err := pool.Copy(4, 4, src)
	require.NoError(t, err)

	// Producer reuses its buffer immediately after the callback.
	for i := range src {
		src[i] = 0xFF
	}

	assert.Equal(t, bytes.Repeat([]byte{16}, 16), f.Y)
	assert.Equal(t, bytes.Repeat([]byte{32}, 4), f.U)
	assert.Equal(t, bytes.Repeat([]byte{48}, 4), f.V)
	assert.Equal(t, FormatI420, f.Format)
	assert.Equal(t, 24, f.Size())
}

func TestPoolCopy_ShortBuffer(t *testing.T) {
	pool := NewPool(0)

	_, err := pool.Copy(4, 4, make([]byte, 23))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShortBuffer))

	_, err = pool.Copy(0, 4, make([]byte, 64))
	require.Error(t, err)
}

// TestPool_ReuseUntilGrowth validates buffer reuse when capacity suffices and
// reallocation only when the stream grows.
func TestPool_ReuseUntilGrowth(t *testing.T) {
	pool := NewPool(2)

	f1, err := pool.Copy(8, 8, i420(8, 8, 1, 2, 3))
	require.NoError(t, err)
	f1.Release()

	f2, err := pool.Copy(8, 8, i420(8, 8, 4, 5, 6))
	require.NoError(t, err)
	f2.Release()

	// Smaller frame fits in the same buffer.
	f3, err := pool.Copy(4, 4, i420(4, 4, 7, 8, 9))
	require.NoError(t, err)
	f3.Release()

	stats := pool.Stats()
	assert.Equal(t, uint64(1), stats.Allocs)
	assert.Equal(t, uint64(2), stats.Reuses)

	// Larger frame forces a new allocation.
	f4, err := pool.Copy(16, 16, i420(16, 16, 1, 1, 1))
	require.NoError(t, err)
	assert.Len(t, f4.Bytes(), BufferSize(16, 16))

	stats = pool.Stats()
	assert.Equal(t, uint64(2), stats.Allocs)
}

// TestPool_HeldFrameNotReused validates that a buffer still owned by a frame
// is never handed out again.
func TestPool_HeldFrameNotReused(t *testing.T) {
	pool := NewPool(4)

	held, err := pool.Copy(4, 4, i420(4, 4, 10, 20, 30))
	require.NoError(t, err)

	other, err := pool.Copy(4, 4, i420(4, 4, 99, 99, 99))
	require.NoError(t, err)
	defer other.Release()

	assert.Equal(t, byte(10), held.Y[0], "held frame must not be overwritten")
	assert.Equal(t, uint64(2), pool.Stats().Allocs)
}

func TestRelease_Idempotent(t *testing.T) {
	pool := NewPool(1)
	f, err := pool.Copy(2, 2, i420(2, 2, 1, 2, 3))
	require.NoError(t, err)

	f.Release()
	f.Release()

	assert.Nil(t, f.Y)
	assert.Equal(t, 1, pool.Stats().Idle)

	var nilFrame *VideoFrame
	assert.NotPanics(t, func() { nilFrame.Release() })
}

func TestPool_MaxIdle(t *testing.T) {
	pool := NewPool(1)
	a, _ := pool.Copy(2, 2, i420(2, 2, 0, 0, 0))
	b, _ := pool.Copy(2, 2, i420(2, 2, 0, 0, 0))

	a.Release()
	b.Release()

	assert.Equal(t, 1, pool.Stats().Idle)

	pool.Drain()
	assert.Equal(t, 0, pool.Stats().Idle)
}

func TestPool_Close(t *testing.T) {
	pool := NewPool(2)
	a, err := pool.Copy(2, 2, i420(2, 2, 0, 0, 0))
	require.NoError(t, err)

	pool.Close()
	a.Release()
	assert.Equal(t, 0, pool.Stats().Idle, "closed pool must not keep buffers")

	b, err := pool.Copy(2, 2, i420(2, 2, 5, 5, 5))
	require.NoError(t, err)
	assert.Equal(t, byte(5), b.Y[0])
	assert.Equal(t, uint64(2), pool.Stats().Allocs)
}
