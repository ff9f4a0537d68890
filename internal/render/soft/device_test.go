package soft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HenryThomas9587/media-demo/internal/frame"
	"github.com/HenryThomas9587/media-demo/internal/render"
)

// i420 builds a frame with one value per plane.
func i420(t *testing.T, width, height int, y, u, v byte) *frame.VideoFrame {
	t.Helper()

	ySize, cSize := frame.PlaneSizes(width, height)
	buf := make([]byte, frame.BufferSize(width, height))
	for i := range buf {
		switch {
		case i < ySize:
			buf[i] = y
		case i < ySize+cSize:
			buf[i] = u
		default:
			buf[i] = v
		}
	}

	f, err := frame.NewPool(0).Copy(width, height, buf)
	require.NoError(t, err)
	return f
}

func TestDevice_NeutralGray(t *testing.T) {
	dev := New()
	p := render.NewPipeline(dev, render.Config{})
	require.NoError(t, p.SurfaceCreated())

	p.SetFrame(i420(t, 4, 4, 128, 128, 128))
	require.NoError(t, p.DrawFrame())

	img := dev.Snapshot()
	require.NotNil(t, img)
	assert.Equal(t, 4, img.Bounds().Dx())

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			c := img.RGBAAt(x, y)
			assert.InDelta(t, 128, c.R, 1)
			assert.InDelta(t, 128, c.G, 1)
			assert.InDelta(t, 128, c.B, 1)
			assert.Equal(t, uint8(255), c.A, "output is opaque")
		}
	}
}

func TestDevice_ScalesToViewport(t *testing.T) {
	dev := New()
	p := render.NewPipeline(dev, render.Config{})
	require.NoError(t, p.SurfaceCreated())
	p.SurfaceChanged(8, 6)

	// Left half black, right half white
	f := i420(t, 2, 2, 0, 128, 128)
	f.Y[1], f.Y[3] = 255, 255
	p.SetFrame(f)
	require.NoError(t, p.DrawFrame())

	img := dev.Snapshot()
	require.NotNil(t, img)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 6, img.Bounds().Dy())

	assert.InDelta(t, 0, img.RGBAAt(0, 0).R, 2)
	assert.InDelta(t, 0, img.RGBAAt(3, 5).G, 2)
	assert.InDelta(t, 255, img.RGBAAt(4, 0).R, 2)
	assert.InDelta(t, 255, img.RGBAAt(7, 5).B, 2)
}

func TestDevice_ClearOnly(t *testing.T) {
	dev := New()
	p := render.NewPipeline(dev, render.Config{ClearColor: [4]float32{1, 0, 0, 1}})
	require.NoError(t, p.SurfaceCreated())
	p.SurfaceChanged(2, 2)

	require.NoError(t, p.DrawFrame())

	img := dev.Snapshot()
	require.NotNil(t, img)
	c := img.RGBAAt(1, 1)
	assert.Equal(t, uint8(255), c.R)
	assert.Equal(t, uint8(0), c.G)

	draws, _ := dev.Stats()
	assert.Equal(t, 0, draws)
}

func TestDevice_Lose(t *testing.T) {
	dev := New()
	p := render.NewPipeline(dev, render.Config{})
	require.NoError(t, p.SurfaceCreated())

	p.SetFrame(i420(t, 2, 2, 200, 128, 128))
	require.NoError(t, p.DrawFrame())

	dev.Lose()
	err := p.DrawFrame()
	assert.ErrorIs(t, err, render.ErrSurfaceLost)
	assert.Equal(t, uint64(1), p.Stats().SurfaceLosses)

	require.NoError(t, p.SurfaceCreated())
	require.NoError(t, p.DrawFrame())

	draws, uploads := dev.Stats()
	assert.Equal(t, 2, draws)
	assert.Equal(t, [3]int{2, 2, 2}, uploads, "last frame re-uploaded on the new surface")
	assert.InDelta(t, 200, dev.Snapshot().RGBAAt(0, 0).G, 2)
}

func TestDevice_Errors(t *testing.T) {
	dev := New()
	assert.Error(t, dev.AllocateTextures(2, 2), "before setup")

	require.NoError(t, dev.Setup())
	assert.Error(t, dev.AllocateTextures(0, 2))
	assert.Error(t, dev.DrawQuad(), "no textures")

	require.NoError(t, dev.AllocateTextures(4, 2))
	assert.Error(t, dev.Upload(render.PlaneU, 4, 2, make([]byte, 8)), "wrong plane size")
	assert.Error(t, dev.Upload(render.PlaneY, 4, 2, make([]byte, 3)), "short buffer")
	assert.Error(t, dev.Upload(render.Plane(7), 1, 1, make([]byte, 1)))
	assert.NoError(t, dev.Upload(render.PlaneU, 2, 1, make([]byte, 2)))

	assert.Nil(t, New().Snapshot())
}
