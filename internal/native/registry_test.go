package native

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDecoder struct{ name string }

func (s *stubDecoder) Init(string) (Probe, error) { return Probe{}, nil }
func (s *stubDecoder) StartDecoding() {}
func (s *stubDecoder) StopDecoding() {}
func (s *stubDecoder) DecodeNext(time.Duration, FrameFunc) error { return ErrNoFrame }
func (s *stubDecoder) Release() {}

func stubFactory(name string) Factory {
	return func() Decoder { return &stubDecoder{name: name} }
}

func TestRegistry_Select(t *testing.T) {
	r := NewRegistry()
	r.Register("y4m", stubFactory("y4m"), ".y4m")
	r.Register("gstreamer", stubFactory("gstreamer"))

	tests := []struct {
		path    string
		backend string
		want    string
	}{
		{"clip.y4m", "", "y4m"},
		{"/tmp/CLIP.Y4M", BackendAuto, "y4m"},
		{"movie.mp4", BackendAuto, "gstreamer"},
		{"rtsp://cam/stream", "", "gstreamer"},
		{"clip.y4m", "gstreamer", "gstreamer"},
		{"movie.mp4", "y4m", "y4m"},
	}

	for _, tt := range tests {
		t.Run(tt.path+"/"+tt.backend, func(t *testing.T) {
			name, factory, err := r.Select(tt.path, tt.backend)
			require.NoError(t, err)
			assert.Equal(t, tt.want, name)
			assert.Equal(t, tt.want, factory().(*stubDecoder).name)
		})
	}
}

func TestRegistry_SelectErrors(t *testing.T) {
	r := NewRegistry()

	_, _, err := r.Select("movie.mp4", BackendAuto)
	assert.Error(t, err, "no fallback registered")

	r.Register("y4m", stubFactory("y4m"), ".y4m")
	_, _, err = r.Select("movie.mp4", "ffmpeg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffmpeg")
	assert.Contains(t, err.Error(), "y4m")
}

func TestRegistry_RegisterPanics(t *testing.T) {
	r := NewRegistry()
	r.Register("a", stubFactory("a"))

	assert.Panics(t, func() { r.Register("a", stubFactory("a")) })
	assert.Panics(t, func() { r.Register("b", nil) })
	assert.Equal(t, []string{"a"}, r.Backends())
}

func TestRegistry_FirstFallbackWins(t *testing.T) {
	r := NewRegistry()
	r.Register("first", stubFactory("first"))
	r.Register("second", stubFactory("second"))

	name, _, err := r.Select("x.mkv", "")
	require.NoError(t, err)
	assert.Equal(t, "first", name)
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()
	r.Register("y4m", stubFactory("y4m"), ".y4m")

	f, ok := r.Lookup("y4m")
	require.True(t, ok)
	assert.Equal(t, "y4m", f().(*stubDecoder).name)

	_, ok = r.Lookup("gstreamer")
	assert.False(t, ok)
}
