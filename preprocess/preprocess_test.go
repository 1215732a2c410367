package preprocess

import (
	"image"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-parking/images"
	"github.com/nvr-ai/go-parking/images/kernels"
)

// lotFrame builds a light gray 720x480 frame with an optional dark block in
// the top-left space.
func lotFrame(dark bool) images.Frame {
	f := images.NewFrame(720, 480)
	f.Fill(f.Bounds(), 200, 200, 200)
	if dark {
		f.Fill(image.Rect(0, 0, 107, 48), 20, 20, 20)
	}
	return f
}

func TestNativeShapeInvariance(t *testing.T) {
	p := NewNative(Options{})
	for _, size := range [][2]int{{1, 1}, {3, 7}, {31, 17}, {720, 480}} {
		f := images.NewFrame(size[0], size[1])
		m, err := p.Preprocess(f)
		require.NoError(t, err)
		assert.Equal(t, size[0], m.Width())
		assert.Equal(t, size[1], m.Height())
		assert.True(t, m.IsBinary())
	}
}

func TestNativeRejectsInvalidFrames(t *testing.T) {
	p := NewNative(Options{})
	tests := []images.Frame{
		{},
		{Width: 10, Height: 0},
		{Width: 4, Height: 4, Pix: make([]uint8, 47)},
	}
	for _, f := range tests {
		_, err := p.Preprocess(f)
		assert.True(t, errors.Is(err, images.ErrInvalidFrame), "frame %dx%d: %v", f.Width, f.Height, err)

		_, err = p.Grayscale(f)
		assert.True(t, errors.Is(err, images.ErrInvalidFrame))
	}
}

func TestNativeUniformFrameHasNoForeground(t *testing.T) {
	m, err := NewNative(Options{}).Preprocess(lotFrame(false))
	require.NoError(t, err)
	assert.Zero(t, m.Count(m.Rect))
}

func TestNativeDarkSpaceCrossesThreshold(t *testing.T) {
	m, err := NewNative(Options{}).Preprocess(lotFrame(true))
	require.NoError(t, err)

	count := m.Count(image.Rect(0, 0, 107, 48))
	assert.Equal(t, 1041, count)
	assert.GreaterOrEqual(t, count, 900)
}

func TestNativeDeterministic(t *testing.T) {
	f := lotFrame(true)
	f.Fill(image.Rect(300, 200, 360, 260), 90, 40, 10)

	serial := NewNative(Options{})
	parallel := NewNative(Options{Parallel: true, Pool: &kernels.Pool{}})

	first, err := serial.Preprocess(f)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := parallel.Preprocess(f)
		require.NoError(t, err)
		assert.Equal(t, first.Pix, again.Pix, "run %d", i)
	}
}

func TestNativeGrayscale(t *testing.T) {
	f := images.NewFrame(3, 1)
	f.Set(0, 0, 255, 0, 0)
	f.Set(1, 0, 0, 255, 0)
	f.Set(2, 0, 0, 0, 255)

	gray, err := NewNative(Options{}).Grayscale(f)
	require.NoError(t, err)
	assert.Equal(t, []uint8{29, 150, 76}, gray.Pix)
}

func TestNativeStagesMatchPreprocess(t *testing.T) {
	p := NewNative(Options{})
	f := lotFrame(true)

	st, err := p.Stages(f)
	require.NoError(t, err)
	require.NotNil(t, st.Blurred)
	require.NotNil(t, st.Threshold)
	require.NotNil(t, st.Median)

	m, err := p.Preprocess(f)
	require.NoError(t, err)
	assert.Equal(t, m.Pix, st.Binary.Pix)

	// Dilation never removes foreground.
	assert.GreaterOrEqual(t, st.Binary.Count(st.Binary.Rect), kernels.CountValue(st.Median, st.Median.Rect, 255))
}

func TestBatchPreprocess(t *testing.T) {
	p := NewNative(Options{})
	frames := []images.Frame{lotFrame(false), lotFrame(true), lotFrame(false)}

	maps, err := BatchPreprocess(p, frames, 2)
	require.NoError(t, err)
	require.Len(t, maps, 3)
	assert.Zero(t, maps[0].Count(maps[0].Rect))
	assert.Equal(t, 1041, maps[1].Count(image.Rect(0, 0, 107, 48)))
	assert.Zero(t, maps[2].Count(maps[2].Rect))

	_, err = BatchPreprocess(p, []images.Frame{lotFrame(false), {}}, 0)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, images.ErrInvalidFrame))
}

func TestNativeName(t *testing.T) {
	assert.Equal(t, BackendNative, NewNative(Options{}).Name())
}

func BenchmarkNativePreprocess(b *testing.B) {
	f := lotFrame(true)
	cases := []struct {
		name string
		opts Options
	}{
		{"serial", Options{}},
		{"parallel", Options{Parallel: true}},
		{"parallel_pooled", Options{Parallel: true, Pool: &kernels.Pool{}}},
	}
	for _, c := range cases {
		b.Run(c.name, func(b *testing.B) {
			p := NewNative(c.opts)
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := p.Preprocess(f); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
