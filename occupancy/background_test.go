package occupancy

import (
	"image"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-parking/regions"
)

var fakeClosed atomic.Int32

// fakeModel learns the first crop it sees and marks every pixel that moved
// more than 30 levels away from it.
type fakeModel struct {
	bg *image.Gray
}

func newFakeModel() (ForegroundModel, error) { return &fakeModel{}, nil }

func (m *fakeModel) Apply(crop *image.Gray) (*image.Gray, error) {
	w, h := crop.Rect.Dx(), crop.Rect.Dy()
	mask := image.NewGray(image.Rect(0, 0, w, h))
	if m.bg == nil {
		m.bg = image.NewGray(mask.Rect)
		for y := 0; y < h; y++ {
			copy(m.bg.Pix[y*m.bg.Stride:y*m.bg.Stride+w], crop.Pix[crop.PixOffset(crop.Rect.Min.X, crop.Rect.Min.Y+y):])
		}
		return mask, nil
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := int(crop.GrayAt(crop.Rect.Min.X+x, crop.Rect.Min.Y+y).Y) - int(m.bg.GrayAt(x, y).Y)
			if d > 30 || d < -30 {
				mask.Pix[y*mask.Stride+x] = 255
			}
		}
	}
	return mask, nil
}

func (m *fakeModel) Close() error {
	fakeClosed.Add(1)
	return nil
}

func TestBackgroundDetectsChange(t *testing.T) {
	c := NewBackground(newFakeModel, 0)
	rs := []regions.Region{
		{X: 0, Y: 0, Width: 10, Height: 10, ID: "A"},
		{X: 20, Y: 0, Width: 10, Height: 10, ID: "B"},
	}

	gray := grayFill(40, 20, 100)
	res, err := c.Classify(Input{Gray: gray}, rs)
	require.NoError(t, err)
	assert.False(t, res.Statuses[0].Occupied)
	assert.False(t, res.Statuses[1].Occupied)
	assert.Equal(t, 2, c.Models())

	// 20 of 100 pixels change in A (ratio 0.2 > 0.15); 10 change in B.
	changed := grayFill(40, 20, 100)
	for i := 0; i < 20; i++ {
		changed.Pix[(i/10)*changed.Stride+i%10] = 250
	}
	for i := 0; i < 10; i++ {
		changed.Pix[20+i] = 250
	}
	res, err = c.Classify(Input{Gray: changed}, rs)
	require.NoError(t, err)

	a, b := res.Statuses[0], res.Statuses[1]
	assert.True(t, a.Occupied)
	assert.Equal(t, 20, a.Count)
	assert.InDelta(t, 0.6, a.Confidence, 1e-9)
	assert.False(t, b.Occupied)
	assert.InDelta(t, 0.3, b.Confidence, 1e-9)
	assert.Equal(t, 1, res.Stats.Occupied)
}

func TestBackgroundRatioBoundary(t *testing.T) {
	c := NewBackground(newFakeModel, 0)
	rs := []regions.Region{{X: 0, Y: 0, Width: 10, Height: 10, ID: "A"}}
	_, err := c.Classify(Input{Gray: grayFill(10, 10, 0)}, rs)
	require.NoError(t, err)

	// Exactly 15% is not more than the threshold.
	g := grayFill(10, 10, 0)
	for i := 0; i < 15; i++ {
		g.Pix[i] = 255
	}
	res, err := c.Classify(Input{Gray: g}, rs)
	require.NoError(t, err)
	assert.False(t, res.Statuses[0].Occupied)
}

func TestBackgroundEmptyCropSkipsModel(t *testing.T) {
	c := NewBackground(newFakeModel, 0)
	res, err := c.Classify(Input{Gray: grayFill(10, 10, 0)}, []regions.Region{{X: 50, Y: 50, Width: 5, Height: 5}})
	require.NoError(t, err)
	assert.True(t, res.Statuses[0].Empty)
	assert.Zero(t, c.Models())
}

func TestBackgroundResetClosesModels(t *testing.T) {
	c := NewBackground(newFakeModel, 0)
	rs := []regions.Region{{X: 0, Y: 0, Width: 5, Height: 5}, {X: 5, Y: 0, Width: 5, Height: 5}}
	_, err := c.Classify(Input{Gray: grayFill(10, 10, 0)}, rs)
	require.NoError(t, err)
	require.Equal(t, 2, c.Models())

	before := fakeClosed.Load()
	require.NoError(t, c.Reset())
	assert.Zero(t, c.Models())
	assert.Equal(t, before+2, fakeClosed.Load())
	require.NoError(t, c.Close())
}

func TestBackgroundFactoryError(t *testing.T) {
	boom := errors.New("boom")
	c := NewBackground(func() (ForegroundModel, error) { return nil, boom }, 0)
	_, err := c.Classify(Input{Gray: grayFill(10, 10, 0)}, []regions.Region{{Width: 5, Height: 5}})
	assert.True(t, errors.Is(err, boom))
}
