package occupancy

import (
	"image"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-parking/images"
	"github.com/nvr-ai/go-parking/regions"
)

var space = regions.Region{X: 0, Y: 0, Width: 107, Height: 48, ID: "S0"}

// mapWithCount returns a 720x480 map with exactly n set pixels inside space.
func mapWithCount(n int) images.BinaryMap {
	m := images.NewBinaryMap(720, 480)
	for i := 0; i < n; i++ {
		x, y := i%space.Width, i/space.Width
		m.Pix[y*m.Stride+x] = 255
	}
	return m
}

func grayFill(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func TestPixelCountBoundary(t *testing.T) {
	c := NewPixelCount(0)
	require.Equal(t, OccupiedPixelThreshold, c.Threshold)

	tests := []struct {
		count    int
		occupied bool
	}{
		{0, false},
		{899, false},
		{900, true},
		{1041, true},
		{space.Area(), true},
	}
	for _, tt := range tests {
		res, err := c.Classify(Input{Binary: mapWithCount(tt.count)}, []regions.Region{space})
		require.NoError(t, err)
		require.Len(t, res.Statuses, 1)
		st := res.Statuses[0]
		assert.Equal(t, tt.count, st.Count)
		assert.Equal(t, tt.occupied, st.Occupied, "count %d", tt.count)
		assert.GreaterOrEqual(t, st.Confidence, 0.0)
		assert.LessOrEqual(t, st.Confidence, 1.0)
	}
}

func TestPixelCountConfidence(t *testing.T) {
	c := NewPixelCount(0)
	res, err := c.Classify(Input{Binary: mapWithCount(900)}, []regions.Region{space})
	require.NoError(t, err)
	assert.Zero(t, res.Statuses[0].Confidence)

	res, err = c.Classify(Input{Binary: mapWithCount(0)}, []regions.Region{space})
	require.NoError(t, err)
	assert.InDelta(t, 900/(5136*0.3), res.Statuses[0].Confidence, 1e-9)

	res, err = c.Classify(Input{Binary: mapWithCount(space.Area())}, []regions.Region{space})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Statuses[0].Confidence)
}

func TestPixelCountEmptyCropIsFree(t *testing.T) {
	m := mapWithCount(space.Area())
	rs := []regions.Region{
		{X: 800, Y: 10, Width: 107, Height: 48},
		{X: 0, Y: 500, Width: 10, Height: 10},
		space,
	}
	res, err := NewPixelCount(0).Classify(Input{Binary: m}, rs)
	require.NoError(t, err)
	require.Len(t, res.Statuses, 3)

	for _, st := range res.Statuses[:2] {
		assert.True(t, st.Empty)
		assert.False(t, st.Occupied)
		assert.Zero(t, st.Count)
	}
	assert.True(t, res.Statuses[2].Occupied)
	assert.Equal(t, 3, res.Stats.Total)
	assert.Equal(t, 1, res.Stats.Occupied)
	assert.Equal(t, 2, res.Stats.Free)
}

func TestPixelCountClipsPartialRegions(t *testing.T) {
	m := images.NewBinaryMap(100, 100)
	for i := range m.Pix {
		m.Pix[i] = 255
	}
	res, err := NewPixelCount(0).Classify(Input{Binary: m}, []regions.Region{{X: 70, Y: 70, Width: 107, Height: 48}})
	require.NoError(t, err)
	assert.Equal(t, 30*30, res.Statuses[0].Count)
	assert.True(t, res.Statuses[0].Occupied)
}

func TestPixelCountConfidenceUsesRegionArea(t *testing.T) {
	// Only a 30x30 corner of the space lies inside the map. Confidence is
	// still scaled by the full 107x48 region.
	m := images.NewBinaryMap(100, 100)
	r := regions.Region{X: 70, Y: 70, Width: 107, Height: 48}
	res, err := NewPixelCount(0).Classify(Input{Binary: m}, []regions.Region{r})
	require.NoError(t, err)
	st := res.Statuses[0]
	assert.Zero(t, st.Count)
	assert.False(t, st.Occupied)
	assert.InDelta(t, 900/(5136*0.3), st.Confidence, 1e-9)
}

func TestPixelCountPreservesOrderAndIDs(t *testing.T) {
	m := images.NewBinaryMap(400, 100)
	for y := 0; y < 48; y++ {
		for x := 200; x < 307; x++ {
			m.Pix[y*m.Stride+x] = 255
		}
	}
	rs := []regions.Region{
		{X: 200, Y: 0, Width: 107, Height: 48, ID: "B"},
		{X: 0, Y: 0, Width: 107, Height: 48},
		{X: 200, Y: 0, Width: 107, Height: 48, ID: "A"},
	}
	res, err := NewPixelCount(0).Classify(Input{Binary: m}, rs)
	require.NoError(t, err)

	ids := []string{res.Statuses[0].RegionID, res.Statuses[1].RegionID, res.Statuses[2].RegionID}
	assert.Equal(t, []string{"B", "space_1", "A"}, ids)
	assert.Equal(t, []bool{true, false, true}, []bool{res.Statuses[0].Occupied, res.Statuses[1].Occupied, res.Statuses[2].Occupied})
	for i, st := range res.Statuses {
		assert.Equal(t, i, st.Index)
	}
}

func TestPixelCountDeterministic(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	in := Input{Binary: mapWithCount(950), Timestamp: ts}
	rs := []regions.Region{space, {X: 10, Y: 10, Width: 50, Height: 50}}

	a, err := NewPixelCount(0).Classify(in, rs)
	require.NoError(t, err)
	b, err := NewPixelCount(0).Classify(in, rs)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, ts, a.Stats.Timestamp)
}

func TestMissingInput(t *testing.T) {
	rs := []regions.Region{space}

	_, err := NewPixelCount(0).Classify(Input{Gray: grayFill(10, 10, 0)}, rs)
	assert.True(t, errors.Is(err, ErrMissingInput))

	_, err = NewMeanIntensity(0).Classify(Input{Binary: mapWithCount(0)}, rs)
	assert.True(t, errors.Is(err, ErrMissingInput))

	_, err = NewBackground(newFakeModel, 0).Classify(Input{}, rs)
	assert.True(t, errors.Is(err, ErrMissingInput))
}

func TestMeanIntensityBoundary(t *testing.T) {
	tests := []struct {
		name      string
		value     uint8
		threshold float64
		occupied  bool
	}{
		{"dark", 20, 0, true},
		{"just below default", 58, 0, true},
		{"just above default", 59, 0, false},
		{"light", 200, 0, false},
		{"equal is free", 100, 100.0 / 255, false},
		{"one below equal", 99, 100.0 / 255, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewMeanIntensity(tt.threshold)
			res, err := c.Classify(Input{Gray: grayFill(200, 100, tt.value)}, []regions.Region{space})
			require.NoError(t, err)
			st := res.Statuses[0]
			assert.Equal(t, tt.occupied, st.Occupied)
			assert.InDelta(t, float64(tt.value)/255, st.Mean, 1e-12)
			assert.LessOrEqual(t, st.Confidence, 1.0)
		})
	}
}

func TestMeanIntensityExactThresholdIsFree(t *testing.T) {
	// 13 pixels of 59 and 7 of 58 sum to 1173, a mean of exactly 0.23.
	g := grayFill(5, 4, 58)
	for i := 0; i < 13; i++ {
		g.Pix[i] = 59
	}
	r := regions.Region{X: 0, Y: 0, Width: 5, Height: 4}

	res, err := NewMeanIntensity(0).Classify(Input{Gray: g}, []regions.Region{r})
	require.NoError(t, err)
	st := res.Statuses[0]
	assert.Equal(t, IntensityThreshold, st.Mean)
	assert.False(t, st.Occupied)

	g.Pix[0] = 58
	res, err = NewMeanIntensity(0).Classify(Input{Gray: g}, []regions.Region{r})
	require.NoError(t, err)
	assert.True(t, res.Statuses[0].Occupied)
}

func TestMeanIntensityEmptyCrop(t *testing.T) {
	res, err := NewMeanIntensity(0).Classify(Input{Gray: grayFill(50, 50, 0)}, []regions.Region{{X: 60, Y: 60, Width: 5, Height: 5}})
	require.NoError(t, err)
	assert.True(t, res.Statuses[0].Empty)
	assert.False(t, res.Statuses[0].Occupied)
}

func TestAggregate(t *testing.T) {
	ts := time.Now()
	s := Aggregate([]RegionStatus{{Occupied: true}, {}, {}, {Occupied: true}}, ts)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Occupied)
	assert.Equal(t, 2, s.Free)
	assert.Equal(t, 50.0, s.OccupancyRate)
	assert.Equal(t, 50.0, s.AvailabilityRate)
	assert.Equal(t, s.Total, s.Free+s.Occupied)

	empty := Aggregate(nil, ts)
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.OccupancyRate)
	assert.Equal(t, 100.0, empty.AvailabilityRate)
}

func TestStrategyParsing(t *testing.T) {
	for _, s := range []Strategy{StrategyPixelCount, StrategyMeanIntensity, StrategyBackground} {
		parsed, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	s, err := ParseStrategy(" Mean_Intensity ")
	require.NoError(t, err)
	assert.Equal(t, StrategyMeanIntensity, s)

	_, err = ParseStrategy("smart")
	assert.Error(t, err)
	assert.Equal(t, "unknown", Strategy(42).String())

	var u Strategy
	require.NoError(t, u.UnmarshalText([]byte("background")))
	assert.Equal(t, StrategyBackground, u)
	_, err = Strategy(42).MarshalText()
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, StrategyPixelCount, c.Strategy())
	assert.Equal(t, Needs{Binary: true}, c.Needs())

	c, err = New(Config{Strategy: StrategyMeanIntensity, IntensityThreshold: 0.3})
	require.NoError(t, err)
	assert.Equal(t, 0.3, c.(*MeanIntensity).Threshold)
	assert.Equal(t, Needs{Gray: true}, c.Needs())

	_, err = New(Config{Strategy: StrategyBackground})
	assert.Error(t, err)

	c, err = New(Config{Strategy: StrategyBackground, Models: newFakeModel})
	require.NoError(t, err)
	assert.Equal(t, StrategyBackground, c.Strategy())

	_, err = New(Config{Strategy: Strategy(9)})
	assert.Error(t, err)
}
