// Package test provides deterministic synthetic parking lots and frame
// sources for end-to-end tests and benchmarks.
package test

import (
	"context"
	"fmt"
	"image"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/nvr-ai/go-parking/images"
	"github.com/nvr-ai/go-parking/regions"
)

// Lot layout and shades.
const (
	LotOriginX  = 20
	LotOriginY  = 80
	SpaceGapX   = 13
	SpaceGapY   = 20
	AsphaltGray = 200
	CarGray     = 20
	// CarInset keeps a strip of asphalt between a car and its space border.
	CarInset = 2
)

// LotGenerator creates deterministic parking-lot frames. A car is a dark
// block filling its space, which the pixel count and mean intensity
// strategies both read as occupied.
//
// @example
// gen := NewLotGenerator(720, 480)
// spaces := gen.Spaces(10)
// frame := gen.Frame(spaces, map[int]bool{0: true, 3: true})
type LotGenerator struct {
	width  int
	height int
	seed   int64
	// Noise is the amplitude of the per-pixel jitter added to every frame.
	Noise int
}

// NewLotGenerator creates a generator for frames of the given size.
//
// Arguments:
// - width: Frame width in pixels.
// - height: Frame height in pixels.
//
// Returns:
// - A configured LotGenerator instance.
func NewLotGenerator(width, height int) *LotGenerator {
	return &LotGenerator{
		width:  width,
		height: height,
		seed:   42, // Deterministic seed for reproducibility.
		Noise:  3,
	}
}

// Capacity returns how many default-sized spaces fit in the frame.
func (g *LotGenerator) Capacity() int {
	cols := (g.width - LotOriginX + SpaceGapX) / (regions.DefaultWidth + SpaceGapX)
	rows := (g.height - LotOriginY + SpaceGapY) / (regions.DefaultHeight + SpaceGapY)
	if cols < 0 || rows < 0 {
		return 0
	}
	return cols * rows
}

// Spaces lays out n default-sized spaces row by row with ids P00, P01, ...
// It returns fewer when the frame has no room for n.
func (g *LotGenerator) Spaces(n int) []regions.Region {
	n = min(n, g.Capacity())
	cols := (g.width - LotOriginX + SpaceGapX) / (regions.DefaultWidth + SpaceGapX)

	rs := make([]regions.Region, 0, n)
	for i := 0; i < n; i++ {
		rs = append(rs, regions.Region{
			X:      LotOriginX + (i%cols)*(regions.DefaultWidth+SpaceGapX),
			Y:      LotOriginY + (i/cols)*(regions.DefaultHeight+SpaceGapY),
			Width:  regions.DefaultWidth,
			Height: regions.DefaultHeight,
			ID:     fmt.Sprintf("P%02d", i),
		})
	}
	return rs
}

// Frame paints the lot with a car in every space whose index is set in
// occupied. The same inputs always produce the same pixels.
func (g *LotGenerator) Frame(rs []regions.Region, occupied map[int]bool) images.Frame {
	f := images.NewFrame(g.width, g.height)
	f.Fill(f.Bounds(), AsphaltGray, AsphaltGray, AsphaltGray)
	for i, r := range rs {
		if occupied[i] {
			f.Fill(r.Rect().Inset(CarInset), CarGray, CarGray, CarGray)
		}
	}

	if g.Noise > 0 {
		rng := rand.New(rand.NewSource(g.seed))
		for i, v := range f.Pix {
			d := rng.Intn(2*g.Noise+1) - g.Noise
			f.Pix[i] = uint8(min(max(int(v)+d, 0), 255))
		}
	}
	f.Timestamp = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	return f
}

// Sequence renders n frames; schedule decides the occupied spaces of frame i.
func (g *LotGenerator) Sequence(rs []regions.Region, n int, schedule func(i int) map[int]bool) []images.Frame {
	frames := make([]images.Frame, n)
	for i := range frames {
		frames[i] = g.Frame(rs, schedule(i))
		frames[i].ID = i
		frames[i].Timestamp = frames[i].Timestamp.Add(time.Duration(i) * time.Second)
	}
	return frames
}

// CornerFrame is a 720x480 light frame with one dark space-sized block at the
// origin.
func CornerFrame() images.Frame {
	f := images.NewFrame(720, 480)
	f.Fill(f.Bounds(), AsphaltGray, AsphaltGray, AsphaltGray)
	f.Fill(image.Rect(0, 0, regions.DefaultWidth, regions.DefaultHeight), CarGray, CarGray, CarGray)
	return f
}

// FrameSource replays frames and then returns io.EOF. Failures maps frame
// positions to errors returned instead of the frame.
type FrameSource struct {
	mu       sync.Mutex
	frames   []images.Frame
	pos      int
	Failures map[int]error
	Closed   bool
}

// NewFrameSource replays frames in order.
func NewFrameSource(frames ...images.Frame) *FrameSource {
	return &FrameSource{frames: frames}
}

// Next returns the next frame.
func (s *FrameSource) Next(ctx context.Context) (images.Frame, error) {
	if err := ctx.Err(); err != nil {
		return images.Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos >= len(s.frames) {
		return images.Frame{}, io.EOF
	}
	i := s.pos
	s.pos++
	if err, ok := s.Failures[i]; ok {
		return images.Frame{}, err
	}
	return s.frames[i], nil
}

// Close marks the source closed.
func (s *FrameSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}
