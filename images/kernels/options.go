// Package kernels implements the 8-bit image filters used by the occupancy
// preprocessor in pure Go.
//
// Every kernel reproduces the fixed-point arithmetic OpenCV applies to CV_8U
// images, so a frame filtered here yields the same bytes as the equivalent
// gocv call. Kernels operate on *image.Gray buffers indexed relative to their
// bounds and never allocate the destination themselves.
package kernels

import (
	"image"
	"sync"
)

// Options configures a kernel call.
type Options struct {
	Pool     *Pool // Optional buffer pool for intermediate reuse.
	Parallel bool  // Split rows across goroutines (worth it from ~480p up).
}

// Pool lets callers reuse intermediate buffers across frames to reduce GC
// pressure at video rates.
type Pool struct {
	gray sync.Pool // *image.Gray
	u16  sync.Pool // *[]uint16
}

// GetGray returns a gray buffer with the given bounds. Contents are undefined.
func (p *Pool) GetGray(bounds image.Rectangle) *image.Gray {
	if p == nil {
		return image.NewGray(bounds)
	}
	if v := p.gray.Get(); v != nil {
		img := v.(*image.Gray)
		if img.Rect == bounds {
			return img
		}
	}
	return image.NewGray(bounds)
}

// PutGray hands a buffer back to the pool. The caller must not use it afterwards.
func (p *Pool) PutGray(img *image.Gray) {
	if p == nil || img == nil {
		return
	}
	p.gray.Put(img)
}

func (p *Pool) getU16(n int) []uint16 {
	if p != nil {
		if v := p.u16.Get(); v != nil {
			buf := *(v.(*[]uint16))
			if cap(buf) >= n {
				return buf[:n]
			}
		}
	}
	return make([]uint16, n)
}

func (p *Pool) putU16(buf []uint16) {
	if p == nil || buf == nil {
		return
	}
	p.u16.Put(&buf)
}

// rows runs task for every y in [0, h), optionally across goroutines.
// Each task must only write its own output row.
func rows(h int, parallel bool, task func(y int)) {
	if !parallel || h < 4 {
		for y := 0; y < h; y++ {
			task(y)
		}
		return
	}

	chunk := chooseChunk(h)
	var wg sync.WaitGroup
	for start := 0; start < h; start += chunk {
		end := start + chunk
		if end > h {
			end = h
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for y := s; y < e; y++ {
				task(y)
			}
		}(start, end)
	}
	wg.Wait()
}

// chooseChunk picks a work chunk size that balances overhead and cache locality.
func chooseChunk(n int) int {
	switch {
	case n >= 2048:
		return 128
	case n >= 512:
		return 64
	default:
		return 32
	}
}

// sameSize reports whether two gray images have identical dimensions.
func sameSize(a, b *image.Gray) bool {
	return a.Rect.Dx() == b.Rect.Dx() && a.Rect.Dy() == b.Rect.Dy()
}
