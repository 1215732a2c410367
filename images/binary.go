package images

import (
	"image"

	"github.com/nvr-ai/go-parking/images/kernels"
)

// BinaryMap is a single channel mask where every pixel is 0 or 255. It always
// has the same size as the frame it was derived from and is anchored at (0, 0).
type BinaryMap struct {
	*image.Gray
}

// NewBinaryMap allocates an all-zero map of the given size.
func NewBinaryMap(width, height int) BinaryMap {
	return BinaryMap{Gray: image.NewGray(image.Rect(0, 0, width, height))}
}

// Width returns the map width, zero for an unset map.
func (m BinaryMap) Width() int {
	if m.Gray == nil {
		return 0
	}
	return m.Rect.Dx()
}

// Height returns the map height, zero for an unset map.
func (m BinaryMap) Height() int {
	if m.Gray == nil {
		return 0
	}
	return m.Rect.Dy()
}

// IsZero reports whether the map has no backing image.
func (m BinaryMap) IsZero() bool {
	return m.Gray == nil
}

// IsBinary reports whether every pixel is either 0 or 255.
func (m BinaryMap) IsBinary() bool {
	if m.Gray == nil {
		return false
	}
	for _, p := range m.Pix {
		if p != 0 && p != 255 {
			return false
		}
	}
	return true
}

// Count returns the number of 255 pixels inside r, clipped to the map.
func (m BinaryMap) Count(r image.Rectangle) int {
	if m.Gray == nil {
		return 0
	}
	return kernels.CountValue(m.Gray, r, 255)
}
