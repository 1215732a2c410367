// Package regions defines parking space rectangles and the files they are
// stored in.
package regions

import (
	"fmt"
	"image"

	"github.com/pkg/errors"
)

// Default size applied to legacy regions saved as bare (x, y) positions.
const (
	DefaultWidth  = 107
	DefaultHeight = 48
)

// ErrInvalidRegion is returned by Validate for malformed rectangles.
var ErrInvalidRegion = errors.New("invalid region")

// Region is one parking space in frame pixel coordinates.
type Region struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
	// ID is optional; Key derives one from the position when it is empty.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`
	// Confidence is carried through storage but never read by the classifier.
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Rect returns the region as an image rectangle (max exclusive).
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Center returns the integer centre point.
func (r Region) Center() image.Point {
	return image.Pt(r.X+r.Width/2, r.Y+r.Height/2)
}

// Area returns Width*Height.
func (r Region) Area() int {
	return r.Width * r.Height
}

// Contains reports whether (x, y) lies inside the region. Both edges are
// inclusive, so a click on the right or bottom border still selects it.
func (r Region) Contains(x, y int) bool {
	return r.X <= x && x <= r.X+r.Width && r.Y <= y && y <= r.Y+r.Height
}

// Validate checks 0 <= X, 0 <= Y, Width > 0 and Height > 0.
func (r Region) Validate() error {
	if r.X < 0 || r.Y < 0 {
		return errors.Wrapf(ErrInvalidRegion, "negative origin (%d, %d)", r.X, r.Y)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return errors.Wrapf(ErrInvalidRegion, "non-positive size %dx%d", r.Width, r.Height)
	}
	return nil
}

// Key returns the region ID, or space_<index> when the ID is empty.
func (r Region) Key(index int) string {
	if r.ID != "" {
		return r.ID
	}
	return fmt.Sprintf("space_%d", index)
}

// Clone returns a copy of the slice so callers can hold it without sharing.
func Clone(rs []Region) []Region {
	if rs == nil {
		return nil
	}
	return append(make([]Region, 0, len(rs)), rs...)
}

// ValidateAll validates every region and reports the first failure with its
// index.
func ValidateAll(rs []Region) error {
	for i, r := range rs {
		if err := r.Validate(); err != nil {
			return errors.Wrapf(err, "region %d", i)
		}
	}
	return nil
}

// Find returns the index of the region whose Key matches id.
func Find(rs []Region, id string) (int, bool) {
	for i, r := range rs {
		if r.Key(i) == id {
			return i, true
		}
	}
	return -1, false
}
