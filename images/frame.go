// Package images holds the frame and map types that flow through the occupancy
// pipeline, plus the encoding, loading and resizing helpers around them.
package images

import (
	"image"
	"image/color"
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidFrame is returned for frames with zero area or a pixel buffer too
// short for their dimensions.
var ErrInvalidFrame = errors.New("invalid frame")

// Frame is a single captured image in packed BGR order, 8 bits per channel.
// Pix has a stride of 3*Width. Frames are treated as immutable once built.
type Frame struct {
	// The sequence number assigned by the source.
	ID int `json:"id" yaml:"id"`
	// The packed BGR pixel data.
	Pix []uint8 `json:"-" yaml:"-"`
	// The width of the frame.
	Width int `json:"width" yaml:"width"`
	// The height of the frame.
	Height int `json:"height" yaml:"height"`
	// When the frame was captured.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// NewFrame allocates a black frame of the given size.
func NewFrame(width, height int) Frame {
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	return Frame{
		Pix:       make([]uint8, width*height*3),
		Width:     width,
		Height:    height,
		Timestamp: time.Now(),
	}
}

// Validate reports ErrInvalidFrame when the frame has no area or its buffer is
// too short.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return errors.Wrapf(ErrInvalidFrame, "dimensions %dx%d", f.Width, f.Height)
	}
	if len(f.Pix) < f.Width*f.Height*3 {
		return errors.Wrapf(ErrInvalidFrame, "buffer holds %d bytes, need %d", len(f.Pix), f.Width*f.Height*3)
	}
	return nil
}

// Bounds returns the frame rectangle anchored at the origin.
func (f Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// At returns the BGR triple at (x, y). Out-of-range coordinates return zeros.
func (f Frame) At(x, y int) (b, g, r uint8) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return 0, 0, 0
	}
	i := (y*f.Width + x) * 3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// Set writes the BGR triple at (x, y). Out-of-range coordinates are ignored.
func (f Frame) Set(x, y int, b, g, r uint8) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return
	}
	i := (y*f.Width + x) * 3
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = b, g, r
}

// Fill paints the rectangle (clipped to the frame) with one BGR colour.
func (f Frame) Fill(r image.Rectangle, b, g, red uint8) {
	r = r.Intersect(f.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := f.Pix[(y*f.Width+r.Min.X)*3 : (y*f.Width+r.Max.X)*3]
		for i := 0; i < len(row); i += 3 {
			row[i], row[i+1], row[i+2] = b, g, red
		}
	}
}

// Clone returns a deep copy of the frame.
func (f Frame) Clone() Frame {
	c := f
	c.Pix = append([]uint8(nil), f.Pix...)
	return c
}

// FrameFromImage converts any image.Image into a BGR frame. The result is
// anchored at the origin regardless of the source bounds.
//
// Arguments:
//   - img: The image to convert.
//
// Returns:
//   - Frame: The converted frame, stamped with the current time.
func FrameFromImage(img image.Image) Frame {
	b := img.Bounds()
	f := NewFrame(b.Dx(), b.Dy())

	switch src := img.(type) {
	case *image.RGBA:
		for y := 0; y < f.Height; y++ {
			in := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			out := f.Pix[y*f.Width*3:]
			for x := 0; x < f.Width; x++ {
				out[x*3], out[x*3+1], out[x*3+2] = in[x*4+2], in[x*4+1], in[x*4]
			}
		}
	case *image.Gray:
		for y := 0; y < f.Height; y++ {
			in := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			out := f.Pix[y*f.Width*3:]
			for x := 0; x < f.Width; x++ {
				v := in[x]
				out[x*3], out[x*3+1], out[x*3+2] = v, v, v
			}
		}
	default:
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				f.Set(x, y, c.B, c.G, c.R)
			}
		}
	}
	return f
}

// ToRGBA converts the frame to an opaque RGBA image for encoding and drawing.
func (f Frame) ToRGBA() *image.RGBA {
	img := image.NewRGBA(f.Bounds())
	if f.Validate() != nil {
		return img
	}
	for y := 0; y < f.Height; y++ {
		in := f.Pix[y*f.Width*3:]
		out := img.Pix[y*img.Stride:]
		for x := 0; x < f.Width; x++ {
			out[x*4], out[x*4+1], out[x*4+2], out[x*4+3] = in[x*3+2], in[x*3+1], in[x*3], 0xff
		}
	}
	return img
}
