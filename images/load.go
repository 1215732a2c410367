package images

import (
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Load opens an image file and applies its EXIF orientation so the pixels
// match what a viewer shows.
//
// Arguments:
//   - path: The file to open.
//
// Returns:
//   - Frame: The decoded frame.
//   - error: An error if the file cannot be opened or decoded.
func Load(path string) (Frame, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return Frame{}, errors.Wrapf(err, "open image %s", path)
	}
	return FrameFromImage(img), nil
}

// Decode reads an encoded image from r with EXIF auto-orientation.
func Decode(r io.Reader) (Frame, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return Frame{}, errors.Wrap(err, "decode image")
	}
	return FrameFromImage(img), nil
}

// Crop returns the part of the frame inside r as an image, clipped to the
// frame. The result is anchored at the origin.
func Crop(f Frame, r image.Rectangle) image.Image {
	return imaging.Crop(f.ToRGBA(), r.Intersect(f.Bounds()))
}
