package images

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Thumbnail scales img down to fit inside maxWidth x maxHeight while keeping its
// aspect ratio. Images already inside the box are returned unchanged.
//
// Arguments:
//   - img: The image to scale.
//   - maxWidth: The maximum width of the result.
//   - maxHeight: The maximum height of the result, 0 for no limit.
//
// Returns:
//   - image.Image: The scaled image.
//   - error: An error if maxWidth is not positive.
func Thumbnail(img image.Image, maxWidth, maxHeight int) (image.Image, error) {
	if maxWidth <= 0 {
		return nil, errors.Errorf("invalid thumbnail width: %d", maxWidth)
	}
	b := img.Bounds()
	if maxHeight <= 0 {
		maxHeight = b.Dy()
	}
	if b.Dx() <= maxWidth && b.Dy() <= maxHeight {
		return img, nil
	}
	return resize.Thumbnail(uint(maxWidth), uint(maxHeight), img, resize.Lanczos3), nil
}

// ResizeWidth scales img to the given width, deriving the height from the
// aspect ratio.
func ResizeWidth(img image.Image, width int) (image.Image, error) {
	if width <= 0 {
		return nil, errors.Errorf("invalid dimensions: width=%d", width)
	}
	return resize.Resize(uint(width), 0, img, resize.Bilinear), nil
}
