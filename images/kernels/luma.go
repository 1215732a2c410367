package kernels

import (
	"image"

	"github.com/pkg/errors"
)

// Fixed-point BT.601 weights used by OpenCV's COLOR_BGR2GRAY on 8-bit input.
const (
	lumaShift = 14
	lumaB     = 1868
	lumaG     = 9617
	lumaR     = 4899
)

// Luma converts one BGR pixel to gray exactly like cv::cvtColor.
func Luma(b, g, r uint8) uint8 {
	return uint8((uint32(b)*lumaB + uint32(g)*lumaG + uint32(r)*lumaR + 1<<(lumaShift-1)) >> lumaShift)
}

// BGRToGray converts packed BGR pixels (stride 3*width) into dst.
//
// Arguments:
//   - pix: The packed BGR pixel data.
//   - width: The width of the frame in pixels.
//   - height: The height of the frame in pixels.
//   - dst: The destination gray image, sized width x height.
//
// Returns:
//   - error: An error if the buffer sizes do not agree.
func BGRToGray(pix []uint8, width, height int, dst *image.Gray, opt Options) error {
	if len(pix) < width*height*3 {
		return errors.Errorf("bgr buffer holds %d bytes, need %d", len(pix), width*height*3)
	}
	if dst.Rect.Dx() != width || dst.Rect.Dy() != height {
		return errors.Errorf("destination is %dx%d, need %dx%d", dst.Rect.Dx(), dst.Rect.Dy(), width, height)
	}

	rows(height, opt.Parallel, func(y int) {
		src := pix[y*width*3 : (y+1)*width*3]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+width]
		for x := range out {
			out[x] = Luma(src[x*3], src[x*3+1], src[x*3+2])
		}
	})
	return nil
}
