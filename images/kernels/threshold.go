package kernels

import (
	"image"
	"math"

	"github.com/pkg/errors"
)

// AdaptiveThreshold binarises src against a Gaussian-weighted local mean, the
// way cv::adaptiveThreshold does with ADAPTIVE_THRESH_GAUSSIAN_C.
//
// The local mean is an 8-bit GaussianBlur of src with a blockSize x blockSize
// kernel (sigma derived from the size) and replicated borders. With inverse
// set a pixel becomes maxValue when src - mean <= -floor(c); otherwise the
// pixel becomes maxValue when src - mean > -ceil(c).
//
// Arguments:
//   - src: The source gray image.
//   - dst: The destination, same size as src. Must not alias src.
//   - maxValue: The value written for foreground pixels.
//   - blockSize: The neighbourhood size, odd and >= 3.
//   - c: The constant subtracted from the mean.
//   - inverse: THRESH_BINARY_INV when true, THRESH_BINARY otherwise.
//
// Returns:
//   - error: An error if the arguments are invalid.
func AdaptiveThreshold(src, dst *image.Gray, maxValue uint8, blockSize int, c float64, inverse bool, opt Options) error {
	if blockSize < 3 || blockSize%2 == 0 {
		return errors.Errorf("adaptive threshold block size must be odd and >= 3, got %d", blockSize)
	}
	if !sameSize(src, dst) {
		return errors.New("adaptive threshold: source and destination differ in size")
	}

	kernel, err := GaussianKernel(blockSize, 0)
	if err != nil {
		return errors.Wrap(err, "adaptive threshold kernel")
	}

	mean := opt.Pool.GetGray(src.Rect)
	defer opt.Pool.PutGray(mean)
	if err := GaussianBlur(src, mean, kernel, EdgeReplicate, opt); err != nil {
		return errors.Wrap(err, "adaptive threshold mean")
	}

	var idelta int
	if inverse {
		idelta = int(math.Floor(c))
	} else {
		idelta = int(math.Ceil(c))
	}

	// Lookup table indexed by src - mean + 255.
	var tab [768]uint8
	for i := range tab {
		fg := i-255 > -idelta
		if inverse {
			fg = i-255 <= -idelta
		}
		if fg {
			tab[i] = maxValue
		}
	}

	w, h := src.Rect.Dx(), src.Rect.Dy()
	rows(h, opt.Parallel, func(y int) {
		in := src.Pix[y*src.Stride : y*src.Stride+w]
		m := mean.Pix[y*mean.Stride : y*mean.Stride+w]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for x := 0; x < w; x++ {
			out[x] = tab[int(in[x])-int(m[x])+255]
		}
	})
	return nil
}
