package kernels

import (
	"image"
	"math"

	"github.com/pkg/errors"
)

// fixedShift is the number of fractional bits in one kernel tap. Taps sum to
// exactly 1<<fixedShift, so a separable pass accumulates 2*fixedShift bits.
const fixedShift = 8

// GaussianKernel returns the 1-D fixed-point Gaussian kernel OpenCV uses for
// 8-bit images. A sigma <= 0 derives sigma from the size the way
// cv::getGaussianKernel does: 0.3*((size-1)*0.5-1)+0.8.
//
// Taps are rounded to 8 fractional bits from the outside in, carrying each
// rounding error into the next tap the way OpenCV's fixed-point kernel does.
// The centre tap takes the remainder so the kernel sums to exactly 256.
//
// @example
// GaussianKernel(3, 1.0) // [70 116 70]
func GaussianKernel(size int, sigma float64) ([]uint16, error) {
	if size < 1 || size%2 == 0 {
		return nil, errors.Errorf("gaussian kernel size must be odd and positive, got %d", size)
	}
	if sigma <= 0 {
		sigma = 0.3*(float64(size-1)*0.5-1) + 0.8
	}

	half := size / 2
	values := make([]float64, half)
	sum := 0.0
	for i := 0; i < half; i++ {
		x := float64(i - half)
		values[i] = math.Exp(-(x * x) / (2 * sigma * sigma))
		sum += values[i]
	}
	sum = 2*sum + 1

	kernel := make([]uint16, size)
	acc, carry := 0, 0.0
	for i := 0; i < half; i++ {
		adj := values[i]/sum*(1<<fixedShift) + carry
		v := math.RoundToEven(adj)
		carry = adj - v
		kernel[i], kernel[size-1-i] = uint16(v), uint16(v)
		acc += 2 * int(v)
	}
	kernel[half] = uint16(1<<fixedShift - acc)
	return kernel, nil
}

// GaussianBlur convolves src with kernel along both axes and writes the result
// to dst. Rows are filtered first; the intermediate keeps full precision and a
// single rounding happens on the way back to 8 bits, matching OpenCV's
// bit-exact GaussianBlur.
//
// Arguments:
//   - src: The source gray image.
//   - dst: The destination, same size as src. Must not alias src.
//   - kernel: Taps from GaussianKernel.
//   - edge: Border handling (OpenCV's default is EdgeReflect101).
//   - opt: Pool and parallelism options.
//
// Returns:
//   - error: An error if the images disagree in size.
func GaussianBlur(src, dst *image.Gray, kernel []uint16, edge EdgeMode, opt Options) error {
	if !sameSize(src, dst) {
		return errors.New("gaussian blur: source and destination differ in size")
	}
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	r := len(kernel) / 2

	// Horizontal pass: every value fits in 16 bits (255 * 256).
	tmp := opt.Pool.getU16(w * h)
	defer opt.Pool.putU16(tmp)

	rows(h, opt.Parallel, func(y int) {
		in := src.Pix[y*src.Stride : y*src.Stride+w]
		out := tmp[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var sum uint32
			for k := -r; k <= r; k++ {
				sum += uint32(kernel[k+r]) * uint32(in[mapCoord(x+k, w, edge)])
			}
			out[x] = uint16(sum)
		}
	})

	// Vertical pass with a single rounding step at 16 fractional bits.
	const round = 1 << (2*fixedShift - 1)
	rows(h, opt.Parallel, func(y int) {
		out := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for x := 0; x < w; x++ {
			var sum uint32
			for k := -r; k <= r; k++ {
				sum += uint32(kernel[k+r]) * uint32(tmp[mapCoord(y+k, h, edge)*w+x])
			}
			v := (sum + round) >> (2 * fixedShift)
			if v > 255 {
				v = 255
			}
			out[x] = uint8(v)
		}
	})
	return nil
}
