package kernels

import (
	"image"

	"github.com/pkg/errors"
)

// Dilate applies a ksize x ksize all-ones dilation the given number of times.
// Samples outside the image are ignored, which is what cv::dilate does with its
// default border value.
func Dilate(src, dst *image.Gray, ksize, iterations int, opt Options) error {
	if ksize < 1 || ksize%2 == 0 {
		return errors.Errorf("dilate kernel size must be odd and positive, got %d", ksize)
	}
	if iterations < 0 {
		return errors.Errorf("dilate iterations must be >= 0, got %d", iterations)
	}
	if !sameSize(src, dst) {
		return errors.New("dilate: source and destination differ in size")
	}

	w, h := src.Rect.Dx(), src.Rect.Dy()
	copyGray(src, dst)
	if iterations == 0 || w == 0 || h == 0 {
		return nil
	}

	tmp := opt.Pool.GetGray(src.Rect)
	defer opt.Pool.PutGray(tmp)

	r := ksize / 2
	for it := 0; it < iterations; it++ {
		// A rectangular element is separable: max along rows, then columns.
		rows(h, opt.Parallel, func(y int) {
			in := dst.Pix[y*dst.Stride : y*dst.Stride+w]
			out := tmp.Pix[y*tmp.Stride : y*tmp.Stride+w]
			for x := 0; x < w; x++ {
				var m uint8
				for k := max(0, x-r); k <= min(w-1, x+r); k++ {
					if in[k] > m {
						m = in[k]
					}
				}
				out[x] = m
			}
		})
		rows(h, opt.Parallel, func(y int) {
			out := dst.Pix[y*dst.Stride : y*dst.Stride+w]
			for x := 0; x < w; x++ {
				var m uint8
				for k := max(0, y-r); k <= min(h-1, y+r); k++ {
					if v := tmp.Pix[k*tmp.Stride+x]; v > m {
						m = v
					}
				}
				out[x] = m
			}
		})
	}
	return nil
}

func copyGray(src, dst *image.Gray) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	for y := 0; y < h; y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+w], src.Pix[y*src.Stride:y*src.Stride+w])
	}
}
