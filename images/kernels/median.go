package kernels

import (
	"image"

	"github.com/pkg/errors"
)

// maxMedianKernel bounds the window so a row task can keep it on the stack.
const maxMedianKernel = 7

// MedianBlur replaces each pixel with the median of its ksize x ksize
// neighbourhood, replicating border pixels like cv::medianBlur.
func MedianBlur(src, dst *image.Gray, ksize int, opt Options) error {
	if ksize < 3 || ksize%2 == 0 || ksize > maxMedianKernel {
		return errors.Errorf("median kernel size must be odd in [3, %d], got %d", maxMedianKernel, ksize)
	}
	if !sameSize(src, dst) {
		return errors.New("median blur: source and destination differ in size")
	}

	w, h := src.Rect.Dx(), src.Rect.Dy()
	r := ksize / 2
	n := ksize * ksize

	rows(h, opt.Parallel, func(y int) {
		var window [maxMedianKernel * maxMedianKernel]uint8
		out := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for x := 0; x < w; x++ {
			i := 0
			for dy := -r; dy <= r; dy++ {
				row := src.Pix[mapCoord(y+dy, h, EdgeReplicate)*src.Stride:]
				for dx := -r; dx <= r; dx++ {
					window[i] = row[mapCoord(x+dx, w, EdgeReplicate)]
					i++
				}
			}
			out[x] = selectMedian(window[:n])
		}
	})
	return nil
}

// selectMedian sorts the window in place and returns its middle element.
func selectMedian(v []uint8) uint8 {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j] < v[j-1]; j-- {
			v[j], v[j-1] = v[j-1], v[j]
		}
	}
	return v[len(v)/2]
}
