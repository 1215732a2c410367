package kernels

import "image"

// CountValue returns how many pixels inside r equal v. The rectangle is given
// in the image's own coordinates and clipped to its bounds.
func CountValue(img *image.Gray, r image.Rectangle, v uint8) int {
	r = r.Intersect(img.Rect)
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := img.PixOffset(r.Min.X, y)
		for _, p := range img.Pix[off : off+r.Dx()] {
			if p == v {
				n++
			}
		}
	}
	return n
}

// Sum returns the total intensity inside r (clipped) and the number of pixels
// it covered. An empty intersection reports (0, 0). Callers divide once so a
// normalised mean is correctly rounded.
func Sum(img *image.Gray, r image.Rectangle) (uint64, int) {
	r = r.Intersect(img.Rect)
	if r.Empty() {
		return 0, 0
	}
	var sum uint64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := img.PixOffset(r.Min.X, y)
		for _, p := range img.Pix[off : off+r.Dx()] {
			sum += uint64(p)
		}
	}
	return sum, r.Dx() * r.Dy()
}
