package regions

// IoU returns the intersection over union of two regions, between 0.0 and
// 1.0. Regions that only touch along an edge score 0.
//
// @example
// IoU(Region{X: 0, Y: 0, Width: 10, Height: 10}, Region{X: 5, Y: 5, Width: 10, Height: 10}) // 0.142857
func IoU(a, b Region) float64 {
	ix1 := max(a.X, b.X)
	iy1 := max(a.Y, b.Y)
	ix2 := min(a.X+a.Width, b.X+b.Width)
	iy2 := min(a.Y+a.Height, b.Y+b.Height)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	inter := interW * interH

	// Inclusion-exclusion.
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0.0
	}
	return float64(inter) / float64(union)
}

// Overlap is a pair of region indexes whose IoU reached the threshold.
type Overlap struct {
	A, B int
	IoU  float64
}

// Overlaps lists every pair of regions with IoU >= threshold, in index order.
// Duplicated spaces are a common mistake when editing region files by hand.
func Overlaps(rs []Region, threshold float64) []Overlap {
	var out []Overlap
	for i := 0; i < len(rs); i++ {
		for j := i + 1; j < len(rs); j++ {
			if v := IoU(rs[i], rs[j]); v > 0 && v >= threshold {
				out = append(out, Overlap{A: i, B: j, IoU: v})
			}
		}
	}
	return out
}
