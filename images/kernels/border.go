package kernels

// EdgeMode defines how sampling behaves outside the image bounds.
//   - EdgeReplicate: repeats edge pixels (aaa|abcd|ddd).
//   - EdgeReflect101: reflects around the edge pixel without repeating it (cb|abcd|cb).
//   - EdgeWrap: tiles the image (bcd|abcd|abc).
type EdgeMode int

const (
	EdgeReplicate EdgeMode = iota
	EdgeReflect101
	EdgeWrap
)

// String returns the OpenCV name of the border mode.
func (m EdgeMode) String() string {
	switch m {
	case EdgeReplicate:
		return "replicate"
	case EdgeReflect101:
		return "reflect101"
	case EdgeWrap:
		return "wrap"
	default:
		return "unknown"
	}
}

// mapCoord maps an index i to [0, n) according to edge mode.
func mapCoord(i, n int, mode EdgeMode) int {
	if i >= 0 && i < n {
		return i
	}
	switch mode {
	case EdgeReflect101:
		if n == 1 {
			return 0
		}
		for i < 0 || i >= n {
			if i < 0 {
				i = -i
			} else {
				i = 2*n - i - 2
			}
		}
		return i
	case EdgeWrap:
		i %= n
		if i < 0 {
			i += n
		}
		return i
	default:
		if i < 0 {
			return 0
		}
		return n - 1
	}
}
