package cv

import (
	"fmt"
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-parking/images"
	"github.com/nvr-ai/go-parking/occupancy"
	"github.com/nvr-ai/go-parking/regions"
)

// Style controls the overlay colours and strokes.
type Style struct {
	Free              color.RGBA
	Occupied          color.RGBA
	Banner            color.RGBA
	FreeThickness     int
	OccupiedThickness int
}

// DefaultStyle draws free spaces thick green and occupied spaces thin red.
func DefaultStyle() Style {
	return Style{
		Free:              color.RGBA{0, 255, 0, 0},
		Occupied:          color.RGBA{255, 0, 0, 0},
		Banner:            color.RGBA{0, 200, 0, 0},
		FreeThickness:     5,
		OccupiedThickness: 2,
	}
}

// Annotate draws every region over a copy of the frame with its count, plus a
// "Free: n/total" banner. Regions outside the frame are not drawn but still
// count as free, matching occupancy.Aggregate.
//
// Arguments:
//   - frame: The source frame. It is not modified.
//   - rs: The regions that were classified.
//   - statuses: One status per region, as returned by Classify.
//   - style: Colours and strokes.
//
// Returns:
//   - images.Frame: The annotated copy.
//   - error: An error if the inputs disagree.
func Annotate(frame images.Frame, rs []regions.Region, statuses []occupancy.RegionStatus, style Style) (images.Frame, error) {
	if len(rs) != len(statuses) {
		return images.Frame{}, errors.Errorf("annotate: %d regions but %d statuses", len(rs), len(statuses))
	}
	img, err := FrameToMat(frame)
	if err != nil {
		return images.Frame{}, err
	}
	defer img.Close()

	free := 0
	for i, st := range statuses {
		if !st.Occupied {
			free++
		}
		if st.Empty {
			continue
		}

		c, thickness := style.Occupied, style.OccupiedThickness
		if !st.Occupied {
			c, thickness = style.Free, style.FreeThickness
		}
		r := rs[i]
		gocv.Rectangle(&img, r.Rect(), c, thickness)
		gocv.PutText(&img, label(st), image.Pt(r.X, r.Y+r.Height-3), gocv.FontHersheySimplex, 0.5, c, 1)
	}

	banner := fmt.Sprintf("Free: %d/%d", free, len(statuses))
	gocv.PutText(&img, banner, image.Pt(100, 50), gocv.FontHersheySimplex, 1.0, style.Banner, 2)

	out, err := MatToFrame(img)
	if err != nil {
		return images.Frame{}, err
	}
	out.ID, out.Timestamp = frame.ID, frame.Timestamp
	return out, nil
}

func label(st occupancy.RegionStatus) string {
	if st.Count == 0 && st.Mean > 0 {
		return fmt.Sprintf("%.2f", st.Mean)
	}
	return fmt.Sprintf("%d", st.Count)
}

// EncodeJPEG encodes a frame with OpenCV's JPEG encoder.
func EncodeJPEG(frame images.Frame) ([]byte, error) {
	mat, err := FrameToMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, errors.Wrap(err, "imencode")
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}
