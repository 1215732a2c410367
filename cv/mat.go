// Package cv bridges the occupancy pipeline to OpenCV through gocv: Mat
// conversion, the OpenCV preprocessing backend, per-region MOG2 background
// models and the annotated overlay.
package cv

import (
	"crypto/md5"
	"fmt"
	"image"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-parking/images"
)

// MatToFrame copies a BGR (CV_8UC3) or gray (CV_8UC1) Mat into a frame.
//
// Arguments:
//   - mat: The Mat to copy. It is not closed.
//
// Returns:
//   - images.Frame: The copied frame, stamped with the current time.
//   - error: images.ErrInvalidFrame for empty Mats, or an error for other types.
func MatToFrame(mat gocv.Mat) (images.Frame, error) {
	if mat.Empty() {
		return images.Frame{}, errors.Wrap(images.ErrInvalidFrame, "empty mat")
	}

	switch mat.Type() {
	case gocv.MatTypeCV8UC3:
		data, err := mat.DataPtrUint8()
		if err != nil {
			return images.Frame{}, errors.Wrap(err, "mat data")
		}
		return images.Frame{
			Pix:       append([]uint8(nil), data...),
			Width:     mat.Cols(),
			Height:    mat.Rows(),
			Timestamp: time.Now(),
		}, nil
	case gocv.MatTypeCV8UC1:
		bgr := gocv.NewMat()
		defer bgr.Close()
		gocv.CvtColor(mat, &bgr, gocv.ColorGrayToBGR)
		return MatToFrame(bgr)
	default:
		return images.Frame{}, errors.Errorf("unsupported mat type %v", mat.Type())
	}
}

// FrameToMat copies a frame into a new CV_8UC3 Mat. The caller closes it.
func FrameToMat(f images.Frame) (gocv.Mat, error) {
	if err := f.Validate(); err != nil {
		return gocv.NewMat(), err
	}
	mat, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Pix[:f.Width*f.Height*3])
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "frame to mat")
	}
	return mat, nil
}

// GrayToMat copies a gray image into a new CV_8UC1 Mat. The caller closes it.
func GrayToMat(g *image.Gray) (gocv.Mat, error) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	buf := make([]byte, w*h)
	for y := 0; y < h; y++ {
		copy(buf[y*w:(y+1)*w], g.Pix[g.PixOffset(g.Rect.Min.X, g.Rect.Min.Y+y):])
	}
	mat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, buf)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "gray to mat")
	}
	return mat, nil
}

// MatToGray copies a CV_8UC1 Mat into a gray image anchored at the origin.
func MatToGray(mat gocv.Mat) (*image.Gray, error) {
	if mat.Type() != gocv.MatTypeCV8UC1 {
		return nil, errors.Errorf("want a CV_8UC1 mat, got %v", mat.Type())
	}
	data, err := mat.DataPtrUint8()
	if err != nil {
		return nil, errors.Wrap(err, "mat data")
	}
	g := image.NewGray(image.Rect(0, 0, mat.Cols(), mat.Rows()))
	copy(g.Pix, data)
	return g, nil
}

// ComputeMatChecksum generates a deterministic checksum for a Mat, handy for
// checking that two backends produced the same bytes.
//
// Arguments:
//   - mat: The Mat to compute checksum for.
//
// Returns:
//   - A hex-encoded MD5 checksum string, or "empty".
//
// @example
// fmt.Printf("binary map checksum: %s\n", ComputeMatChecksum(mat))
func ComputeMatChecksum(mat gocv.Mat) string {
	if mat.Empty() {
		return "empty"
	}

	data, _ := mat.DataPtrUint8()
	hash := md5.New()
	hash.Write(data)
	return fmt.Sprintf("%x", hash.Sum(nil))
}
