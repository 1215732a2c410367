package cv

import (
	"image"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-parking/occupancy"
)

// MOG2 parameters used for every parking space.
const (
	MOG2History       = 500
	MOG2VarThreshold  = 50.0
	MOG2DetectShadows = true
)

// ForegroundSegmenter wraps one MOG2 background model. It is stateful: every
// Apply updates the model, so keep one segmenter per region.
//
// Always call Close() when done to release native resources.
type ForegroundSegmenter struct {
	mu         sync.Mutex
	input      gocv.Mat                      // Last crop fed to the model
	delta      gocv.Mat                      // Foreground mask from background subtraction
	subtractor gocv.BackgroundSubtractorMOG2 // Persistent background model
	closed     bool
}

// NewForegroundSegmenter constructs a segmenter with the parking MOG2
// parameters.
func NewForegroundSegmenter() *ForegroundSegmenter {
	return &ForegroundSegmenter{
		input:      gocv.NewMat(),
		delta:      gocv.NewMat(),
		subtractor: gocv.NewBackgroundSubtractorMOG2WithParams(MOG2History, MOG2VarThreshold, MOG2DetectShadows),
	}
}

// NewModel satisfies occupancy.ModelFactory.
func NewModel() (occupancy.ForegroundModel, error) {
	return NewForegroundSegmenter(), nil
}

// Apply feeds a gray crop to the model and returns the foreground mask:
// 255 for foreground, 127 for shadows, 0 for background.
//
// Arguments:
//   - crop: The gray crop of one region.
//
// Returns:
//   - *image.Gray: The mask, sized like the crop.
//   - error: An error if the model is closed or OpenCV fails.
func (s *ForegroundSegmenter) Apply(crop *image.Gray) (*image.Gray, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("segmenter closed")
	}

	mat, err := GrayToMat(crop)
	if err != nil {
		return nil, err
	}
	s.input.Close()
	s.input = mat

	if err := s.subtractor.Apply(s.input, &s.delta); err != nil {
		return nil, errors.Wrap(err, "mog2 apply")
	}
	return MatToGray(s.delta)
}

// Close releases all OpenCV native resources used by the segmenter.
func (s *ForegroundSegmenter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.input.Close()
	s.delta.Close()
	return s.subtractor.Close()
}

var _ occupancy.ForegroundModel = (*ForegroundSegmenter)(nil)
