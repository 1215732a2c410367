// Package preprocess turns colour frames into the binary foreground map the
// pixel-count classifier works on.
//
// The filter chain is fixed: grayscale, 3x3 Gaussian blur, inverted adaptive
// Gaussian threshold, 5x5 median blur and one 3x3 dilation. The occupancy
// threshold of 900 pixels was tuned against exactly this chain, so none of the
// constants below are configurable.
package preprocess

import (
	"fmt"
	"image"
	"sync"

	"github.com/nvr-ai/go-parking/images"
)

// Filter chain constants.
const (
	BlurKernelSize    = 3
	BlurSigma         = 1.0
	AdaptiveBlockSize = 25
	AdaptiveC         = 16
	AdaptiveMaxValue  = 255
	MedianKernelSize  = 5
	DilateKernelSize  = 3
	DilateIterations  = 1
)

// Backend names accepted by configuration.
const (
	BackendNative = "native"
	BackendOpenCV = "opencv"
)

// Preprocessor converts a frame into the maps consumed by the classifier.
// Implementations are safe for concurrent use.
type Preprocessor interface {
	// Preprocess runs the full filter chain. The map has the frame's size.
	Preprocess(frame images.Frame) (images.BinaryMap, error)
	// Grayscale runs only the first stage.
	Grayscale(frame images.Frame) (*image.Gray, error)
	// Name identifies the backend in logs and benchmarks.
	Name() string
}

// BatchPreprocess processes multiple frames in parallel.
//
// Arguments:
//   - p: The preprocessor to use.
//   - frames: Frames to preprocess.
//   - maxConcurrency: Maximum number of frames to process concurrently.
//
// Returns:
//   - []images.BinaryMap: One map per frame, in input order.
//   - error: The first failure, if any.
//
// @example
// maps, err := BatchPreprocess(NewNative(Options{}), frames, 4)
func BatchPreprocess(p Preprocessor, frames []images.Frame, maxConcurrency int) ([]images.BinaryMap, error) {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	results := make([]images.BinaryMap, len(frames))
	errs := make([]error, len(frames))

	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i := range frames {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			m, err := p.Preprocess(frames[idx])
			if err != nil {
				errs[idx] = fmt.Errorf("failed to preprocess frame %d: %w", idx, err)
				return
			}
			results[idx] = m
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
