package preprocess

import (
	"image"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-parking/images"
	"github.com/nvr-ai/go-parking/images/kernels"
)

// Options configures the native backend.
type Options struct {
	// Parallel splits every kernel's rows across goroutines.
	Parallel bool
	// Pool reuses intermediate buffers across frames. Nil allocates per call.
	Pool *kernels.Pool
}

// Stages holds every intermediate image of one run, for inspection.
type Stages struct {
	Gray      *image.Gray
	Blurred   *image.Gray
	Threshold *image.Gray
	Median    *image.Gray
	Binary    images.BinaryMap
}

// Native is the pure Go backend. Its output matches OpenCV byte for byte.
type Native struct {
	opt        kernels.Options
	blurKernel []uint16
}

// NewNative creates the pure Go preprocessor.
//
// Arguments:
//   - opts: Parallelism and pooling options.
//
// Returns:
//   - *Native: A ready preprocessor.
//
// @example
// p := NewNative(Options{Parallel: true, Pool: &kernels.Pool{}})
func NewNative(opts Options) *Native {
	k, err := kernels.GaussianKernel(BlurKernelSize, BlurSigma)
	if err != nil {
		// The constants are odd and positive.
		panic(err)
	}
	return &Native{
		opt:        kernels.Options{Pool: opts.Pool, Parallel: opts.Parallel},
		blurKernel: k,
	}
}

// Name returns BackendNative.
func (n *Native) Name() string { return BackendNative }

// Grayscale converts the frame to luma.
func (n *Native) Grayscale(frame images.Frame) (*image.Gray, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	gray := image.NewGray(frame.Bounds())
	if err := kernels.BGRToGray(frame.Pix, frame.Width, frame.Height, gray, n.opt); err != nil {
		return nil, errors.Wrap(err, "grayscale")
	}
	return gray, nil
}

// Preprocess runs the full filter chain and returns the binary map.
func (n *Native) Preprocess(frame images.Frame) (images.BinaryMap, error) {
	st, err := n.run(frame, false)
	if err != nil {
		return images.BinaryMap{}, err
	}
	return st.Binary, nil
}

// Stages runs the chain and keeps every intermediate image.
func (n *Native) Stages(frame images.Frame) (Stages, error) {
	return n.run(frame, true)
}

func (n *Native) run(frame images.Frame, keep bool) (Stages, error) {
	gray, err := n.Grayscale(frame)
	if err != nil {
		return Stages{}, err
	}

	bounds := gray.Rect
	alloc := func() *image.Gray {
		if keep {
			return image.NewGray(bounds)
		}
		return n.opt.Pool.GetGray(bounds)
	}
	release := func(imgs ...*image.Gray) {
		if keep {
			return
		}
		for _, img := range imgs {
			n.opt.Pool.PutGray(img)
		}
	}

	blurred := alloc()
	if err := kernels.GaussianBlur(gray, blurred, n.blurKernel, kernels.EdgeReflect101, n.opt); err != nil {
		release(blurred)
		return Stages{}, errors.Wrap(err, "gaussian blur")
	}

	threshold := alloc()
	if err := kernels.AdaptiveThreshold(blurred, threshold, AdaptiveMaxValue, AdaptiveBlockSize, AdaptiveC, true, n.opt); err != nil {
		release(blurred, threshold)
		return Stages{}, errors.Wrap(err, "adaptive threshold")
	}

	median := alloc()
	if err := kernels.MedianBlur(threshold, median, MedianKernelSize, n.opt); err != nil {
		release(blurred, threshold, median)
		return Stages{}, errors.Wrap(err, "median blur")
	}

	binary := images.NewBinaryMap(frame.Width, frame.Height)
	if err := kernels.Dilate(median, binary.Gray, DilateKernelSize, DilateIterations, n.opt); err != nil {
		release(blurred, threshold, median)
		return Stages{}, errors.Wrap(err, "dilate")
	}

	if !keep {
		release(blurred, threshold, median)
		return Stages{Gray: gray, Binary: binary}, nil
	}
	return Stages{
		Gray:      gray,
		Blurred:   blurred,
		Threshold: threshold,
		Median:    median,
		Binary:    binary,
	}, nil
}

var _ Preprocessor = (*Native)(nil)
