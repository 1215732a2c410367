package cv

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-parking/images"
	"github.com/nvr-ai/go-parking/preprocess"
)

// Preprocessor runs the fixed filter chain with OpenCV.
type Preprocessor struct{}

// NewPreprocessor returns the OpenCV backend.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{}
}

// Name returns preprocess.BackendOpenCV.
func (p *Preprocessor) Name() string { return preprocess.BackendOpenCV }

// Grayscale converts the frame to luma with cv::cvtColor.
func (p *Preprocessor) Grayscale(frame images.Frame) (*image.Gray, error) {
	src, err := FrameToMat(frame)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	return MatToGray(gray)
}

// Preprocess runs grayscale, Gaussian blur, inverted adaptive threshold,
// median blur and dilation.
func (p *Preprocessor) Preprocess(frame images.Frame) (images.BinaryMap, error) {
	src, err := FrameToMat(frame)
	if err != nil {
		return images.BinaryMap{}, err
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred,
		image.Pt(preprocess.BlurKernelSize, preprocess.BlurKernelSize),
		preprocess.BlurSigma, preprocess.BlurSigma, gocv.BorderDefault)

	threshold := gocv.NewMat()
	defer threshold.Close()
	gocv.AdaptiveThreshold(blurred, &threshold, preprocess.AdaptiveMaxValue,
		gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinaryInv,
		preprocess.AdaptiveBlockSize, preprocess.AdaptiveC)

	median := gocv.NewMat()
	defer median.Close()
	gocv.MedianBlur(threshold, &median, preprocess.MedianKernelSize)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(preprocess.DilateKernelSize, preprocess.DilateKernelSize))
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	median.CopyTo(&dilated)
	for i := 0; i < preprocess.DilateIterations; i++ {
		if err := gocv.Dilate(dilated, &dilated, kernel); err != nil {
			return images.BinaryMap{}, errors.Wrap(err, "dilate")
		}
	}

	g, err := MatToGray(dilated)
	if err != nil {
		return images.BinaryMap{}, err
	}
	return images.BinaryMap{Gray: g}, nil
}

var _ preprocess.Preprocessor = (*Preprocessor)(nil)
