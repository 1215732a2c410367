// Package controller routes frames through preprocessing, classification,
// smoothing and annotation, and runs that per-frame work as a pipeline over a
// frame source.
package controller

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-parking/images"
	"github.com/nvr-ai/go-parking/occupancy"
	"github.com/nvr-ai/go-parking/preprocess"
	"github.com/nvr-ai/go-parking/regions"
)

// Annotator draws the classification over a copy of the frame.
type Annotator func(frame images.Frame, rs []regions.Region, statuses []occupancy.RegionStatus) (images.Frame, error)

// TimingObserver receives stage durations, e.g. a runtime profiler.
type TimingObserver interface {
	ObserveDuration(operation string, d time.Duration)
}

// Operation names reported to a TimingObserver.
const (
	OpPreprocess = "preprocess"
	OpGrayscale  = "grayscale"
	OpClassify   = "classify"
	OpAnnotate   = "annotate"
	OpFrame      = "frame"
)

// resetter is implemented by classifiers that keep per-region state.
type resetter interface {
	Reset() error
}

// Options configures a Controller.
type Options struct {
	// Preprocessor builds the binary map and the gray image. Required.
	Preprocessor preprocess.Preprocessor
	// Classifier decides occupancy. Required.
	Classifier occupancy.Classifier
	// Smoother, when set, majority-votes each region over recent frames.
	Smoother *occupancy.Smoother
	// Annotator, when set, renders the overlay for every frame.
	Annotator Annotator
	// Timings, when set, receives stage durations.
	Timings TimingObserver
	// Regions is the initial region set.
	Regions []regions.Region
}

// Timings holds the stage durations of one frame.
type Timings struct {
	Preprocess time.Duration `json:"preprocess"`
	Grayscale  time.Duration `json:"grayscale"`
	Classify   time.Duration `json:"classify"`
	Annotate   time.Duration `json:"annotate"`
	Total      time.Duration `json:"total"`
}

// FrameResult is everything the controller produced for one frame.
type FrameResult struct {
	// Frame is the input frame.
	Frame images.Frame
	// Annotated is the overlay, or the zero Frame without an annotator.
	Annotated images.Frame
	// Binary is the preprocessed map when the strategy needed it.
	Binary images.BinaryMap
	// Regions is the region snapshot the frame was classified against.
	Regions []regions.Region
	// Raw is the classifier output before smoothing.
	Raw occupancy.Result
	// Result is the smoothed output, or Raw without a smoother.
	Result occupancy.Result
	// Timings holds the stage durations.
	Timings Timings
}

// Controller classifies frames against the current region set.
type Controller struct {
	preprocessor preprocess.Preprocessor
	classifier   occupancy.Classifier
	smoother     *occupancy.Smoother
	annotator    Annotator
	timings      TimingObserver

	mu      sync.RWMutex
	regions []regions.Region
}

// New validates the options and returns a controller.
//
// Arguments:
//   - opts: The stages and the initial regions.
//
// Returns:
//   - *Controller: The controller.
//   - error: An error if a required stage is missing or a region is invalid.
//
// @example
// ctrl, err := controller.New(controller.Options{
//     Preprocessor: preprocess.NewNative(preprocess.Options{}),
//     Classifier:   occupancy.NewPixelCount(0),
//     Regions:      spaces,
// })
func New(opts Options) (*Controller, error) {
	if opts.Preprocessor == nil {
		return nil, errors.New("controller: preprocessor is required")
	}
	if opts.Classifier == nil {
		return nil, errors.New("controller: classifier is required")
	}
	if err := regions.ValidateAll(opts.Regions); err != nil {
		return nil, errors.Wrap(err, "controller")
	}
	return &Controller{
		preprocessor: opts.Preprocessor,
		classifier:   opts.Classifier,
		smoother:     opts.Smoother,
		annotator:    opts.Annotator,
		timings:      opts.Timings,
		regions:      regions.Clone(opts.Regions),
	}, nil
}

// Regions returns a copy of the current region set.
func (c *Controller) Regions() []regions.Region {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return regions.Clone(c.regions)
}

// SetRegions installs a copy of rs. Smoothing history and per-region
// background models are discarded because indices and ids may now refer to
// different spaces.
func (c *Controller) SetRegions(rs []regions.Region) error {
	if err := regions.ValidateAll(rs); err != nil {
		return errors.Wrap(err, "set regions")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.regions = regions.Clone(rs)
	if c.smoother != nil {
		c.smoother.Reset()
	}
	if r, ok := c.classifier.(resetter); ok {
		if err := r.Reset(); err != nil {
			return errors.Wrap(err, "reset classifier")
		}
	}
	return nil
}

// Strategy returns the classifier's strategy.
func (c *Controller) Strategy() occupancy.Strategy { return c.classifier.Strategy() }

// Backend returns the preprocessor's name.
func (c *Controller) Backend() string { return c.preprocessor.Name() }

// Smoother returns the smoother, or nil.
func (c *Controller) Smoother() *occupancy.Smoother { return c.smoother }

// Process runs one frame through the stages the classifier needs.
//
// Arguments:
//   - frame: The frame to classify.
//
// Returns:
//   - FrameResult: The per-region statuses, stats and optional overlay.
//   - error: An error if the frame is invalid or a stage fails.
func (c *Controller) Process(frame images.Frame) (FrameResult, error) {
	start := time.Now()
	if err := frame.Validate(); err != nil {
		return FrameResult{}, err
	}

	out := FrameResult{Frame: frame}
	input := occupancy.Input{Timestamp: frame.Timestamp}
	needs := c.classifier.Needs()

	if needs.Binary {
		t := time.Now()
		m, err := c.preprocessor.Preprocess(frame)
		if err != nil {
			return FrameResult{}, errors.Wrap(err, "preprocess")
		}
		out.Binary, input.Binary = m, m
		out.Timings.Preprocess = c.observe(OpPreprocess, t)
	}
	if needs.Gray {
		t := time.Now()
		g, err := c.preprocessor.Grayscale(frame)
		if err != nil {
			return FrameResult{}, errors.Wrap(err, "grayscale")
		}
		input.Gray = g
		out.Timings.Grayscale = c.observe(OpGrayscale, t)
	}

	if err := c.classify(input, &out); err != nil {
		return FrameResult{}, err
	}
	rs := out.Regions

	if c.annotator != nil {
		t := time.Now()
		annotated, err := c.annotator(frame, rs, out.Result.Statuses)
		if err != nil {
			return FrameResult{}, errors.Wrap(err, "annotate")
		}
		out.Annotated = annotated
		out.Timings.Annotate = c.observe(OpAnnotate, t)
	}

	out.Timings.Total = c.observe(OpFrame, start)
	return out, nil
}

// classify holds the read lock across classification and smoothing so a
// concurrent SetRegions cannot reset the history between the two and leave
// statuses of the old region set in the new one.
func (c *Controller) classify(input occupancy.Input, out *FrameResult) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out.Regions = c.regions
	t := time.Now()
	raw, err := c.classifier.Classify(input, c.regions)
	if err != nil {
		return errors.Wrap(err, "classify")
	}
	out.Timings.Classify = c.observe(OpClassify, t)
	out.Raw, out.Result = raw, raw
	if c.smoother != nil {
		out.Result = c.smoother.Smooth(raw)
	}
	return nil
}

func (c *Controller) observe(op string, start time.Time) time.Duration {
	d := time.Since(start)
	if c.timings != nil {
		c.timings.ObserveDuration(op, d)
	}
	return d
}
