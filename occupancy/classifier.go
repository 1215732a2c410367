package occupancy

import (
	"image"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-parking/images/kernels"
	"github.com/nvr-ai/go-parking/regions"
)

// Strategy selects how a region is judged.
type Strategy int

const (
	// StrategyPixelCount counts foreground pixels in the binary map.
	StrategyPixelCount Strategy = iota
	// StrategyMeanIntensity compares the mean gray level against a threshold.
	StrategyMeanIntensity
	// StrategyBackground measures change against a per-region background model.
	StrategyBackground
)

// Default thresholds.
const (
	OccupiedPixelThreshold   = 900
	IntensityThreshold       = 0.23
	BackgroundRatioThreshold = 0.15
)

var strategyNames = map[Strategy]string{
	StrategyPixelCount:    "pixel_count",
	StrategyMeanIntensity: "mean_intensity",
	StrategyBackground:    "background",
}

func (s Strategy) String() string {
	if n, ok := strategyNames[s]; ok {
		return n
	}
	return "unknown"
}

// ParseStrategy accepts the names printed by String, case-insensitively.
func ParseStrategy(name string) (Strategy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range strategyNames {
		if n == name {
			return s, nil
		}
	}
	return 0, errors.Errorf("unknown classifier strategy %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if _, ok := strategyNames[s]; !ok {
		return nil, errors.Errorf("unknown classifier strategy %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	v, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Classifier judges every region of one frame.
type Classifier interface {
	// Classify returns one status per region, in input order.
	Classify(input Input, rs []regions.Region) (Result, error)
	// Needs reports which maps Classify reads.
	Needs() Needs
	// Strategy identifies the implementation.
	Strategy() Strategy
}

// PixelCount marks a region occupied when at least Threshold pixels of its
// binary crop are set.
type PixelCount struct {
	Threshold int
}

// NewPixelCount returns the pixel count classifier. A non-positive threshold
// uses OccupiedPixelThreshold.
func NewPixelCount(threshold int) *PixelCount {
	if threshold <= 0 {
		threshold = OccupiedPixelThreshold
	}
	return &PixelCount{Threshold: threshold}
}

func (c *PixelCount) Needs() Needs       { return Needs{Binary: true} }
func (c *PixelCount) Strategy() Strategy { return StrategyPixelCount }

// Classify counts 255 pixels inside each clipped crop. A crop outside the map
// is free with a zero count.
func (c *PixelCount) Classify(input Input, rs []regions.Region) (Result, error) {
	if input.Binary.IsZero() {
		return Result{}, errors.Wrap(ErrMissingInput, "pixel count needs a binary map")
	}
	ts := stamp(input.Timestamp)
	statuses := make([]RegionStatus, len(rs))
	for i, r := range rs {
		st := RegionStatus{Index: i, RegionID: r.Key(i), Timestamp: ts}
		crop := r.Rect().Intersect(input.Binary.Rect)
		if crop.Empty() {
			st.Empty = true
			statuses[i] = st
			continue
		}
		st.Count = kernels.CountValue(input.Binary.Gray, crop, 255)
		st.Occupied = st.Count >= c.Threshold
		area := float64(r.Area())
		st.Confidence = math.Min(math.Abs(float64(st.Count-c.Threshold))/(area*0.3), 1)
		statuses[i] = st
	}
	return Result{Statuses: statuses, Stats: Aggregate(statuses, ts)}, nil
}

// MeanIntensity marks a region occupied when its normalised mean gray level
// is strictly below Threshold. Equality counts as free.
type MeanIntensity struct {
	Threshold float64
}

// NewMeanIntensity returns the mean intensity classifier. A non-positive
// threshold uses IntensityThreshold.
func NewMeanIntensity(threshold float64) *MeanIntensity {
	if threshold <= 0 {
		threshold = IntensityThreshold
	}
	return &MeanIntensity{Threshold: threshold}
}

func (c *MeanIntensity) Needs() Needs       { return Needs{Gray: true} }
func (c *MeanIntensity) Strategy() Strategy { return StrategyMeanIntensity }

// Classify averages the gray crop of each region.
func (c *MeanIntensity) Classify(input Input, rs []regions.Region) (Result, error) {
	if input.Gray == nil {
		return Result{}, errors.Wrap(ErrMissingInput, "mean intensity needs a gray image")
	}
	ts := stamp(input.Timestamp)
	statuses := make([]RegionStatus, len(rs))
	for i, r := range rs {
		st := RegionStatus{Index: i, RegionID: r.Key(i), Timestamp: ts}
		sum, n := kernels.Sum(input.Gray, r.Rect())
		if n == 0 {
			st.Empty = true
			statuses[i] = st
			continue
		}
		st.Mean = float64(sum) / float64(255*n)
		st.Occupied = st.Mean < c.Threshold
		st.Confidence = math.Min(math.Abs(st.Mean-c.Threshold)*4, 1)
		statuses[i] = st
	}
	return Result{Statuses: statuses, Stats: Aggregate(statuses, ts)}, nil
}

func stamp(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now()
	}
	return ts
}

// clip returns r clipped to img, or an empty rectangle.
func clip(r image.Rectangle, img *image.Gray) image.Rectangle {
	return r.Intersect(img.Rect)
}

var (
	_ Classifier = (*PixelCount)(nil)
	_ Classifier = (*MeanIntensity)(nil)
)

// Config selects and tunes a classifier.
type Config struct {
	Strategy            Strategy
	PixelThreshold      int
	IntensityThreshold  float64
	BackgroundThreshold float64
	// Models builds foreground models for StrategyBackground.
	Models ModelFactory
}

// New builds the classifier for cfg.Strategy.
func New(cfg Config) (Classifier, error) {
	switch cfg.Strategy {
	case StrategyPixelCount:
		return NewPixelCount(cfg.PixelThreshold), nil
	case StrategyMeanIntensity:
		return NewMeanIntensity(cfg.IntensityThreshold), nil
	case StrategyBackground:
		if cfg.Models == nil {
			return nil, errors.New("background strategy needs a model factory")
		}
		return NewBackground(cfg.Models, cfg.BackgroundThreshold), nil
	default:
		return nil, errors.Errorf("unknown classifier strategy %d", int(cfg.Strategy))
	}
}
