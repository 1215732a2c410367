package occupancy

import (
	"image"
	"math"
	"sync"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-parking/images/kernels"
	"github.com/nvr-ai/go-parking/regions"
)

// ForegroundModel is a learned background for one region. Apply feeds a gray
// crop into the model and returns the foreground mask (255 foreground, 127
// shadow, 0 background) with the crop's size.
type ForegroundModel interface {
	Apply(crop *image.Gray) (*image.Gray, error)
	Close() error
}

// ModelFactory creates a fresh foreground model.
type ModelFactory func() (ForegroundModel, error)

// Background keeps one foreground model per region ID and marks a region
// occupied when more than Threshold of its crop changed.
type Background struct {
	Threshold float64

	mu      sync.Mutex
	factory ModelFactory
	models  map[string]ForegroundModel
}

// NewBackground returns the background strategy. A non-positive threshold
// uses BackgroundRatioThreshold.
func NewBackground(factory ModelFactory, threshold float64) *Background {
	if threshold <= 0 {
		threshold = BackgroundRatioThreshold
	}
	return &Background{
		Threshold: threshold,
		factory:   factory,
		models:    make(map[string]ForegroundModel),
	}
}

func (c *Background) Needs() Needs       { return Needs{Gray: true} }
func (c *Background) Strategy() Strategy { return StrategyBackground }

// Classify applies each region's crop to its model. Models are created on
// first sight of a region ID.
func (c *Background) Classify(input Input, rs []regions.Region) (Result, error) {
	if input.Gray == nil {
		return Result{}, errors.Wrap(ErrMissingInput, "background needs a gray image")
	}
	if c.factory == nil {
		return Result{}, errors.New("background strategy has no model factory")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ts := stamp(input.Timestamp)
	statuses := make([]RegionStatus, len(rs))
	for i, r := range rs {
		id := r.Key(i)
		st := RegionStatus{Index: i, RegionID: id, Timestamp: ts}

		crop := clip(r.Rect(), input.Gray)
		if crop.Empty() {
			st.Empty = true
			statuses[i] = st
			continue
		}

		model, ok := c.models[id]
		if !ok {
			m, err := c.factory()
			if err != nil {
				return Result{}, errors.Wrapf(err, "create background model for %s", id)
			}
			c.models[id] = m
			model = m
		}

		sub, ok := input.Gray.SubImage(crop).(*image.Gray)
		if !ok {
			return Result{}, errors.Errorf("gray crop for %s", id)
		}
		mask, err := model.Apply(sub)
		if err != nil {
			return Result{}, errors.Wrapf(err, "apply background model for %s", id)
		}

		st.Count = kernels.CountValue(mask, mask.Rect, 255)
		ratio := float64(st.Count) / float64(crop.Dx()*crop.Dy())
		st.Occupied = ratio > c.Threshold
		st.Confidence = math.Min(ratio*3, 1)
		statuses[i] = st
	}
	return Result{Statuses: statuses, Stats: Aggregate(statuses, ts)}, nil
}

// Reset closes and forgets every model, e.g. after the region set changed.
func (c *Background) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var first error
	for id, m := range c.models {
		if err := m.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "close background model for %s", id)
		}
		delete(c.models, id)
	}
	return first
}

// Models returns the number of live models.
func (c *Background) Models() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.models)
}

// Close releases every model.
func (c *Background) Close() error {
	return c.Reset()
}

var _ Classifier = (*Background)(nil)
