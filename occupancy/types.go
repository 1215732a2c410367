// Package occupancy decides, per parking space, whether a car is present.
package occupancy

import (
	"image"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-parking/images"
)

// ErrMissingInput is returned when the map a strategy reads is absent.
var ErrMissingInput = errors.New("missing classifier input")

// Input carries the preprocessed maps of one frame. Which fields are needed
// depends on the strategy; see Classifier.Needs.
type Input struct {
	Binary images.BinaryMap
	Gray   *image.Gray
	// Timestamp stamps every status; zero means time.Now.
	Timestamp time.Time
}

// Needs describes which maps a classifier reads.
type Needs struct {
	Binary bool
	Gray   bool
}

// RegionStatus is the classification of one region at one instant.
type RegionStatus struct {
	Index    int    `json:"index"`
	RegionID string `json:"region_id"`
	Occupied bool   `json:"occupied"`
	// Count is the number of foreground pixels in the crop (pixel count and
	// background strategies).
	Count int `json:"count"`
	// Mean is the normalised crop intensity in [0, 1] (mean intensity strategy).
	Mean float64 `json:"mean"`
	// Confidence is cosmetic and never feeds back into Occupied.
	Confidence float64 `json:"confidence"`
	// Empty is set when the region did not intersect the frame.
	Empty     bool      `json:"empty"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats aggregates one classification pass.
type Stats struct {
	Total    int `json:"total"`
	Occupied int `json:"occupied"`
	Free     int `json:"free"`
	// OccupancyRate and AvailabilityRate are percentages.
	OccupancyRate    float64   `json:"occupancy_rate"`
	AvailabilityRate float64   `json:"availability_rate"`
	Timestamp        time.Time `json:"timestamp"`
}

// Result is the output of Classify: one status per region in input order
// plus the aggregate.
type Result struct {
	Statuses []RegionStatus `json:"statuses"`
	Stats    Stats          `json:"stats"`
}

// Aggregate computes Stats from statuses. An empty list has zero rates
// except AvailabilityRate, which is 100.
func Aggregate(statuses []RegionStatus, ts time.Time) Stats {
	s := Stats{Total: len(statuses), Timestamp: ts}
	for _, st := range statuses {
		if st.Occupied {
			s.Occupied++
		}
	}
	s.Free = s.Total - s.Occupied
	if s.Total > 0 {
		s.OccupancyRate = float64(s.Occupied) / float64(s.Total) * 100
	}
	s.AvailabilityRate = 100 - s.OccupancyRate
	return s
}
