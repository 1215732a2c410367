package report

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/nvr-ai/go-parking/occupancy"
)

// Summary describes occupancy over a history of passes.
type Summary struct {
	Samples         int     `json:"samples"`
	MeanOccupancy   float64 `json:"mean_occupancy"`
	StdDevOccupancy float64 `json:"stddev_occupancy"`
	MedianOccupancy float64 `json:"median_occupancy"`
	MinOccupancy    float64 `json:"min_occupancy"`
	MaxOccupancy    float64 `json:"max_occupancy"`
	PeakOccupied    int     `json:"peak_occupied"`
}

// Summarize computes occupancy rate statistics. An empty history gives the
// zero Summary.
func Summarize(history []occupancy.Stats) Summary {
	if len(history) == 0 {
		return Summary{}
	}

	rates := make([]float64, len(history))
	s := Summary{Samples: len(history)}
	for i, h := range history {
		rates[i] = h.OccupancyRate
		s.PeakOccupied = max(s.PeakOccupied, h.Occupied)
	}
	s.MeanOccupancy, s.StdDevOccupancy = stat.MeanStdDev(rates, nil)
	if len(rates) == 1 {
		s.StdDevOccupancy = 0
	}

	sort.Float64s(rates)
	s.MedianOccupancy = stat.Quantile(0.5, stat.Empirical, rates, nil)
	s.MinOccupancy, s.MaxOccupancy = rates[0], rates[len(rates)-1]
	return s
}

// SpaceShare is how often one space was occupied.
type SpaceShare struct {
	SpaceID  string  `json:"space_id"`
	Samples  int     `json:"samples"`
	Occupied float64 `json:"occupied"`
}

// SpaceShares returns the occupied fraction of every space, busiest first
// and then by id.
func SpaceShares(history [][]occupancy.RegionStatus) []SpaceShare {
	counts := map[string]*SpaceShare{}
	var order []string
	for _, frame := range history {
		for _, st := range frame {
			sh, ok := counts[st.RegionID]
			if !ok {
				sh = &SpaceShare{SpaceID: st.RegionID}
				counts[st.RegionID] = sh
				order = append(order, st.RegionID)
			}
			sh.Samples++
			if st.Occupied {
				sh.Occupied++
			}
		}
	}

	out := make([]SpaceShare, 0, len(order))
	for _, id := range order {
		sh := *counts[id]
		sh.Occupied /= float64(sh.Samples)
		out = append(out, sh)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Occupied != out[j].Occupied {
			return out[i].Occupied > out[j].Occupied
		}
		return out[i].SpaceID < out[j].SpaceID
	})
	return out
}
