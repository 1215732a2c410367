package occupancy

import (
	"sync"
)

// DefaultHistory is the number of results the smoother votes over.
const DefaultHistory = 5

// trendWindow is the number of recent samples a trend looks at.
const trendWindow = 3

// Trend labels how a region's state moved over the last few frames.
type Trend string

const (
	TrendInsufficientData     Trend = "insufficient_data"
	TrendConsistentlyOccupied Trend = "consistently_occupied"
	TrendConsistentlyFree     Trend = "consistently_free"
	TrendRecentlyOccupied     Trend = "recently_occupied"
	TrendRecentlyFreed        Trend = "recently_freed"
	TrendFluctuating          Trend = "fluctuating"
)

// Smoother stabilises noisy per-frame results with a majority vote over each
// region's recent history.
type Smoother struct {
	mu      sync.Mutex
	size    int
	history map[string][]bool
}

// NewSmoother keeps the last size results per region. A non-positive size
// uses DefaultHistory.
func NewSmoother(size int) *Smoother {
	if size <= 0 {
		size = DefaultHistory
	}
	return &Smoother{size: size, history: make(map[string][]bool)}
}

// Smooth records every raw status and returns a stabilised copy of the
// result. A region is occupied when more than half of its history is, and
// its confidence is scaled by how consistent that history is. Empty crops
// pass through unrecorded.
func (s *Smoother) Smooth(res Result) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RegionStatus, len(res.Statuses))
	for i, st := range res.Statuses {
		if st.Empty {
			out[i] = st
			continue
		}

		h := append(s.history[st.RegionID], st.Occupied)
		if len(h) > s.size {
			h = h[len(h)-s.size:]
		}
		s.history[st.RegionID] = h

		occ := 0
		for _, v := range h {
			if v {
				occ++
			}
		}
		consistency := float64(max(occ, len(h)-occ)) / float64(len(h))

		st.Occupied = float64(occ) > float64(len(h))/2
		st.Confidence *= consistency
		out[i] = st
	}
	return Result{Statuses: out, Stats: Aggregate(out, res.Stats.Timestamp)}
}

// Trend reports the recent movement of a region. The second return is false
// when the region has never been recorded.
func (s *Smoother) Trend(id string) (Trend, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.history[id]
	if !ok {
		return "", false
	}
	return trendOf(h), true
}

// Trends returns the trend of every recorded region.
func (s *Smoother) Trends() map[string]Trend {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Trend, len(s.history))
	for id, h := range s.history {
		out[id] = trendOf(h)
	}
	return out
}

// Reset forgets all history.
func (s *Smoother) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = make(map[string][]bool)
}

func trendOf(h []bool) Trend {
	if len(h) < trendWindow {
		return TrendInsufficientData
	}
	recent := h[len(h)-trendWindow:]
	all, none := true, true
	for _, v := range recent {
		all = all && v
		none = none && !v
	}
	first, last := recent[0], recent[len(recent)-1]
	switch {
	case all:
		return TrendConsistentlyOccupied
	case none:
		return TrendConsistentlyFree
	case last && !first:
		return TrendRecentlyOccupied
	case !last && first:
		return TrendRecentlyFreed
	default:
		return TrendFluctuating
	}
}
