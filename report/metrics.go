package report

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nvr-ai/go-parking/controller"
)

// Metrics holds the Prometheus collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	frames        prometheus.Counter
	errors        prometheus.Counter
	total         prometheus.Gauge
	occupied      prometheus.Gauge
	free          prometheus.Gauge
	occupancyRate prometheus.Gauge
	spaces        *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// NewMetrics creates a registry with the parking collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parking_frames_processed_total",
			Help: "Frames classified successfully",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parking_frame_errors_total",
			Help: "Frames that failed to process",
		}),
		total: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "parking_spaces_total",
			Help: "Spaces in the current region set",
		}),
		occupied: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "parking_spaces_occupied",
			Help: "Occupied spaces in the latest frame",
		}),
		free: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "parking_spaces_free",
			Help: "Free spaces in the latest frame",
		}),
		occupancyRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "parking_occupancy_rate_percent",
			Help: "Occupancy rate of the latest frame",
		}),
		spaces: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "parking_space_occupied",
			Help: "1 when the space is occupied in the latest frame",
		}, []string{"space"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parking_stage_seconds",
			Help:    "Per-frame stage latency",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"stage"}),
	}
	m.registry.MustRegister(m.frames, m.errors, m.total, m.occupied, m.free, m.occupancyRate, m.spaces, m.latency)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe updates the collectors from one pipeline result.
func (m *Metrics) Observe(res controller.Result) {
	if res.Err != nil {
		m.errors.Inc()
		return
	}
	m.frames.Inc()

	s := res.Result.Stats
	m.total.Set(float64(s.Total))
	m.occupied.Set(float64(s.Occupied))
	m.free.Set(float64(s.Free))
	m.occupancyRate.Set(s.OccupancyRate)

	for _, st := range res.Result.Statuses {
		v := 0.0
		if st.Occupied {
			v = 1
		}
		m.spaces.WithLabelValues(st.RegionID).Set(v)
	}

	t := res.Timings
	for stage, d := range map[string]float64{
		controller.OpPreprocess: t.Preprocess.Seconds(),
		controller.OpGrayscale:  t.Grayscale.Seconds(),
		controller.OpClassify:   t.Classify.Seconds(),
		controller.OpAnnotate:   t.Annotate.Seconds(),
		controller.OpFrame:      t.Total.Seconds(),
	} {
		if d > 0 {
			m.latency.WithLabelValues(stage).Observe(d)
		}
	}
}

// ResetSpaces forgets per-space gauges, e.g. after the region set changed.
func (m *Metrics) ResetSpaces() {
	m.spaces.Reset()
}

// WatchPipeline exports the pipeline's drop counter.
func (m *Metrics) WatchPipeline(p *controller.Pipeline) {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name:        "parking_frames_dropped_total",
			Help:        "Results dropped because the consumer lagged",
			ConstLabels: prometheus.Labels{"session": p.Session()},
		},
		func() float64 { return float64(p.Stats().Dropped) },
	))
}
