// Package profiler samples runtime statistics and pipeline stage timings and
// reports them periodically through logrus.
package profiler

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MetricsCollector defines the interface for collecting custom metrics.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// RuntimeProfiler tracks memory, goroutines, custom metrics and operation
// timings, and logs a summary every ReportInterval.
//
// The profiler is safe for concurrent use. It satisfies
// controller.TimingObserver, so a pipeline can feed stage durations into it.
type RuntimeProfiler struct {
	// Configuration
	reportInterval time.Duration
	sampleInterval time.Duration
	log            logrus.FieldLogger

	// State management
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	startTime time.Time
	running   bool

	// System metrics
	memStats    runtime.MemStats
	goroutines  []int
	maxSamples  int
	lastGCCount uint32

	// Custom metrics
	customMetrics map[string]*MetricTracker
	collectors    []MetricsCollector

	// Performance tracking
	operationTimes map[string]*TimeTracker
}

// MetricTracker tracks statistics for a custom metric over a sliding window.
type MetricTracker struct {
	values   []float64
	sum      float64
	min      float64
	max      float64
	count    int64
	lastTime time.Time
}

func (t *MetricTracker) add(value float64, limit int) {
	if t.count == 0 || value < t.min {
		t.min = value
	}
	if t.count == 0 || value > t.max {
		t.max = value
	}
	t.values = append(t.values, value)
	t.sum += value
	if len(t.values) > limit {
		t.sum -= t.values[0]
		t.values = t.values[1:]
	}
	t.count++
	t.lastTime = time.Now()
}

// TimeTracker tracks operation timing statistics over a sliding window.
type TimeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

func (t *TimeTracker) add(d time.Duration, limit int) {
	if t.count == 0 || d < t.minTime {
		t.minTime = d
	}
	if t.count == 0 || d > t.maxTime {
		t.maxTime = d
	}
	t.durations = append(t.durations, d)
	t.totalTime += d
	if len(t.durations) > limit {
		t.totalTime -= t.durations[0]
		t.durations = t.durations[1:]
	}
	t.count++
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often to emit status reports (default: 10s)
	ReportInterval time.Duration
	// SampleInterval specifies how often to collect samples (default: 100ms)
	SampleInterval time.Duration
	// MaxSamples specifies maximum number of samples to keep (default: 600)
	MaxSamples int
	// Logger receives the reports. Defaults to a discarding logger.
	Logger logrus.FieldLogger
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured RuntimeProfiler instance
//
// @example
// prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{Logger: log})
// prof.Start()
// defer prof.Stop()
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 10 * time.Second
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = 100 * time.Millisecond
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600 // 1 minute of samples at 100ms intervals
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		sampleInterval: opts.SampleInterval,
		log:            opts.Logger.WithField("component", "profiler"),
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
		maxSamples:     opts.MaxSamples,
		customMetrics:  make(map[string]*MetricTracker),
		operationTimes: make(map[string]*TimeTracker),
	}
}

// Start begins the sampling and reporting goroutines. Calling it on a running
// profiler does nothing.
func (rp *RuntimeProfiler) Start() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}

	rp.running = true
	rp.startTime = time.Now()

	rp.wg.Add(2)
	go rp.sampleLoop()
	go func() {
		defer rp.wg.Done()

		ticker := time.NewTicker(rp.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-rp.ctx.Done():
				return
			case <-ticker.C:
				rp.emitStatusReport()
			}
		}
	}()
}

// Stop halts the goroutines, waits for them and logs a final report.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	rp.mu.Unlock()

	rp.cancel()
	rp.wg.Wait()
	rp.emitStatusReport()
}

// AddMetricsCollector registers a custom metrics collector to be called
// on every sample.
func (rp *RuntimeProfiler) AddMetricsCollector(collector MetricsCollector) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.collectors = append(rp.collectors, collector)
}

// RecordMetric records a custom metric value.
//
// Arguments:
// - name: The name of the metric
// - value: The metric value to record
func (rp *RuntimeProfiler) RecordMetric(name string, value float64) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.recordMetric(name, value)
}

func (rp *RuntimeProfiler) recordMetric(name string, value float64) {
	tracker, ok := rp.customMetrics[name]
	if !ok {
		tracker = &MetricTracker{values: make([]float64, 0, rp.maxSamples)}
		rp.customMetrics[name] = tracker
	}
	tracker.add(value, rp.maxSamples)
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		rp.ObserveDuration(name, time.Since(start))
	}
}

// ObserveDuration records the completion time of an operation.
func (rp *RuntimeProfiler) ObserveDuration(name string, d time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, ok := rp.operationTimes[name]
	if !ok {
		tracker = &TimeTracker{}
		rp.operationTimes[name] = tracker
	}
	tracker.add(d, rp.maxSamples)
}

// sampleLoop continuously collects system metrics.
func (rp *RuntimeProfiler) sampleLoop() {
	defer rp.wg.Done()

	ticker := time.NewTicker(rp.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rp.ctx.Done():
			return
		case <-ticker.C:
			rp.sample()
		}
	}
}

func (rp *RuntimeProfiler) sample() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	runtime.ReadMemStats(&rp.memStats)

	rp.goroutines = append(rp.goroutines, runtime.NumGoroutine())
	if len(rp.goroutines) > rp.maxSamples {
		rp.goroutines = rp.goroutines[1:]
	}

	for _, collector := range rp.collectors {
		for name, value := range collector.CollectMetrics() {
			rp.recordMetric(name, value)
		}
	}
}

// OperationStats summarises one operation's timings.
type OperationStats struct {
	Name  string        `json:"name"`
	Avg   time.Duration `json:"avg"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Count int64         `json:"count"`
}

// MetricStats summarises one custom metric.
type MetricStats struct {
	Name    string  `json:"name"`
	Avg     float64 `json:"avg"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Samples int     `json:"samples"`
}

// Snapshot is a point-in-time copy of the profiler's statistics.
type Snapshot struct {
	Uptime     time.Duration    `json:"uptime"`
	Goroutines int              `json:"goroutines"`
	HeapAlloc  uint64           `json:"heap_alloc"`
	Sys        uint64           `json:"sys"`
	GCCycles   uint32           `json:"gc_cycles"`
	Operations []OperationStats `json:"operations"`
	Metrics    []MetricStats    `json:"metrics"`
}

// GetCurrentStats returns the current profiling statistics, sorted by name.
func (rp *RuntimeProfiler) GetCurrentStats() Snapshot {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	runtime.ReadMemStats(&rp.memStats)
	s := Snapshot{
		Uptime:     time.Since(rp.startTime),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  rp.memStats.HeapAlloc,
		Sys:        rp.memStats.Sys,
		GCCycles:   rp.memStats.NumGC,
	}

	for name, t := range rp.operationTimes {
		if len(t.durations) == 0 {
			continue
		}
		s.Operations = append(s.Operations, OperationStats{
			Name:  name,
			Avg:   t.totalTime / time.Duration(len(t.durations)),
			Min:   t.minTime,
			Max:   t.maxTime,
			Count: t.count,
		})
	}
	sort.Slice(s.Operations, func(i, j int) bool { return s.Operations[i].Name < s.Operations[j].Name })

	for name, t := range rp.customMetrics {
		if len(t.values) == 0 {
			continue
		}
		s.Metrics = append(s.Metrics, MetricStats{
			Name:    name,
			Avg:     t.sum / float64(len(t.values)),
			Min:     t.min,
			Max:     t.max,
			Samples: len(t.values),
		})
	}
	sort.Slice(s.Metrics, func(i, j int) bool { return s.Metrics[i].Name < s.Metrics[j].Name })
	return s
}

// emitStatusReport logs one entry with the runtime figures and one per
// operation and custom metric.
func (rp *RuntimeProfiler) emitStatusReport() {
	s := rp.GetCurrentStats()

	rp.mu.Lock()
	gcNew := s.GCCycles - rp.lastGCCount
	rp.lastGCCount = s.GCCycles
	rp.mu.Unlock()

	rp.log.WithFields(logrus.Fields{
		"uptime":     s.Uptime.Truncate(time.Millisecond).String(),
		"goroutines": s.Goroutines,
		"heap":       formatBytes(s.HeapAlloc),
		"sys":        formatBytes(s.Sys),
		"gc_cycles":  s.GCCycles,
		"gc_new":     gcNew,
	}).Info("runtime")

	for _, op := range s.Operations {
		rp.log.WithFields(logrus.Fields{
			"operation": op.Name,
			"avg":       op.Avg.Truncate(time.Microsecond).String(),
			"min":       op.Min.Truncate(time.Microsecond).String(),
			"max":       op.Max.Truncate(time.Microsecond).String(),
			"count":     op.Count,
		}).Info("timing")
	}
	for _, m := range s.Metrics {
		rp.log.WithFields(logrus.Fields{
			"metric":  m.Name,
			"avg":     fmt.Sprintf("%.2f", m.Avg),
			"min":     m.Min,
			"max":     m.Max,
			"samples": m.Samples,
		}).Info("metric")
	}
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
