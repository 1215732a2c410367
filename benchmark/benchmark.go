package benchmark

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-parking/controller"
	"github.com/nvr-ai/go-parking/images"
	"github.com/nvr-ai/go-parking/images/kernels"
	"github.com/nvr-ai/go-parking/occupancy"
	"github.com/nvr-ai/go-parking/preprocess"
	"github.com/nvr-ai/go-parking/test"
)

// BackendFactory builds a preprocessor for one scenario.
type BackendFactory func(s Scenario) (preprocess.Preprocessor, error)

// NativeBackend builds the pure Go preprocessor with a buffer pool.
func NativeBackend(s Scenario) (preprocess.Preprocessor, error) {
	return preprocess.NewNative(preprocess.Options{Parallel: s.Parallel, Pool: &kernels.Pool{}}), nil
}

// frameVariants is how many distinct lot frames a scenario cycles through.
const frameVariants = 4

// SuiteOptions configures a Suite.
type SuiteOptions struct {
	// OutputDir receives SaveResults files.
	OutputDir string
	// Backends maps backend names to factories. The native backend is always
	// available.
	Backends map[string]BackendFactory
	// Models builds foreground models for background scenarios.
	Models occupancy.ModelFactory
	// Logger receives progress entries.
	Logger logrus.FieldLogger
}

// Suite manages and executes benchmark scenarios
type Suite struct {
	scenarios []Scenario
	outputDir string
	backends  map[string]BackendFactory
	models    occupancy.ModelFactory
	log       logrus.FieldLogger
	mu        sync.RWMutex
	results   []PerformanceMetrics
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - opts: Output directory, extra backends and logger.
//
// Returns:
//   - *Suite: The benchmark suite.
func NewSuite(opts SuiteOptions) *Suite {
	backends := map[string]BackendFactory{preprocess.BackendNative: NativeBackend}
	for name, f := range opts.Backends {
		backends[name] = f
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}
	return &Suite{
		outputDir: opts.OutputDir,
		backends:  backends,
		models:    opts.Models,
		log:       opts.Logger.WithField("component", "benchmark"),
		scenarios: make([]Scenario, 0),
		results:   make([]PerformanceMetrics, 0),
	}
}

// AddScenario adds a test scenario to the benchmark suite
func (bs *Suite) AddScenario(scenario Scenario) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.scenarios = append(bs.scenarios, scenario)
}

// Scenarios returns the queued scenarios.
func (bs *Suite) Scenarios() []Scenario {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return append([]Scenario(nil), bs.scenarios...)
}

// newController wires the scenario's backend and strategy.
func (bs *Suite) newController(s Scenario) (*controller.Controller, occupancy.Classifier, error) {
	factory, ok := bs.backends[s.Backend]
	if !ok {
		return nil, nil, errors.Errorf("unknown backend %q", s.Backend)
	}
	pre, err := factory(s)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "backend %s", s.Backend)
	}
	classifier, err := occupancy.New(occupancy.Config{Strategy: s.Strategy, Models: bs.models})
	if err != nil {
		return nil, nil, err
	}
	ctrl, err := controller.New(controller.Options{Preprocessor: pre, Classifier: classifier})
	return ctrl, classifier, err
}

// lotFrames renders the scenario's lot with a rotating set of occupied spaces.
func lotFrames(s Scenario) (*test.LotGenerator, []images.Frame, int) {
	gen := test.NewLotGenerator(s.Resolution.Pixels.Width, s.Resolution.Pixels.Height)
	spaces := gen.Spaces(s.Regions)
	busy := int(float64(len(spaces))*s.OccupiedRatio + 0.5)

	frames := gen.Sequence(spaces, frameVariants, func(i int) map[int]bool {
		occupied := make(map[int]bool, busy)
		for k := 0; k < busy; k++ {
			occupied[(i+k)%len(spaces)] = true
		}
		return occupied
	})
	return gen, frames, len(spaces)
}

// RunScenario executes a single benchmark scenario
func (bs *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if scenario.Iterations <= 0 {
		return nil, errors.Errorf("scenario %s: iterations must be positive", scenario.Name)
	}

	ctrl, classifier, err := bs.newController(scenario)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", scenario.Name)
	}
	if c, ok := classifier.(io.Closer); ok {
		defer c.Close()
	}

	gen, frames, spaces := lotFrames(scenario)
	if spaces == 0 {
		return nil, errors.Errorf("scenario %s: %dx%d holds no spaces", scenario.Name,
			scenario.Resolution.Pixels.Width, scenario.Resolution.Pixels.Height)
	}
	if err := ctrl.SetRegions(gen.Spaces(scenario.Regions)); err != nil {
		return nil, err
	}

	metrics := &PerformanceMetrics{
		Scenario:  scenario,
		Timestamp: time.Now(),
		Backend:   ctrl.Backend(),
		Regions:   spaces,
	}

	// Warmup runs
	for i := 0; i < scenario.WarmupRuns; i++ {
		if _, err := ctrl.Process(frames[i%len(frames)]); err != nil {
			continue // Skip warmup errors
		}
	}

	// Capture initial memory stats
	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	latencies := make([]time.Duration, 0, scenario.Iterations)
	failures := 0
	startTime := time.Now()

	for i := 0; i < scenario.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := ctrl.Process(frames[i%len(frames)])
		if err != nil {
			failures++
			continue
		}
		latencies = append(latencies, res.Timings.Total)
		metrics.PreprocessDuration += res.Timings.Preprocess + res.Timings.Grayscale
		metrics.ClassifyDuration += res.Timings.Classify
		metrics.OccupiedCount += res.Result.Stats.Occupied
	}

	totalDuration := time.Since(startTime)

	// Capture final memory stats
	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	metrics.TotalDuration = totalDuration
	metrics.FramesPerSecond = float64(scenario.Iterations-failures) / totalDuration.Seconds()
	metrics.ErrorRate = float64(failures) / float64(scenario.Iterations)
	metrics.Latency = summarizeLatency(latencies)

	metrics.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
		HeapSysBytes:    endMem.HeapSys,
	}

	metrics.CPUStats = CPUMetrics{
		NumCPU:     runtime.NumCPU(),
		GOMAXPROCS: runtime.GOMAXPROCS(0),
	}

	return metrics, nil
}

// RunAllScenarios executes every queued scenario. A failing scenario is
// logged and skipped; cancellation stops the run.
func (bs *Suite) RunAllScenarios(ctx context.Context) error {
	for _, scenario := range bs.Scenarios() {
		metrics, err := bs.RunScenario(ctx, scenario)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			bs.log.WithError(err).WithField("scenario", scenario.Name).Warn("scenario failed")
			continue
		}

		bs.mu.Lock()
		bs.results = append(bs.results, *metrics)
		bs.mu.Unlock()

		bs.log.WithFields(logrus.Fields{
			"scenario": scenario.Name,
			"fps":      fmt.Sprintf("%.2f", metrics.FramesPerSecond),
			"p95":      metrics.Latency.P95.String(),
			"regions":  metrics.Regions,
		}).Info("scenario completed")
	}
	return nil
}

// GetResults returns all benchmark results
func (bs *Suite) GetResults() []PerformanceMetrics {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	results := make([]PerformanceMetrics, len(bs.results))
	copy(results, bs.results)
	return results
}
