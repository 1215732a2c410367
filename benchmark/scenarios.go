package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-parking/images"
	"github.com/nvr-ai/go-parking/occupancy"
	"github.com/nvr-ai/go-parking/preprocess"
)

// Scenario defines a specific test configuration
type Scenario struct {
	Name       string             `json:"name" yaml:"name"`
	Backend    string             `json:"backend" yaml:"backend"`
	Strategy   occupancy.Strategy `json:"strategy" yaml:"strategy"`
	Resolution images.Resolution  `json:"resolution" yaml:"resolution"`
	// Regions is the number of spaces laid out on the frame. It is capped at
	// what the resolution can hold.
	Regions int `json:"regions" yaml:"regions"`
	// OccupiedRatio is the share of spaces holding a car in each frame.
	OccupiedRatio float64 `json:"occupied_ratio" yaml:"occupied_ratio"`
	// Parallel splits native kernels across goroutines.
	Parallel   bool `json:"parallel" yaml:"parallel"`
	Iterations int  `json:"iterations" yaml:"iterations"`
	WarmupRuns int  `json:"warmup_runs" yaml:"warmup_runs"`
}

// ScenarioBuilder helps build test scenarios with fluent API
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder at D1 with the native
// backend, the pixel count strategy and a half-full lot.
func NewScenarioBuilder(name string) *ScenarioBuilder {
	d1, _ := images.ResolutionByType(images.ResolutionTypeD1)
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:          name,
			Backend:       preprocess.BackendNative,
			Strategy:      occupancy.StrategyPixelCount,
			Resolution:    d1,
			Regions:       20,
			OccupiedRatio: 0.5,
			Iterations:    100,
			WarmupRuns:    10,
		},
	}
}

// WithBackend sets the preprocessing backend
func (sb *ScenarioBuilder) WithBackend(backend string) *ScenarioBuilder {
	sb.scenario.Backend = backend
	return sb
}

// WithStrategy sets the classifier strategy
func (sb *ScenarioBuilder) WithStrategy(strategy occupancy.Strategy) *ScenarioBuilder {
	sb.scenario.Strategy = strategy
	return sb
}

// WithResolution sets the frame resolution
func (sb *ScenarioBuilder) WithResolution(res images.Resolution) *ScenarioBuilder {
	sb.scenario.Resolution = res
	return sb
}

// WithRegions sets the number of spaces
func (sb *ScenarioBuilder) WithRegions(n int) *ScenarioBuilder {
	sb.scenario.Regions = n
	return sb
}

// WithOccupancy sets the share of occupied spaces
func (sb *ScenarioBuilder) WithOccupancy(ratio float64) *ScenarioBuilder {
	sb.scenario.OccupiedRatio = ratio
	return sb
}

// WithParallel toggles parallel native kernels
func (sb *ScenarioBuilder) WithParallel(parallel bool) *ScenarioBuilder {
	sb.scenario.Parallel = parallel
	return sb
}

// WithIterations sets the number of test iterations
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of warmup runs
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// Build returns the configured test scenario
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// ScenarioSet represents a collection of related test scenarios
type ScenarioSet struct {
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Scenarios   []Scenario `json:"scenarios" yaml:"scenarios"`
}

// PredefinedScenarios contains common benchmark scenario sets
type PredefinedScenarios struct{}

// GetQuickScenarios returns a small set covering D1 and 720p with a few
// dozen spaces.
func (ps *PredefinedScenarios) GetQuickScenarios(backends []string) *ScenarioSet {
	scenarios := make([]Scenario, 0)

	for _, backend := range backends {
		for _, rt := range []images.ResolutionType{images.ResolutionTypeD1, images.ResolutionTypeHD720p} {
			res, _ := images.ResolutionByType(rt)
			for _, n := range []int{10, 40} {
				scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("quick_%s_%dx%d_%d", backend, res.Pixels.Width, res.Pixels.Height, n)).
					WithBackend(backend).
					WithResolution(res).
					WithRegions(n).
					WithIterations(30).
					WithWarmupRuns(3).
					Build())
			}
		}
	}

	return &ScenarioSet{
		Name:        "Quick Performance Test",
		Description: "D1 and 720p frames with 10 and 40 spaces",
		Scenarios:   scenarios,
	}
}

// GetResolutionComparisonScenarios runs the same lot on every standard
// camera resolution up to maxPixels (zero for all).
func (ps *PredefinedScenarios) GetResolutionComparisonScenarios(backend string, regions, maxPixels int) *ScenarioSet {
	scenarios := make([]Scenario, 0)

	for _, res := range images.AllResolutions() {
		if maxPixels > 0 && res.Pixels.Width*res.Pixels.Height > maxPixels {
			continue
		}
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("resolution_%s_%dx%d", backend, res.Pixels.Width, res.Pixels.Height)).
			WithBackend(backend).
			WithResolution(res).
			WithRegions(regions).
			Build())
	}

	return &ScenarioSet{
		Name:        fmt.Sprintf("Resolution Comparison - %s", backend),
		Description: fmt.Sprintf("Compares camera resolutions with %d spaces on the %s backend", regions, backend),
		Scenarios:   scenarios,
	}
}

// GetRegionScalingScenarios grows the number of spaces at one resolution.
func (ps *PredefinedScenarios) GetRegionScalingScenarios(backend string, res images.Resolution, counts []int) *ScenarioSet {
	scenarios := make([]Scenario, 0, len(counts))
	for _, n := range counts {
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("regions_%s_%d", backend, n)).
			WithBackend(backend).
			WithResolution(res).
			WithRegions(n).
			Build())
	}

	return &ScenarioSet{
		Name:        fmt.Sprintf("Region Scaling - %s @ %s", backend, res.Name),
		Description: "Measures how classification cost grows with the number of spaces",
		Scenarios:   scenarios,
	}
}

// GetStrategyComparisonScenarios runs every strategy on the same lot.
func (ps *PredefinedScenarios) GetStrategyComparisonScenarios(backend string, res images.Resolution, strategies []occupancy.Strategy) *ScenarioSet {
	scenarios := make([]Scenario, 0, len(strategies))
	for _, s := range strategies {
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("strategy_%s_%s", backend, s)).
			WithBackend(backend).
			WithStrategy(s).
			WithResolution(res).
			Build())
	}

	return &ScenarioSet{
		Name:        fmt.Sprintf("Strategy Comparison - %s @ %s", backend, res.Name),
		Description: "Compares the classifier strategies on identical frames",
		Scenarios:   scenarios,
	}
}

// GetBackendComparisonScenarios runs the same lot on every backend, with and
// without parallel native kernels.
func (ps *PredefinedScenarios) GetBackendComparisonScenarios(backends []string, res images.Resolution) *ScenarioSet {
	scenarios := make([]Scenario, 0)
	for _, backend := range backends {
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("backend_%s", backend)).
			WithBackend(backend).
			WithResolution(res).
			Build())
		if backend == preprocess.BackendNative {
			scenarios = append(scenarios, NewScenarioBuilder("backend_native_parallel").
				WithBackend(backend).
				WithResolution(res).
				WithParallel(true).
				Build())
		}
	}

	return &ScenarioSet{
		Name:        fmt.Sprintf("Backend Comparison @ %s", res.Name),
		Description: "Compares the preprocessing backends on identical frames",
		Scenarios:   scenarios,
	}
}

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}

// SaveScenarioSet saves a scenario set as YAML or JSON, by file extension.
func SaveScenarioSet(scenarioSet *ScenarioSet, filename string) error {
	var data []byte
	var err error
	if isYAML(filename) {
		data, err = yaml.Marshal(scenarioSet)
	} else {
		data, err = json.MarshalIndent(scenarioSet, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "failed to marshal scenario set")
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write scenario file")
	}

	return nil
}

// LoadScenarioSet loads a scenario set from a YAML or JSON file.
func LoadScenarioSet(filename string) (*ScenarioSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario file")
	}

	var scenarioSet ScenarioSet
	if isYAML(filename) {
		err = yaml.Unmarshal(data, &scenarioSet)
	} else {
		err = json.Unmarshal(data, &scenarioSet)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal scenario set")
	}

	return &scenarioSet, nil
}
