package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-parking/benchmark"
	"github.com/nvr-ai/go-parking/config"
	"github.com/nvr-ai/go-parking/cv"
	"github.com/nvr-ai/go-parking/images"
	"github.com/nvr-ai/go-parking/occupancy"
	"github.com/nvr-ai/go-parking/preprocess"
)

func benchCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		set        string
		backends   string
		scenarios  string
		saveSet    string
		outputDir  string
		iterations int
		logLevel   string
	)
	fs := newFlagSet("bench", stderr)
	fs.StringVar(&set, "set", "quick", "Scenario set: quick, resolution, regions, strategy, backend or all")
	fs.StringVar(&backends, "backends", preprocess.BackendNative+","+preprocess.BackendOpenCV, "Comma separated backends to compare")
	fs.StringVar(&scenarios, "scenarios", "", "Load scenarios from a YAML or JSON file instead of -set")
	fs.StringVar(&saveSet, "save-scenarios", "", "Write the selected scenarios to this file and exit")
	fs.StringVar(&outputDir, "output-dir", "benchmark_results", "Directory for the JSON results and CSV summary")
	fs.IntVar(&iterations, "iterations", 0, "Override the iterations of every scenario")
	fs.StringVar(&logLevel, "log-level", "info", "Log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logCfg := config.Default().Log
	logCfg.Level = logLevel
	log, err := logCfg.NewLogger(stderr)
	if err != nil {
		return err
	}

	var sets []*benchmark.ScenarioSet
	if scenarios != "" {
		s, err := benchmark.LoadScenarioSet(scenarios)
		if err != nil {
			return err
		}
		sets = append(sets, s)
	} else {
		sets, err = scenarioSets(set, splitList(backends))
		if err != nil {
			return err
		}
	}

	if saveSet != "" {
		merged := &benchmark.ScenarioSet{Name: set, Description: "Selected benchmark scenarios"}
		for _, s := range sets {
			merged.Scenarios = append(merged.Scenarios, s.Scenarios...)
		}
		if err := benchmark.SaveScenarioSet(merged, saveSet); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %d scenarios to %s\n", len(merged.Scenarios), saveSet)
		return nil
	}

	suite := benchmark.NewSuite(benchmark.SuiteOptions{
		OutputDir: outputDir,
		Backends: map[string]benchmark.BackendFactory{
			preprocess.BackendOpenCV: func(benchmark.Scenario) (preprocess.Preprocessor, error) {
				return cv.NewPreprocessor(), nil
			},
		},
		Models: cv.NewModel,
		Logger: log,
	})
	for _, s := range sets {
		log.WithField("set", s.Name).Infof("queued %d scenarios", len(s.Scenarios))
		for _, sc := range s.Scenarios {
			if iterations > 0 {
				sc.Iterations = iterations
			}
			suite.AddScenario(sc)
		}
	}

	if err := suite.RunAllScenarios(ctx); err != nil {
		return err
	}
	if err := benchmark.WriteSummaryCSV(stdout, suite.GetResults()); err != nil {
		return err
	}
	_, _, err = suite.SaveResults()
	return err
}

// scenarioSets returns the predefined sets named by set.
func scenarioSets(set string, backends []string) ([]*benchmark.ScenarioSet, error) {
	if len(backends) == 0 {
		return nil, errors.New("no backends given")
	}
	predefined := &benchmark.PredefinedScenarios{}
	d1, _ := images.ResolutionByType(images.ResolutionTypeD1)
	strategies := []occupancy.Strategy{
		occupancy.StrategyPixelCount,
		occupancy.StrategyMeanIntensity,
		occupancy.StrategyBackground,
	}

	build := map[string]func() []*benchmark.ScenarioSet{
		"quick": func() []*benchmark.ScenarioSet {
			return []*benchmark.ScenarioSet{predefined.GetQuickScenarios(backends)}
		},
		"resolution": func() []*benchmark.ScenarioSet {
			var out []*benchmark.ScenarioSet
			for _, b := range backends {
				out = append(out, predefined.GetResolutionComparisonScenarios(b, 40, 0))
			}
			return out
		},
		"regions": func() []*benchmark.ScenarioSet {
			var out []*benchmark.ScenarioSet
			for _, b := range backends {
				out = append(out, predefined.GetRegionScalingScenarios(b, d1, []int{1, 10, 20, 30}))
			}
			return out
		},
		"strategy": func() []*benchmark.ScenarioSet {
			var out []*benchmark.ScenarioSet
			for _, b := range backends {
				out = append(out, predefined.GetStrategyComparisonScenarios(b, d1, strategies))
			}
			return out
		},
		"backend": func() []*benchmark.ScenarioSet {
			return []*benchmark.ScenarioSet{predefined.GetBackendComparisonScenarios(backends, d1)}
		},
	}

	if set == "all" {
		var out []*benchmark.ScenarioSet
		for _, name := range []string{"quick", "resolution", "regions", "strategy", "backend"} {
			out = append(out, build[name]()...)
		}
		return out, nil
	}
	f, ok := build[set]
	if !ok {
		return nil, errors.Errorf("unknown scenario set %q", set)
	}
	return f(), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
