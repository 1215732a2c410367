package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-parking/config"
	"github.com/nvr-ai/go-parking/occupancy"
	"github.com/nvr-ai/go-parking/regions"
	"github.com/nvr-ai/go-parking/report"
)

func execute(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := realMain(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestUsage(t *testing.T) {
	code, _, stderr := execute()
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Usage:")

	code, stdout, _ := execute("help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "parkwatch run")

	code, _, stderr = execute("watch")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, `unknown command "watch"`)
}

func TestRunWithoutRegionsExitsTwo(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "spaces.json")
	code, _, stderr := execute("run", "-regions", missing, "-log-level", "error")
	assert.Equal(t, exitNoRegions, code)
	assert.Contains(t, stderr, "define regions first")
}

func TestRunWithEmptyRegionFileExitsTwo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spaces.json")
	require.NoError(t, regions.NewJSONStore(path).Save(nil))

	code, _, stderr := execute("run", "-regions", path, "-log-level", "error")
	assert.Equal(t, exitNoRegions, code)
	assert.Contains(t, stderr, "no parking spaces defined")
}

func TestRunRejectsBadFlags(t *testing.T) {
	code, _, stderr := execute("run", "-strategy", "vibes")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "vibes")

	code, _, _ = execute("run", "-h")
	assert.Equal(t, 0, code)
}

func TestConvertRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "spaces.json")
	rs := []regions.Region{
		{X: 10, Y: 20, Width: regions.DefaultWidth, Height: regions.DefaultHeight, ID: "A1"},
		{X: 130, Y: 20, Width: regions.DefaultWidth, Height: regions.DefaultHeight, ID: "A2"},
	}
	require.NoError(t, regions.NewJSONStore(in).Save(rs))

	legacy := filepath.Join(dir, "spaces.pkl")
	code, stdout, stderr := execute("convert", "-in", in, "-out", legacy, "-points")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "converted 2 spaces")

	back := filepath.Join(dir, "back.json")
	code, _, stderr = execute("convert", "-in", legacy, "-out", back)
	require.Equal(t, 0, code, stderr)

	got, err := regions.Load(back)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range rs {
		assert.Equal(t, rs[i].Rect(), got[i].Rect())
	}

	// A second conversion over the same output keeps a backup.
	code, stdout, _ = execute("convert", "-in", legacy, "-out", back)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "backed up")
}

func TestConvertMissingInput(t *testing.T) {
	dir := t.TempDir()
	code, _, stderr := execute("convert", "-in", filepath.Join(dir, "nope.pkl"), "-out", filepath.Join(dir, "out.json"))
	assert.Equal(t, exitNoRegions, code)
	assert.Contains(t, stderr, "define regions first")

	code, _, _ = execute("convert", "-in", "only-in.json")
	assert.Equal(t, 1, code)
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "history.db")
	rec, err := report.OpenRecorder(db)
	require.NoError(t, err)

	t0 := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		statuses := []occupancy.RegionStatus{
			{Index: 0, RegionID: "P00", Occupied: true},
			{Index: 1, RegionID: "P01", Occupied: i == 2},
		}
		res := occupancy.Result{Statuses: statuses, Stats: occupancy.Aggregate(statuses, t0.Add(time.Duration(i)*time.Second))}
		require.NoError(t, rec.Record(context.Background(), "s", i, res))
	}
	require.NoError(t, rec.Close())

	out := filepath.Join(dir, "stats.csv")
	chart := filepath.Join(dir, "chart.html")
	code, stdout, stderr := execute("export", "-sqlite", db, "-out", out, "-chart", chart)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "exported 3 passes")
	assert.FileExists(t, chart)

	history, err := loadHistory(context.Background(), db, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.True(t, history[0].Timestamp.Before(history[2].Timestamp))
	assert.Equal(t, 2, history[2].Occupied)

	code, stdout, _ = execute("export", "-sqlite", db, "-summary")
	require.Equal(t, 0, code)
	lines := strings.Split(stdout, "\n")
	assert.Equal(t, strings.Join(report.StatsHeader, ","), lines[0])
	assert.Contains(t, stdout, `"samples": 3`)

	code, _, _ = execute("export", "-sqlite", filepath.Join(dir, "missing.db"))
	assert.Equal(t, 1, code)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parkwatch.yaml")
	code, stdout, _ := execute("init", path)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	code, stdout, _ = execute("init")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "strategy: pixel_count")
}

func TestScenarioSets(t *testing.T) {
	sets, err := scenarioSets("all", []string{"native"})
	require.NoError(t, err)
	assert.Len(t, sets, 5)

	_, err = scenarioSets("nightly", []string{"native"})
	assert.Error(t, err)
	_, err = scenarioSets("quick", splitList(" , "))
	assert.Error(t, err)
}

func TestBenchSavesScenarios(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quick.yaml")
	code, stdout, stderr := execute("bench", "-set", "quick", "-backends", "native", "-save-scenarios", path)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "wrote 4 scenarios")
}
