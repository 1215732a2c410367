package benchmark

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SummaryHeader heads the summary CSV.
var SummaryHeader = []string{
	"Scenario", "Backend", "Strategy", "Resolution", "Regions", "FPS",
	"Total_Duration_ms", "P50_ms", "P95_ms", "Alloc_MB", "Occupied", "Error_Rate",
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%.3f", float64(d.Nanoseconds())/1e6)
}

// WriteSummaryCSV writes one row per result.
func WriteSummaryCSV(w io.Writer, results []PerformanceMetrics) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SummaryHeader); err != nil {
		return errors.Wrap(err, "write summary header")
	}
	for _, r := range results {
		s := r.Scenario
		row := []string{
			s.Name,
			r.Backend,
			s.Strategy.String(),
			fmt.Sprintf("%dx%d", s.Resolution.Pixels.Width, s.Resolution.Pixels.Height),
			strconv.Itoa(r.Regions),
			fmt.Sprintf("%.2f", r.FramesPerSecond),
			ms(r.TotalDuration),
			ms(r.Latency.P50),
			ms(r.Latency.P95),
			fmt.Sprintf("%.2f", float64(r.MemoryStats.AllocBytes)/(1024*1024)),
			strconv.Itoa(r.OccupiedCount),
			fmt.Sprintf("%.4f", r.ErrorRate),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "write summary row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush summary")
}

// SaveResults persists benchmark results to the output directory as a
// detailed JSON file and a summary CSV.
//
// Returns:
//   - string: The JSON results path.
//   - string: The summary CSV path.
//   - error: An error if a file cannot be written.
func (bs *Suite) SaveResults() (string, string, error) {
	results := bs.GetResults()

	if err := os.MkdirAll(bs.outputDir, 0o755); err != nil {
		return "", "", errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", "", errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return "", "", errors.Wrap(err, "failed to write results file")
	}

	summaryFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))
	f, err := os.Create(summaryFile)
	if err != nil {
		return resultsFile, "", errors.Wrap(err, "failed to create summary CSV")
	}
	defer f.Close()
	if err := WriteSummaryCSV(f, results); err != nil {
		return resultsFile, "", err
	}

	bs.log.WithFields(logrus.Fields{
		"results": resultsFile,
		"summary": summaryFile,
	}).Info("benchmark results saved")
	return resultsFile, summaryFile, nil
}
