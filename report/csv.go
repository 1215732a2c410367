// Package report turns pipeline results into durable and observable output:
// CSV exports, a SQLite history, Prometheus metrics, snapshots and an HTTP
// status surface.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-parking/occupancy"
)

// CSVTimeLayout formats timestamps in exported rows.
const CSVTimeLayout = "2006-01-02 15:04:05.000000"

var (
	// StatsHeader heads the aggregate history export.
	StatsHeader = []string{"Timestamp", "Total_Spaces", "Occupied_Spaces", "Free_Spaces", "Occupancy_Rate", "Availability_Rate"}
	// SpacesHeader heads the per-space history export.
	SpacesHeader = []string{"Timestamp", "Space_ID", "Is_Occupied", "Confidence"}
)

func statsRow(s occupancy.Stats) []string {
	return []string{
		s.Timestamp.Format(CSVTimeLayout),
		strconv.Itoa(s.Total),
		strconv.Itoa(s.Occupied),
		strconv.Itoa(s.Free),
		fmt.Sprintf("%.2f", s.OccupancyRate),
		fmt.Sprintf("%.2f", s.AvailabilityRate),
	}
}

func spaceRow(st occupancy.RegionStatus) []string {
	occupied := "No"
	if st.Occupied {
		occupied = "Yes"
	}
	return []string{
		st.Timestamp.Format(CSVTimeLayout),
		st.RegionID,
		occupied,
		fmt.Sprintf("%.3f", st.Confidence),
	}
}

// WriteStatsCSV writes the header and one row per stats entry.
func WriteStatsCSV(w io.Writer, history []occupancy.Stats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(StatsHeader); err != nil {
		return errors.Wrap(err, "write stats header")
	}
	for _, s := range history {
		if err := cw.Write(statsRow(s)); err != nil {
			return errors.Wrap(err, "write stats row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush stats csv")
}

// WriteSpacesCSV writes the header and one row per region per frame.
func WriteSpacesCSV(w io.Writer, history [][]occupancy.RegionStatus) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SpacesHeader); err != nil {
		return errors.Wrap(err, "write spaces header")
	}
	for _, frame := range history {
		for _, st := range frame {
			if err := cw.Write(spaceRow(st)); err != nil {
				return errors.Wrap(err, "write spaces row")
			}
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush spaces csv")
}

// CSVWriter appends every recorded result to a stats file and a per-space
// file as the pipeline runs. Either path may be empty to skip that file.
type CSVWriter struct {
	mu     sync.Mutex
	files  []*os.File
	stats  *csv.Writer
	spaces *csv.Writer
}

// NewCSVWriter creates the files and writes their headers.
//
// Arguments:
//   - statsPath: Aggregate history file, or "".
//   - spacesPath: Per-space history file, or "".
//
// Returns:
//   - *CSVWriter: The writer. Close it to flush and release the files.
//   - error: An error if a file cannot be created.
func NewCSVWriter(statsPath, spacesPath string) (*CSVWriter, error) {
	w := &CSVWriter{}
	open := func(path string, header []string) (*csv.Writer, error) {
		if path == "" {
			return nil, nil
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, errors.Wrapf(err, "create %s", path)
		}
		w.files = append(w.files, f)
		cw := csv.NewWriter(f)
		if err := cw.Write(header); err != nil {
			return nil, errors.Wrapf(err, "write header %s", path)
		}
		cw.Flush()
		return cw, cw.Error()
	}

	var err error
	if w.stats, err = open(statsPath, StatsHeader); err != nil {
		w.Close()
		return nil, err
	}
	if w.spaces, err = open(spacesPath, SpacesHeader); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// Record appends one result and flushes.
func (w *CSVWriter) Record(res occupancy.Result) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stats != nil {
		if err := w.stats.Write(statsRow(res.Stats)); err != nil {
			return errors.Wrap(err, "write stats row")
		}
		w.stats.Flush()
		if err := w.stats.Error(); err != nil {
			return errors.Wrap(err, "flush stats csv")
		}
	}
	if w.spaces != nil {
		for _, st := range res.Statuses {
			if err := w.spaces.Write(spaceRow(st)); err != nil {
				return errors.Wrap(err, "write spaces row")
			}
		}
		w.spaces.Flush()
		if err := w.spaces.Error(); err != nil {
			return errors.Wrap(err, "flush spaces csv")
		}
	}
	return nil
}

// Close flushes and closes the files.
func (w *CSVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var first error
	for _, f := range w.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	w.files = nil
	w.stats, w.spaces = nil, nil
	return first
}
