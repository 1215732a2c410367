package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-parking/occupancy"
	"github.com/nvr-ai/go-parking/report"
)

// exportCommand reads recorded passes from SQLite and writes them oldest
// first as the aggregate CSV, optionally with an HTML chart.
func exportCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		db, out, chart string
		limit          int
		summary        bool
	)
	fs := newFlagSet("export", stderr)
	fs.StringVar(&db, "sqlite", "", "SQLite history written by run -sqlite")
	fs.StringVar(&out, "out", "", "CSV file to write; empty writes to stdout")
	fs.StringVar(&chart, "chart", "", "Also render an HTML occupancy chart to this file")
	fs.IntVar(&limit, "limit", report.DefaultHistorySize, "Number of most recent passes to export")
	fs.BoolVar(&summary, "summary", false, "Print occupancy statistics as JSON to stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if db == "" {
		return errors.New("export needs -sqlite")
	}
	if _, err := os.Stat(db); err != nil {
		return errors.Wrap(err, "open history")
	}

	history, err := loadHistory(ctx, db, limit)
	if err != nil {
		return err
	}

	w := stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return errors.Wrap(err, "create csv")
		}
		defer f.Close()
		w = f
	}
	if err := report.WriteStatsCSV(w, history); err != nil {
		return err
	}

	if chart != "" {
		f, err := os.Create(chart)
		if err != nil {
			return errors.Wrap(err, "create chart")
		}
		defer f.Close()
		if err := report.OccupancyChart(f, history); err != nil {
			return err
		}
	}

	if summary {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(report.Summarize(history)), "encode summary")
	}
	if out != "" {
		fmt.Fprintf(stdout, "exported %d passes to %s\n", len(history), out)
	}
	return nil
}

// loadHistory returns up to limit recorded passes, oldest first.
func loadHistory(ctx context.Context, path string, limit int) ([]occupancy.Stats, error) {
	rec, err := report.OpenRecorder(path)
	if err != nil {
		return nil, err
	}
	defer rec.Close()

	rows, err := rec.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	history := make([]occupancy.Stats, len(rows))
	for i, row := range rows {
		history[len(rows)-1-i] = row.Stats
	}
	return history, nil
}
