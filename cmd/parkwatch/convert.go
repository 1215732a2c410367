package main

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-parking/regions"
)

// convertCommand rewrites a region file in the format picked by the output
// extension: .json for JSON, anything else for the legacy pickle.
func convertCommand(args []string, stdout, stderr io.Writer) error {
	var (
		in, out       string
		width, height int
		points        bool
		backup        bool
	)
	fs := newFlagSet("convert", stderr)
	fs.StringVar(&in, "in", "", "Region file to read")
	fs.StringVar(&out, "out", "", "Region file to write")
	fs.IntVar(&width, "width", regions.DefaultWidth, "Width given to legacy (x, y) entries")
	fs.IntVar(&height, "height", regions.DefaultHeight, "Height given to legacy (x, y) entries")
	fs.BoolVar(&points, "points", false, "Write legacy files as (x, y) tuples")
	fs.BoolVar(&backup, "backup", true, "Back up the output file before overwriting it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if in == "" || out == "" {
		return errors.New("convert needs -in and -out")
	}

	rs, err := convert(in, out, width, height, points, backup, stdout)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "converted %d spaces from %s to %s\n", len(rs), in, out)
	return nil
}

func convert(in, out string, width, height int, points, backup bool, stdout io.Writer) ([]regions.Region, error) {
	src := regions.Open(in)
	if legacy, ok := src.(*regions.LegacyStore); ok {
		legacy.DefaultWidth, legacy.DefaultHeight = width, height
	}
	rs, err := src.Load()
	if err != nil {
		return nil, err
	}
	if err := regions.ValidateAll(rs); err != nil {
		return nil, err
	}

	if backup {
		saved, err := regions.Backup(out)
		if err != nil {
			return nil, err
		}
		if saved != "" {
			fmt.Fprintf(stdout, "backed up %s to %s\n", out, saved)
		}
	}

	dst := regions.Open(out)
	if legacy, ok := dst.(*regions.LegacyStore); ok && points {
		legacy.Layout = regions.LegacyPoints
	}
	return rs, dst.Save(rs)
}
