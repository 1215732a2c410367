package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-parking/config"
	"github.com/nvr-ai/go-parking/regions"
)

const usage = `parkwatch classifies parking spaces as free or occupied from a camera,
a video file, a still image or a directory of frames.

Usage:
  parkwatch run     [flags]          classify frames and report occupancy
  parkwatch bench   [flags]          benchmark backends and strategies on synthetic lots
  parkwatch convert [flags]          convert region files between legacy pickle and JSON
  parkwatch export  [flags]          export recorded history to CSV and an HTML chart
  parkwatch init    [config.yaml]    write the default configuration

Run "parkwatch <command> -h" for the flags of a command.
`

// exitNoRegions is the exit code when there are no parking spaces to watch.
const exitNoRegions = 2

// errNoRegions is returned when the region file loads but holds no spaces.
var errNoRegions = errors.New("no parking spaces defined")

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr))
}

func realMain(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch args[0] {
	case "run":
		err = runCommand(ctx, args[1:], stderr)
	case "bench":
		err = benchCommand(ctx, args[1:], stdout, stderr)
	case "convert":
		err = convertCommand(args[1:], stdout, stderr)
	case "export":
		err = exportCommand(ctx, args[1:], stdout, stderr)
	case "init":
		err = initCommand(args[1:], stdout)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 1
	}
	return exitCode(err, stderr)
}

// exitCode reports err on stderr and maps it to the process exit code.
func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp), errors.Is(err, context.Canceled):
		return 0
	case errors.Is(err, regions.ErrNotFound), errors.Is(err, errNoRegions):
		fmt.Fprintf(stderr, "parkwatch: %v\n", err)
		fmt.Fprintln(stderr, "define regions first: create the region file or point -regions at it")
		return exitNoRegions
	}
	fmt.Fprintf(stderr, "parkwatch: %v\n", err)
	return 1
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func initCommand(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return config.Write(stdout, config.Default())
	}
	if err := config.Save(args[0], config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", args[0])
	return nil
}
