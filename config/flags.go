package config

import (
	"flag"

	"github.com/nvr-ai/go-parking/occupancy"
	"github.com/nvr-ai/go-parking/source"
)

// Flags are the command line overrides shared by the subcommands. Only flags
// given explicitly replace values from the file.
type Flags struct {
	fs *flag.FlagSet

	ConfigPath string

	source    string
	kind      string
	device    int
	loop      bool
	regions   string
	backend   string
	strategy  string
	smoothing bool
	maxFrames int
	statsCSV  string
	spacesCSV string
	sqlite    string
	snapshots string
	serve     bool
	addr      string
	logLevel  string
	logFormat string
	profile   bool
}

// RegisterFlags adds the overrides to fs.
//
// @example
// fs := flag.NewFlagSet("run", flag.ExitOnError)
// flags := config.RegisterFlags(fs)
// _ = fs.Parse(os.Args[2:])
// cfg, err := flags.Resolve()
func RegisterFlags(fs *flag.FlagSet) *Flags {
	def := Default()
	f := &Flags{fs: fs}

	fs.StringVar(&f.ConfigPath, "config", "", "Path to a YAML config file")
	fs.StringVar(&f.source, "source", "", "Video file, image, frame directory; empty for a camera")
	fs.StringVar(&f.kind, "kind", "", "Source kind: video, camera, image or directory (inferred when empty)")
	fs.IntVar(&f.device, "device", 0, "Camera device index")
	fs.BoolVar(&f.loop, "loop", false, "Restart video files and directories at the end")
	fs.StringVar(&f.regions, "regions", def.Regions.Path, "Region file (.json or legacy pickle)")
	fs.StringVar(&f.backend, "backend", def.Preprocess.Backend, "Preprocessing backend: native or opencv")
	fs.StringVar(&f.strategy, "strategy", def.Classifier.Strategy.String(), "Classifier: pixel_count, mean_intensity or background")
	fs.BoolVar(&f.smoothing, "smooth", false, "Majority-vote smoothing over recent frames")
	fs.IntVar(&f.maxFrames, "max-frames", 0, "Stop after this many frames (0 runs to the end)")
	fs.StringVar(&f.statsCSV, "stats-csv", "", "Write aggregate occupancy history to this CSV")
	fs.StringVar(&f.spacesCSV, "spaces-csv", "", "Write per-space history to this CSV")
	fs.StringVar(&f.sqlite, "sqlite", "", "Record history in this SQLite database")
	fs.StringVar(&f.snapshots, "snapshots", "", "Save annotated snapshots to this directory")
	fs.BoolVar(&f.serve, "serve", false, "Serve the HTTP status surface")
	fs.StringVar(&f.addr, "addr", def.Server.Addr, "HTTP listen address")
	fs.StringVar(&f.logLevel, "log-level", def.Log.Level, "Log level")
	fs.StringVar(&f.logFormat, "log-format", def.Log.Format, "Log format: text or json")
	fs.BoolVar(&f.profile, "profile", false, "Log runtime and stage timing reports")
	return f
}

// Resolve loads the config file, applies the flags that were set and
// validates the result.
func (f *Flags) Resolve() (Config, error) {
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	if err := f.Apply(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Apply copies every explicitly set flag into cfg.
func (f *Flags) Apply(cfg *Config) error {
	var err error
	f.fs.Visit(func(fl *flag.Flag) {
		if err != nil {
			return
		}
		switch fl.Name {
		case "source":
			cfg.Source.Path = f.source
		case "kind":
			cfg.Source.Kind = source.Kind(f.kind)
		case "device":
			cfg.Source.Device = f.device
		case "loop":
			cfg.Source.Loop = f.loop
		case "regions":
			cfg.Regions.Path = f.regions
		case "backend":
			cfg.Preprocess.Backend = f.backend
		case "strategy":
			cfg.Classifier.Strategy, err = occupancy.ParseStrategy(f.strategy)
		case "smooth":
			cfg.Classifier.Smoothing = f.smoothing
		case "max-frames":
			cfg.Pipeline.MaxFrames = f.maxFrames
		case "stats-csv":
			cfg.Report.StatsCSV = f.statsCSV
		case "spaces-csv":
			cfg.Report.SpacesCSV = f.spacesCSV
		case "sqlite":
			cfg.Report.SQLite = f.sqlite
		case "snapshots":
			cfg.Report.SnapshotDir = f.snapshots
		case "serve":
			cfg.Server.Enabled = f.serve
		case "addr":
			cfg.Server.Addr = f.addr
		case "log-level":
			cfg.Log.Level = f.logLevel
		case "log-format":
			cfg.Log.Format = f.logFormat
		case "profile":
			cfg.Profile.Enabled = f.profile
		}
	})
	return err
}
