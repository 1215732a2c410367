// Package config holds the parkwatch configuration: the YAML file layout,
// its defaults, command line overrides and validation.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-parking/controller"
	"github.com/nvr-ai/go-parking/occupancy"
	"github.com/nvr-ai/go-parking/preprocess"
	"github.com/nvr-ai/go-parking/regions"
	"github.com/nvr-ai/go-parking/source"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full application configuration.
type Config struct {
	// Source selects where frames come from.
	Source source.Config `json:"source" yaml:"source"`

	// Regions locates the parking space file.
	Regions RegionsConfig `json:"regions" yaml:"regions"`

	// Preprocess selects the filter chain backend.
	Preprocess PreprocessConfig `json:"preprocess" yaml:"preprocess"`

	// Classifier selects the occupancy strategy and its thresholds.
	Classifier ClassifierConfig `json:"classifier" yaml:"classifier"`

	// Pipeline tunes the worker and its result channel.
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`

	// Report configures CSV, SQLite, snapshot and colour output.
	Report ReportConfig `json:"report" yaml:"report"`

	// Server configures the HTTP status surface.
	Server ServerConfig `json:"server" yaml:"server"`

	// Log configures the process logger.
	Log LogConfig `json:"log" yaml:"log"`

	// Profile configures the runtime profiler.
	Profile ProfileConfig `json:"profile" yaml:"profile"`
}

// RegionsConfig locates the region file.
type RegionsConfig struct {
	// Path to a .json or legacy pickle region file.
	Path string `json:"path" yaml:"path"`
	// DefaultWidth applied to legacy (x, y) entries.
	DefaultWidth int `json:"default_width" yaml:"default_width"`
	// DefaultHeight applied to legacy (x, y) entries.
	DefaultHeight int `json:"default_height" yaml:"default_height"`
	// Backup copies the file before convert overwrites it.
	Backup bool `json:"backup" yaml:"backup"`
}

// PreprocessConfig selects the filter chain backend.
type PreprocessConfig struct {
	// Backend is "native" or "opencv".
	Backend string `json:"backend" yaml:"backend"`
	// Parallel splits native kernels across goroutines.
	Parallel bool `json:"parallel" yaml:"parallel"`
	// Pool reuses native intermediate buffers across frames.
	Pool bool `json:"pool" yaml:"pool"`
}

// ClassifierConfig selects the occupancy strategy.
type ClassifierConfig struct {
	Strategy            occupancy.Strategy `json:"strategy" yaml:"strategy"`
	PixelThreshold      int                `json:"pixel_threshold" yaml:"pixel_threshold"`
	IntensityThreshold  float64            `json:"intensity_threshold" yaml:"intensity_threshold"`
	BackgroundThreshold float64            `json:"background_threshold" yaml:"background_threshold"`
	// Smoothing applies a majority vote over the last History results.
	Smoothing bool `json:"smoothing" yaml:"smoothing"`
	History   int  `json:"history" yaml:"history"`
}

// PipelineConfig tunes the frame worker.
type PipelineConfig struct {
	Buffer       int  `json:"buffer" yaml:"buffer"`
	DropWhenFull bool `json:"drop_when_full" yaml:"drop_when_full"`
	// MaxFrames stops the run after this many frames. Zero runs to the end.
	MaxFrames int `json:"max_frames" yaml:"max_frames"`
}

// ReportConfig configures the outputs. Empty paths disable an output.
type ReportConfig struct {
	StatsCSV       string       `json:"stats_csv" yaml:"stats_csv"`
	SpacesCSV      string       `json:"spaces_csv" yaml:"spaces_csv"`
	SQLite         string       `json:"sqlite" yaml:"sqlite"`
	SnapshotDir    string       `json:"snapshot_dir" yaml:"snapshot_dir"`
	SnapshotEvery  int          `json:"snapshot_every" yaml:"snapshot_every"`
	ThumbnailWidth int          `json:"thumbnail_width" yaml:"thumbnail_width"`
	Colors         ColorsConfig `json:"colors" yaml:"colors"`
}

// ColorsConfig holds "#rrggbb" overlay colours.
type ColorsConfig struct {
	Free     string `json:"free" yaml:"free"`
	Occupied string `json:"occupied" yaml:"occupied"`
	Banner   string `json:"banner" yaml:"banner"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Addr        string `json:"addr" yaml:"addr"`
	HistorySize int    `json:"history_size" yaml:"history_size"`
}

// LogConfig configures logrus.
type LogConfig struct {
	// Level is any level logrus.ParseLevel accepts.
	Level string `json:"level" yaml:"level"`
	// Format is "text" or "json".
	Format string `json:"format" yaml:"format"`
}

// ProfileConfig configures the runtime profiler.
type ProfileConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	Interval time.Duration `json:"interval" yaml:"interval"`
}

// Default returns the configuration used when no file is given.
//
// Returns:
//   - Config: Native backend, pixel count strategy and no file outputs.
//
// @example
// cfg := config.Default()
// cfg.Source.Path = "lot.mp4"
// cfg.Regions.Path = "spaces.json"
func Default() Config {
	return Config{
		Regions: RegionsConfig{
			Path:          "parking_spaces.json",
			DefaultWidth:  regions.DefaultWidth,
			DefaultHeight: regions.DefaultHeight,
			Backup:        true,
		},
		Preprocess: PreprocessConfig{
			Backend: preprocess.BackendNative,
		},
		Classifier: ClassifierConfig{
			Strategy:            occupancy.StrategyPixelCount,
			PixelThreshold:      occupancy.OccupiedPixelThreshold,
			IntensityThreshold:  occupancy.IntensityThreshold,
			BackgroundThreshold: occupancy.BackgroundRatioThreshold,
			History:             occupancy.DefaultHistory,
		},
		Pipeline: PipelineConfig{
			Buffer: controller.DefaultBuffer,
		},
		Report: ReportConfig{
			SnapshotEvery:  100,
			ThumbnailWidth: 320,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			HistorySize: 720,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Profile: ProfileConfig{
			Interval: 10 * time.Second,
		},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected. An
// empty path returns Default.
//
// Arguments:
//   - path: The YAML file, or "".
//
// Returns:
//   - Config: The merged configuration. It is not validated.
//   - error: An error if the file cannot be read or parsed.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Write encodes cfg as YAML.
func Write(w io.Writer, cfg Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return errors.Wrap(err, "encode config")
	}
	return errors.Wrap(enc.Close(), "encode config")
}

// Save writes cfg to path, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	var buf bytes.Buffer
	if err := Write(&buf, cfg); err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, buf.Bytes(), 0o644), "write %s", path)
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalid, format, args...)
}

// Validate checks every section and returns the first problem found.
func (c Config) Validate() error {
	kind, err := source.Infer(c.Source)
	if err != nil {
		return invalid("source: %v", err)
	}
	switch kind {
	case source.KindCamera:
	case source.KindVideo, source.KindImage, source.KindDirectory:
		if c.Source.Path == "" {
			return invalid("source.path is required for %s sources", kind)
		}
	default:
		return invalid("source.kind %q", kind)
	}
	if c.Source.Device < 0 || c.Source.Repeat < 0 {
		return invalid("source.device and source.repeat must not be negative")
	}

	if c.Regions.Path == "" {
		return invalid("regions.path is required")
	}
	if c.Regions.DefaultWidth <= 0 || c.Regions.DefaultHeight <= 0 {
		return invalid("regions default size %dx%d", c.Regions.DefaultWidth, c.Regions.DefaultHeight)
	}

	switch c.Preprocess.Backend {
	case preprocess.BackendNative, preprocess.BackendOpenCV:
	default:
		return invalid("preprocess.backend %q", c.Preprocess.Backend)
	}

	cl := c.Classifier
	if cl.Strategy.String() == "unknown" {
		return invalid("classifier.strategy %d", int(cl.Strategy))
	}
	if cl.PixelThreshold <= 0 {
		return invalid("classifier.pixel_threshold %d", cl.PixelThreshold)
	}
	if cl.IntensityThreshold <= 0 || cl.IntensityThreshold > 1 {
		return invalid("classifier.intensity_threshold %g is outside (0, 1]", cl.IntensityThreshold)
	}
	if cl.BackgroundThreshold <= 0 || cl.BackgroundThreshold > 1 {
		return invalid("classifier.background_threshold %g is outside (0, 1]", cl.BackgroundThreshold)
	}
	if cl.Smoothing && cl.History < 1 {
		return invalid("classifier.history %d", cl.History)
	}

	if c.Pipeline.Buffer < 1 || c.Pipeline.MaxFrames < 0 {
		return invalid("pipeline buffer %d, max_frames %d", c.Pipeline.Buffer, c.Pipeline.MaxFrames)
	}

	if c.Report.SnapshotEvery < 0 || c.Report.ThumbnailWidth < 0 {
		return invalid("report snapshot_every and thumbnail_width must not be negative")
	}
	for name, hex := range map[string]string{
		"free":     c.Report.Colors.Free,
		"occupied": c.Report.Colors.Occupied,
		"banner":   c.Report.Colors.Banner,
	} {
		if hex == "" {
			continue
		}
		if _, err := colorful.Hex(hex); err != nil {
			return invalid("report.colors.%s %q", name, hex)
		}
	}

	if c.Server.Enabled && c.Server.Addr == "" {
		return invalid("server.addr is required when the server is enabled")
	}
	if c.Server.HistorySize < 0 {
		return invalid("server.history_size %d", c.Server.HistorySize)
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log.format %q", c.Log.Format)
	}

	if c.Profile.Enabled && c.Profile.Interval <= 0 {
		return invalid("profile.interval %s", c.Profile.Interval)
	}
	return nil
}

// LoadRegions reads the region file, applying the configured default size to
// legacy (x, y) entries.
func (c RegionsConfig) LoadRegions() ([]regions.Region, error) {
	if st, ok := regions.Open(c.Path).(*regions.LegacyStore); ok &&
		(c.DefaultWidth != regions.DefaultWidth || c.DefaultHeight != regions.DefaultHeight) {
		st.DefaultWidth, st.DefaultHeight = c.DefaultWidth, c.DefaultHeight
		return st.Load()
	}
	return regions.Load(c.Path)
}

// NewLogger builds the process logger.
//
// Arguments:
//   - w: Destination of the log entries.
//
// Returns:
//   - *logrus.Logger: A logger with the configured level and formatter.
//   - error: An error if the level or format is unknown.
func (c LogConfig) NewLogger(w io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}

	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(level)
	switch c.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, errors.Errorf("unknown log format %q", c.Format)
	}
	return log, nil
}
