package main

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-parking/config"
	"github.com/nvr-ai/go-parking/controller"
	"github.com/nvr-ai/go-parking/cv"
	"github.com/nvr-ai/go-parking/images"
	"github.com/nvr-ai/go-parking/images/kernels"
	"github.com/nvr-ai/go-parking/occupancy"
	"github.com/nvr-ai/go-parking/preprocess"
	"github.com/nvr-ai/go-parking/profiler"
	"github.com/nvr-ai/go-parking/regions"
	"github.com/nvr-ai/go-parking/report"
	"github.com/nvr-ai/go-parking/source"
)

func runCommand(ctx context.Context, args []string, stderr io.Writer) error {
	fs := newFlagSet("run", stderr)
	flags := config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := flags.Resolve()
	if err != nil {
		return err
	}
	log, err := cfg.Log.NewLogger(stderr)
	if err != nil {
		return err
	}
	return run(ctx, cfg, log)
}

// run wires the configured source, controller and outputs and processes
// frames until the source ends or ctx is cancelled. With the server enabled
// it keeps serving the last state until ctx is cancelled.
func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	rs, err := cfg.Regions.LoadRegions()
	if err != nil {
		return err
	}
	if len(rs) == 0 {
		return errors.Wrap(errNoRegions, cfg.Regions.Path)
	}
	for _, o := range regions.Overlaps(rs, 0.5) {
		log.WithFields(logrus.Fields{"a": o.A, "b": o.B, "iou": o.IoU}).Warn("parking spaces overlap")
	}

	palette, err := report.ParsePalette(cfg.Report.Colors.Free, cfg.Report.Colors.Occupied, cfg.Report.Colors.Banner)
	if err != nil {
		return err
	}

	var (
		prof    *profiler.RuntimeProfiler
		timings controller.TimingObserver
	)
	if cfg.Profile.Enabled {
		prof = profiler.NewRuntimeProfiler(profiler.ProfilingOptions{
			ReportInterval: cfg.Profile.Interval,
			Logger:         log,
		})
		timings = prof
	}

	ctrl, classifier, err := newController(cfg, rs, palette, timings)
	if err != nil {
		return err
	}
	if c, ok := classifier.(io.Closer); ok {
		defer c.Close()
	}

	src, err := source.Open(cfg.Source)
	if err != nil {
		return errors.Wrap(err, "open source")
	}
	defer src.Close()

	pipeline := controller.NewPipeline(ctrl, src, controller.PipelineOptions{
		Buffer:       cfg.Pipeline.Buffer,
		DropWhenFull: cfg.Pipeline.DropWhenFull,
		MaxFrames:    cfg.Pipeline.MaxFrames,
		Logger:       log,
	})

	reporter, err := newReporter(cfg, log)
	if err != nil {
		return err
	}
	defer reporter.Close()
	reporter.Metrics.WatchPipeline(pipeline)

	serveErr := make(chan error, 1)
	if cfg.Server.Enabled {
		srv := report.NewServer(report.ServerOptions{
			Addr:        cfg.Server.Addr,
			Logger:      log,
			Metrics:     reporter.Metrics,
			Recorder:    reporter.Recorder,
			Palette:     palette,
			HistorySize: cfg.Server.HistorySize,
			EncodeJPEG:  cv.EncodeJPEG,
		})
		srv.Attach(pipeline)
		reporter.Server = srv
		go func() { serveErr <- srv.ListenAndServe(ctx) }()
	}

	if prof != nil {
		prof.AddMetricsCollector(pipelineCollector{pipeline})
		prof.Start()
		defer prof.Stop()
	}

	log.WithFields(logrus.Fields{
		"session": pipeline.Session(),
		"source":  cfg.Source.Path,
		"regions": cfg.Regions.Path,
	}).Info("parkwatch started")

	var history []occupancy.Stats
	for res := range pipeline.Run(ctx) {
		_ = reporter.Handle(ctx, res)
		if res.Err == nil {
			history = append(history, res.Result.Stats)
		}
	}

	summary := report.Summarize(history)
	stats := pipeline.Stats()
	log.WithFields(logrus.Fields{
		"session":        pipeline.Session(),
		"processed":      stats.Processed,
		"errors":         stats.Errors,
		"dropped":        stats.Dropped,
		"mean_occupancy": summary.MeanOccupancy,
		"peak_occupied":  summary.PeakOccupied,
	}).Info("parkwatch finished")

	if err := pipeline.Err(); err != nil {
		return err
	}
	if !cfg.Server.Enabled {
		return nil
	}
	if ctx.Err() == nil {
		log.Info("source finished, serving the last state until interrupted")
	}
	return <-serveErr
}

// newController builds the preprocessor, classifier and overlay for cfg.
// The classifier is returned so the caller can close background models.
func newController(cfg config.Config, rs []regions.Region, palette report.Palette, timings controller.TimingObserver) (*controller.Controller, occupancy.Classifier, error) {
	pre, err := newPreprocessor(cfg.Preprocess)
	if err != nil {
		return nil, nil, err
	}

	classifier, err := occupancy.New(occupancy.Config{
		Strategy:            cfg.Classifier.Strategy,
		PixelThreshold:      cfg.Classifier.PixelThreshold,
		IntensityThreshold:  cfg.Classifier.IntensityThreshold,
		BackgroundThreshold: cfg.Classifier.BackgroundThreshold,
		Models:              cv.NewModel,
	})
	if err != nil {
		return nil, nil, err
	}

	style := cv.DefaultStyle()
	style.Free = report.RGBA(palette.Free)
	style.Occupied = report.RGBA(palette.Occupied)
	style.Banner = report.RGBA(palette.Banner)

	opts := controller.Options{
		Preprocessor: pre,
		Classifier:   classifier,
		Regions:      rs,
		Timings:      timings,
		Annotator: func(f images.Frame, rs []regions.Region, st []occupancy.RegionStatus) (images.Frame, error) {
			return cv.Annotate(f, rs, st, style)
		},
	}
	if cfg.Classifier.Smoothing {
		opts.Smoother = occupancy.NewSmoother(cfg.Classifier.History)
	}

	ctrl, err := controller.New(opts)
	return ctrl, classifier, err
}

func newPreprocessor(cfg config.PreprocessConfig) (preprocess.Preprocessor, error) {
	switch cfg.Backend {
	case preprocess.BackendNative:
		opts := preprocess.Options{Parallel: cfg.Parallel}
		if cfg.Pool {
			opts.Pool = &kernels.Pool{}
		}
		return preprocess.NewNative(opts), nil
	case preprocess.BackendOpenCV:
		return cv.NewPreprocessor(), nil
	}
	return nil, errors.Errorf("unknown backend %q", cfg.Backend)
}

// newReporter opens every configured output. Metrics are always collected.
func newReporter(cfg config.Config, log logrus.FieldLogger) (*report.Reporter, error) {
	r := &report.Reporter{Metrics: report.NewMetrics(), Logger: log}

	if cfg.Report.StatsCSV != "" || cfg.Report.SpacesCSV != "" {
		w, err := report.NewCSVWriter(cfg.Report.StatsCSV, cfg.Report.SpacesCSV)
		if err != nil {
			return nil, err
		}
		r.CSV = w
	}
	if cfg.Report.SQLite != "" {
		rec, err := report.OpenRecorder(cfg.Report.SQLite)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.Recorder = rec
	}
	if cfg.Report.SnapshotDir != "" {
		snap, err := report.NewSnapshotter(cfg.Report.SnapshotDir, cfg.Report.SnapshotEvery, cfg.Report.ThumbnailWidth)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.Snapshots = snap
	}
	return r, nil
}

// pipelineCollector feeds the pipeline counters into the profiler reports.
type pipelineCollector struct {
	p *controller.Pipeline
}

func (c pipelineCollector) CollectMetrics() map[string]float64 {
	s := c.p.Stats()
	return map[string]float64{
		"frames_processed": float64(s.Processed),
		"frames_dropped":   float64(s.Dropped),
		"frame_errors":     float64(s.Errors),
	}
}
