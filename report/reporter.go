package report

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-parking/controller"
)

// Reporter fans every pipeline result out to the configured outputs. Nil
// outputs are skipped.
type Reporter struct {
	CSV       *CSVWriter
	Recorder  *Recorder
	Metrics   *Metrics
	Snapshots *Snapshotter
	Server    *Server
	Logger    logrus.FieldLogger
}

// Handle delivers one result. Output failures are logged and do not stop
// the others; the first one is returned.
func (r *Reporter) Handle(ctx context.Context, res controller.Result) error {
	log := r.logger().WithFields(logrus.Fields{"session": res.Session, "frame": res.Seq})

	if r.Metrics != nil {
		r.Metrics.Observe(res)
	}
	if res.Err != nil {
		log.WithError(res.Err).Warn("frame failed")
		return nil
	}

	stats := res.Result.Stats
	log.WithFields(logrus.Fields{
		"occupied": stats.Occupied,
		"free":     stats.Free,
		"total":    stats.Total,
	}).Debug("frame classified")

	var first error
	keep := func(what string, err error) {
		if err == nil {
			return
		}
		log.WithError(err).Errorf("%s failed", what)
		if first == nil {
			first = err
		}
	}

	if r.CSV != nil {
		keep("csv", r.CSV.Record(res.Result))
	}
	if r.Recorder != nil {
		keep("sqlite", r.Recorder.Record(ctx, res.Session, res.Seq, res.Result))
	}
	if r.Snapshots != nil {
		paths, err := r.Snapshots.Save(res)
		keep("snapshot", err)
		if len(paths) > 0 {
			log.WithField("path", paths[0]).Debug("snapshot saved")
		}
	}
	if r.Server != nil {
		keep("publish", r.Server.Publish(res))
	}
	return first
}

// Close releases the file-backed outputs.
func (r *Reporter) Close() error {
	var first error
	if r.CSV != nil {
		first = r.CSV.Close()
	}
	if r.Recorder != nil {
		if err := r.Recorder.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (r *Reporter) logger() logrus.FieldLogger {
	if r.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		r.Logger = l
	}
	return r.Logger
}
