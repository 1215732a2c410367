package controller

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-parking/source"
)

// DefaultBuffer is the result channel capacity when none is configured.
const DefaultBuffer = 4

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	// Buffer is the result channel capacity.
	Buffer int
	// DropWhenFull drops results instead of blocking when the consumer lags.
	DropWhenFull bool
	// MaxFrames stops the run after this many frames. Zero means no limit.
	MaxFrames int
	// Logger receives per-run and per-error entries.
	Logger logrus.FieldLogger
}

// Result is one pipeline output. Err is set when the frame failed; the
// pipeline keeps going after per-frame errors.
type Result struct {
	FrameResult
	Session string
	Seq     int
	Err     error
}

// PipelineStats counts what a run has done so far.
type PipelineStats struct {
	Processed int64 `json:"processed"`
	Dropped   int64 `json:"dropped"`
	Errors    int64 `json:"errors"`
}

// Pipeline pulls frames from a source on a worker goroutine, runs the
// controller and delivers results on a bounded channel.
type Pipeline struct {
	ctrl    *Controller
	src     source.Source
	opts    PipelineOptions
	session string
	log     logrus.FieldLogger

	processed atomic.Int64
	dropped   atomic.Int64
	errs      atomic.Int64

	once sync.Once
	mu   sync.Mutex
	err  error
}

// NewPipeline binds a controller to a source. Each pipeline gets a new
// session id.
func NewPipeline(ctrl *Controller, src source.Source, opts PipelineOptions) *Pipeline {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}
	session := uuid.NewString()
	return &Pipeline{
		ctrl:    ctrl,
		src:     src,
		opts:    opts,
		session: session,
		log:     opts.Logger.WithField("session", session),
	}
}

// Session returns the run's id.
func (p *Pipeline) Session() string { return p.session }

// Controller returns the controller the pipeline drives.
func (p *Pipeline) Controller() *Controller { return p.ctrl }

// Stats returns the current counters.
func (p *Pipeline) Stats() PipelineStats {
	return PipelineStats{
		Processed: p.processed.Load(),
		Dropped:   p.dropped.Load(),
		Errors:    p.errs.Load(),
	}
}

// Err returns the error that ended the run, if any, once the result channel
// has been closed. End of stream and cancellation are not errors.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Run starts the worker. The returned channel is closed when the source ends,
// the context is cancelled, MaxFrames is reached or the source fails. Run
// may only be called once; later calls return a closed channel.
//
// Arguments:
//   - ctx: Cancels the run.
//
// Returns:
//   - <-chan Result: The results in frame order.
//
// @example
// for res := range pipeline.Run(ctx) {
//     if res.Err != nil {
//         log.WithError(res.Err).Warn("frame failed")
//         continue
//     }
//     fmt.Println(res.Result.Stats.Free)
// }
func (p *Pipeline) Run(ctx context.Context) <-chan Result {
	out := make(chan Result, p.opts.Buffer)
	started := false
	p.once.Do(func() {
		started = true
		go p.work(ctx, out)
	})
	if !started {
		close(out)
	}
	return out
}

func (p *Pipeline) work(ctx context.Context, out chan<- Result) {
	defer close(out)

	p.log.WithFields(logrus.Fields{
		"backend":  p.ctrl.Backend(),
		"strategy": p.ctrl.Strategy().String(),
		"regions":  len(p.ctrl.Regions()),
	}).Info("pipeline started")

	seq := 0
	for p.opts.MaxFrames <= 0 || seq < p.opts.MaxFrames {
		frame, err := p.src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				break
			}
			p.fail(errors.Wrap(err, "read frame"))
			p.errs.Add(1)
			p.send(ctx, out, Result{Session: p.session, Seq: seq, Err: p.Err()})
			return
		}

		res := Result{Session: p.session, Seq: seq}
		res.FrameResult, res.Err = p.ctrl.Process(frame)
		if res.Err != nil {
			p.errs.Add(1)
			p.log.WithError(res.Err).WithField("frame", frame.ID).Warn("frame failed")
		} else {
			p.processed.Add(1)
		}
		seq++

		if !p.send(ctx, out, res) {
			break
		}
	}

	stats := p.Stats()
	p.log.WithFields(logrus.Fields{
		"processed": stats.Processed,
		"dropped":   stats.Dropped,
		"errors":    stats.Errors,
	}).Info("pipeline stopped")
}

// send delivers a result. It reports false when the context was cancelled.
func (p *Pipeline) send(ctx context.Context, out chan<- Result, res Result) bool {
	if p.opts.DropWhenFull {
		select {
		case out <- res:
		default:
			p.dropped.Add(1)
		}
		return ctx.Err() == nil
	}
	select {
	case out <- res:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Pipeline) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
	p.log.WithError(err).Error("pipeline failed")
}
