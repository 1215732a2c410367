package report

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/hybridgroup/mjpeg"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-parking/controller"
	"github.com/nvr-ai/go-parking/images"
	"github.com/nvr-ai/go-parking/occupancy"
	"github.com/nvr-ai/go-parking/regions"
)

// DefaultHistorySize is how many passes the server keeps in memory.
const DefaultHistorySize = 720

// ServerOptions configures the HTTP surface.
type ServerOptions struct {
	// Addr to listen on, e.g. ":8080".
	Addr string
	// Logger receives request and lifecycle entries.
	Logger logrus.FieldLogger
	// Metrics, when set, is served at /metrics.
	Metrics *Metrics
	// Recorder, when set, backs /history.
	Recorder *Recorder
	// Palette colours the /spaces entries.
	Palette Palette
	// HistorySize bounds the in-memory history behind /chart.
	HistorySize int
	// EncodeJPEG encodes stream frames. Defaults to images.EncodeBytes.
	EncodeJPEG func(images.Frame) ([]byte, error)
}

// Server exposes the latest classification over HTTP and streams the
// annotated frames as MJPEG.
type Server struct {
	opts   ServerOptions
	log    logrus.FieldLogger
	engine *gin.Engine
	stream *mjpeg.Stream

	mu       sync.RWMutex
	latest   controller.Result
	has      bool
	history  []occupancy.Stats
	pipeline *controller.Pipeline
}

// SpaceView is one entry of /spaces.
type SpaceView struct {
	Region regions.Region         `json:"region"`
	Status occupancy.RegionStatus `json:"status"`
	Trend  occupancy.Trend        `json:"trend,omitempty"`
	Color  string                 `json:"color"`
}

// NewServer builds the router.
//
// Arguments:
//   - opts: The listen address and optional collaborators.
//
// Returns:
//   - *Server: The server. Call ListenAndServe to start it.
func NewServer(opts ServerOptions) *Server {
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}
	if opts.Palette == (Palette{}) {
		opts.Palette = DefaultPalette()
	}
	if opts.EncodeJPEG == nil {
		opts.EncodeJPEG = func(f images.Frame) ([]byte, error) {
			img, err := images.EncodeBytes(f.ToRGBA(), images.FormatJPEG, images.DefaultJPEGQuality)
			return img.Data, err
		}
	}

	s := &Server{
		opts:   opts,
		log:    opts.Logger.WithField("component", "http"),
		stream: mjpeg.NewStream(),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())
	r.GET("/healthz", s.handleHealth)
	r.GET("/status", s.handleStatus)
	r.GET("/spaces", s.handleSpaces)
	r.GET("/spaces/:id", s.handleSpace)
	r.GET("/spaces/:id/crop", s.handleCrop)
	r.GET("/history", s.handleHistory)
	r.GET("/chart", s.handleChart)
	r.GET("/stream", gin.WrapH(s.stream))
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	s.engine = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.engine }

// Attach lets /status report the pipeline counters and trends.
func (s *Server) Attach(p *controller.Pipeline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipeline = p
}

// Publish records a result as the latest state and pushes its frame to the
// MJPEG stream. Failed frames are ignored.
func (s *Server) Publish(res controller.Result) error {
	if res.Err != nil {
		return nil
	}

	s.mu.Lock()
	s.latest, s.has = res, true
	s.history = append(s.history, res.Result.Stats)
	if len(s.history) > s.opts.HistorySize {
		s.history = s.history[len(s.history)-s.opts.HistorySize:]
	}
	s.mu.Unlock()

	frame := res.Annotated
	if frame.Validate() != nil {
		frame = res.Frame
	}
	data, err := s.opts.EncodeJPEG(frame)
	if err != nil {
		return errors.Wrap(err, "encode stream frame")
	}
	s.stream.UpdateJPEG(data)
	return nil
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.opts.Addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.opts.Addr).Info("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Wrap(srv.Shutdown(shutdown), "http shutdown")
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}

func (s *Server) snapshot() (controller.Result, bool, []occupancy.Stats, *controller.Pipeline) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.has, append([]occupancy.Stats(nil), s.history...), s.pipeline
}

func (s *Server) handleHealth(c *gin.Context) {
	latest, has, _, _ := s.snapshot()
	body := gin.H{"status": "ok", "ready": has}
	if has {
		body["session"] = latest.Session
		body["frame"] = latest.Seq
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleStatus(c *gin.Context) {
	latest, has, history, p := s.snapshot()
	if !has {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no frame processed yet"})
		return
	}

	body := gin.H{
		"session": latest.Session,
		"frame":   latest.Seq,
		"stats":   latest.Result.Stats,
		"timings": latest.Timings,
		"summary": Summarize(history),
	}
	if p != nil {
		body["pipeline"] = p.Stats()
		body["backend"] = p.Controller().Backend()
		body["strategy"] = p.Controller().Strategy().String()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) trends() map[string]occupancy.Trend {
	s.mu.RLock()
	p := s.pipeline
	s.mu.RUnlock()
	if p == nil || p.Controller().Smoother() == nil {
		return nil
	}
	return p.Controller().Smoother().Trends()
}

func (s *Server) views(latest controller.Result) []SpaceView {
	trends := s.trends()
	out := make([]SpaceView, 0, len(latest.Regions))
	for i, r := range latest.Regions {
		if i >= len(latest.Result.Statuses) {
			break
		}
		st := latest.Result.Statuses[i]
		out = append(out, SpaceView{
			Region: r,
			Status: st,
			Trend:  trends[st.RegionID],
			Color:  s.opts.Palette.StatusColor(st),
		})
	}
	return out
}

func (s *Server) handleSpaces(c *gin.Context) {
	latest, has, _, _ := s.snapshot()
	if !has {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no frame processed yet"})
		return
	}
	c.JSON(http.StatusOK, s.views(latest))
}

func (s *Server) findSpace(c *gin.Context) (controller.Result, int, bool) {
	latest, has, _, _ := s.snapshot()
	if !has {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no frame processed yet"})
		return latest, -1, false
	}
	i, ok := regions.Find(latest.Regions, c.Param("id"))
	if !ok || i >= len(latest.Result.Statuses) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown space " + c.Param("id")})
		return latest, -1, false
	}
	return latest, i, true
}

func (s *Server) handleSpace(c *gin.Context) {
	latest, i, ok := s.findSpace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.views(latest)[i])
}

func (s *Server) handleCrop(c *gin.Context) {
	latest, i, ok := s.findSpace(c)
	if !ok {
		return
	}
	if latest.Result.Statuses[i].Empty {
		c.JSON(http.StatusNotFound, gin.H{"error": "space is outside the frame"})
		return
	}

	crop := images.Crop(latest.Frame, latest.Regions[i].Rect())
	img, err := images.EncodeBytes(crop, images.FormatJPEG, images.DefaultJPEGQuality)
	if err != nil {
		s.log.WithError(err).Warn("encode crop")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, img.ContentType(), img.Data)
}

func (s *Server) handleHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	if s.opts.Recorder != nil {
		rows, err := s.opts.Recorder.Recent(c.Request.Context(), limit)
		if err != nil {
			s.log.WithError(err).Warn("query history")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		stats := make([]occupancy.Stats, len(rows))
		for i, r := range rows {
			stats[i] = r.Stats
		}
		c.JSON(http.StatusOK, gin.H{"rows": rows, "summary": Summarize(stats)})
		return
	}

	_, _, history, _ := s.snapshot()
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	c.JSON(http.StatusOK, gin.H{"rows": history, "summary": Summarize(history)})
}

// OccupancyChart renders the occupancy rate of a history as an HTML line chart.
func OccupancyChart(w io.Writer, history []occupancy.Stats) error {
	xs := make([]string, len(history))
	rates := make([]opts.LineData, len(history))
	free := make([]opts.LineData, len(history))
	for i, h := range history {
		xs[i] = h.Timestamp.Format("15:04:05")
		rates[i] = opts.LineData{Value: h.OccupancyRate}
		free[i] = opts.LineData{Value: h.Free}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Parking occupancy", Width: "1000px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Parking occupancy", Subtitle: strconv.Itoa(len(history)) + " samples"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "%", Min: 0, Max: 100}),
	)
	line.SetXAxis(xs).
		AddSeries("occupancy rate", rates).
		AddSeries("free spaces", free)

	return errors.Wrap(line.Render(w), "render chart")
}

func (s *Server) handleChart(c *gin.Context) {
	_, _, history, _ := s.snapshot()

	var buf bytes.Buffer
	if err := OccupancyChart(&buf, history); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
