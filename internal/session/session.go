package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/seventv/image-resizer/container"
	"github.com/seventv/image-resizer/internal/dimension"
	"github.com/seventv/image-resizer/internal/instance"
	"github.com/seventv/image-resizer/internal/raster"
	"github.com/seventv/image-resizer/internal/savings"
	"github.com/seventv/image-resizer/internal/scheduler"
	"github.com/seventv/image-resizer/task"
	"go.uber.org/zap"
)

type Options struct {
	Delay      time.Duration
	MaxPixels  int64
	Estimator  savings.Estimator
	Prometheus instance.Prometheus

	// Defaults seeds format and quality for new sessions when set.
	DefaultFormat  task.Format
	DefaultQuality float64
}

// Session is one open image and everything derived from it. Sessions do not
// share state with each other.
type Session struct {
	ID            string
	Name          string
	MIME          string
	Original      task.Dimensions
	OriginalBytes int64
	CreatedAt     time.Time

	data       []byte
	src        *raster.Source
	rasterizer *raster.Rasterizer
	estimator  savings.Estimator
	prom       instance.Prometheus

	sched  *scheduler.Scheduler
	cancel context.CancelFunc
	done   <-chan struct{}

	mtx       sync.RWMutex
	options   task.Options
	payload   *raster.Payload
	payloadAt uint64
	estimate  task.Estimate
	lastErr   error
	closed    bool
}

// New decodes data, seeds the options from its natural size and schedules
// the first run.
func New(ctx context.Context, id string, name string, data []byte, opts Options) (*Session, error) {
	match, err := container.MatchDecodable(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", raster.ErrDecode, err)
	}

	var doneDecode func()
	if opts.Prometheus != nil {
		doneDecode = opts.Prometheus.DecodeSource()
		opts.Prometheus.TotalBytesIn(len(data))
	}

	src := raster.NewSource(data)

	original, err := src.Dimensions(ctx)
	if doneDecode != nil {
		doneDecode()
	}
	if err != nil {
		return nil, err
	}

	estimator := opts.Estimator
	if estimator.CO2GramsPerMB == 0 {
		estimator = savings.Default
	}

	s := &Session{
		ID:            id,
		Name:          name,
		MIME:          match.MIME.Value,
		Original:      original,
		OriginalBytes: int64(len(data)),
		CreatedAt:     time.Now(),

		data:       data,
		src:        src,
		rasterizer: raster.New(opts.MaxPixels),
		estimator:  estimator,
		prom:       opts.Prometheus,
	}

	s.options = dimension.Initial(original)
	if opts.DefaultFormat != 0 {
		s.options.Format = opts.DefaultFormat
	}
	if opts.DefaultQuality != 0 {
		s.options.Quality = task.ClampQuality(opts.DefaultQuality)
	}
	s.estimate = s.estimator.Estimate(s.OriginalBytes, nil)

	s.sched = scheduler.New(s.run, scheduler.Options{
		Delay:      opts.Delay,
		OnResult:   s.onResult,
		Prometheus: opts.Prometheus,
	})

	lCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = s.sched.Start(lCtx)

	if opts.Prometheus != nil {
		opts.Prometheus.SessionOpened()
	}

	zap.S().Debugw("session opened",
		"session_id", id,
		"mime", s.MIME,
		"width", original.Width,
		"height", original.Height,
		"size", len(data),
	)

	s.mtx.Lock()
	s.scheduleLocked(s.options)
	s.mtx.Unlock()

	return s, nil
}

func (s *Session) run(ctx context.Context, opts task.Options) (*raster.Payload, error) {
	if err := dimension.Validate(opts); err != nil {
		return nil, err
	}

	if s.prom != nil {
		defer s.prom.Rasterize()()
	}

	return s.rasterizer.Rasterize(ctx, s.src, opts.Width, opts.Height, opts.Format, opts.Quality)
}

func (s *Session) onResult(out scheduler.Outcome) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if out.Err != nil {
		s.lastErr = out.Err
		zap.S().Warnw("resize failed",
			"session_id", s.ID,
			"generation", out.Generation,
			"error", out.Err,
		)

		return
	}

	s.payload = out.Payload
	s.payloadAt = out.Generation
	s.estimate = s.estimator.Estimate(s.OriginalBytes, out.Payload)
	s.lastErr = nil

	if s.prom != nil {
		s.prom.TotalBytesOut(out.Payload.Len())
		s.prom.TotalBytesSaved(s.estimate.SavedBytes)
	}

	zap.S().Debugw("resize finished",
		"session_id", s.ID,
		"generation", out.Generation,
		"width", out.Payload.Width,
		"height", out.Payload.Height,
		"size", out.Payload.Len(),
		"duration", out.Duration,
	)
}

// scheduleLocked hands opts to the scheduler unless they could never render.
// Options that cannot render still supersede older runs, so a stale payload
// never lands on top of them. Must be called with mtx held.
func (s *Session) scheduleLocked(opts task.Options) {
	if err := dimension.Validate(opts); err != nil {
		s.lastErr = err
		s.sched.Supersede()

		return
	}

	s.sched.Request(opts)
}

// update applies fn to the options and schedules a run when anything that
// affects the output changed. Requests reach the scheduler in the same order
// the options were written.
func (s *Session) update(fn func(o task.Options) task.Options) task.Options {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.closed {
		return s.options
	}

	prev := s.options
	s.options = fn(prev)

	if s.options.Width != prev.Width ||
		s.options.Height != prev.Height ||
		s.options.Format != prev.Format ||
		s.options.Quality != prev.Quality {
		s.scheduleLocked(s.options)
	}

	return s.options
}

// Edit resolves a width, height or percentage edit against the original size.
func (s *Session) Edit(axis task.Axis, value float64) task.Options {
	return s.update(func(o task.Options) task.Options {
		return dimension.Resolve(s.Original, o, axis, value)
	})
}

func (s *Session) SetMode(m task.Mode) task.Options {
	return s.update(func(o task.Options) task.Options {
		o.Mode = m
		return o
	})
}

func (s *Session) SetQuality(q float64) task.Options {
	return s.update(func(o task.Options) task.Options {
		o.Quality = task.ClampQuality(q)
		return o
	})
}

func (s *Session) SetFormat(f task.Format) task.Options {
	return s.update(func(o task.Options) task.Options {
		o.Format = f
		return o
	})
}

func (s *Session) SetMaintainAspectRatio(lock bool) task.Options {
	return s.update(func(o task.Options) task.Options {
		o.MaintainAspectRatio = lock
		return o
	})
}

func (s *Session) Options() task.Options {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.options
}

// Payload is the most recent successfully rendered payload, or nil.
func (s *Session) Payload() *raster.Payload {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.payload
}

func (s *Session) Estimate() task.Estimate {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.estimate
}

func (s *Session) LastError() error {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.lastErr
}

func (s *Session) Busy() bool {
	return s.sched.Busy()
}

// Data is the original encoded image.
func (s *Session) Data() []byte {
	return s.data
}

// Filename suggests {basename}_{width}x{height}.{ext} for the current payload.
func (s *Session) Filename() string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.filenameLocked()
}

func (s *Session) filenameLocked() string {
	width, height, format := s.options.Width, s.options.Height, s.options.Format
	if s.payload != nil {
		width, height, format = s.payload.Width, s.payload.Height, s.payload.Format
	}

	return Filename(s.Name, width, height, format)
}

func Filename(name string, width, height int, format task.Format) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "image"
	}

	return fmt.Sprintf("%s_%dx%d.%s", base, width, height, format.Extension())
}

// Flush waits until no run is pending or in flight.
func (s *Session) Flush(ctx context.Context) error {
	return s.sched.WaitIdle(ctx)
}

func (s *Session) Close() {
	s.mtx.Lock()
	if s.closed {
		s.mtx.Unlock()
		return
	}
	s.closed = true
	s.mtx.Unlock()

	s.cancel()
	<-s.done

	if s.prom != nil {
		s.prom.SessionClosed()
	}

	zap.S().Debugw("session closed",
		"session_id", s.ID,
	)
}

// ErrNoPayload is returned when an operation needs a rendered payload and
// none exists yet.
var ErrNoPayload = errors.New("no payload rendered yet")
