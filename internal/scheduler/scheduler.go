// Package scheduler debounces resize requests so that a burst of edits turns
// into a single rasterization run.
//
// Every Request bumps a generation counter and re-arms the quiescence timer.
// When the timer fires, the latest options run under the latest generation. A
// finished run is only delivered if no newer request has arrived in the
// meantime; runs in flight are never interrupted, their results are dropped.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/seventv/image-resizer/internal/instance"
	"github.com/seventv/image-resizer/internal/raster"
	"github.com/seventv/image-resizer/task"
	"go.uber.org/zap"
)

// DefaultDelay is the quiescence delay between the last request and the run.
const DefaultDelay = time.Millisecond * 400

type State int32

const (
	StateIdle State = iota
	StatePending
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StatePending:
		return "PENDING"
	case StateRunning:
		return "RUNNING"
	default:
		return fmt.Sprintf("UNKNOWN STATE %d", s)
	}
}

type RunFunc func(ctx context.Context, opts task.Options) (*raster.Payload, error)

// Outcome is the result of a run that was still current when it finished.
type Outcome struct {
	Generation uint64
	Options    task.Options
	Payload    *raster.Payload
	Err        error
	Duration   time.Duration
}

type Options struct {
	Delay time.Duration

	// OnResult is called from the scheduler goroutine. OnState may also be
	// called from Request.
	OnResult func(Outcome)
	OnState  func(State)

	Prometheus instance.Prometheus
}

type Scheduler struct {
	run  RunFunc
	opts Options

	mtx        sync.Mutex
	latest     task.Options
	generation uint64
	pending    bool
	inflight   int
	state      State
	changed    chan struct{}

	kick    chan struct{}
	results chan Outcome
}

func New(run RunFunc, opts Options) *Scheduler {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}

	return &Scheduler{
		run:     run,
		opts:    opts,
		changed: make(chan struct{}),
		kick:    make(chan struct{}, 1),
		results: make(chan Outcome),
	}
}

// Request records opts as the newest wanted state and restarts the
// quiescence timer. It never blocks.
func (s *Scheduler) Request(opts task.Options) uint64 {
	s.mtx.Lock()
	s.latest = opts
	s.generation++
	gen := s.generation
	s.pending = true
	hook := s.setStateLocked(StatePending)
	s.mtx.Unlock()

	hook()

	if s.opts.Prometheus != nil {
		s.opts.Prometheus.Requested()
	}

	select {
	case s.kick <- struct{}{}:
	default:
	}

	return gen
}

// Supersede invalidates every pending and in-flight run without asking for a
// new one. A pending timer fires without running and results of runs already
// in flight are dropped as stale.
func (s *Scheduler) Supersede() uint64 {
	s.mtx.Lock()
	s.generation++
	gen := s.generation
	s.pending = false

	state := StateIdle
	if s.inflight > 0 {
		state = StateRunning
	}
	hook := s.setStateLocked(state)
	s.mtx.Unlock()

	hook()

	return gen
}

// Start runs the scheduler loop until ctx is done. The returned channel is
// closed once the loop has exited.
func (s *Scheduler) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)
		s.loop(ctx)
	}()

	return done
}

func (s *Scheduler) loop(ctx context.Context) {
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kick:
			s.mtx.Lock()
			pending := s.pending
			s.mtx.Unlock()

			// the timer already picked this request up
			if !pending {
				continue
			}

			if timer != nil {
				if timer.Stop() && s.opts.Prometheus != nil {
					s.opts.Prometheus.Coalesced()
				}
			}

			timer = time.NewTimer(s.opts.Delay)
			timerC = timer.C
		case <-timerC:
			timer = nil
			timerC = nil

			s.mtx.Lock()
			if !s.pending {
				s.mtx.Unlock()
				continue
			}
			opts := s.latest
			gen := s.generation
			s.pending = false
			s.inflight++
			hook := s.setStateLocked(StateRunning)
			s.mtx.Unlock()

			hook()

			go s.execute(ctx, gen, opts)
		case out := <-s.results:
			s.mtx.Lock()
			s.inflight--
			current := out.Generation == s.generation
			s.mtx.Unlock()

			if current {
				if s.opts.OnResult != nil {
					s.opts.OnResult(out)
				}
			} else {
				zap.S().Debugw("dropping stale result",
					"generation", out.Generation,
				)
				if s.opts.Prometheus != nil {
					s.opts.Prometheus.StaleResult()
				}
			}

			s.mtx.Lock()
			var hook func()
			switch {
			case s.pending:
				hook = s.setStateLocked(StatePending)
			case s.inflight > 0:
				hook = s.setStateLocked(StateRunning)
			default:
				hook = s.setStateLocked(StateIdle)
			}
			s.mtx.Unlock()

			hook()
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, gen uint64, opts task.Options) {
	out := Outcome{
		Generation: gen,
		Options:    opts,
	}

	var finish func(bool)
	if s.opts.Prometheus != nil {
		finish = s.opts.Prometheus.StartRun()
	}

	start := time.Now()
	func() {
		defer func() {
			if pnk := recover(); pnk != nil {
				out.Payload = nil
				out.Err = fmt.Errorf("panic at runtime: %v", pnk)
			}
		}()

		out.Payload, out.Err = s.run(ctx, opts)
	}()
	out.Duration = time.Since(start)

	if finish != nil {
		finish(out.Err == nil)
	}

	select {
	case s.results <- out:
	case <-ctx.Done():
	}
}

// setStateLocked must be called with mtx held. The returned hook has to be
// called after unlocking.
func (s *Scheduler) setStateLocked(state State) func() {
	if s.state == state {
		return func() {}
	}

	s.state = state
	close(s.changed)
	s.changed = make(chan struct{})

	if s.opts.OnState == nil {
		return func() {}
	}

	return func() {
		s.opts.OnState(state)
	}
}

func (s *Scheduler) State() State {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.state
}

// Busy reports whether a run is pending or in flight.
func (s *Scheduler) Busy() bool {
	return s.State() != StateIdle
}

// Generation is the generation of the newest request.
func (s *Scheduler) Generation() uint64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.generation
}

// WaitIdle blocks until the scheduler has nothing pending or running.
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	for {
		s.mtx.Lock()
		if s.state == StateIdle {
			s.mtx.Unlock()
			return nil
		}
		changed := s.changed
		s.mtx.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}
