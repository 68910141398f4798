package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/seventv/image-resizer/internal/raster"
	"github.com/seventv/image-resizer/internal/svc/prometheus"
	"github.com/seventv/image-resizer/internal/testutil"
	"github.com/seventv/image-resizer/task"
)

type recorder struct {
	mtx      sync.Mutex
	runs     []task.Options
	outcomes []Outcome
	states   []State
}

func (r *recorder) run(ctx context.Context, opts task.Options) (*raster.Payload, error) {
	r.mtx.Lock()
	r.runs = append(r.runs, opts)
	r.mtx.Unlock()

	return raster.NewPayload([]byte{1, 2, 3}, opts.Format, opts.Quality, opts.Width, opts.Height), nil
}

func (r *recorder) onResult(o Outcome) {
	r.mtx.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mtx.Unlock()
}

func (r *recorder) onState(s State) {
	r.mtx.Lock()
	r.states = append(r.states, s)
	r.mtx.Unlock()
}

func waitIdle(t *testing.T, s *Scheduler) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	testutil.IsNil(t, s.WaitIdle(ctx), "scheduler becomes idle")
}

func TestRapidRequestsCoalesce(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	s := New(rec.run, Options{
		Delay:      time.Millisecond * 50,
		OnResult:   rec.onResult,
		OnState:    rec.onState,
		Prometheus: prometheus.New(prometheus.Options{}),
	})
	s.Start(ctx)

	first := task.Options{Width: 100, Height: 50, Format: task.FormatJPEG, Quality: 0.8}
	final := task.Options{Width: 200, Height: 100, Format: task.FormatPNG, Quality: 0.8}

	s.Request(first)
	testutil.Assert(t, true, s.Busy(), "busy once requested")
	s.Request(final)

	waitIdle(t, s)

	rec.mtx.Lock()
	defer rec.mtx.Unlock()

	testutil.Assert(t, []task.Options{final}, rec.runs, "exactly one run with the final options")
	testutil.Assert(t, 1, len(rec.outcomes), "one outcome")
	testutil.Assert(t, uint64(2), rec.outcomes[0].Generation, "outcome carries the newest generation")
	testutil.Assert(t, 200, rec.outcomes[0].Payload.Width, "payload for the final options")
	testutil.Assert(t, []State{StatePending, StateRunning, StateIdle}, rec.states, "state transitions")
	testutil.Assert(t, false, s.Busy(), "idle afterwards")
}

func TestStaleResultIsDropped(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	release := make(chan struct{})

	var (
		mtx      sync.Mutex
		outcomes []Outcome
		calls    int
	)

	run := func(ctx context.Context, opts task.Options) (*raster.Payload, error) {
		mtx.Lock()
		calls++
		n := calls
		mtx.Unlock()

		if n == 1 {
			close(started)
			<-release
		}

		return raster.NewPayload([]byte{byte(n)}, opts.Format, opts.Quality, opts.Width, opts.Height), nil
	}

	s := New(run, Options{
		Delay: time.Millisecond * 20,
		OnResult: func(o Outcome) {
			mtx.Lock()
			outcomes = append(outcomes, o)
			mtx.Unlock()
		},
	})
	s.Start(ctx)

	s.Request(task.Options{Width: 10, Height: 10, Format: task.FormatJPEG})
	<-started
	testutil.Assert(t, StateRunning, s.State(), "first run in flight")

	s.Request(task.Options{Width: 20, Height: 20, Format: task.FormatJPEG})
	testutil.Assert(t, StatePending, s.State(), "new request while running goes back to pending")

	// let the second run finish first, then release the stale one
	deadline := time.After(time.Second * 5)
	for {
		mtx.Lock()
		n := len(outcomes)
		mtx.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("second run never delivered")
		case <-time.After(time.Millisecond * 5):
		}
	}

	close(release)
	waitIdle(t, s)

	mtx.Lock()
	defer mtx.Unlock()

	testutil.Assert(t, 2, calls, "both runs executed")
	testutil.Assert(t, 1, len(outcomes), "only the newest result is delivered")
	testutil.Assert(t, 20, outcomes[0].Options.Width, "newest options win")
	testutil.Assert(t, uint64(2), outcomes[0].Generation, "newest generation")
}

func TestStaleResultDroppedWhenItFinishesFirst(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	release := make(chan struct{})

	var (
		mtx      sync.Mutex
		outcomes []Outcome
		first    = true
	)

	run := func(ctx context.Context, opts task.Options) (*raster.Payload, error) {
		mtx.Lock()
		isFirst := first
		first = false
		mtx.Unlock()

		if isFirst {
			close(started)
			<-release
		}

		return raster.NewPayload([]byte{1}, opts.Format, opts.Quality, opts.Width, opts.Height), nil
	}

	s := New(run, Options{
		Delay: time.Millisecond * 200,
		OnResult: func(o Outcome) {
			mtx.Lock()
			outcomes = append(outcomes, o)
			mtx.Unlock()
		},
	})
	s.Start(ctx)

	s.Request(task.Options{Width: 10, Height: 10})
	<-started

	// the newer request is still waiting out its delay when the old run ends
	s.Request(task.Options{Width: 30, Height: 30})
	close(release)

	waitIdle(t, s)

	mtx.Lock()
	defer mtx.Unlock()

	testutil.Assert(t, 1, len(outcomes), "stale result never delivered")
	testutil.Assert(t, 30, outcomes[0].Options.Width, "newest options win")
}

func TestErrorsAreDelivered(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got Outcome
	s := New(func(ctx context.Context, opts task.Options) (*raster.Payload, error) {
		return nil, raster.ErrSurfaceUnavailable
	}, Options{
		Delay: time.Millisecond * 10,
		OnResult: func(o Outcome) {
			got = o
		},
	})
	s.Start(ctx)

	s.Request(task.Options{Width: 1, Height: 1})
	waitIdle(t, s)

	testutil.Assert(t, true, errors.Is(got.Err, raster.ErrSurfaceUnavailable), "error reaches the caller")
	testutil.Assert(t, true, got.Payload == nil, "no payload on error")
}

func TestPanicsBecomeErrors(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got Outcome
	s := New(func(ctx context.Context, opts task.Options) (*raster.Payload, error) {
		panic("boom")
	}, Options{
		Delay: time.Millisecond * 10,
		OnResult: func(o Outcome) {
			got = o
		},
	})
	s.Start(ctx)

	s.Request(task.Options{Width: 1, Height: 1})
	waitIdle(t, s)

	testutil.IsNotNil(t, got.Err, "panic is reported as an error")
}

func TestCancelBeforeFire(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	rec := &recorder{}
	s := New(rec.run, Options{Delay: time.Millisecond * 100})
	done := s.Start(ctx)

	s.Request(task.Options{Width: 1, Height: 1})
	cancel()
	<-done

	time.Sleep(time.Millisecond * 150)

	rec.mtx.Lock()
	defer rec.mtx.Unlock()
	testutil.Assert(t, 0, len(rec.runs), "cancelled timer never runs")
}

func TestDefaultDelay(t *testing.T) {
	t.Parallel()

	s := New(nil, Options{})
	testutil.Assert(t, DefaultDelay, s.opts.Delay, "default quiescence delay")
	testutil.Assert(t, time.Millisecond*400, DefaultDelay, "400ms")
	testutil.Assert(t, StateIdle, s.State(), "starts idle")
}

func TestSupersedeCancelsPendingRun(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	s := New(rec.run, Options{
		Delay:    time.Millisecond * 30,
		OnResult: rec.onResult,
	})
	s.Start(ctx)

	s.Request(task.Options{Width: 10, Height: 10, Format: task.FormatJPEG})
	gen := s.Supersede()
	testutil.Assert(t, uint64(2), gen, "generation bumped")
	testutil.Assert(t, StateIdle, s.State(), "nothing left to do")

	time.Sleep(time.Millisecond * 100)
	waitIdle(t, s)

	rec.mtx.Lock()
	defer rec.mtx.Unlock()

	testutil.Assert(t, 0, len(rec.runs), "timer fired without running")
	testutil.Assert(t, 0, len(rec.outcomes), "nothing delivered")
}

func TestSupersedeDropsInFlightRun(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	release := make(chan struct{})

	var (
		mtx      sync.Mutex
		outcomes []Outcome
	)

	s := New(func(ctx context.Context, opts task.Options) (*raster.Payload, error) {
		close(started)
		<-release

		return raster.NewPayload([]byte{1}, opts.Format, opts.Quality, opts.Width, opts.Height), nil
	}, Options{
		Delay: time.Millisecond * 10,
		OnResult: func(o Outcome) {
			mtx.Lock()
			outcomes = append(outcomes, o)
			mtx.Unlock()
		},
		Prometheus: prometheus.New(prometheus.Options{}),
	})
	s.Start(ctx)

	s.Request(task.Options{Width: 10, Height: 10, Format: task.FormatJPEG})
	<-started

	s.Supersede()
	testutil.Assert(t, StateRunning, s.State(), "the run is still in flight")

	close(release)
	waitIdle(t, s)

	mtx.Lock()
	defer mtx.Unlock()

	testutil.Assert(t, 0, len(outcomes), "superseded result is dropped")
}
