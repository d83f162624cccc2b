// Package runtime is the Service Runtime of SPEC_FULL.md §4.3: a supervisor
// that starts one goroutine per worker, each paced by its own RateLimiter,
// and shuts every worker down the instant any one of them reports a fatal
// (store-level) error.
package runtime

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"lanpets.io/monitor/internal/logging"
)

// pollQuantum is the fixed sleep between rate-limiter checks within a
// worker's loop.
const pollQuantum = 100 * time.Millisecond

// FatalError wraps an error that must propagate to the supervisor and bring
// every worker down (store faults, programmer errors) — per SPEC_FULL.md
// §7, this is the only class of error that crosses the worker boundary.
type FatalError struct{ Err error }

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// Worker is one periodic collector. Update runs one tick; Check, if
// non-nil, is polled every quantum for non-blocking post-processing (used
// by the NMAP bridge to ingest a completed background scan).
type Worker struct {
	Name   string
	Period time.Duration
	Update func(ctx context.Context) error
	Check  func(ctx context.Context)
}

// Supervisor starts and stops a fixed set of Workers sharing one stop
// signal and one first-fatal-error slot.
type Supervisor struct {
	log     *logging.Logger
	workers []Worker

	// StaggerBase and StaggerJitter control the random start delay applied
	// to each worker (default 1-2s per SPEC_FULL.md §4.3). Tests shrink
	// these to keep runtime bounded.
	StaggerBase   time.Duration
	StaggerJitter time.Duration

	mu       sync.Mutex
	fatalErr error
}

// New creates a Supervisor over the given workers. Workers are not started
// until Run is called.
func New(workers []Worker) *Supervisor {
	return &Supervisor{
		workers:       workers,
		log:           logging.WithComponent("runtime"),
		StaggerBase:   1 * time.Second,
		StaggerJitter: 1 * time.Second,
	}
}

// Run starts every worker, staggered by a random 1-2s delay each to
// decorrelate their schedules, and blocks until ctx is canceled (e.g. by
// SIGINT upstream) or any worker reports a FatalError. It returns the first
// fatal error encountered, or nil on a clean ctx-canceled shutdown.
func (sv *Supervisor) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, w := range sv.workers {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			sv.runWorker(runCtx, cancel, w)
		}()
	}

	wg.Wait()

	sv.mu.Lock()
	defer sv.mu.Unlock()
	return sv.fatalErr
}

func (sv *Supervisor) runWorker(ctx context.Context, cancel context.CancelFunc, w Worker) {
	jitter := time.Duration(0)
	if sv.StaggerJitter > 0 {
		jitter = time.Duration(rand.Int63n(int64(sv.StaggerJitter)))
	}
	stagger := sv.StaggerBase + jitter
	select {
	case <-ctx.Done():
		return
	case <-time.After(stagger):
	}

	limiter := NewRateLimiter(w.Period)
	log := sv.log.WithComponent(w.Name)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if w.Check != nil {
			w.Check(ctx)
		}

		if limiter.Ready() {
			if err := sv.tick(ctx, w, log); err != nil {
				var fatal *FatalError
				if errors.As(err, &fatal) {
					sv.reportFatal(err, log)
					cancel()
					return
				}
				log.Warn("worker tick failed", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(pollQuantum):
		}
	}
}

// tick runs one Update call, converting a panic into a FatalError so a
// programmer error brings the whole supervisor down rather than silently
// killing one goroutine (P9).
func (sv *Supervisor) tick(ctx context.Context, w Worker, log *logging.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("worker panicked", "panic", r)
			err = &FatalError{Err: errors.New("worker panic")}
		}
	}()
	return w.Update(ctx)
}

func (sv *Supervisor) reportFatal(err error, log *logging.Logger) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.fatalErr == nil {
		sv.fatalErr = err
		log.Error("fatal error, shutting down all workers", "error", err)
	}
}
