package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/faults"
)

// Handle identifies a scheduled job so callers can cancel it before it
// fires. Cancelling a job that already ran is a no-op.
type Handle string

// HandlerFunc processes one job. The payload is whatever the enqueuer
// marshalled; handlers own their own decoding.
type HandlerFunc func(ctx context.Context, payload []byte) error

// Queue schedules deferred work inside the process. There is no broker
// behind this; jobs do not survive a restart, and anything that must
// survive one is re-derived from the database on startup.
type Queue interface {
	Enqueue(jobType string, payload any, delay time.Duration) (Handle, error)
	Cancel(handle Handle)
}

type task struct {
	handle  Handle
	jobType string
	payload []byte
}

// Runner is a timer-backed queue with a fixed worker pool. Delayed jobs
// sit on time.AfterFunc timers until due, then move to the work channel.
type Runner struct {
	mu       sync.Mutex
	handlers map[string]HandlerFunc
	timers   map[Handle]*time.Timer
	stopped  bool

	work   chan task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
}

func NewRunner(workers int, logger zerolog.Logger) *Runner {
	if workers <= 0 {
		workers = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		handlers: make(map[string]HandlerFunc),
		timers:   make(map[Handle]*time.Timer),
		work:     make(chan task, 64),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.With().Str("component", "job_runner").Logger(),
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Register binds a handler to a job type. All registrations happen during
// wiring, before anything is enqueued.
func (r *Runner) Register(jobType string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = fn
}

func (r *Runner) Enqueue(jobType string, payload any, delay time.Duration) (Handle, error) {
	const op = "jobs.enqueue"

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return "", faults.New(faults.KindUnavailable, op, "job runner is stopped")
	}
	if _, ok := r.handlers[jobType]; !ok {
		r.mu.Unlock()
		return "", faults.New(faults.KindConfiguration, op, fmt.Sprintf("no handler registered for job type %q", jobType))
	}
	r.mu.Unlock()

	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("%s: marshal payload: %w", op, err)
		}
	}

	handle := Handle(uuid.NewString())
	t := task{handle: handle, jobType: jobType, payload: encoded}

	if delay <= 0 {
		r.dispatch(t)
		return handle, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return "", faults.New(faults.KindUnavailable, op, "job runner is stopped")
	}
	r.timers[handle] = time.AfterFunc(delay, func() {
		r.mu.Lock()
		_, pending := r.timers[handle]
		delete(r.timers, handle)
		r.mu.Unlock()
		// A concurrent Cancel that won the race removed the entry first.
		if pending {
			r.dispatch(t)
		}
	})
	return handle, nil
}

func (r *Runner) Cancel(handle Handle) {
	r.mu.Lock()
	timer, ok := r.timers[handle]
	if ok {
		delete(r.timers, handle)
	}
	r.mu.Unlock()
	if ok {
		timer.Stop()
	}
}

func (r *Runner) dispatch(t task) {
	select {
	case r.work <- t:
	case <-r.ctx.Done():
	}
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case t := <-r.work:
			r.run(t)
		}
	}
}

func (r *Runner) run(t task) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("job_type", t.jobType).
				Str("handle", string(t.handle)).
				Interface("panic", rec).
				Msg("job handler panicked")
		}
	}()

	r.mu.Lock()
	fn := r.handlers[t.jobType]
	r.mu.Unlock()
	if fn == nil {
		return
	}

	if err := fn(r.ctx, t.payload); err != nil {
		r.logger.Error().
			Err(err).
			Str("job_type", t.jobType).
			Str("handle", string(t.handle)).
			Msg("job handler failed")
	}
}

// Stop cancels pending timers and waits for in-flight handlers to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	for handle, timer := range r.timers {
		timer.Stop()
		delete(r.timers, handle)
	}
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}
