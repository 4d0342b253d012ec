// Package cron is an in-process job runner backed by a scheduler.Store.
//
// The runner polls for due jobs, invokes the callback registered under the
// job's function name, then decrements the job's remaining calls and moves
// its next call forward by one interval. A job whose counter reaches zero is
// deactivated. Calls for a single job never overlap.
package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/scheduler"
)

// Compile-time interface checks.
var (
	_ scheduler.Scheduler = (*Runner)(nil)
	_ scheduler.Registrar = (*Runner)(nil)
)

// ErrUnknownFunction is returned when a job names a function nobody registered.
var ErrUnknownFunction = errors.New("cron: unknown function")

// Runner executes due jobs.
type Runner struct {
	store  scheduler.Store
	logger *slog.Logger
	now    func() time.Time

	pollInterval time.Duration

	mu      sync.Mutex
	funcs   map[string]scheduler.Func
	running map[string]bool

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithPollInterval sets how often the runner looks for due jobs (default: 1m).
func WithPollInterval(d time.Duration) Option {
	return func(r *Runner) { r.pollInterval = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a runner over the given job store.
func New(store scheduler.Store, opts ...Option) *Runner {
	r := &Runner{
		store:        store,
		logger:       slog.Default(),
		now:          time.Now,
		pollInterval: time.Minute,
		funcs:        make(map[string]scheduler.Func),
		running:      make(map[string]bool),
		stopChan:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds a function name to a callback.
func (r *Runner) Register(function string, fn scheduler.Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[function] = fn
}

// ──────────────────────────────────────────────────
// Job management
// ──────────────────────────────────────────────────

// FindJob returns the inactive job matching (model, name), or nil.
func (r *Runner) FindJob(ctx context.Context, model, name string) (*scheduler.Job, error) {
	j, err := r.store.FindJobByName(ctx, model, name, false)
	if errors.Is(err, scheduler.ErrJobNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

// CreateJob persists a new active job.
func (r *Runner) CreateJob(ctx context.Context, s scheduler.Spec) (*scheduler.Job, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	j := scheduler.NewJob(s)
	if err := r.store.InsertJob(ctx, j); err != nil {
		return nil, err
	}
	r.logger.Info("job created", "job", j.ID.String(), "name", j.Name, "calls", j.NumberCalls)
	return j, nil
}

// Activate persists j as active.
func (r *Runner) Activate(ctx context.Context, j *scheduler.Job) error {
	j.Active = true
	j.Touch()
	if err := r.store.UpdateJob(ctx, j); err != nil {
		return err
	}
	r.logger.Info("job activated", "job", j.ID.String(), "name", j.Name)
	return nil
}

// Deactivate marks the job inactive. Inactive jobs are left untouched.
func (r *Runner) Deactivate(ctx context.Context, jobID id.JobID) error {
	j, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !j.Active {
		return nil
	}
	j.Active = false
	j.Touch()
	if err := r.store.UpdateJob(ctx, j); err != nil {
		return err
	}
	r.logger.Info("job deactivated", "job", j.ID.String(), "name", j.Name)
	return nil
}

// GetJob returns a job by ID.
func (r *Runner) GetJob(ctx context.Context, jobID id.JobID) (*scheduler.Job, error) {
	return r.store.GetJob(ctx, jobID)
}

// ──────────────────────────────────────────────────
// Execution
// ──────────────────────────────────────────────────

// Start launches the poll loop.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.loop(ctx)

	r.logger.Info("cron runner started", "poll_interval", r.pollInterval)
}

// Stop halts the poll loop and waits for in-flight jobs.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.RunDue(ctx); err != nil {
				r.logger.Error("cron poll failed", "error", err)
			}
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunDue runs every job that is due now and returns how many ran.
func (r *Runner) RunDue(ctx context.Context) (int, error) {
	now := r.now()
	jobs, err := r.store.ListDueJobs(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("cron: list due jobs: %w", err)
	}

	ran := 0
	for _, j := range jobs {
		ok, err := r.RunJob(ctx, j.ID)
		if err != nil {
			r.logger.Error("cron job failed", "job", j.ID.String(), "name", j.Name, "error", err)
		}
		if ok {
			ran++
		}
	}
	return ran, nil
}

// RunJob performs one call of the job if no other call of it is in flight.
// It reports whether the callback ran.
func (r *Runner) RunJob(ctx context.Context, jobID id.JobID) (bool, error) {
	key := jobID.String()
	if !r.acquire(key) {
		r.logger.Debug("cron job already running", "job", key)
		return false, nil
	}
	defer r.release(key)

	j, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if !j.Active || j.NumberCalls == 0 {
		return false, nil
	}

	r.mu.Lock()
	fn, ok := r.funcs[j.Function]
	r.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownFunction, j.Function)
	}

	run := uuid.New()
	started := r.now()
	callErr := fn(ctx, j.Args)

	r.logger.Info("cron job called",
		"job", key,
		"name", j.Name,
		"run", run.String(),
		"remaining", j.NumberCalls,
		"elapsed", r.now().Sub(started),
	)
	if callErr != nil {
		r.logger.Warn("cron job callback returned error", "job", key, "run", run.String(), "error", callErr)
	}

	// The callback may have changed the job, so advance a fresh copy.
	if fresh, err := r.store.GetJob(ctx, jobID); err == nil {
		j = fresh
	}
	r.advance(j, started)
	if err := r.store.UpdateJob(ctx, j); err != nil {
		return true, fmt.Errorf("cron: update job %s: %w", key, err)
	}
	return true, nil
}

// advance decrements the remaining calls and moves NextCall past now.
func (r *Runner) advance(j *scheduler.Job, now time.Time) {
	if j.NumberCalls > 0 {
		j.NumberCalls--
	}
	if j.NumberCalls == 0 {
		j.Active = false
	}

	step := j.IntervalNumber
	if step <= 0 {
		step = 1
	}
	j.NextCall = j.IntervalType.Advance(j.NextCall, step)
	if !j.RepeatMissed {
		for !j.NextCall.After(now) {
			j.NextCall = j.IntervalType.Advance(j.NextCall, step)
		}
	}
	j.Touch()
}

func (r *Runner) acquire(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[key] {
		return false
	}
	r.running[key] = true
	return true
}

func (r *Runner) release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, key)
}
