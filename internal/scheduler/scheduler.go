package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/phrazzld/taskboard-scheduler/internal/assignment"
	"github.com/phrazzld/taskboard-scheduler/internal/config"
	"github.com/phrazzld/taskboard-scheduler/internal/platform/metrics"
)

// Job names as reported by Status.
const (
	JobDailyAssignment      = "dailyAssignment"
	JobHourlyReconciliation = "hourlyReconciliation"
)

const (
	triggerScheduled = "scheduled"
	triggerManual    = "manual"
)

var (
	// ErrJobPanicked wraps the value recovered from a panicking job.
	ErrJobPanicked = errors.New("job panicked")
	// ErrRunTimeout is returned when a manual run outlives its deadline.
	// The run itself is detached from the caller, keeps going and records
	// its outcome when it ends.
	ErrRunTimeout = errors.New("manual run timed out")
)

// Assigner runs an assignment pass over every due subscriber.
type Assigner interface {
	AssignAll(ctx context.Context) (assignment.PassResult, error)
}

// Reconciler archives completed tasks and tops boards up.
type Reconciler interface {
	Reconcile(ctx context.Context) (assignment.ReconcileResult, error)
}

// Config holds the trigger plan of a Scheduler.
type Config struct {
	Location      *time.Location
	Daily         Trigger
	Reconcile     Trigger
	ManualTimeout time.Duration
}

// DefaultConfig returns the plan used when nothing is configured:
// assignment at 09:00 and reconciliation on every hour, Moscow time.
func DefaultConfig() Config {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		loc = time.FixedZone("MSK", 3*60*60)
	}
	return Config{
		Location:      loc,
		Daily:         Daily(9, 0),
		Reconcile:     Every(time.Hour),
		ManualTimeout: 5 * time.Minute,
	}
}

// ConfigFrom builds a Config from the application configuration.
func ConfigFrom(cfg config.SchedulerConfig) (Config, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load scheduler timezone %q: %w", cfg.Timezone, err)
	}
	return Config{
		Location:      loc,
		Daily:         Daily(cfg.DailyHour, cfg.DailyMinute),
		Reconcile:     Every(cfg.ReconcileInterval()),
		ManualTimeout: cfg.ManualRunTimeout(),
	}, nil
}

func (c Config) validate() error {
	if c.Location == nil {
		return errors.New("scheduler location cannot be nil")
	}
	if c.ManualTimeout <= 0 {
		return errors.New("manual run timeout must be positive")
	}
	if err := c.Daily.Validate(); err != nil {
		return fmt.Errorf("daily trigger: %w", err)
	}
	if err := c.Reconcile.Validate(); err != nil {
		return fmt.Errorf("reconcile trigger: %w", err)
	}
	return nil
}

// JobStatus is the observable state of one job.
type JobStatus struct {
	Scheduled bool       `json:"scheduled"`
	Running   bool       `json:"running"`
	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	NextRunAt *time.Time `json:"nextRunAt,omitempty"`
}

// Status reports both jobs.
type Status struct {
	DailyAssignment      JobStatus `json:"dailyAssignment"`
	HourlyReconciliation JobStatus `json:"hourlyReconciliation"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithMetrics records job runs on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

type job struct {
	name    string
	trigger Trigger
	run     func(ctx context.Context) (any, error)

	// guarded by Scheduler.mu
	scheduled bool
	active    int
	lastRunAt time.Time
	lastErr   string
	nextRunAt time.Time
}

func (j *job) status() JobStatus {
	st := JobStatus{Scheduled: j.scheduled, Running: j.active > 0, LastError: j.lastErr}
	if !j.lastRunAt.IsZero() {
		t := j.lastRunAt
		st.LastRunAt = &t
	}
	if j.scheduled && !j.nextRunAt.IsZero() {
		t := j.nextRunAt
		st.NextRunAt = &t
	}
	return st
}

// Scheduler fires the daily assignment and the periodic reconciliation.
// Each job runs on its own loop, so a job never overlaps its own next firing.
type Scheduler struct {
	cfg     Config
	clock   Clock
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	daily  *job
	hourly *job
	cancel context.CancelFunc
	loops  *sync.WaitGroup
}

// New creates a stopped Scheduler.
func New(cfg Config, assigner Assigner, reconciler Reconciler, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if assigner == nil {
		return nil, errors.New("assigner cannot be nil")
	}
	if reconciler == nil {
		return nil, errors.New("reconciler cannot be nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		cfg:    cfg,
		clock:  RealClock(),
		logger: logger.With("component", "scheduler"),
	}
	s.daily = &job{
		name:    JobDailyAssignment,
		trigger: cfg.Daily,
		run: func(ctx context.Context) (any, error) {
			return assigner.AssignAll(ctx)
		},
	}
	s.hourly = &job{
		name:    JobHourlyReconciliation,
		trigger: cfg.Reconcile,
		run: func(ctx context.Context) (any, error) {
			return reconciler.Reconcile(ctx)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start arms both jobs. Calling it on a running Scheduler does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.loops = &sync.WaitGroup{}

	for _, j := range []*job{s.daily, s.hourly} {
		j.scheduled = true
		s.loops.Add(1)
		go s.loop(ctx, j, s.loops)
	}
	s.logger.Info("scheduler started",
		"timezone", s.cfg.Location.String(),
		"daily_at", fmt.Sprintf("%02d:%02d", s.cfg.Daily.Hour, s.cfg.Daily.Minute),
		"reconcile_every", s.cfg.Reconcile.Interval.String())
}

// Stop disarms both jobs and waits for in-flight runs to finish, or for
// ctx to end. Runs are never cancelled by Stop.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return nil
	}
	cancel, loops := s.cancel, s.loops
	s.cancel, s.loops = nil, nil
	for _, j := range []*job{s.daily, s.hourly} {
		j.scheduled = false
		j.nextRunAt = time.Time{}
	}
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		loops.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with runs in flight")
		return ctx.Err()
	}
}

// RunAssignmentNow runs an assignment pass immediately and waits for it at
// most the manual run timeout. The run is not cancelled when ctx ends.
// Timer state is left untouched.
func (s *Scheduler) RunAssignmentNow(ctx context.Context) (assignment.PassResult, error) {
	out, err := s.runNow(ctx, s.daily)
	res, _ := out.(assignment.PassResult)
	return res, err
}

// RunReconciliationNow runs a reconciliation pass immediately and waits for
// it at most the manual run timeout. The run is not cancelled when ctx ends.
// Timer state is left untouched.
func (s *Scheduler) RunReconciliationNow(ctx context.Context) (assignment.ReconcileResult, error) {
	out, err := s.runNow(ctx, s.hourly)
	res, _ := out.(assignment.ReconcileResult)
	return res, err
}

// Status reports the state of both jobs.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		DailyAssignment:      s.daily.status(),
		HourlyReconciliation: s.hourly.status(),
	}
}

func (s *Scheduler) loop(ctx context.Context, j *job, wg *sync.WaitGroup) {
	defer wg.Done()

	log := s.logger.With("job", j.name)
	log.Debug("job loop started")

	for {
		if ctx.Err() != nil {
			log.Debug("job loop stopped")
			return
		}
		now := s.clock.Now()
		next := j.trigger.Next(now, s.cfg.Location)

		s.mu.Lock()
		if j.scheduled {
			j.nextRunAt = next
		}
		s.mu.Unlock()

		timer := s.clock.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Debug("job loop stopped")
			return
		case <-timer.C():
		}

		// a scheduled run is not interrupted by Stop
		_, _ = s.execute(context.WithoutCancel(ctx), j, triggerScheduled)
	}
}

type runOutcome struct {
	out any
	err error
}

func (s *Scheduler) runNow(ctx context.Context, j *job) (any, error) {
	runCtx := context.WithoutCancel(ctx)
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.ManualTimeout)
	defer cancel()

	done := make(chan runOutcome, 1)
	go func() {
		out, err := s.execute(runCtx, j, triggerManual)
		done <- runOutcome{out: out, err: err}
	}()

	select {
	case res := <-done:
		return res.out, res.err
	case <-waitCtx.Done():
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", ErrRunTimeout, j.name, s.cfg.ManualTimeout)
		}
		return nil, waitCtx.Err()
	}
}

func (s *Scheduler) execute(ctx context.Context, j *job, trigger string) (any, error) {
	log := s.logger.With("job", j.name, "trigger", trigger)

	s.mu.Lock()
	j.active++
	s.mu.Unlock()

	started := s.clock.Now()
	log.Info("job started")
	out, err := s.invoke(ctx, j, log)
	finished := s.clock.Now()

	s.mu.Lock()
	j.active--
	j.lastRunAt = finished
	j.lastErr = ""
	if err != nil {
		j.lastErr = err.Error()
	}
	s.mu.Unlock()

	outcome := metrics.OutcomeSuccess
	switch {
	case errors.Is(err, ErrJobPanicked):
		outcome = metrics.OutcomePanic
	case err != nil:
		outcome = metrics.OutcomeError
	}
	s.metrics.ObserveJob(j.name, outcome, started, finished)

	if err != nil {
		log.Error("job failed", "error", err, "duration", finished.Sub(started))
		return out, err
	}
	log.Info("job finished", "result", out, "duration", finished.Sub(started))
	return out, nil
}

func (s *Scheduler) invoke(ctx context.Context, j *job, log *slog.Logger) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", "panic", r, "stack", string(debug.Stack()))
			out, err = nil, fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return j.run(ctx)
}
