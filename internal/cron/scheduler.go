package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/policychat/internal/telemetry"
	"github.com/robfig/cron/v3"
)

// DefaultJobTimeout bounds a single run of a maintenance job.
const DefaultJobTimeout = 30 * time.Second

// ErrUnknownJob is returned by RunNow for a name that was never registered.
var ErrUnknownJob = errors.New("cron: unknown job")

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMetrics counts job runs on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithJobTimeout bounds every job run. Defaults to DefaultJobTimeout.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRunOnStart runs the named jobs once as soon as the scheduler starts,
// so gauges and health reports are populated before the first tick.
func WithRunOnStart(names ...string) Option {
	return func(s *Scheduler) { s.onStart = append(s.onStart, names...) }
}

// Scheduler runs the maintenance jobs on their cron schedules. A job never
// overlaps with itself: a tick or RunNow that finds the previous run still
// going is skipped. Panics in a job are recovered and logged.
type Scheduler struct {
	mu      sync.Mutex
	parser  cron.Parser
	cron    *cron.Cron
	entries map[string]*entry
	order   []string
	onStart []string
	logger  *slog.Logger
	metrics *telemetry.Metrics
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type entry struct {
	job      Job
	schedule cron.Schedule
	run      cron.Job
}

// NewScheduler creates a scheduler. Jobs must be registered before Start.
func NewScheduler(logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		entries: make(map[string]*entry),
		logger:  logger,
		timeout: DefaultJobTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterJob adds a job. Its schedule is parsed here so a bad expression
// fails wiring rather than start-up.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if s.cron != nil {
		return fmt.Errorf("cron: cannot register %q after start", name)
	}
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}
	sched, err := s.parser.Parse(j.Schedule())
	if err != nil {
		return fmt.Errorf("cron: invalid schedule for job %q: %w", name, err)
	}

	l := cronLogger{s.logger.With("job", name)}
	wrap := cron.NewChain(cron.Recover(l), cron.SkipIfStillRunning(l))
	s.entries[name] = &entry{
		job:      j,
		schedule: sched,
		run:      wrap.Then(cron.FuncJob(func() { s.execute(j) })),
	}
	s.order = append(s.order, name)
	return nil
}

// Jobs returns the registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Start schedules every registered job and runs the start-up jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return errors.New("cron: scheduler already started")
	}
	for _, name := range s.onStart {
		if _, ok := s.entries[name]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownJob, name)
		}
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = cron.New(cron.WithParser(s.parser), cron.WithLogger(cronLogger{s.logger}))
	for _, name := range s.order {
		e := s.entries[name]
		s.cron.Schedule(e.schedule, e.run)
	}
	s.cron.Start()

	for _, name := range s.onStart {
		run := s.entries[name].run
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			run.Run()
		}()
	}
	s.logger.Info("cron: scheduler started", "jobs", s.order)
	return nil
}

// RunNow runs a job synchronously, outside its schedule. It is skipped if
// a run of the same job is in flight.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	e.run.Run()
	return nil
}

// Stop cancels running jobs and waits for them until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	cancel()
	done := make(chan struct{})
	go func() {
		<-c.Stop().Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("cron: scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cron: stop: %w", ctx.Err())
	}
}

func (s *Scheduler) execute(j Job) {
	s.mu.Lock()
	base := s.ctx
	s.mu.Unlock()
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithTimeout(base, s.timeout)
	defer cancel()

	start := time.Now()
	err := j.Run(ctx)
	s.metrics.RecordMaintenanceRun(j.Name(), err)
	if err != nil {
		s.logger.Error("cron: job failed", "job", j.Name(), "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Debug("cron: job completed", "job", j.Name(), "duration", time.Since(start))
}

// cronLogger adapts slog to the robfig/cron logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
