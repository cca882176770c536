package runner

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	errs "tagsync/pkg/errors"
	"tagsync/pkg/logger"
)

// DefaultSchedule fires ten minutes after midnight in the operating timezone
const DefaultSchedule = "10 0 * * *"

// ScheduleOptions configures the daily trigger for one brand
type ScheduleOptions struct {
	Cron       string
	BrandID    string
	BrandName  string
	RunOnStart bool
	// OnRun is called after every scheduled run
	OnRun func(*Report, error)
}

// Scheduler triggers a retried run for the previous day on a cron schedule
type Scheduler struct {
	runner   *Runner
	opts     ScheduleOptions
	schedule cron.Schedule
	cron     *cron.Cron
	logger   logger.Logger

	mu  sync.Mutex
	ctx context.Context
}

// NewScheduler validates the cron expression and prepares a Scheduler
func NewScheduler(r *Runner, opts ScheduleOptions) (*Scheduler, error) {
	if opts.Cron == "" {
		opts.Cron = DefaultSchedule
	}
	if opts.BrandID == "" {
		return nil, errs.New(errs.ErrorTypeConfig, "brand id is required", nil)
	}
	schedule, err := cron.ParseStandard(opts.Cron)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeConfig, "invalid cron expression "+opts.Cron, err)
	}

	log := r.logger.WithField("component", "scheduler")
	cl := cronLogger{log: log}
	return &Scheduler{
		runner:   r,
		opts:     opts,
		schedule: schedule,
		cron: cron.New(
			cron.WithLocation(r.loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: log,
		ctx:    context.Background(),
	}, nil
}

// Next returns the first trigger time after t
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.runner.loc))
}

// RunOnce runs yesterday's collection for the configured brand
func (s *Scheduler) RunOnce(ctx context.Context) (*Report, error) {
	params, err := s.runner.Params(s.opts.BrandID, s.opts.BrandName, "")
	if err != nil {
		return nil, err
	}
	return s.runner.RunWithRetry(ctx, params)
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	s.logger.Info("Starting scheduled run")
	report, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Scheduled run failed")
	}
	if s.opts.OnRun != nil && report != nil {
		s.opts.OnRun(report, err)
	}
}

// Run starts the schedule and blocks until ctx is cancelled, then waits
// for an in-flight run to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Schedule(s.schedule, cron.FuncJob(s.tick))
	s.cron.Start()
	s.logger.InfoWithFields("Scheduler started", map[string]interface{}{
		"cron":     s.opts.Cron,
		"brand_id": s.opts.BrandID,
		"next_run": s.Next(time.Now()),
	})

	if s.opts.RunOnStart {
		s.tick()
	}

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
	return nil
}

// cronLogger routes cron's own messages through the structured logger
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.DebugWithFields(msg, kvFields(keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.WithError(err).ErrorWithFields(msg, kvFields(keysAndValues))
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			fields[k] = kv[i+1]
		}
	}
	return fields
}
