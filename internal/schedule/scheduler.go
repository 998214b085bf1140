// Package schedule fires the daily digest and the weekly review on cron
// schedules in the service timezone.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"taskline/internal/config"
	"taskline/internal/domain"
	"taskline/internal/repo"
	"taskline/internal/telemetry"
)

// Standard 5-field expressions: minute, hour, dom, month, dow.
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

const (
	JobDaily  = "daily_tasks"
	JobWeekly = "weekly_review"
)

type PlanResolver interface {
	CurrentPlan(ctx context.Context, defaultID int64) (domain.Plan, error)
}

type Digests interface {
	SendDailyTasks(ctx context.Context, planID int64, date string) (string, error)
	SendWeeklyReview(ctx context.Context, planID int64) (string, error)
}

// Config holds the schedule and the scheduler's dependencies.
type Config struct {
	Location      *time.Location
	DailyHour     int
	DailyMinute   int
	WeeklyDay     string
	WeeklyHour    int
	DefaultPlanID int64
	JobTimeout    time.Duration // defaults to 2 minutes

	Plans   PlanResolver
	Digests Digests
	Logger  *zap.Logger
}

// Entry describes one registered job.
type Entry struct {
	Name string
	Spec string
	Next time.Time
}

type Scheduler struct {
	cron    *cronlib.Cron
	cfg     Config
	logger  *zap.Logger
	entries []Entry

	mu  sync.Mutex
	ctx context.Context
}

func DailySpec(hour, minute int) string {
	return fmt.Sprintf("%d %d * * *", minute, hour)
}

func WeeklySpec(day string, hour int) (string, error) {
	dow, ok := config.WeekdayNumber(day)
	if !ok {
		return "", fmt.Errorf("unknown weekday %q", day)
	}
	return fmt.Sprintf("0 %d * * %d", hour, dow), nil
}

// NextRun returns the first activation of spec strictly after t, in t's location.
func NextRun(spec string, after time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}

// New registers both jobs. Nothing runs until Start.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Plans == nil || cfg.Digests == nil {
		return nil, errors.New("schedule: plans and digests are required")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	logger := telemetry.OrNop(cfg.Logger).With(zap.String("component", "schedule"))
	cl := cronLogger{l: logger}
	s := &Scheduler{
		cron: cronlib.New(
			cronlib.WithLocation(cfg.Location),
			cronlib.WithParser(cronParser),
			cronlib.WithLogger(cl),
			cronlib.WithChain(cronlib.Recover(cl), cronlib.SkipIfStillRunning(cl)),
		),
		cfg:    cfg,
		logger: logger,
		ctx:    context.Background(),
	}
	weekly, err := WeeklySpec(cfg.WeeklyDay, cfg.WeeklyHour)
	if err != nil {
		return nil, err
	}
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{JobDaily, DailySpec(cfg.DailyHour, cfg.DailyMinute), s.RunDaily},
		{JobWeekly, weekly, s.RunWeekly},
	}
	for _, j := range jobs {
		j := j
		_, err := s.cron.AddFunc(j.spec, func() { s.fire(j.name, j.run) })
		if err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", j.name, j.spec, err)
		}
		s.entries = append(s.entries, Entry{Name: j.name, Spec: j.spec})
	}
	return s, nil
}

// Entries lists the registered jobs with their next activation.
func (s *Scheduler) Entries(now time.Time) []Entry {
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e
		if next, err := NextRun(e.Spec, now.In(s.cfg.Location)); err == nil {
			out[i].Next = next
		}
	}
	return out
}

// Start runs the cron loop until ctx is done, then waits for running jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	for _, e := range s.Entries(time.Now()) {
		s.logger.Info("job scheduled", zap.String("job", e.Name), zap.String("spec", e.Spec), zap.Time("next", e.Next))
	}
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) fire(name string, run func(context.Context) error) {
	s.mu.Lock()
	base := s.ctx
	s.mu.Unlock()
	ctx, cancel := context.WithTimeout(base, s.cfg.JobTimeout)
	defer cancel()
	if err := run(ctx); err != nil {
		s.logger.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
	}
}

// RunDaily sends today's digest for the current plan. No plan is not an error.
func (s *Scheduler) RunDaily(ctx context.Context) error {
	p, ok, err := s.currentPlan(ctx)
	if !ok {
		return err
	}
	msg, err := s.cfg.Digests.SendDailyTasks(ctx, p.ID, "")
	if err != nil {
		return fmt.Errorf("daily tasks for plan %d: %w", p.ID, err)
	}
	s.logger.Info("daily job done", zap.Int64("plan_id", p.ID), zap.String("result", msg))
	return nil
}

func (s *Scheduler) RunWeekly(ctx context.Context) error {
	p, ok, err := s.currentPlan(ctx)
	if !ok {
		return err
	}
	msg, err := s.cfg.Digests.SendWeeklyReview(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("weekly review for plan %d: %w", p.ID, err)
	}
	s.logger.Info("weekly job done", zap.Int64("plan_id", p.ID), zap.String("result", msg))
	return nil
}

func (s *Scheduler) currentPlan(ctx context.Context) (domain.Plan, bool, error) {
	p, err := s.cfg.Plans.CurrentPlan(ctx, s.cfg.DefaultPlanID)
	if errors.Is(err, repo.ErrNotFound) {
		s.logger.Warn("no current plan; skipping job")
		return domain.Plan{}, false, nil
	}
	if err != nil {
		return domain.Plan{}, false, err
	}
	return p, true, nil
}

// cronLogger routes robfig/cron's logging through zap.
type cronLogger struct{ l *zap.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
