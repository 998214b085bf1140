package schedule_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"taskline/internal/domain"
	"taskline/internal/repo"
	"taskline/internal/schedule"
)

type fakePlans struct {
	plan domain.Plan
	err  error
}

func (f fakePlans) CurrentPlan(ctx context.Context, defaultID int64) (domain.Plan, error) {
	return f.plan, f.err
}

type recordingDigests struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recordingDigests) SendDailyTasks(ctx context.Context, planID int64, date string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf("daily:%d:%s", planID, date))
	return "Sent 0 tasks (sid: dev_mode)", r.err
}

func (r *recordingDigests) SendWeeklyReview(ctx context.Context, planID int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf("weekly:%d", planID))
	return "Weekly review sent (sid: dev_mode)", r.err
}

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestSpecs(t *testing.T) {
	if got := schedule.DailySpec(8, 30); got != "30 8 * * *" {
		t.Fatalf("daily spec = %q", got)
	}
	got, err := schedule.WeeklySpec("sun", 18)
	if err != nil || got != "0 18 * * 0" {
		t.Fatalf("weekly spec = %q, %v", got, err)
	}
	if _, err := schedule.WeeklySpec("funday", 18); err == nil {
		t.Fatal("expected unknown weekday error")
	}
}

func TestEntriesUseConfiguredLocation(t *testing.T) {
	la := mustLocation(t, "America/Los_Angeles")
	s, err := schedule.New(schedule.Config{
		Location: la, DailyHour: 8, WeeklyDay: "sun", WeeklyHour: 18,
		Plans: fakePlans{}, Digests: &recordingDigests{},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	// Saturday 2026-01-10 12:00 UTC is 04:00 in Los Angeles.
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	entries := s.Entries(now)
	want := []schedule.Entry{
		{Name: schedule.JobDaily, Spec: "0 8 * * *", Next: time.Date(2026, 1, 10, 8, 0, 0, 0, la)},
		{Name: schedule.JobWeekly, Spec: "0 18 * * 0", Next: time.Date(2026, 1, 11, 18, 0, 0, 0, la)},
	}
	if diff := cmp.Diff(want, entries, cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestRunJobsUseCurrentPlan(t *testing.T) {
	d := &recordingDigests{}
	s, err := schedule.New(schedule.Config{
		WeeklyDay: "mon", Plans: fakePlans{plan: domain.Plan{ID: 7}}, Digests: d,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.RunDaily(context.Background()); err != nil {
		t.Fatalf("daily: %v", err)
	}
	if err := s.RunWeekly(context.Background()); err != nil {
		t.Fatalf("weekly: %v", err)
	}
	if diff := cmp.Diff([]string{"daily:7:", "weekly:7"}, d.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestRunJobsSkipWithoutPlan(t *testing.T) {
	d := &recordingDigests{}
	s, err := schedule.New(schedule.Config{
		WeeklyDay: "mon", Plans: fakePlans{err: fmt.Errorf("no active plan: %w", repo.ErrNotFound)}, Digests: d,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.RunDaily(context.Background()); err != nil {
		t.Fatalf("daily: %v", err)
	}
	if len(d.calls) != 0 {
		t.Fatalf("expected no sends, got %v", d.calls)
	}
}

func TestRunDailyReportsSendFailure(t *testing.T) {
	boom := errors.New("boom")
	s, err := schedule.New(schedule.Config{
		WeeklyDay: "mon", Plans: fakePlans{plan: domain.Plan{ID: 1}}, Digests: &recordingDigests{err: boom},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.RunDaily(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}

func TestNewRejectsBadWeekday(t *testing.T) {
	_, err := schedule.New(schedule.Config{WeeklyDay: "xyz", Plans: fakePlans{}, Digests: &recordingDigests{}})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestStartStopsCleanly(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s, err := schedule.New(schedule.Config{WeeklyDay: "sun", Plans: fakePlans{}, Digests: &recordingDigests{}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
