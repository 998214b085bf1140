package engine

import (
	"context"
	"errors"

	"taskline/internal/domain"
	"taskline/internal/repo"
)

// PlanOverview aggregates the plan's task counts and its active phase.
// Overdue means pending with a date before today in the plan's timezone.
func (e Engine) PlanOverview(ctx context.Context, planID int64) (domain.PlanOverview, error) {
	p, err := e.Repo.GetPlan(ctx, planID)
	if err != nil {
		return domain.PlanOverview{}, err
	}
	counts, err := e.Repo.CountTasks(ctx, planID, e.Today(p))
	if err != nil {
		return domain.PlanOverview{}, err
	}
	ov := domain.PlanOverview{
		PlanID:    p.ID,
		PlanName:  p.Name,
		Total:     counts.Total,
		Completed: counts.Completed,
		Skipped:   counts.Skipped,
		Pending:   counts.Pending,
		Overdue:   counts.Overdue,
	}
	ph, err := e.Repo.ActivePhase(ctx, planID)
	switch {
	case err == nil:
		ov.PhaseNumber = ph.PhaseNumber
		ov.PhaseName = ph.Name
	case !errors.Is(err, repo.ErrNotFound):
		return domain.PlanOverview{}, err
	}
	return ov, nil
}

func (e Engine) PlanStats(ctx context.Context, planID int64) (domain.PlanStats, error) {
	p, err := e.Repo.GetPlan(ctx, planID)
	if err != nil {
		return domain.PlanStats{}, err
	}
	counts, err := e.Repo.CountTasks(ctx, planID, e.Today(p))
	if err != nil {
		return domain.PlanStats{}, err
	}
	byCategory, err := e.Repo.CountTasksByCategory(ctx, planID)
	if err != nil {
		return domain.PlanStats{}, err
	}
	return domain.PlanStats{
		PlanID:     planID,
		TotalTasks: counts.Total,
		ByStatus: map[string]int{
			domain.TaskCompleted:   counts.Completed,
			domain.TaskSkipped:     counts.Skipped,
			domain.TaskPending:     counts.Pending,
			domain.TaskInProgress:  counts.InProgress,
			domain.TaskRescheduled: counts.Rescheduled,
		},
		ByCategory: byCategory,
	}, nil
}
