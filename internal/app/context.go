package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"taskline/internal/config"
	"taskline/internal/domain"
	"taskline/internal/engine"
	"taskline/internal/repo"
)

// ResolvePlan picks the plan a command acts on. An explicit override wins;
// otherwise the current plan (first active, else defaultID) is used.
func ResolvePlan(ctx context.Context, e engine.Engine, override, defaultID int64) (domain.Plan, error) {
	if override != 0 {
		return e.GetPlan(ctx, override)
	}
	p, err := e.CurrentPlan(ctx, defaultID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Plan{}, fmt.Errorf("no plan found; create one or use --plan: %w", err)
		}
		return domain.Plan{}, err
	}
	return p, nil
}

// SeedIfEmpty imports the built-in plan template when the database holds no
// plans yet. It reports whether a plan was created.
func SeedIfEmpty(ctx context.Context, e engine.Engine, actorID string, logger *zap.Logger) (domain.Plan, bool, error) {
	n, err := e.Repo.CountPlans(ctx)
	if err != nil {
		return domain.Plan{}, false, fmt.Errorf("count plans: %w", err)
	}
	if n > 0 {
		return domain.Plan{}, false, nil
	}
	if actorID == "" {
		actorID = "system"
	}
	p, err := e.ImportPlan(ctx, config.DefaultPlanTemplate(), actorID)
	if err != nil {
		return domain.Plan{}, false, fmt.Errorf("seed default plan: %w", err)
	}
	if logger != nil {
		logger.Info("seeded default plan", zap.Int64("plan_id", p.ID), zap.String("name", p.Name))
	}
	return p, true, nil
}
