package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taskline/internal/config"
	"taskline/internal/domain"
	"taskline/internal/events"
	"taskline/internal/repo"
)

// PlanCreateOptions are parameters for creating a draft plan.
type PlanCreateOptions struct {
	Name        string
	Type        string
	Description string
	Config      map[string]any
	ActorID     string
}

func (e Engine) CreatePlan(ctx context.Context, opts PlanCreateOptions) (domain.Plan, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Plan{}, invalid("name", "is required")
	}
	if opts.Type == "" {
		opts.Type = "general"
	}
	now := e.stamp()
	p := domain.Plan{
		Name:        opts.Name,
		Type:        opts.Type,
		Description: opts.Description,
		Status:      domain.PlanDraft,
		Config:      opts.Config,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Plan{}, err
	}
	defer tx.Rollback()

	id, err := e.Repo.InsertPlanTx(ctx, tx, p)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("insert plan: %w", err)
	}
	p.ID = id
	if err := e.Events.Append(ctx, tx, events.PlanCreated, id, events.KindPlan, id, opts.ActorID, events.EventPayload{"name": p.Name, "type": p.Type}); err != nil {
		return domain.Plan{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Plan{}, err
	}
	return p, nil
}

// ImportPlan creates a plan with all of its phases and tasks from a template
// in a single transaction.
func (e Engine) ImportPlan(ctx context.Context, tpl *config.PlanTemplate, actorID string) (domain.Plan, error) {
	if tpl == nil {
		return domain.Plan{}, errors.New("template is required")
	}
	if err := tpl.Validate(); err != nil {
		return domain.Plan{}, &ValidationError{Field: "template", Message: err.Error()}
	}
	now := e.stamp()
	p := domain.Plan{
		Name:        tpl.Plan.Name,
		Type:        tpl.Plan.Type,
		Description: tpl.Plan.Description,
		Status:      domain.PlanDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.Type == "" {
		p.Type = "general"
	}
	if tpl.Plan.Timezone != "" {
		p.Config = map[string]any{"timezone": tpl.Plan.Timezone}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Plan{}, err
	}
	defer tx.Rollback()

	planID, err := e.Repo.InsertPlanTx(ctx, tx, p)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("insert plan: %w", err)
	}
	p.ID = planID
	phaseIDs := map[int]int64{}
	for _, ph := range tpl.Phases {
		id, err := e.Repo.InsertPhaseTx(ctx, tx, domain.Phase{
			PlanID:      planID,
			PhaseNumber: ph.Number,
			Name:        ph.Name,
			Description: ph.Description,
			Status:      domain.PhaseUpcoming,
		})
		if err != nil {
			return domain.Plan{}, fmt.Errorf("insert phase %d: %w", ph.Number, err)
		}
		phaseIDs[ph.Number] = id
	}
	for _, tt := range tpl.Tasks {
		t := taskFromTemplate(planID, tt)
		if tt.Phase != 0 {
			id := phaseIDs[tt.Phase]
			t.PhaseID = &id
		}
		if _, err := e.Repo.InsertTaskTx(ctx, tx, t); err != nil {
			return domain.Plan{}, fmt.Errorf("insert task %d: %w", tt.Number, err)
		}
	}
	if err := e.Events.Append(ctx, tx, events.PlanImported, planID, events.KindPlan, planID, actorID, events.EventPayload{
		"name":   p.Name,
		"phases": len(tpl.Phases),
		"tasks":  len(tpl.Tasks),
	}); err != nil {
		return domain.Plan{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Plan{}, err
	}
	return p, nil
}

func taskFromTemplate(planID int64, tt config.TaskTemplate) domain.Task {
	t := domain.Task{
		PlanID:           planID,
		TaskNumber:       tt.Number,
		DayOffset:        tt.DayOffset,
		Title:            tt.Title,
		Description:      tt.Description,
		Category:         tt.Category,
		ExecutionType:    tt.ExecutionType,
		Priority:         tt.Priority,
		EstimatedMinutes: defaultEstimate,
		Status:           domain.TaskPending,
	}
	if tt.EstimatedMinutes != nil {
		t.EstimatedMinutes = *tt.EstimatedMinutes
	}
	applyTaskDefaults(&t)
	return t
}

// ActivatePlan converts every relative day offset into a calendar date
// starting at startDate. Phase N covers week N; phase 1 becomes active and the
// rest upcoming. Every task is reset to pending. Running it again on an active
// plan recomputes the whole schedule. Returns the number of tasks scheduled.
func (e Engine) ActivatePlan(ctx context.Context, planID int64, startDate, actorID string) (int, error) {
	start, err := parseDate("start_date", startDate)
	if err != nil {
		return 0, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetPlanTx(ctx, tx, planID); err != nil {
		return 0, err
	}
	phases, err := e.Repo.ListPhasesTx(ctx, tx, planID)
	if err != nil {
		return 0, err
	}
	for _, ph := range phases {
		weekStart := start.AddDate(0, 0, 7*(ph.PhaseNumber-1))
		status := domain.PhaseUpcoming
		if ph.PhaseNumber == 1 {
			status = domain.PhaseActive
		}
		if err := e.Repo.SetPhaseScheduleTx(ctx, tx, ph.ID, weekStart.Format(domain.DateLayout), addDays(weekStart, 6), status); err != nil {
			return 0, fmt.Errorf("schedule phase %d: %w", ph.PhaseNumber, err)
		}
	}
	offsets, err := e.Repo.TaskIDOffsetsTx(ctx, tx, planID)
	if err != nil {
		return 0, err
	}
	maxOffset := 0
	for id, off := range offsets {
		if err := e.Repo.ScheduleTaskTx(ctx, tx, id, addDays(start, off)); err != nil {
			return 0, fmt.Errorf("schedule task %d: %w", id, err)
		}
		if off > maxOffset {
			maxOffset = off
		}
	}
	startStr := start.Format(domain.DateLayout)
	endStr := addDays(start, maxOffset)
	if err := e.Repo.UpdatePlanTx(ctx, tx, planID, repo.PlanScheduleUpdate{
		Status:    domain.PlanActive,
		StartDate: &startStr,
		EndDate:   &endStr,
		UpdatedAt: e.stamp(),
	}); err != nil {
		return 0, err
	}
	if err := e.Repo.SetSettingTx(ctx, tx, repo.SettingPlanStartDate, startStr); err != nil {
		return 0, err
	}
	if err := e.Repo.SetSettingTx(ctx, tx, repo.SettingPlanStatus, domain.PlanActive); err != nil {
		return 0, err
	}
	if err := e.Events.Append(ctx, tx, events.PlanActivated, planID, events.KindPlan, planID, actorID, events.EventPayload{
		"start_date":      startStr,
		"end_date":        endStr,
		"tasks_scheduled": len(offsets),
	}); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(offsets), nil
}

// CompletePlan marks the plan completed. The computed end date is kept.
func (e Engine) CompletePlan(ctx context.Context, planID int64, actorID string) (domain.Plan, error) {
	return e.setPlanStatus(ctx, planID, domain.PlanCompleted, events.PlanCompleted, actorID)
}

func (e Engine) ArchivePlan(ctx context.Context, planID int64, actorID string) (domain.Plan, error) {
	return e.setPlanStatus(ctx, planID, domain.PlanArchived, events.PlanArchived, actorID)
}

func (e Engine) setPlanStatus(ctx context.Context, planID int64, status, evtType, actorID string) (domain.Plan, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Plan{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetPlanTx(ctx, tx, planID)
	if err != nil {
		return domain.Plan{}, err
	}
	from := p.Status
	p.Status = status
	p.UpdatedAt = e.stamp()
	if err := e.Repo.UpdatePlanTx(ctx, tx, planID, repo.PlanScheduleUpdate{Status: status, UpdatedAt: p.UpdatedAt}); err != nil {
		return domain.Plan{}, err
	}
	if err := e.Repo.SetSettingTx(ctx, tx, repo.SettingPlanStatus, status); err != nil {
		return domain.Plan{}, err
	}
	if err := e.Events.Append(ctx, tx, evtType, planID, events.KindPlan, planID, actorID, events.EventPayload{"from": from, "to": status}); err != nil {
		return domain.Plan{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Plan{}, err
	}
	return p, nil
}

func (e Engine) GetPlan(ctx context.Context, planID int64) (domain.Plan, error) {
	return e.Repo.GetPlan(ctx, planID)
}

func (e Engine) ListPlans(ctx context.Context, status string) ([]domain.Plan, error) {
	switch status {
	case "", domain.PlanDraft, domain.PlanActive, domain.PlanCompleted, domain.PlanArchived:
	default:
		return nil, invalid("status", "unknown plan status %q", status)
	}
	return e.Repo.ListPlans(ctx, status)
}

// CurrentPlan picks the plan that inbound messages and scheduled sends act
// on: the lowest-id active plan, else defaultID.
func (e Engine) CurrentPlan(ctx context.Context, defaultID int64) (domain.Plan, error) {
	p, err := e.Repo.FirstActivePlan(ctx)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.Plan{}, err
	}
	if defaultID == 0 {
		return domain.Plan{}, fmt.Errorf("no active plan: %w", repo.ErrNotFound)
	}
	return e.Repo.GetPlan(ctx, defaultID)
}

// PhaseCreateOptions are parameters for adding a phase to a plan.
type PhaseCreateOptions struct {
	PlanID      int64
	PhaseNumber int
	Name        string
	Description string
	ActorID     string
}

func (e Engine) CreatePhase(ctx context.Context, opts PhaseCreateOptions) (domain.Phase, error) {
	if opts.PhaseNumber < 1 {
		return domain.Phase{}, invalid("phase_number", "must be >= 1")
	}
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Phase{}, invalid("name", "is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Phase{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetPlanTx(ctx, tx, opts.PlanID); err != nil {
		return domain.Phase{}, err
	}
	ph := domain.Phase{
		PlanID:      opts.PlanID,
		PhaseNumber: opts.PhaseNumber,
		Name:        opts.Name,
		Description: opts.Description,
		Status:      domain.PhaseUpcoming,
	}
	id, err := e.Repo.InsertPhaseTx(ctx, tx, ph)
	if err != nil {
		if repo.IsUniqueViolation(err) {
			return domain.Phase{}, invalid("phase_number", "phase %d already exists", opts.PhaseNumber)
		}
		return domain.Phase{}, err
	}
	ph.ID = id
	if err := e.Events.Append(ctx, tx, events.PhaseCreated, opts.PlanID, events.KindPhase, id, opts.ActorID, events.EventPayload{"phase_number": ph.PhaseNumber, "name": ph.Name}); err != nil {
		return domain.Phase{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Phase{}, err
	}
	return ph, nil
}

func (e Engine) ListPhases(ctx context.Context, planID int64) ([]domain.Phase, error) {
	if _, err := e.Repo.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	return e.Repo.ListPhases(ctx, planID)
}
