package engine

import (
	"context"
	"strings"
	"time"

	"taskline/internal/domain"
	"taskline/internal/events"
	"taskline/internal/repo"
)

const defaultEstimate = 15

func applyTaskDefaults(t *domain.Task) {
	if t.Category == "" {
		t.Category = "general"
	}
	if t.ExecutionType == "" {
		t.ExecutionType = domain.ExecHuman
	}
	if t.Priority == 0 {
		t.Priority = 2
	}
	if t.Status == "" {
		t.Status = domain.TaskPending
	}
}

// TaskCreateOptions are parameters for creating a task. PhaseNumber 0 leaves
// the task outside any phase.
type TaskCreateOptions struct {
	PlanID           int64
	PhaseNumber      int
	TaskNumber       int
	DayOffset        int
	Title            string
	Description      string
	Category         string
	ExecutionType    string
	Priority         int
	EstimatedMinutes *int
	ActorID          string
}

func (o TaskCreateOptions) validate() error {
	if o.TaskNumber < 1 {
		return invalid("task_number", "must be >= 1")
	}
	if o.DayOffset < 0 {
		return invalid("day_offset", "must be >= 0")
	}
	if strings.TrimSpace(o.Title) == "" {
		return invalid("title", "is required")
	}
	if o.Priority != 0 && (o.Priority < 1 || o.Priority > 3) {
		return invalid("priority", "must be between 1 and 3")
	}
	if o.EstimatedMinutes != nil && *o.EstimatedMinutes < 0 {
		return invalid("estimated_minutes", "must be >= 0")
	}
	switch o.ExecutionType {
	case "", domain.ExecHuman, domain.ExecAgentAssisted:
	default:
		return invalid("execution_type", "must be human or agent_assisted")
	}
	return nil
}

// CreateTask adds a task to a plan. Tasks added to an already-activated plan
// are dated from the plan's start date right away.
func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if err := opts.validate(); err != nil {
		return domain.Task{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetPlanTx(ctx, tx, opts.PlanID)
	if err != nil {
		return domain.Task{}, err
	}
	t := domain.Task{
		PlanID:           opts.PlanID,
		TaskNumber:       opts.TaskNumber,
		DayOffset:        opts.DayOffset,
		Title:            opts.Title,
		Description:      opts.Description,
		Category:         opts.Category,
		ExecutionType:    opts.ExecutionType,
		Priority:         opts.Priority,
		EstimatedMinutes: defaultEstimate,
	}
	if opts.EstimatedMinutes != nil {
		t.EstimatedMinutes = *opts.EstimatedMinutes
	}
	applyTaskDefaults(&t)
	if opts.PhaseNumber != 0 {
		ph, err := e.Repo.GetPhaseByNumberTx(ctx, tx, opts.PlanID, opts.PhaseNumber)
		if err != nil {
			return domain.Task{}, err
		}
		t.PhaseID = &ph.ID
	}
	if p.StartDate != nil && p.Status == domain.PlanActive {
		if start, err := time.Parse(domain.DateLayout, *p.StartDate); err == nil {
			d := addDays(start, t.DayOffset)
			t.ScheduledDate = &d
		}
	}
	id, err := e.Repo.InsertTaskTx(ctx, tx, t)
	if err != nil {
		if repo.IsUniqueViolation(err) {
			return domain.Task{}, invalid("task_number", "task %d already exists", opts.TaskNumber)
		}
		return domain.Task{}, err
	}
	t.ID = id
	if err := e.Events.Append(ctx, tx, events.TaskCreated, opts.PlanID, events.KindTask, id, opts.ActorID, events.EventPayload{
		"task_number": t.TaskNumber,
		"title":       t.Title,
		"day_offset":  t.DayOffset,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) GetTask(ctx context.Context, planID int64, number int) (domain.Task, error) {
	return e.Repo.GetTask(ctx, planID, number)
}

// TaskListOptions filters a plan's tasks by exact date or status.
type TaskListOptions struct {
	PlanID int64
	Date   string
	Status string
	Limit  int
}

func (e Engine) ListTasks(ctx context.Context, opts TaskListOptions) ([]domain.Task, error) {
	if opts.Date != "" {
		if _, err := parseDate("date", opts.Date); err != nil {
			return nil, err
		}
	}
	if opts.Status != "" && !domain.ValidTaskStatus(opts.Status) {
		return nil, invalid("status", "unknown task status %q", opts.Status)
	}
	return e.Repo.ListTasks(ctx, repo.TaskFilters{PlanID: opts.PlanID, Date: opts.Date, Status: opts.Status, Limit: opts.Limit})
}

// TasksBetween lists tasks scheduled within [from, to], both inclusive.
func (e Engine) TasksBetween(ctx context.Context, planID int64, from, to string) ([]domain.Task, error) {
	if _, err := parseDate("from", from); err != nil {
		return nil, err
	}
	if _, err := parseDate("to", to); err != nil {
		return nil, err
	}
	return e.Repo.ListTasks(ctx, repo.TaskFilters{PlanID: planID, From: from, To: to})
}

// TaskUpdateOptions is a partial update. Nil fields are left alone.
type TaskUpdateOptions struct {
	PlanID        int64
	TaskNumber    int
	Status        *string
	Notes         *string
	ScheduledDate *string
	ActorID       string
}

func (u TaskUpdateOptions) empty() bool {
	return u.Status == nil && u.Notes == nil && u.ScheduledDate == nil
}

func (u TaskUpdateOptions) validate() error {
	if u.Status != nil && !domain.ValidTaskStatus(*u.Status) {
		return invalid("status", "unknown task status %q", *u.Status)
	}
	if u.ScheduledDate != nil {
		if _, err := parseDate("scheduled_date", *u.ScheduledDate); err != nil {
			return err
		}
	}
	return nil
}

// UpdateTask applies a partial update to one task in a single transaction.
// Any status may follow any other.
func (e Engine) UpdateTask(ctx context.Context, u TaskUpdateOptions) (domain.Task, error) {
	if err := u.validate(); err != nil {
		return domain.Task{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, u.PlanID, u.TaskNumber)
	if err != nil {
		return domain.Task{}, err
	}
	if u.empty() {
		return t, nil
	}
	p, err := e.Repo.GetPlanTx(ctx, tx, u.PlanID)
	if err != nil {
		return domain.Task{}, err
	}
	completedAt := e.now().In(e.planLocation(p)).Format(time.RFC3339)
	from := t.Status
	t = applyTaskUpdate(t, u, completedAt)
	if err := e.Repo.UpdateTaskStateTx(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	payload := events.EventPayload{"task_number": t.TaskNumber, "from": from, "to": t.Status}
	if u.ScheduledDate != nil {
		payload["scheduled_date"] = *u.ScheduledDate
	}
	if u.Notes != nil {
		payload["note"] = *u.Notes
	}
	if err := e.Events.Append(ctx, tx, events.TaskUpdated, u.PlanID, events.KindTask, t.ID, u.ActorID, payload); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// applyTaskUpdate is the single transition function for tasks. completed_at
// is stamped on entering completed and left in place on leaving it.
func applyTaskUpdate(t domain.Task, u TaskUpdateOptions, completedAt string) domain.Task {
	if status, ok := rescheduleRevivesTask(u); ok {
		t.Status = status
	}
	if u.Status != nil {
		t.Status = *u.Status
		if t.Status == domain.TaskCompleted {
			t.CompletedAt = &completedAt
		}
	}
	if u.ScheduledDate != nil {
		d := *u.ScheduledDate
		t.ScheduledDate = &d
	}
	if u.Notes != nil {
		t.Notes = appendNote(t.Notes, *u.Notes)
	}
	return t
}

// rescheduleRevivesTask: a new date without an explicit status puts the task
// back to pending.
func rescheduleRevivesTask(u TaskUpdateOptions) (string, bool) {
	if u.ScheduledDate != nil && u.Status == nil {
		return domain.TaskPending, true
	}
	return "", false
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}
