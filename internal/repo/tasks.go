package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskline/internal/domain"
)

const taskColumns = `id,plan_id,phase_id,task_number,day_offset,scheduled_date,title,COALESCE(description,''),category,execution_type,priority,estimated_minutes,status,COALESCE(notes,''),completed_at`

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var phaseID sql.NullInt64
	var scheduled, completedAt sql.NullString
	err := row.Scan(&t.ID, &t.PlanID, &phaseID, &t.TaskNumber, &t.DayOffset, &scheduled, &t.Title, &t.Description,
		&t.Category, &t.ExecutionType, &t.Priority, &t.EstimatedMinutes, &t.Status, &t.Notes, &completedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if phaseID.Valid {
		id := phaseID.Int64
		t.PhaseID = &id
	}
	if scheduled.Valid {
		t.ScheduledDate = &scheduled.String
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.String
	}
	return t, nil
}

func (r Repo) InsertTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) (int64, error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT INTO tasks(plan_id,phase_id,task_number,day_offset,scheduled_date,title,description,category,execution_type,priority,estimated_minutes,status,notes,completed_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.PlanID, nullableInt64Ptr(t.PhaseID), t.TaskNumber, t.DayOffset, nullableStringPtr(t.ScheduledDate), t.Title, nullable(t.Description),
		t.Category, t.ExecutionType, t.Priority, t.EstimatedMinutes, t.Status, nullable(t.Notes), nullableStringPtr(t.CompletedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetTask(ctx context.Context, planID int64, number int) (domain.Task, error) {
	return r.GetTaskTx(ctx, nil, planID, number)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, planID int64, number int) (domain.Task, error) {
	t, err := scanTask(r.q(tx).QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE plan_id=? AND task_number=?`, planID, number))
	if errors.Is(err, ErrNotFound) {
		return t, fmt.Errorf("task %d: %w", number, ErrNotFound)
	}
	return t, err
}

// UpdateTaskStateTx writes the mutable lifecycle columns of a task.
func (r Repo) UpdateTaskStateTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE tasks SET status=?, notes=?, scheduled_date=?, completed_at=? WHERE id=?`,
		t.Status, nullable(t.Notes), nullableStringPtr(t.ScheduledDate), nullableStringPtr(t.CompletedAt), t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %d: %w", t.TaskNumber, ErrNotFound)
	}
	return nil
}

// ScheduleTaskTx sets the activation-derived date and resets status.
func (r Repo) ScheduleTaskTx(ctx context.Context, tx *sql.Tx, id int64, date string) error {
	_, err := r.q(tx).ExecContext(ctx, `UPDATE tasks SET scheduled_date=?, status='pending' WHERE id=?`, date, id)
	return err
}

type TaskFilters struct {
	PlanID int64
	Date   string
	From   string
	To     string
	Status string
	Limit  int
}

// ListTasks filters by plan, exact date, date range and status. Exact-date
// listings sort by priority first, everything else by date first.
func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	return r.ListTasksTx(ctx, nil, f)
}

func (r Repo) ListTasksTx(ctx context.Context, tx *sql.Tx, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.PlanID != 0 {
		clauses = append(clauses, "plan_id=?")
		args = append(args, f.PlanID)
	}
	if f.Date != "" {
		clauses = append(clauses, "scheduled_date=?")
		args = append(args, f.Date)
	}
	if f.From != "" {
		clauses = append(clauses, "scheduled_date>=?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "scheduled_date<=?")
		args = append(args, f.To)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	order := ` ORDER BY scheduled_date, priority, task_number`
	if f.Date != "" {
		order = ` ORDER BY priority, task_number`
	}
	query := `SELECT ` + taskColumns + ` FROM tasks ` + where + order
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.q(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// TaskIDOffsetsTx returns id and day_offset for every task of the plan.
func (r Repo) TaskIDOffsetsTx(ctx context.Context, tx *sql.Tx, planID int64) (map[int64]int, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT id, day_offset FROM tasks WHERE plan_id=?`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[int64]int{}
	for rows.Next() {
		var id int64
		var off int
		if err := rows.Scan(&id, &off); err != nil {
			return nil, err
		}
		res[id] = off
	}
	return res, rows.Err()
}

// TaskCounts is the one-pass aggregate used by overview and stats.
type TaskCounts struct {
	Total       int
	Completed   int
	Skipped     int
	Pending     int
	InProgress  int
	Rescheduled int
	Overdue     int
}

// CountTasks aggregates task statuses for a plan; overdue counts pending
// tasks scheduled strictly before today.
func (r Repo) CountTasks(ctx context.Context, planID int64, today string) (TaskCounts, error) {
	var c TaskCounts
	err := r.DB.QueryRowContext(ctx, `SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN status='completed' THEN 1 ELSE 0 END),0),
	COALESCE(SUM(CASE WHEN status='skipped' THEN 1 ELSE 0 END),0),
	COALESCE(SUM(CASE WHEN status='pending' THEN 1 ELSE 0 END),0),
	COALESCE(SUM(CASE WHEN status='in_progress' THEN 1 ELSE 0 END),0),
	COALESCE(SUM(CASE WHEN status='rescheduled' THEN 1 ELSE 0 END),0),
	COALESCE(SUM(CASE WHEN status='pending' AND scheduled_date < ? THEN 1 ELSE 0 END),0)
FROM tasks WHERE plan_id=?`, today, planID).
		Scan(&c.Total, &c.Completed, &c.Skipped, &c.Pending, &c.InProgress, &c.Rescheduled, &c.Overdue)
	return c, err
}

func (r Repo) CountTasksByCategory(ctx context.Context, planID int64) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT category, COUNT(*) FROM tasks WHERE plan_id=? GROUP BY category`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		res[cat] = n
	}
	return res, rows.Err()
}
