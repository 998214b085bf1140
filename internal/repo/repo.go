package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"taskline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q picks the transaction when one is given, else the pool.
func (r Repo) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

// IsUniqueViolation reports whether err came from a UNIQUE constraint.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const planColumns = `id,name,type,COALESCE(description,''),status,start_date,end_date,config_json,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (domain.Plan, error) {
	var p domain.Plan
	var start, end, cfg sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.Type, &p.Description, &p.Status, &start, &end, &cfg, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if start.Valid {
		p.StartDate = &start.String
	}
	if end.Valid {
		p.EndDate = &end.String
	}
	if cfg.Valid && cfg.String != "" {
		if err := json.Unmarshal([]byte(cfg.String), &p.Config); err != nil {
			return p, fmt.Errorf("plan %d config: %w", p.ID, err)
		}
	}
	return p, nil
}

func (r Repo) InsertPlanTx(ctx context.Context, tx *sql.Tx, p domain.Plan) (int64, error) {
	cfg, err := marshalConfig(p.Config)
	if err != nil {
		return 0, err
	}
	res, err := r.q(tx).ExecContext(ctx, `INSERT INTO plans(name,type,description,status,start_date,end_date,config_json,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		p.Name, p.Type, nullable(p.Description), p.Status, nullableStringPtr(p.StartDate), nullableStringPtr(p.EndDate), cfg, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetPlan(ctx context.Context, id int64) (domain.Plan, error) {
	return r.GetPlanTx(ctx, nil, id)
}

func (r Repo) GetPlanTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Plan, error) {
	p, err := scanPlan(r.q(tx).QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id=?`, id))
	if errors.Is(err, ErrNotFound) {
		return p, fmt.Errorf("plan %d: %w", id, ErrNotFound)
	}
	return p, err
}

// FirstActivePlan returns the lowest-id plan in active status.
func (r Repo) FirstActivePlan(ctx context.Context) (domain.Plan, error) {
	return scanPlan(r.DB.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE status='active' ORDER BY id LIMIT 1`))
}

func (r Repo) ListPlans(ctx context.Context, status string) ([]domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	query += ` ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) CountPlans(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM plans`).Scan(&n)
	return n, err
}

// PlanScheduleUpdate carries the plan columns written by lifecycle changes.
// Nil dates leave the stored value alone.
type PlanScheduleUpdate struct {
	Status    string
	StartDate *string
	EndDate   *string
	UpdatedAt string
}

func (r Repo) UpdatePlanTx(ctx context.Context, tx *sql.Tx, id int64, u PlanScheduleUpdate) error {
	fields := []string{"status=?", "updated_at=?"}
	args := []any{u.Status, u.UpdatedAt}
	if u.StartDate != nil {
		fields = append(fields, "start_date=?")
		args = append(args, *u.StartDate)
	}
	if u.EndDate != nil {
		fields = append(fields, "end_date=?")
		args = append(args, *u.EndDate)
	}
	args = append(args, id)
	res, err := r.q(tx).ExecContext(ctx, fmt.Sprintf(`UPDATE plans SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("plan %d: %w", id, ErrNotFound)
	}
	return nil
}

const phaseColumns = `id,plan_id,phase_number,name,COALESCE(description,''),start_date,end_date,status`

func scanPhase(row rowScanner) (domain.Phase, error) {
	var ph domain.Phase
	var start, end sql.NullString
	err := row.Scan(&ph.ID, &ph.PlanID, &ph.PhaseNumber, &ph.Name, &ph.Description, &start, &end, &ph.Status)
	if err == sql.ErrNoRows {
		return ph, ErrNotFound
	}
	if err != nil {
		return ph, err
	}
	if start.Valid {
		ph.StartDate = &start.String
	}
	if end.Valid {
		ph.EndDate = &end.String
	}
	return ph, nil
}

func (r Repo) InsertPhaseTx(ctx context.Context, tx *sql.Tx, ph domain.Phase) (int64, error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT INTO phases(plan_id,phase_number,name,description,start_date,end_date,status) VALUES (?,?,?,?,?,?,?)`,
		ph.PlanID, ph.PhaseNumber, ph.Name, nullable(ph.Description), nullableStringPtr(ph.StartDate), nullableStringPtr(ph.EndDate), ph.Status)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) ListPhases(ctx context.Context, planID int64) ([]domain.Phase, error) {
	return r.ListPhasesTx(ctx, nil, planID)
}

func (r Repo) ListPhasesTx(ctx context.Context, tx *sql.Tx, planID int64) ([]domain.Phase, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT `+phaseColumns+` FROM phases WHERE plan_id=? ORDER BY phase_number`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Phase
	for rows.Next() {
		ph, err := scanPhase(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, ph)
	}
	return res, rows.Err()
}

func (r Repo) GetPhaseByNumberTx(ctx context.Context, tx *sql.Tx, planID int64, number int) (domain.Phase, error) {
	ph, err := scanPhase(r.q(tx).QueryRowContext(ctx, `SELECT `+phaseColumns+` FROM phases WHERE plan_id=? AND phase_number=?`, planID, number))
	if errors.Is(err, ErrNotFound) {
		return ph, fmt.Errorf("phase %d: %w", number, ErrNotFound)
	}
	return ph, err
}

// ActivePhase returns the first phase in active status for the plan.
func (r Repo) ActivePhase(ctx context.Context, planID int64) (domain.Phase, error) {
	return scanPhase(r.DB.QueryRowContext(ctx, `SELECT `+phaseColumns+` FROM phases WHERE plan_id=? AND status='active' ORDER BY phase_number LIMIT 1`, planID))
}

func (r Repo) SetPhaseScheduleTx(ctx context.Context, tx *sql.Tx, id int64, start, end, status string) error {
	_, err := r.q(tx).ExecContext(ctx, `UPDATE phases SET start_date=?, end_date=?, status=? WHERE id=?`, start, end, status, id)
	return err
}

func marshalConfig(cfg map[string]any) (any, error) {
	if len(cfg) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal plan config: %w", err)
	}
	return string(b), nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
