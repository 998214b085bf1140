package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"taskline/internal/domain"
)

// ListEvents returns the newest events first, optionally scoped to one plan.
func (r Repo) ListEvents(ctx context.Context, planID int64, limit int) ([]domain.Event, error) {
	query := `SELECT id,ts,type,plan_id,entity_kind,entity_id,actor_id,payload_json FROM events`
	var args []any
	if planID != 0 {
		query += ` WHERE plan_id=?`
		args = append(args, planID)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var plan, entity sql.NullInt64
		var payload string
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &plan, &e.EntityKind, &entity, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if plan.Valid {
			id := plan.Int64
			e.PlanID = &id
		}
		if entity.Valid {
			id := entity.Int64
			e.EntityID = &id
		}
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
