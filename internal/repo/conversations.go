package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"taskline/internal/domain"
)

const conversationColumns = `id,plan_id,direction,channel,COALESCE(address,''),content,delivery_id,interpretation,actions_json,created_at`

func scanConversation(row rowScanner) (domain.Conversation, error) {
	var c domain.Conversation
	var planID sql.NullInt64
	var delivery, interp, actions sql.NullString
	err := row.Scan(&c.ID, &planID, &c.Direction, &c.Channel, &c.Address, &c.Content, &delivery, &interp, &actions, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	if planID.Valid {
		id := planID.Int64
		c.PlanID = &id
	}
	if delivery.Valid {
		c.DeliveryID = &delivery.String
	}
	if interp.Valid {
		c.Interpretation = &interp.String
	}
	if actions.Valid {
		c.ActionsJSON = &actions.String
	}
	return c, nil
}

// InsertConversation stores an audit row and returns its id. An empty
// delivery id is stored as NULL so it never participates in deduplication.
func (r Repo) InsertConversation(ctx context.Context, c domain.Conversation) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO conversations(plan_id,direction,channel,address,content,delivery_id,interpretation,actions_json,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		nullableInt64Ptr(c.PlanID), c.Direction, c.Channel, nullable(c.Address), c.Content, nullableStringPtr(c.DeliveryID),
		nullableStringPtr(c.Interpretation), nullableStringPtr(c.ActionsJSON), c.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetConversationByDeliveryID looks up the audit row for an external delivery id.
func (r Repo) GetConversationByDeliveryID(ctx context.Context, deliveryID string) (domain.Conversation, error) {
	if strings.TrimSpace(deliveryID) == "" {
		return domain.Conversation{}, ErrNotFound
	}
	return scanConversation(r.DB.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE delivery_id=?`, deliveryID))
}

func (r Repo) GetConversation(ctx context.Context, id int64) (domain.Conversation, error) {
	c, err := scanConversation(r.DB.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id=?`, id))
	if err == ErrNotFound {
		return c, fmt.Errorf("conversation %d: %w", id, ErrNotFound)
	}
	return c, err
}

// SetConversationActions tags one audit row, addressed by id, with the
// serialized tool actions it caused.
func (r Repo) SetConversationActions(ctx context.Context, id int64, actionsJSON string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE conversations SET actions_json=? WHERE id=?`, actionsJSON, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation %d: %w", id, ErrNotFound)
	}
	return nil
}

type ConversationFilters struct {
	PlanID    int64
	Direction string
	Limit     int
}

// ListConversations returns audit rows newest first.
func (r Repo) ListConversations(ctx context.Context, f ConversationFilters) ([]domain.Conversation, error) {
	var clauses []string
	var args []any
	if f.PlanID != 0 {
		clauses = append(clauses, "plan_id=?")
		args = append(args, f.PlanID)
	}
	if f.Direction != "" {
		clauses = append(clauses, "direction=?")
		args = append(args, f.Direction)
	}
	query := `SELECT ` + conversationColumns + ` FROM conversations`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) CountConversations(ctx context.Context, direction string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE direction=?`, direction).Scan(&n)
	return n, err
}
