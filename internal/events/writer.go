package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Lifecycle event types.
const (
	PlanCreated   = "plan.created"
	PlanImported  = "plan.imported"
	PlanActivated = "plan.activated"
	PlanCompleted = "plan.completed"
	PlanArchived  = "plan.archived"
	PhaseCreated  = "phase.created"
	TaskCreated   = "task.created"
	TaskUpdated   = "task.updated"
)

// Entity kinds.
const (
	KindPlan  = "plan"
	KindPhase = "phase"
	KindTask  = "task"
)

// SystemActor is recorded when the caller gives no actor.
const SystemActor = "system"

type EventPayload map[string]any

// Writer appends to the events table. It never opens its own transaction:
// an event commits or rolls back with the change it describes.
type Writer struct {
	Now func() time.Time
}

func (w Writer) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType string, planID int64, entityKind string, entityID int64, actorID string, payload EventPayload) error {
	if tx == nil {
		return fmt.Errorf("append %s: transaction required", evtType)
	}
	if payload == nil {
		payload = EventPayload{}
	}
	if actorID == "" {
		actorID = SystemActor
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", evtType, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO events(ts,type,plan_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		w.now().UTC().Format(time.RFC3339), evtType, optionalID(planID), entityKind, optionalID(entityID), actorID, string(data))
	if err != nil {
		return fmt.Errorf("append %s: %w", evtType, err)
	}
	return nil
}

// optionalID stores zero ids as NULL.
func optionalID(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
