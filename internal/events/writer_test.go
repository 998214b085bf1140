package events_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"taskline/internal/db"
	"taskline/internal/events"
	"taskline/internal/migrate"
)

func TestAppendRequiresTransaction(t *testing.T) {
	w := events.Writer{}
	if err := w.Append(context.Background(), nil, events.TaskUpdated, 1, events.KindTask, 1, "", nil); err == nil {
		t.Fatal("expected error without a transaction")
	}
}

func TestAppendDefaultsActorAndNullsZeroIDs(t *testing.T) {
	conn, err := db.Open(db.Config{Path: filepath.Join(t.TempDir(), "events.db")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()
	w := events.Writer{Now: func() time.Time { return time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC) }}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := w.Append(ctx, tx, events.PlanCreated, 0, events.KindPlan, 0, "", events.EventPayload{"name": "x"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("rolled back event persisted: %d rows", n)
	}

	tx, err = conn.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := w.Append(ctx, tx, events.PlanCreated, 0, events.KindPlan, 0, "", nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	var ts, actor, payload string
	var planID, entityID *int64
	row := conn.QueryRow(`SELECT ts, actor_id, payload_json, plan_id, entity_id FROM events`)
	if err := row.Scan(&ts, &actor, &payload, &planID, &entityID); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if ts != "2026-01-05T09:00:00Z" || actor != events.SystemActor || payload != "{}" {
		t.Fatalf("row = %q %q %q", ts, actor, payload)
	}
	if planID != nil || entityID != nil {
		t.Fatalf("zero ids should be NULL, got %v %v", planID, entityID)
	}
}
