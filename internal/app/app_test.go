package app_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"taskline/internal/agent"
	"taskline/internal/app"
	"taskline/internal/config"
	"taskline/internal/db"
	"taskline/internal/engine"
	"taskline/internal/inbound"
	"taskline/internal/migrate"
	"taskline/internal/repo"
)

func newServices(t *testing.T, r agent.Reasoner) *app.Services {
	t.Helper()
	conn, err := db.Open(db.Config{Path: filepath.Join(t.TempDir(), "taskline.db")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc, err := app.Build(context.Background(), conn, config.Default(), nil, app.Options{Reasoner: r, Offline: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return svc
}

type replyReasoner string

func (r replyReasoner) Respond(ctx context.Context, req agent.Request) (agent.Response, error) {
	return agent.Response{Segments: []agent.Segment{{Text: string(r)}}}, nil
}

func TestSeedIfEmptyImportsOnce(t *testing.T) {
	svc := newServices(t, nil)
	ctx := context.Background()

	p, seeded, err := app.SeedIfEmpty(ctx, svc.Engine, "", nil)
	if err != nil || !seeded {
		t.Fatalf("first seed: seeded=%v err=%v", seeded, err)
	}
	if p.Name != config.DefaultPlanTemplate().Plan.Name {
		t.Fatalf("seeded plan name = %q", p.Name)
	}
	if _, seeded, err := app.SeedIfEmpty(ctx, svc.Engine, "", nil); err != nil || seeded {
		t.Fatalf("second seed: seeded=%v err=%v", seeded, err)
	}
	plans, err := svc.Engine.ListPlans(ctx, "")
	if err != nil {
		t.Fatalf("list plans: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("expected 1 plan, got %d", len(plans))
	}
}

func TestResolvePlan(t *testing.T) {
	svc := newServices(t, nil)
	ctx := context.Background()

	if _, err := app.ResolvePlan(ctx, svc.Engine, 0, 1); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found on empty db, got %v", err)
	}
	first, err := svc.Engine.CreatePlan(ctx, engine.PlanCreateOptions{Name: "First"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := svc.Engine.CreatePlan(ctx, engine.PlanCreateOptions{Name: "Second"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	p, err := app.ResolvePlan(ctx, svc.Engine, 0, first.ID)
	if err != nil || p.ID != first.ID {
		t.Fatalf("default plan: %+v %v", p, err)
	}
	if _, err := svc.Engine.ActivatePlan(ctx, second.ID, "2026-01-05", "tester"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	p, err = app.ResolvePlan(ctx, svc.Engine, 0, first.ID)
	if err != nil || p.ID != second.ID {
		t.Fatalf("active plan should win: %+v %v", p, err)
	}
	p, err = app.ResolvePlan(ctx, svc.Engine, first.ID, 0)
	if err != nil || p.ID != first.ID {
		t.Fatalf("override should win: %+v %v", p, err)
	}
}

func TestBuildWiresInboundPipeline(t *testing.T) {
	svc := newServices(t, replyReasoner("On it."))
	ctx := context.Background()
	if _, _, err := app.SeedIfEmpty(ctx, svc.Engine, "", nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	res, err := svc.Inbound.Handle(ctx, inbound.Message{Body: "hi", From: "local", DeliveryID: "cli-1", Channel: "cli"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Reply != "On it." {
		t.Fatalf("reply = %q", res.Reply)
	}
	if svc.Notify.Sender.Name() != "disabled" {
		t.Fatalf("offline build should use the disabled sender, got %s", svc.Notify.Sender.Name())
	}
}

func TestBuildWithoutAPIKeyApologizes(t *testing.T) {
	svc := newServices(t, nil)
	ctx := context.Background()
	res, err := svc.Inbound.Handle(ctx, inbound.Message{Body: "done 1", From: "local", Channel: "cli"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Reply != inbound.ApologyReply {
		t.Fatalf("reply = %q", res.Reply)
	}
}
