package tasklinesdk

import (
	"context"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"taskline/internal/db"
	"taskline/internal/engine"
	"taskline/internal/migrate"
	"taskline/internal/notify"
	"taskline/internal/server"
)

const testKey = "sdk-admin-key"

func startServer(t *testing.T) (string, engine.Engine) {
	t.Helper()
	conn, err := db.Open(db.Config{Path: filepath.Join(t.TempDir(), "taskline.db")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, time.UTC)
	e.Now = func() time.Time { return time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC) }
	handler, err := server.New(server.Config{
		Engine:  e,
		Digests: notify.Service{Engine: e, Sender: notify.Disabled{}, To: "+15550000", CharLimit: 1500},
		Auth:    server.AuthConfig{AdminAPIKey: testKey},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		conn.Close()
	})
	return "http://" + ln.Addr().String() + "/admin", e
}

func TestClientAgainstServer(t *testing.T) {
	base, e := startServer(t)
	ctx := context.Background()
	c := New(base, 0)
	c.BearerToken = testKey

	plan, err := c.CreatePlan(ctx, "Launch", "", "")
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	if plan.Status != "draft" || plan.Type != "general" {
		t.Fatalf("new plan = %+v", plan)
	}
	for i, offset := range []int{0, 0, 2} {
		if _, err := e.CreateTask(ctx, engine.TaskCreateOptions{PlanID: plan.ID, TaskNumber: i + 1, DayOffset: offset, Title: "Task"}); err != nil {
			t.Fatalf("create task: %v", err)
		}
	}

	c.PlanID = plan.ID
	n, err := c.ActivatePlan(ctx, "2026-01-05")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if n != 3 {
		t.Fatalf("tasks scheduled = %d, want 3", n)
	}

	// From here on the client follows the server's current plan.
	c.PlanID = 0
	today, err := c.Tasks(ctx, "2026-01-05")
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	var numbers []int
	for _, task := range today {
		numbers = append(numbers, task.TaskNumber)
	}
	if diff := cmp.Diff([]int{1, 2}, numbers); diff != "" {
		t.Fatalf("today's tasks mismatch (-want +got):\n%s", diff)
	}

	done := "completed"
	task, err := c.UpdateTask(ctx, 1, TaskUpdate{Status: &done})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if task.Status != "completed" || task.CompletedAt == nil {
		t.Fatalf("updated task = %+v", task)
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalTasks != 3 || stats.ByStatus["completed"] != 1 || stats.ByStatus["pending"] != 2 {
		t.Fatalf("stats = %+v", stats)
	}

	detail, err := c.SendNow(ctx, "")
	if err != nil {
		t.Fatalf("send now: %v", err)
	}
	if detail != "Sent 2 tasks (sid: dev_mode)" {
		t.Fatalf("send detail = %q", detail)
	}

	evs, err := c.Events(ctx, 1)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evs) != 1 || evs[0].Type != "task.updated" {
		t.Fatalf("latest events = %+v", evs)
	}
}

func TestClientReportsErrorEnvelope(t *testing.T) {
	base, _ := startServer(t)
	ctx := context.Background()

	c := New(base, 42)
	c.APIKey = "not-a-key"
	if _, err := c.Stats(ctx); err == nil {
		t.Fatal("expected unauthorized error")
	} else {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
			t.Fatalf("err = %v", err)
		}
	}

	c.APIKey = ""
	c.BearerToken = testKey
	_, err := c.GetTask(ctx, 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "not_found" {
		t.Fatalf("api error = %+v", apiErr)
	}
}
