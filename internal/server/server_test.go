package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"taskline/internal/agent"
	"taskline/internal/db"
	"taskline/internal/domain"
	"taskline/internal/engine"
	"taskline/internal/inbound"
	"taskline/internal/migrate"
	"taskline/internal/notify"
	"taskline/internal/repo"
)

const (
	testAdminKey  = "test-admin-key"
	testJWTSecret = "test-jwt-secret"
	testTwilio    = "twilio-token"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

type cannedReasoner string

func (c cannedReasoner) Respond(ctx context.Context, req agent.Request) (agent.Response, error) {
	return agent.Response{Segments: []agent.Segment{{Text: string(c)}}}, nil
}

func newTestServer(t *testing.T, mutate func(*Config)) (*testServer, func()) {
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
	loop := agent.Loop{Reasoner: cannedReasoner("Nice work!"), Tasks: e, ActorID: "agent"}
	cfg := Config{
		Engine:          e,
		Digests:         notify.Service{Engine: e, Sender: notify.Disabled{}, To: "+15550000", CharLimit: 1500},
		Inbound:         inbound.Processor{Repo: e.Repo, Agent: loop, Plans: e, DefaultPlanID: 1},
		DefaultPlanID:   1,
		Auth:            AuthConfig{AdminAPIKey: testAdminKey, JWTSecret: testJWTSecret},
		AgentConfigured: true,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	handler, err := New(cfg)
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

var adminAuth = map[string]string{"Authorization": "Bearer " + testAdminKey}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal %s: %v", string(data), err)
	}
	return out
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	env := decode[struct {
		Error apiErrorBody `json:"error"`
	}](t, data)
	return env.Error.Code
}

// seedPlan creates a plan with one phase and three tasks over the REST API.
func seedPlan(t *testing.T, srv *testServer) domain.Plan {
	t.Helper()
	client := srv.Client()
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/admin/plans", map[string]any{"name": "Launch"}, adminAuth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create plan status %d: %s", res.StatusCode, data)
	}
	plan := decode[domain.Plan](t, data)
	base := srv.URL + "/admin/plans/" + itoa(plan.ID)
	res, data = doJSON(t, client, http.MethodPost, base+"/phases", map[string]any{"phase_number": 1, "name": "Foundation"}, adminAuth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create phase status %d: %s", res.StatusCode, data)
	}
	for _, task := range []map[string]any{
		{"task_number": 1, "phase_number": 1, "day_offset": 0, "title": "Write copy", "priority": 1},
		{"task_number": 2, "phase_number": 1, "day_offset": 0, "title": "Call bank"},
		{"task_number": 3, "phase_number": 1, "day_offset": 3, "title": "Ship it"},
	} {
		res, data = doJSON(t, client, http.MethodPost, base+"/tasks", task, adminAuth)
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("create task status %d: %s", res.StatusCode, data)
		}
	}
	return plan
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestHealthIsOpenAndCarriesSecurityHeaders(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, data)
	}
	if got := decode[map[string]string](t, data)["status"]; got != "ok" {
		t.Fatalf("health status field = %q", got)
	}
	for k, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := res.Header.Get(k); got != want {
			t.Fatalf("%s = %q, want %q", k, got, want)
		}
	}
}

func TestReadyReportsMissingAgentKey(t *testing.T) {
	srv, cleanup := newTestServer(t, func(c *Config) { c.AgentConfigured = false })
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/health/ready", nil, nil)
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("ready status %d: %s", res.StatusCode, data)
	}
	got := decode[ReadyResponse](t, data)
	want := ReadyResponse{Status: "not_ready", Checks: map[string]string{
		"database":          "ok",
		"anthropic_api_key": "missing",
		"admin_api_key":     "set",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ready mismatch (-want +got):\n%s", diff)
	}
}

func TestAdminAuth(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()
	target := srv.URL + "/admin/plans"

	res, data := doJSON(t, client, http.MethodGet, target, nil, nil)
	if res.StatusCode != http.StatusUnauthorized || errorCode(t, data) != "unauthorized" {
		t.Fatalf("no credentials: %d %s", res.StatusCode, data)
	}
	res, _ = doJSON(t, client, http.MethodGet, target, nil, map[string]string{"Authorization": "Bearer wrong"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong key: %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, target, nil, map[string]string{"Authorization": "Basic abc"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("basic auth: %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, target, nil, adminAuth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("admin key: %d", res.StatusCode)
	}

	token, err := IssueToken(testJWTSecret, "ops", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	res, _ = doJSON(t, client, http.MethodGet, target, nil, map[string]string{"Authorization": "Bearer " + token})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("jwt: %d", res.StatusCode)
	}
	expired, err := IssueToken(testJWTSecret, "ops", time.Minute, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	res, _ = doJSON(t, client, http.MethodGet, target, nil, map[string]string{"Authorization": "Bearer " + expired})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expired jwt: %d", res.StatusCode)
	}

	if err := srv.Engine.Repo.InsertAPIKey(context.Background(), domain.APIKey{ID: "k1", Name: "ci", KeyHash: repo.HashAPIKey("secret-key")}); err != nil {
		t.Fatalf("insert api key: %v", err)
	}
	res, _ = doJSON(t, client, http.MethodGet, target, nil, map[string]string{"X-Api-Key": "secret-key"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("api key: %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, target, nil, map[string]string{"X-Api-Key": "other"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unknown api key: %d", res.StatusCode)
	}
}

func TestOpenAPIDocumentIsOpen(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/admin/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi status %d: %s", res.StatusCode, data)
	}
	var doc struct {
		Paths map[string]map[string]struct {
			Security []map[string][]string `json:"security"`
		} `json:"paths"`
		Components struct {
			Schemas map[string]struct {
				Properties map[string]any `json:"properties"`
			} `json:"schemas"`
			SecuritySchemes map[string]map[string]any `json:"securitySchemes"`
		} `json:"components"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode openapi: %v", err)
	}
	overview, ok := doc.Components.Schemas["OverviewResponse"]
	if !ok {
		t.Fatalf("OverviewResponse schema missing")
	}
	for _, field := range []string{"plan_id", "phase_number", "total", "text"} {
		if _, ok := overview.Properties[field]; !ok {
			t.Fatalf("OverviewResponse lacks %q: %v", field, overview.Properties)
		}
	}
	if got := doc.Components.SecuritySchemes["bearerAuth"]["scheme"]; got != "bearer" {
		t.Fatalf("bearerAuth scheme = %v", got)
	}
	if got := doc.Components.SecuritySchemes["apiKeyAuth"]["name"]; got != "X-Api-Key" {
		t.Fatalf("apiKeyAuth header = %v", got)
	}
	if sec := doc.Paths["/admin/plans"]["get"].Security; len(sec) != 2 {
		t.Fatalf("list plans security = %v", sec)
	}
	if sec := doc.Paths["/health"]["get"].Security; len(sec) != 0 {
		t.Fatalf("health should be unauthenticated, got %v", sec)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/admin/docs", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("docs status %d: %s", res.StatusCode, data)
	}
	if !strings.Contains(string(data), "/admin/openapi") {
		t.Fatalf("docs page does not reference the document")
	}
}

func TestPlanLifecycleOverAPI(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()
	plan := seedPlan(t, srv)
	base := srv.URL + "/admin/plans/" + itoa(plan.ID)

	res, data := doJSON(t, client, http.MethodPost, base+"/activate", map[string]any{"start_date": "01/05/2026"}, adminAuth)
	if res.StatusCode != http.StatusBadRequest || errorCode(t, data) != "bad_request" {
		t.Fatalf("bad date: %d %s", res.StatusCode, data)
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/activate", map[string]any{"start_date": "2026-01-05"}, adminAuth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("activate status %d: %s", res.StatusCode, data)
	}
	if diff := cmp.Diff(ActivationResponse{Status: "activated", TasksScheduled: 3}, decode[ActivationResponse](t, data)); diff != "" {
		t.Fatalf("activation mismatch (-want +got):\n%s", diff)
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/tasks?date=2026-01-05", nil, adminAuth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list tasks status %d: %s", res.StatusCode, data)
	}
	var titles []string
	for _, task := range decode[TaskList](t, data).Tasks {
		titles = append(titles, task.Title)
	}
	if diff := cmp.Diff([]string{"Write copy", "Call bank"}, titles); diff != "" {
		t.Fatalf("tasks on start date (-want +got):\n%s", diff)
	}

	res, data = doJSON(t, client, http.MethodPatch, base+"/tasks/2", map[string]any{"status": "skipped"}, adminAuth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch status %d: %s", res.StatusCode, data)
	}
	res, data = doJSON(t, client, http.MethodPatch, base+"/tasks/2", map[string]any{"scheduled_date": "2026-01-09"}, adminAuth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch date %d: %s", res.StatusCode, data)
	}
	task := decode[domain.Task](t, data)
	if task.Status != domain.TaskPending || task.ScheduledDate == nil || *task.ScheduledDate != "2026-01-09" {
		t.Fatalf("reschedule should revive task: %+v", task)
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/tasks/99", nil, adminAuth)
	if res.StatusCode != http.StatusNotFound || errorCode(t, data) != "not_found" {
		t.Fatalf("missing task: %d %s", res.StatusCode, data)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/admin/plans/42", nil, adminAuth)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing plan: %d", res.StatusCode)
	}
	res, data = doJSON(t, client, http.MethodGet, base+"/tasks?date=tomorrow", nil, adminAuth)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad filter date: %d %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/stats", nil, adminAuth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("stats status %d: %s", res.StatusCode, data)
	}
	stats := decode[domain.PlanStats](t, data)
	if stats.TotalTasks != 3 || stats.ByStatus[domain.TaskPending] != 3 {
		t.Fatalf("stats = %+v", stats)
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/overview", nil, adminAuth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("overview status %d: %s", res.StatusCode, data)
	}
	ov := decode[OverviewResponse](t, data)
	if ov.PlanID != plan.ID || ov.PhaseNumber != 1 || ov.Total != 3 {
		t.Fatalf("overview counts = %+v", ov)
	}
	if ov.PhaseName != "Foundation" || !strings.HasPrefix(ov.Text, "Launch Overview\nCurrent phase: 1 - Foundation") {
		t.Fatalf("overview = %+v", ov)
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/events?limit=1", nil, adminAuth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, data)
	}
	evts := decode[EventList](t, data).Events
	if len(evts) != 1 || evts[0].Type != "task.updated" || evts[0].ActorID != "admin" {
		t.Fatalf("events = %+v", evts)
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/archive", nil, adminAuth)
	if res.StatusCode != http.StatusOK || decode[domain.Plan](t, data).Status != domain.PlanArchived {
		t.Fatalf("archive: %d %s", res.StatusCode, data)
	}
}

func TestPlanScopedRoutesUsePathID(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()
	ctx := context.Background()

	decoy, err := srv.Engine.CreatePlan(ctx, engine.PlanCreateOptions{Name: "Decoy"})
	if err != nil {
		t.Fatalf("create decoy: %v", err)
	}
	target, err := srv.Engine.CreatePlan(ctx, engine.PlanCreateOptions{Name: "Target"})
	if err != nil {
		t.Fatalf("create target: %v", err)
	}
	base := srv.URL + "/admin/plans/" + itoa(target.ID)

	res, data := doJSON(t, client, http.MethodPost, base+"/phases", map[string]any{"phase_number": 1, "name": "Only"}, adminAuth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create phase status %d: %s", res.StatusCode, data)
	}
	if got := decode[domain.Phase](t, data).PlanID; got != target.ID {
		t.Fatalf("phase plan_id = %d, want %d", got, target.ID)
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/tasks", map[string]any{"task_number": 1, "phase_number": 1, "day_offset": 1, "title": "First"}, adminAuth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task status %d: %s", res.StatusCode, data)
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/activate", map[string]any{"start_date": "2026-01-05"}, adminAuth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("activate status %d: %s", res.StatusCode, data)
	}
	if got := decode[ActivationResponse](t, data).TasksScheduled; got != 1 {
		t.Fatalf("tasks scheduled = %d, want 1", got)
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/tasks", nil, adminAuth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list tasks status %d: %s", res.StatusCode, data)
	}
	tasks := decode[TaskList](t, data).Tasks
	if len(tasks) != 1 || tasks[0].PlanID != target.ID || deref(tasks[0].ScheduledDate) != "2026-01-06" {
		t.Fatalf("tasks = %+v", tasks)
	}

	res, data = doJSON(t, client, http.MethodPatch, base+"/tasks/1", map[string]any{"status": "completed"}, adminAuth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch status %d: %s", res.StatusCode, data)
	}
	if got := decode[domain.Task](t, data); got.PlanID != target.ID || got.Status != domain.TaskCompleted {
		t.Fatalf("patched task = %+v", got)
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/events?limit=1", nil, adminAuth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, data)
	}
	evs := decode[EventList](t, data).Events
	if len(evs) != 1 || evs[0].PlanID == nil || *evs[0].PlanID != target.ID {
		t.Fatalf("events = %+v", evs)
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/send-now?date=2026-01-06", nil, adminAuth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("send-now status %d: %s", res.StatusCode, data)
	}
	if got := decode[SendResponse](t, data).Detail; got != "Sent 1 tasks (sid: dev_mode)" {
		t.Fatalf("send detail = %q", got)
	}

	p, err := srv.Engine.GetPlan(ctx, decoy.ID)
	if err != nil {
		t.Fatalf("get decoy: %v", err)
	}
	if p.Status != domain.PlanDraft || p.StartDate != nil {
		t.Fatalf("decoy plan changed: %+v", p)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func TestCurrentPlanRoutes(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()
	seedPlan(t, srv)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/admin/activate", map[string]any{"start_date": "2026-01-05"}, adminAuth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("activate current: %d %s", res.StatusCode, data)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/admin/tasks/3", nil, adminAuth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get current task: %d %s", res.StatusCode, data)
	}
	task := decode[domain.Task](t, data)
	if task.ScheduledDate == nil || *task.ScheduledDate != "2026-01-08" {
		t.Fatalf("task 3 date = %v", task.ScheduledDate)
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/admin/send-now", nil, adminAuth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("send now: %d %s", res.StatusCode, data)
	}
	want := SendResponse{Status: "sent", Detail: "Sent 2 tasks (sid: dev_mode)"}
	if diff := cmp.Diff(want, decode[SendResponse](t, data)); diff != "" {
		t.Fatalf("send mismatch (-want +got):\n%s", diff)
	}
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/admin/send-now?date=soon", nil, adminAuth)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("send now with bad date: %d", res.StatusCode)
	}
}

func TestCurrentPlanRoutesWithoutPlan(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/admin/tasks", nil, adminAuth)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 without plans, got %d %s", res.StatusCode, data)
	}
}

func twilioSignature(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func postForm(t *testing.T, client *http.Client, target string, form url.Values, headers map[string]string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(res.Body)
	return res, string(data)
}

func TestSMSWebhookRepliesOnceWithTwiML(t *testing.T) {
	srv, cleanup := newTestServer(t, func(c *Config) {
		c.Twilio = TwilioWebhookConfig{AuthToken: testTwilio, PublicURL: "https://tasks.example.test"}
	})
	defer cleanup()
	seedPlan(t, srv)
	form := url.Values{"Body": {"done with 1"}, "From": {"+15551234"}, "MessageSid": {"SM1"}}
	sig := twilioSignature(testTwilio, "https://tasks.example.test/webhook/sms", form)

	res, body := postForm(t, srv.Client(), srv.URL+"/webhook/sms", form, map[string]string{"X-Twilio-Signature": sig})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("webhook status %d: %s", res.StatusCode, body)
	}
	want := `<?xml version="1.0" encoding="UTF-8"?><Response><Message>Nice work!</Message></Response>`
	if body != want {
		t.Fatalf("twiml = %q", body)
	}

	res, body = postForm(t, srv.Client(), srv.URL+"/webhook/sms", form, map[string]string{"X-Twilio-Signature": sig})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("duplicate status %d", res.StatusCode)
	}
	if body != `<?xml version="1.0" encoding="UTF-8"?><Response><Message></Message></Response>` {
		t.Fatalf("duplicate twiml = %q", body)
	}

	n, err := srv.Engine.Repo.CountConversations(context.Background(), domain.DirectionInbound)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 inbound row, got %d", n)
	}

	res, _ = postForm(t, srv.Client(), srv.URL+"/webhook/sms", form, map[string]string{"X-Twilio-Signature": "bogus"})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("bad signature status %d", res.StatusCode)
	}
}

func TestTwiMLEscapesText(t *testing.T) {
	got := string(TwiML(`Done <1> & "2"`))
	want := `<?xml version="1.0" encoding="UTF-8"?><Response><Message>Done &lt;1&gt; &amp; &#34;2&#34;</Message></Response>`
	if got != want {
		t.Fatalf("twiml = %q", got)
	}
}
