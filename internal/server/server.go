package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"taskline/internal/agent"
	"taskline/internal/domain"
	"taskline/internal/engine"
	"taskline/internal/inbound"
	"taskline/internal/notify"
	"taskline/internal/repo"
	"taskline/internal/telemetry"
)

// Digests sends the daily digest and the weekly review on demand.
type Digests interface {
	SendDailyTasks(ctx context.Context, planID int64, date string) (string, error)
	SendWeeklyReview(ctx context.Context, planID int64) (string, error)
}

// MessageHandler runs one inbound message through the audit and agent pipeline.
type MessageHandler interface {
	Handle(ctx context.Context, msg inbound.Message) (inbound.Result, error)
}

// Config for the HTTP handler.
type Config struct {
	Engine        engine.Engine
	Digests       Digests
	Inbound       MessageHandler
	DefaultPlanID int64
	BasePath      string
	Auth          AuthConfig
	Twilio        TwilioWebhookConfig
	// AgentConfigured is reported by the readiness check.
	AgentConfigured bool
	Logger          *zap.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"task 7 not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"field\":\"start_date\"}"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the admin API, the health checks and
// the SMS webhook.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/admin"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimRight(basePath, "/")
	logger := telemetry.OrNop(cfg.Logger)
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = logger
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(securityHeaders)
	router.Use(requestLogger(logger))
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	router.Use(currentPlanRoutes(basePath, cfg.Engine, cfg.DefaultPlanID))

	hcfg := huma.DefaultConfig("Taskline Admin API", "1.0.0")
	hcfg.OpenAPIPath = basePath + "/openapi"
	hcfg.DocsPath = basePath + "/docs"
	hcfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
		"apiKeyAuth": {Type: "apiKey", In: "header", Name: "X-Api-Key"},
	}
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)
	group.UseSimpleModifier(func(op *huma.Operation) {
		op.Security = adminSecurity
	})

	registerHealth(api, cfg)
	registerPlans(group, cfg.Engine)
	registerPhases(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerReports(group, cfg.Engine)
	registerTriggers(group, cfg.Engine, cfg.Digests)
	registerConversations(group, cfg.Engine)
	registerWebhooks(router, cfg, logger)

	return router, nil
}

var adminSecurity = []map[string][]string{
	{"bearerAuth": {}},
	{"apiKeyAuth": {}},
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve *engine.ValidationError
	if errors.As(err, &ve) {
		var details map[string]any
		if ve.Field != "" {
			details = map[string]any{"field": ve.Field}
		}
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), details)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	var de *notify.DeliveryError
	if errors.As(err, &de) {
		return newAPIError(http.StatusBadGateway, "delivery_failed", err.Error(), map[string]any{"channel": de.Channel})
	}
	var xe *agent.ExternalServiceError
	if errors.As(err, &xe) {
		return newAPIError(http.StatusBadGateway, "external_service_failed", err.Error(), map[string]any{"service": xe.Service})
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// planScopedRoutes are the sub-resources that also exist without a plan id,
// acting on the current plan.
var planScopedRoutes = []string{"/tasks", "/activate", "/phases", "/stats", "/overview", "/events", "/send-now", "/send-review"}

// currentPlanRoutes rewrites /admin/tasks... to /admin/plans/{current}/tasks...
func currentPlanRoutes(basePath string, e engine.Engine, defaultPlanID int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rest, ok := strings.CutPrefix(r.URL.Path, basePath)
			if !ok || !isPlanScoped(rest) {
				next.ServeHTTP(w, r)
				return
			}
			p, err := e.CurrentPlan(r.Context(), defaultPlanID)
			if err != nil {
				respondStatusError(w, handleError(err))
				return
			}
			r.URL.Path = basePath + "/plans/" + strconv.FormatInt(p.ID, 10) + rest
			r.URL.RawPath = ""
			next.ServeHTTP(w, r)
		})
	}
}

func isPlanScoped(rest string) bool {
	for _, route := range planScopedRoutes {
		if rest == route || strings.HasPrefix(rest, route+"/") {
			return true
		}
	}
	return false
}

func registerHealth(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Liveness check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "health-ready",
		Method:      http.MethodGet,
		Path:        "/health/ready",
		Summary:     "Readiness check",
		Description: "Checks the database and the agent and admin credentials. Returns 503 when not ready.",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Status int
		Body   ReadyResponse `json:"body"`
	}, error) {
		checks := map[string]string{}
		ok := true
		var one int
		if err := cfg.Engine.DB.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
			checks["database"] = "fail: " + err.Error()
			ok = false
		} else {
			checks["database"] = "ok"
		}
		if cfg.AgentConfigured {
			checks["anthropic_api_key"] = "set"
		} else {
			checks["anthropic_api_key"] = "missing"
			ok = false
		}
		if cfg.Auth.AdminAPIKey != "" {
			checks["admin_api_key"] = "set"
		} else {
			checks["admin_api_key"] = "missing"
		}
		out := &struct {
			Status int
			Body   ReadyResponse `json:"body"`
		}{Status: http.StatusOK, Body: ReadyResponse{Status: "ready", Checks: checks}}
		if !ok {
			out.Status = http.StatusServiceUnavailable
			out.Body.Status = "not_ready"
		}
		return out, nil
	})
}

type planPath struct {
	ID int64 `path:"id" minimum:"1"`
}

func registerPlans(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-plan",
		Method:        http.MethodPost,
		Path:          "/plans",
		Summary:       "Create plan",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreatePlanRequest `json:"body"`
	}) (*struct {
		Body domain.Plan `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreatePlan(ctx, engine.PlanCreateOptions{
			Name:        input.Body.Name,
			Type:        input.Body.Type,
			Description: input.Body.Description,
			Config:      input.Body.Config,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Plan `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-plans",
		Method:      http.MethodGet,
		Path:        "/plans",
		Summary:     "List plans",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
	}) (*struct {
		Body PlanList `json:"body"`
	}, error) {
		items, err := e.ListPlans(ctx, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PlanList `json:"body"`
		}{Body: PlanList{Plans: emptyIfNil(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-plan",
		Method:      http.MethodGet,
		Path:        "/plans/{id}",
		Summary:     "Get plan",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *planPath) (*struct {
		Body domain.Plan `json:"body"`
	}, error) {
		p, err := e.GetPlan(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Plan `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "activate-plan",
		Method:      http.MethodPost,
		Path:        "/plans/{id}/activate",
		Summary:     "Activate plan",
		Description: "Schedules every task at start_date + day_offset and lays out the phase windows.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id" minimum:"1"`
		Body ActivatePlanRequest `json:"body"`
	}) (*struct {
		Body ActivationResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.ActivatePlan(ctx, input.ID, input.Body.StartDate, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActivationResponse `json:"body"`
		}{Body: ActivationResponse{Status: "activated", TasksScheduled: n}}, nil
	})

	for _, transition := range []struct {
		id, verb string
		apply    func(context.Context, int64, string) (domain.Plan, error)
	}{
		{"complete-plan", "complete", e.CompletePlan},
		{"archive-plan", "archive", e.ArchivePlan},
	} {
		apply := transition.apply
		huma.Register(api, huma.Operation{
			OperationID: transition.id,
			Method:      http.MethodPost,
			Path:        "/plans/{id}/" + transition.verb,
			Summary:     strings.ToUpper(transition.verb[:1]) + transition.verb[1:] + " plan",
			Errors:      []int{http.StatusNotFound},
		}, func(ctx context.Context, input *planPath) (*struct {
			Body domain.Plan `json:"body"`
		}, error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			p, err := apply(ctx, input.ID, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body domain.Plan `json:"body"`
			}{Body: p}, nil
		})
	}
}

func registerPhases(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-phases",
		Method:      http.MethodGet,
		Path:        "/plans/{id}/phases",
		Summary:     "List phases",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *planPath) (*struct {
		Body PhaseList `json:"body"`
	}, error) {
		if _, err := e.GetPlan(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListPhases(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PhaseList `json:"body"`
		}{Body: PhaseList{Phases: emptyIfNil(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-phase",
		Method:        http.MethodPost,
		Path:          "/plans/{id}/phases",
		Summary:       "Create phase",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id" minimum:"1"`
		Body CreatePhaseRequest `json:"body"`
	}) (*struct {
		Body domain.Phase `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ph, err := e.CreatePhase(ctx, engine.PhaseCreateOptions{
			PlanID:      input.ID,
			PhaseNumber: input.Body.PhaseNumber,
			Name:        input.Body.Name,
			Description: input.Body.Description,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Phase `json:"body"`
		}{Body: ph}, nil
	})
}

type taskPath struct {
	ID         int64 `path:"id" minimum:"1"`
	TaskNumber int   `path:"task_number" minimum:"1"`
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/plans/{id}/tasks",
		Summary:     "List tasks",
		Description: "Filter by exact scheduled date and/or status.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     int64  `path:"id" minimum:"1"`
		Date   string `query:"date" example:"2026-01-05"`
		Status string `query:"status"`
		Limit  int    `query:"limit" minimum:"0"`
	}) (*struct {
		Body TaskList `json:"body"`
	}, error) {
		if _, err := e.GetPlan(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListTasks(ctx, engine.TaskListOptions{PlanID: input.ID, Date: input.Date, Status: input.Status, Limit: input.Limit})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskList `json:"body"`
		}{Body: TaskList{Tasks: emptyIfNil(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/plans/{id}/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id" minimum:"1"`
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b := input.Body
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			PlanID:           input.ID,
			PhaseNumber:      b.PhaseNumber,
			TaskNumber:       b.TaskNumber,
			DayOffset:        b.DayOffset,
			Title:            b.Title,
			Description:      b.Description,
			Category:         b.Category,
			ExecutionType:    b.ExecutionType,
			Priority:         b.Priority,
			EstimatedMinutes: b.EstimatedMinutes,
			ActorID:          actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/plans/{id}/tasks/{task_number}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		t, err := e.GetTask(ctx, input.ID, input.TaskNumber)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/plans/{id}/tasks/{task_number}",
		Summary:     "Update task",
		Description: "Partial update. A scheduled_date without a status puts the task back to pending.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID         int64             `path:"id" minimum:"1"`
		TaskNumber int               `path:"task_number" minimum:"1"`
		Body       UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.UpdateTask(ctx, engine.TaskUpdateOptions{
			PlanID:        input.ID,
			TaskNumber:    input.TaskNumber,
			Status:        input.Body.Status,
			Notes:         input.Body.Notes,
			ScheduledDate: input.Body.ScheduledDate,
			ActorID:       actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})
}

func registerReports(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "plan-stats",
		Method:      http.MethodGet,
		Path:        "/plans/{id}/stats",
		Summary:     "Plan statistics",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *planPath) (*struct {
		Body domain.PlanStats `json:"body"`
	}, error) {
		st, err := e.PlanStats(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.PlanStats `json:"body"`
		}{Body: st}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "plan-overview",
		Method:      http.MethodGet,
		Path:        "/plans/{id}/overview",
		Summary:     "Plan overview",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *planPath) (*struct {
		Body OverviewResponse `json:"body"`
	}, error) {
		ov, err := e.PlanOverview(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OverviewResponse `json:"body"`
		}{Body: newOverviewResponse(ov)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "plan-events",
		Method:      http.MethodGet,
		Path:        "/plans/{id}/events",
		Summary:     "Plan event log",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID    int64 `path:"id" minimum:"1"`
		Limit int   `query:"limit" default:"50" minimum:"1" maximum:"500"`
	}) (*struct {
		Body EventList `json:"body"`
	}, error) {
		if _, err := e.GetPlan(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListEvents(ctx, input.ID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventList `json:"body"`
		}{Body: EventList{Events: emptyIfNil(items)}}, nil
	})
}

func registerTriggers(api huma.API, e engine.Engine, digests Digests) {
	huma.Register(api, huma.Operation{
		OperationID: "send-now",
		Method:      http.MethodPost,
		Path:        "/plans/{id}/send-now",
		Summary:     "Send the daily digest now",
		Description: "Sends the digest for date, or for today in the plan's timezone.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		ID   int64  `path:"id" minimum:"1"`
		Date string `query:"date" example:"2026-01-05"`
	}) (*struct {
		Body SendResponse `json:"body"`
	}, error) {
		if digests == nil {
			return nil, newAPIError(http.StatusServiceUnavailable, "unavailable", "notifications are not configured", nil)
		}
		if input.Date != "" {
			if _, err := time.Parse(domain.DateLayout, input.Date); err != nil {
				return nil, handleError(&engine.ValidationError{Field: "date", Message: "must be YYYY-MM-DD"})
			}
		}
		detail, err := digests.SendDailyTasks(ctx, input.ID, input.Date)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SendResponse `json:"body"`
		}{Body: SendResponse{Status: "sent", Detail: detail}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "send-review",
		Method:      http.MethodPost,
		Path:        "/plans/{id}/send-review",
		Summary:     "Send the weekly review now",
		Errors:      []int{http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *planPath) (*struct {
		Body SendResponse `json:"body"`
	}, error) {
		if digests == nil {
			return nil, newAPIError(http.StatusServiceUnavailable, "unavailable", "notifications are not configured", nil)
		}
		detail, err := digests.SendWeeklyReview(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SendResponse `json:"body"`
		}{Body: SendResponse{Status: "sent", Detail: detail}}, nil
	})
}

func registerConversations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-conversations",
		Method:      http.MethodGet,
		Path:        "/conversations",
		Summary:     "List message audit rows",
		Description: "Newest first.",
	}, func(ctx context.Context, input *struct {
		PlanID    int64  `query:"plan_id"`
		Direction string `query:"direction"`
		Limit     int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
	}) (*struct {
		Body ConversationList `json:"body"`
	}, error) {
		items, err := e.Repo.ListConversations(ctx, repo.ConversationFilters{PlanID: input.PlanID, Direction: input.Direction, Limit: input.Limit})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ConversationList `json:"body"`
		}{Body: ConversationList{Conversations: emptyIfNil(items)}}, nil
	})
}
