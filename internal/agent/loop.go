package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"taskline/internal/domain"
	"taskline/internal/telemetry"
)

const (
	DefaultMaxRoundTrips = 5

	DefaultReply  = "Got it!"
	FallbackReply = "I processed your request but couldn't generate a final response. Please try again."
)

// TaskService is the slice of the lifecycle manager the catalog can reach.
type TaskService interface {
	GetPlan(ctx context.Context, planID int64) (domain.Plan, error)
	MarkTaskComplete(ctx context.Context, planID int64, number int, note, actorID string) (string, error)
	SkipTask(ctx context.Context, planID int64, number int, reason, actorID string) (string, error)
	RescheduleTask(ctx context.Context, planID int64, number int, newDate, reason, actorID string) (string, error)
	AddNoteToTask(ctx context.Context, planID int64, number int, note, actorID string) (string, error)
	PlanOverview(ctx context.Context, planID int64) (domain.PlanOverview, error)
}

// Loop runs a bounded conversation with the reasoning agent, executing the
// tool calls it asks for until it answers with text only.
type Loop struct {
	Reasoner      Reasoner
	Tasks         TaskService
	Logger        *zap.Logger
	MaxRoundTrips int
	CallTimeout   time.Duration
	ActorID       string
}

// Outcome is the result of one Handle call. Actions holds every tool call
// made, in order, including failed ones.
type Outcome struct {
	Reply      string
	Actions    []domain.ToolAction
	RoundTrips int
}

// Handle answers one user message for a plan. Tool failures are fed back to
// the agent and never returned. A reasoner failure ends the call with an
// *ExternalServiceError; the Outcome still carries the actions taken so far.
func (l Loop) Handle(ctx context.Context, planID int64, text string) (Outcome, error) {
	log := telemetry.OrNop(l.Logger).With(zap.Int64("plan_id", planID))
	maxRounds := l.MaxRoundTrips
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRoundTrips
	}
	actor := l.ActorID
	if actor == "" {
		actor = "agent"
	}
	planName := "Task Plan"
	if p, err := l.Tasks.GetPlan(ctx, planID); err == nil {
		planName = p.Name
	}
	req := Request{
		System:     SystemPrompt(planName),
		Tools:      Tools(),
		Transcript: []Turn{{Role: RoleUser, Segments: []Segment{{Text: text}}}},
	}
	var out Outcome
	for step := 1; step <= maxRounds; step++ {
		out.RoundTrips = step
		resp, err := l.roundTrip(ctx, step, req)
		if err != nil {
			log.Error("reasoner failed", zap.Int("step", step), zap.Error(err))
			return out, &ExternalServiceError{Service: "reasoning agent", Err: err}
		}
		calls := resp.Calls()
		if len(calls) == 0 {
			out.Reply = joinText(resp.Segments)
			return out, nil
		}
		results := make([]ToolResult, 0, len(calls))
		for _, call := range calls {
			res := l.execute(ctx, planID, actor, call)
			if res.IsError {
				log.Warn("tool failed", zap.String("tool", call.Name), zap.String("result", res.Content))
			} else {
				log.Info("tool executed", zap.String("tool", call.Name))
			}
			results = append(results, res)
			out.Actions = append(out.Actions, domain.ToolAction{
				Tool:    call.Name,
				Input:   normalizeInput(call.Input),
				Result:  res.Content,
				IsError: res.IsError,
			})
		}
		req.Transcript = append(req.Transcript,
			Turn{Role: RoleAssistant, Segments: resp.Segments},
			Turn{Role: RoleUser, Results: results},
		)
	}
	log.Warn("round-trip bound reached without a final reply", zap.Int("round_trips", maxRounds))
	out.Reply = FallbackReply
	return out, nil
}

func (l Loop) roundTrip(ctx context.Context, step int, req Request) (Response, error) {
	ctx, span := telemetry.StartClientSpan(ctx, "agent.round_trip", telemetry.AttrLoopStep.Int(step))
	defer span.End()
	if l.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.CallTimeout)
		defer cancel()
	}
	resp, err := l.Reasoner.Respond(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return resp, err
}

func (l Loop) execute(ctx context.Context, planID int64, actor string, call ToolCall) ToolResult {
	ctx, span := telemetry.StartSpan(ctx, "agent.tool", telemetry.AttrToolName.String(call.Name))
	defer span.End()
	inv, err := Decode(call)
	if errors.Is(err, ErrUnknownTool) {
		span.SetStatus(codes.Error, "unknown tool")
		return ToolResult{CallID: call.ID, Content: "Unknown tool: " + call.Name, IsError: true}
	}
	if err == nil {
		var content string
		content, err = run(ctx, l.Tasks, planID, actor, inv)
		if err == nil {
			return ToolResult{CallID: call.ID, Content: content}
		}
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return ToolResult{CallID: call.ID, Content: "Error: " + err.Error(), IsError: true}
}

// run dispatches a decoded invocation. The switch covers every variant.
func run(ctx context.Context, tasks TaskService, planID int64, actor string, inv Invocation) (string, error) {
	switch v := inv.(type) {
	case MarkTaskComplete:
		return tasks.MarkTaskComplete(ctx, planID, v.TaskNumber, v.Note, actor)
	case SkipTask:
		return tasks.SkipTask(ctx, planID, v.TaskNumber, v.Reason, actor)
	case RescheduleTask:
		return tasks.RescheduleTask(ctx, planID, v.TaskNumber, v.NewDate, v.Reason, actor)
	case AddNoteToTask:
		return tasks.AddNoteToTask(ctx, planID, v.TaskNumber, v.Note, actor)
	case GetPlanOverview:
		ov, err := tasks.PlanOverview(ctx, planID)
		if err != nil {
			return "", err
		}
		return ov.String(), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, inv.ToolName())
	}
}

func joinText(segs []Segment) string {
	var parts []string
	for _, s := range segs {
		if s.Call == nil && s.Text != "" {
			parts = append(parts, s.Text)
		}
	}
	if len(parts) == 0 {
		return DefaultReply
	}
	return strings.Join(parts, " ")
}

func normalizeInput(in json.RawMessage) json.RawMessage {
	if len(strings.TrimSpace(string(in))) == 0 {
		return json.RawMessage("{}")
	}
	return in
}
