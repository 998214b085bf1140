package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"taskline/internal/agent"
	"taskline/internal/domain"
	"taskline/internal/repo"
	"taskline/internal/telemetry"
)

const ApologyReply = "Sorry, something went wrong. Please try again."

// Handler runs the conversational loop for one message. agent.Loop
// satisfies it.
type Handler interface {
	Handle(ctx context.Context, planID int64, text string) (agent.Outcome, error)
}

// PlanResolver picks the plan a message applies to.
type PlanResolver interface {
	CurrentPlan(ctx context.Context, defaultID int64) (domain.Plan, error)
}

// Message is one inbound text from a channel. DeliveryID is the channel's
// own message id; an empty id disables deduplication.
type Message struct {
	Body       string
	From       string
	DeliveryID string
	Channel    string
}

// Result is the reply to relay back. Duplicate means the delivery id was
// already processed and nothing was done.
type Result struct {
	Reply     string
	Duplicate bool
	PlanID    int64
	Actions   []domain.ToolAction
}

// Processor records every exchange and makes sure a redelivered message is
// handled at most once.
type Processor struct {
	Repo          repo.Repo
	Agent         Handler
	Plans         PlanResolver
	DefaultPlanID int64
	Logger        *zap.Logger
	Now           func() time.Time
}

func (p Processor) now() string {
	if p.Now != nil {
		return p.Now().UTC().Format(time.RFC3339)
	}
	return time.Now().UTC().Format(time.RFC3339)
}

// Handle processes one inbound message. Failures of the reasoning agent turn
// into an apology reply; only storage failures are returned.
func (p Processor) Handle(ctx context.Context, msg Message) (Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "inbound.handle", telemetry.AttrChannel.String(msg.Channel))
	defer span.End()
	log := telemetry.OrNop(p.Logger).With(zap.String("channel", msg.Channel), zap.String("delivery_id", msg.DeliveryID))
	body := strings.TrimSpace(msg.Body)
	if msg.Channel == "" {
		msg.Channel = "sms"
	}

	if msg.DeliveryID != "" {
		_, err := p.Repo.GetConversationByDeliveryID(ctx, msg.DeliveryID)
		if err == nil {
			log.Info("duplicate delivery skipped")
			span.SetAttributes(telemetry.AttrDuplicate.Bool(true))
			return Result{Duplicate: true}, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return Result{}, err
		}
	}

	var planID int64
	var planRef *int64
	if plan, err := p.Plans.CurrentPlan(ctx, p.DefaultPlanID); err == nil {
		planID = plan.ID
		planRef = &planID
	} else if !errors.Is(err, repo.ErrNotFound) {
		return Result{}, err
	} else {
		log.Warn("no plan to route message to")
	}

	in := domain.Conversation{
		PlanID:    planRef,
		Direction: domain.DirectionInbound,
		Channel:   msg.Channel,
		Address:   msg.From,
		Content:   body,
		CreatedAt: p.now(),
	}
	if msg.DeliveryID != "" {
		id := msg.DeliveryID
		in.DeliveryID = &id
	}
	inboundID, err := p.Repo.InsertConversation(ctx, in)
	if err != nil {
		if repo.IsUniqueViolation(err) {
			log.Info("duplicate delivery raced, skipped")
			return Result{Duplicate: true}, nil
		}
		return Result{}, err
	}

	outcome, err := p.Agent.Handle(ctx, planID, body)
	reply := outcome.Reply
	if err != nil {
		log.Error("message handling failed", zap.Error(err))
		reply = ApologyReply
	}

	interp := body
	if _, err := p.Repo.InsertConversation(ctx, domain.Conversation{
		PlanID:         planRef,
		Direction:      domain.DirectionOutbound,
		Channel:        msg.Channel,
		Address:        msg.From,
		Content:        reply,
		Interpretation: &interp,
		CreatedAt:      p.now(),
	}); err != nil {
		return Result{}, err
	}

	if len(outcome.Actions) > 0 {
		p.tagActions(ctx, log, inboundID, outcome.Actions)
	}
	return Result{Reply: reply, PlanID: planID, Actions: outcome.Actions}, nil
}

// tagActions is best effort: failures are logged and dropped.
func (p Processor) tagActions(ctx context.Context, log *zap.Logger, inboundID int64, actions []domain.ToolAction) {
	data, err := json.Marshal(actions)
	if err == nil {
		err = p.Repo.SetConversationActions(ctx, inboundID, string(data))
	}
	if err != nil {
		log.Warn("failed to record tool actions", zap.Int64("conversation_id", inboundID), zap.Error(err))
	}
}
