package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"taskline/internal/domain"
	"taskline/internal/engine"
	"taskline/internal/repo"
	"taskline/internal/telemetry"
)

// Service builds the scheduled digests and sends them through the configured
// channel. Every send is written to the conversation log.
type Service struct {
	Engine    engine.Engine
	Sender    Sender
	To        string
	CharLimit int
	Logger    *zap.Logger
}

func (s Service) repo() repo.Repo { return s.Engine.Repo }

// Send delivers text and records an outbound audit row. The disabled
// sentinel is stored without a delivery id.
func (s Service) Send(ctx context.Context, planID int64, text string) (string, error) {
	ctx, span := telemetry.StartClientSpan(ctx, "notify.send", telemetry.AttrChannel.String(s.Sender.Name()))
	defer span.End()
	log := telemetry.OrNop(s.Logger)
	id, err := s.Sender.Send(ctx, s.To, text)
	if err != nil {
		span.RecordError(err)
		return "", &DeliveryError{Channel: s.Sender.Name(), Err: err}
	}
	row := domain.Conversation{
		Direction: domain.DirectionOutbound,
		Channel:   s.Sender.Name(),
		Address:   s.To,
		Content:   text,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if planID != 0 {
		row.PlanID = &planID
	}
	if id != "" && id != DevModeID {
		delivery := id
		row.DeliveryID = &delivery
	}
	if _, err := s.repo().InsertConversation(ctx, row); err != nil {
		log.Warn("failed to record outbound message", zap.String("delivery_id", id), zap.Error(err))
	}
	return id, nil
}

// SendDailyTasks sends the digest for date, or for today in the plan's
// timezone when date is empty.
func (s Service) SendDailyTasks(ctx context.Context, planID int64, date string) (string, error) {
	p, err := s.Engine.GetPlan(ctx, planID)
	if err != nil {
		return "", err
	}
	if date == "" {
		date = s.Engine.Today(p)
	}
	tasks, err := s.Engine.ListTasks(ctx, engine.TaskListOptions{PlanID: planID, Date: date})
	if err != nil {
		return "", err
	}
	id, err := s.Send(ctx, planID, FormatDaily(tasks, date, s.CharLimit))
	if err != nil {
		return "", err
	}
	telemetry.OrNop(s.Logger).Info("daily tasks sent", zap.Int64("plan_id", planID), zap.String("date", date), zap.Int("tasks", len(tasks)))
	return fmt.Sprintf("Sent %d tasks (sid: %s)", len(tasks), id), nil
}

// SendWeeklyReview sends plan totals and next week's preview.
func (s Service) SendWeeklyReview(ctx context.Context, planID int64) (string, error) {
	p, err := s.Engine.GetPlan(ctx, planID)
	if err != nil {
		return "", err
	}
	stats, err := s.Engine.PlanStats(ctx, planID)
	if err != nil {
		return "", err
	}
	today, err := time.Parse(domain.DateLayout, s.Engine.Today(p))
	if err != nil {
		return "", err
	}
	from, to := NextWeek(today)
	upcoming, err := s.Engine.TasksBetween(ctx, planID, from, to)
	if err != nil {
		return "", err
	}
	id, err := s.Send(ctx, planID, FormatWeeklyReview(stats, upcoming))
	if err != nil {
		return "", err
	}
	telemetry.OrNop(s.Logger).Info("weekly review sent", zap.Int64("plan_id", planID), zap.Int("upcoming", len(upcoming)))
	return fmt.Sprintf("Weekly review sent (sid: %s)", id), nil
}
