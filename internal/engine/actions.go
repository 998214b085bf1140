package engine

import (
	"context"
	"fmt"
	"strings"

	"taskline/internal/domain"
)

// The conversational operations below each fetch the task first so a missing
// task surfaces as NotFound, then funnel through UpdateTask and return a
// short confirmation suitable for a text message.

func (e Engine) MarkTaskComplete(ctx context.Context, planID int64, number int, note, actorID string) (string, error) {
	t, err := e.Repo.GetTask(ctx, planID, number)
	if err != nil {
		return "", err
	}
	status := domain.TaskCompleted
	u := TaskUpdateOptions{PlanID: planID, TaskNumber: number, Status: &status, ActorID: actorID}
	if note = strings.TrimSpace(note); note != "" {
		u.Notes = &note
	}
	if _, err := e.UpdateTask(ctx, u); err != nil {
		return "", err
	}
	return fmt.Sprintf("Task %d marked complete: %s", number, t.Title), nil
}

func (e Engine) SkipTask(ctx context.Context, planID int64, number int, reason, actorID string) (string, error) {
	t, err := e.Repo.GetTask(ctx, planID, number)
	if err != nil {
		return "", err
	}
	status := domain.TaskSkipped
	note := "Skipped"
	if reason = strings.TrimSpace(reason); reason != "" {
		note = "Skipped: " + reason
	}
	if _, err := e.UpdateTask(ctx, TaskUpdateOptions{PlanID: planID, TaskNumber: number, Status: &status, Notes: &note, ActorID: actorID}); err != nil {
		return "", err
	}
	return fmt.Sprintf("Task %d skipped: %s", number, t.Title), nil
}

func (e Engine) RescheduleTask(ctx context.Context, planID int64, number int, newDate, reason, actorID string) (string, error) {
	if _, err := parseDate("new_date", newDate); err != nil {
		return "", err
	}
	t, err := e.Repo.GetTask(ctx, planID, number)
	if err != nil {
		return "", err
	}
	note := "Rescheduled to " + newDate
	if reason = strings.TrimSpace(reason); reason != "" {
		note += ": " + reason
	}
	if _, err := e.UpdateTask(ctx, TaskUpdateOptions{PlanID: planID, TaskNumber: number, ScheduledDate: &newDate, Notes: &note, ActorID: actorID}); err != nil {
		return "", err
	}
	return fmt.Sprintf("Task %d rescheduled to %s: %s", number, newDate, t.Title), nil
}

func (e Engine) AddNoteToTask(ctx context.Context, planID int64, number int, note, actorID string) (string, error) {
	if strings.TrimSpace(note) == "" {
		return "", invalid("note", "is required")
	}
	t, err := e.Repo.GetTask(ctx, planID, number)
	if err != nil {
		return "", err
	}
	if _, err := e.UpdateTask(ctx, TaskUpdateOptions{PlanID: planID, TaskNumber: number, Notes: &note, ActorID: actorID}); err != nil {
		return "", err
	}
	return fmt.Sprintf("Note added to task %d: %s", number, t.Title), nil
}
