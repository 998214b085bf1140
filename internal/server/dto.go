package server

import (
	"taskline/internal/domain"
)

// Request payloads

type CreatePlanRequest struct {
	Name        string         `json:"name" minLength:"1"`
	Type        string         `json:"type,omitempty"`
	Description string         `json:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
}

type ActivatePlanRequest struct {
	StartDate string `json:"start_date" format:"date" example:"2026-01-05"`
}

type CreatePhaseRequest struct {
	PhaseNumber int    `json:"phase_number" minimum:"1"`
	Name        string `json:"name" minLength:"1"`
	Description string `json:"description,omitempty"`
}

type CreateTaskRequest struct {
	TaskNumber       int    `json:"task_number" minimum:"1"`
	PhaseNumber      int    `json:"phase_number,omitempty"`
	DayOffset        int    `json:"day_offset" minimum:"0"`
	Title            string `json:"title" minLength:"1"`
	Description      string `json:"description,omitempty"`
	Category         string `json:"category,omitempty"`
	ExecutionType    string `json:"execution_type,omitempty" enum:"human,agent_assisted"`
	Priority         int    `json:"priority,omitempty" minimum:"1" maximum:"3"`
	EstimatedMinutes *int   `json:"estimated_minutes,omitempty" minimum:"0"`
}

// UpdateTaskRequest is a partial update; absent fields are left alone.
type UpdateTaskRequest struct {
	Status        *string `json:"status,omitempty" enum:"pending,in_progress,completed,skipped,rescheduled"`
	Notes         *string `json:"notes,omitempty"`
	ScheduledDate *string `json:"scheduled_date,omitempty"`
}

// Responses

type PlanList struct {
	Plans []domain.Plan `json:"plans"`
}

type TaskList struct {
	Tasks []domain.Task `json:"tasks"`
}

type PhaseList struct {
	Phases []domain.Phase `json:"phases"`
}

type EventList struct {
	Events []domain.Event `json:"events"`
}

type ConversationList struct {
	Conversations []domain.Conversation `json:"conversations"`
}

type ActivationResponse struct {
	Status         string `json:"status" example:"activated"`
	TasksScheduled int    `json:"tasks_scheduled"`
}

type SendResponse struct {
	Status string `json:"status" example:"sent"`
	Detail string `json:"detail" example:"Sent 3 tasks (sid: SM123)"`
}

// OverviewResponse carries the overview counts plus the rendered text the
// agent reports.
type OverviewResponse struct {
	PlanID      int64  `json:"plan_id"`
	PlanName    string `json:"plan_name"`
	PhaseNumber int    `json:"phase_number,omitempty"`
	PhaseName   string `json:"phase_name,omitempty"`
	Total       int    `json:"total"`
	Completed   int    `json:"completed"`
	Skipped     int    `json:"skipped"`
	Pending     int    `json:"pending"`
	Overdue     int    `json:"overdue"`
	Text        string `json:"text"`
}

func newOverviewResponse(ov domain.PlanOverview) OverviewResponse {
	return OverviewResponse{
		PlanID:      ov.PlanID,
		PlanName:    ov.PlanName,
		PhaseNumber: ov.PhaseNumber,
		PhaseName:   ov.PhaseName,
		Total:       ov.Total,
		Completed:   ov.Completed,
		Skipped:     ov.Skipped,
		Pending:     ov.Pending,
		Overdue:     ov.Overdue,
		Text:        ov.String(),
	}
}

type ReadyResponse struct {
	Status string            `json:"status" enum:"ready,not_ready"`
	Checks map[string]string `json:"checks"`
}

func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
