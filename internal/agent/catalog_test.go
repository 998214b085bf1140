package agent_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"taskline/internal/agent"
)

func TestDecodeValidCalls(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  agent.Invocation
	}{
		{agent.ToolMarkTaskComplete, `{"task_number":4,"note":"sent"}`, agent.MarkTaskComplete{TaskNumber: 4, Note: "sent"}},
		{agent.ToolSkipTask, `{"task_number":2}`, agent.SkipTask{TaskNumber: 2}},
		{agent.ToolRescheduleTask, `{"task_number":1,"new_date":"2026-02-15","reason":"travel"}`, agent.RescheduleTask{TaskNumber: 1, NewDate: "2026-02-15", Reason: "travel"}},
		{agent.ToolAddNoteToTask, `{"task_number":7,"note":"emailed"}`, agent.AddNoteToTask{TaskNumber: 7, Note: "emailed"}},
		{agent.ToolGetPlanOverview, ``, agent.GetPlanOverview{}},
	}
	for _, tc := range cases {
		got, err := agent.Decode(agent.ToolCall{ID: "x", Name: tc.name, Input: json.RawMessage(tc.input)})
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("%s mismatch (-want +got):\n%s", tc.name, diff)
		}
		if got.ToolName() != tc.name {
			t.Fatalf("tool name %s != %s", got.ToolName(), tc.name)
		}
	}
}

func TestDecodeRejectsBadArguments(t *testing.T) {
	bad := []agent.ToolCall{
		{Name: agent.ToolMarkTaskComplete, Input: json.RawMessage(`{}`)},
		{Name: agent.ToolMarkTaskComplete, Input: json.RawMessage(`{"task_number":"one"}`)},
		{Name: agent.ToolSkipTask, Input: json.RawMessage(`{"task_number":0}`)},
		{Name: agent.ToolRescheduleTask, Input: json.RawMessage(`{"task_number":1,"new_date":"tomorrow"}`)},
		{Name: agent.ToolAddNoteToTask, Input: json.RawMessage(`{"task_number":1}`)},
		{Name: agent.ToolSkipTask, Input: json.RawMessage(`not json`)},
	}
	for _, c := range bad {
		if _, err := agent.Decode(c); err == nil {
			t.Fatalf("expected error for %s %s", c.Name, c.Input)
		}
	}
	_, err := agent.Decode(agent.ToolCall{Name: "drop_tables"})
	if !errors.Is(err, agent.ErrUnknownTool) {
		t.Fatalf("expected unknown tool, got %v", err)
	}
}
