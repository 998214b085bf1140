package agent_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"

	"taskline/internal/agent"
)

func TestAnthropicReasonerRoundTrip(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.Error(w, "unexpected path "+r.URL.Path, http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "test-model",
  "content": [
    {"type": "text", "text": "Skipping it."},
    {"type": "tool_use", "id": "toolu_1", "name": "skip_task", "input": {"task_number": 2}}
  ],
  "stop_reason": "tool_use",
  "usage": {"input_tokens": 10, "output_tokens": 5}
}`)
	}))
	defer srv.Close()

	r := agent.NewAnthropicReasoner("test-key", "test-model", 256, option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	resp, err := r.Respond(context.Background(), agent.Request{
		System: agent.SystemPrompt("Launch"),
		Tools:  agent.Tools(),
		Transcript: []agent.Turn{
			{Role: agent.RoleUser, Segments: []agent.Segment{{Text: "done 1"}}},
			{Role: agent.RoleAssistant, Segments: []agent.Segment{{Call: &agent.ToolCall{ID: "toolu_0", Name: "mark_task_complete", Input: json.RawMessage(`{"task_number":1}`)}}}},
			{Role: agent.RoleUser, Results: []agent.ToolResult{{CallID: "toolu_0", Content: "Task 1 marked complete: a"}}},
		},
	})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	calls := resp.Calls()
	if len(resp.Segments) != 2 || len(calls) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if calls[0].ID != "toolu_1" || calls[0].Name != "skip_task" {
		t.Fatalf("unexpected call %+v", calls[0])
	}
	inv, err := agent.Decode(calls[0])
	if err != nil || inv.(agent.SkipTask).TaskNumber != 2 {
		t.Fatalf("decode returned call: %v %v", inv, err)
	}

	if got["model"] != "test-model" || got["max_tokens"] != float64(256) {
		t.Fatalf("unexpected request params: %v %v", got["model"], got["max_tokens"])
	}
	tools, _ := got["tools"].([]any)
	if len(tools) != 5 {
		t.Fatalf("expected 5 tools sent, got %d", len(tools))
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	last := msgs[2].(map[string]any)
	content := last["content"].([]any)[0].(map[string]any)
	if last["role"] != "user" || content["type"] != "tool_result" || content["tool_use_id"] != "toolu_0" {
		t.Fatalf("tool result not sent back: %v", last)
	}
}
