package agent

import (
	"context"
	"encoding/json"
	"fmt"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolCall is one tool invocation requested by the reasoning agent.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResult is the captured outcome of a ToolCall, fed back to the agent.
type ToolResult struct {
	CallID  string
	Content string
	IsError bool
}

// Segment is either free text or a tool call.
type Segment struct {
	Text string
	Call *ToolCall
}

// Turn is one transcript entry. User turns carry either text segments or the
// results of the previous assistant turn's calls.
type Turn struct {
	Role     Role
	Segments []Segment
	Results  []ToolResult
}

// ToolSpec describes a catalog entry to the agent. Schema is a JSON Schema
// object for the tool's arguments.
type ToolSpec struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

type Request struct {
	System     string
	Tools      []ToolSpec
	Transcript []Turn
}

type Response struct {
	Segments []Segment
}

// Calls returns the tool calls in the order the agent emitted them.
func (r Response) Calls() []ToolCall {
	var calls []ToolCall
	for _, s := range r.Segments {
		if s.Call != nil {
			calls = append(calls, *s.Call)
		}
	}
	return calls
}

// Reasoner is the external reasoning agent boundary.
type Reasoner interface {
	Respond(ctx context.Context, req Request) (Response, error)
}

// ExternalServiceError wraps a failure of the reasoning agent.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }
