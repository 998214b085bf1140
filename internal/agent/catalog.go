package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	ToolMarkTaskComplete = "mark_task_complete"
	ToolSkipTask         = "skip_task"
	ToolRescheduleTask   = "reschedule_task"
	ToolAddNoteToTask    = "add_note_to_task"
	ToolGetPlanOverview  = "get_plan_overview"
)

// ErrUnknownTool is returned by Decode for a name outside the catalog.
var ErrUnknownTool = errors.New("unknown tool")

// Invocation is a decoded, validated tool call. The set of implementations
// is closed: MarkTaskComplete, SkipTask, RescheduleTask, AddNoteToTask and
// GetPlanOverview.
type Invocation interface {
	ToolName() string
	invocation()
}

type MarkTaskComplete struct {
	TaskNumber int    `json:"task_number"`
	Note       string `json:"note,omitempty"`
}

type SkipTask struct {
	TaskNumber int    `json:"task_number"`
	Reason     string `json:"reason,omitempty"`
}

type RescheduleTask struct {
	TaskNumber int    `json:"task_number"`
	NewDate    string `json:"new_date"`
	Reason     string `json:"reason,omitempty"`
}

type AddNoteToTask struct {
	TaskNumber int    `json:"task_number"`
	Note       string `json:"note"`
}

type GetPlanOverview struct{}

func (MarkTaskComplete) ToolName() string { return ToolMarkTaskComplete }
func (SkipTask) ToolName() string         { return ToolSkipTask }
func (RescheduleTask) ToolName() string   { return ToolRescheduleTask }
func (AddNoteToTask) ToolName() string    { return ToolAddNoteToTask }
func (GetPlanOverview) ToolName() string  { return ToolGetPlanOverview }

func (MarkTaskComplete) invocation() {}
func (SkipTask) invocation()         {}
func (RescheduleTask) invocation()   {}
func (AddNoteToTask) invocation()    {}
func (GetPlanOverview) invocation()  {}

var toolSpecs = []ToolSpec{
	{
		Name:        ToolMarkTaskComplete,
		Description: "Mark a task as completed by its task number.",
		Schema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "task_number": {"type": "integer", "minimum": 1, "description": "The task number to mark as complete"},
    "note": {"type": "string", "description": "Optional note about the completion"}
  },
  "required": ["task_number"]
}`),
	},
	{
		Name:        ToolSkipTask,
		Description: "Skip a task by its task number, with an optional reason.",
		Schema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "task_number": {"type": "integer", "minimum": 1, "description": "The task number to skip"},
    "reason": {"type": "string", "description": "Optional reason for skipping"}
  },
  "required": ["task_number"]
}`),
	},
	{
		Name:        ToolRescheduleTask,
		Description: "Reschedule a task to a new date.",
		Schema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "task_number": {"type": "integer", "minimum": 1, "description": "The task number to reschedule"},
    "new_date": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$", "description": "New date in YYYY-MM-DD format"},
    "reason": {"type": "string", "description": "Optional reason for rescheduling"}
  },
  "required": ["task_number", "new_date"]
}`),
	},
	{
		Name:        ToolAddNoteToTask,
		Description: "Add a note or update to a specific task.",
		Schema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "task_number": {"type": "integer", "minimum": 1, "description": "The task number to add a note to"},
    "note": {"type": "string", "minLength": 1, "description": "The note to add"}
  },
  "required": ["task_number", "note"]
}`),
	},
	{
		Name:        ToolGetPlanOverview,
		Description: "Get a summary of the current plan status including total tasks, completed, pending, and overdue counts.",
		Schema:      json.RawMessage(`{"type": "object", "properties": {}}`),
	},
}

var schemas = mustCompileSchemas(toolSpecs)

func mustCompileSchemas(specs []ToolSpec) map[string]*jsonschema.Schema {
	c := jsonschema.NewCompiler()
	out := make(map[string]*jsonschema.Schema, len(specs))
	for _, spec := range specs {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(spec.Schema))
		if err != nil {
			panic(fmt.Sprintf("tool %s schema: %v", spec.Name, err))
		}
		url := spec.Name + ".json"
		if err := c.AddResource(url, doc); err != nil {
			panic(fmt.Sprintf("tool %s schema: %v", spec.Name, err))
		}
		schema, err := c.Compile(url)
		if err != nil {
			panic(fmt.Sprintf("tool %s schema: %v", spec.Name, err))
		}
		out[spec.Name] = schema
	}
	return out
}

// Tools returns the catalog descriptors sent to the reasoning agent.
func Tools() []ToolSpec {
	out := make([]ToolSpec, len(toolSpecs))
	copy(out, toolSpecs)
	return out
}

// Decode validates a tool call's arguments against the tool's schema and
// returns the typed invocation.
func Decode(call ToolCall) (Invocation, error) {
	schema, ok := schemas[call.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}
	input := bytes.TrimSpace(call.Input)
	if len(input) == 0 || bytes.Equal(input, []byte("null")) {
		input = []byte("{}")
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("invalid arguments for %s: %w", call.Name, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid arguments for %s: %w", call.Name, err)
	}
	switch call.Name {
	case ToolMarkTaskComplete:
		return decodeAs[MarkTaskComplete](input)
	case ToolSkipTask:
		return decodeAs[SkipTask](input)
	case ToolRescheduleTask:
		return decodeAs[RescheduleTask](input)
	case ToolAddNoteToTask:
		return decodeAs[AddNoteToTask](input)
	case ToolGetPlanOverview:
		return GetPlanOverview{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
}

func decodeAs[T Invocation](input []byte) (Invocation, error) {
	var v T
	if err := json.Unmarshal(input, &v); err != nil {
		return nil, err
	}
	return v, nil
}
