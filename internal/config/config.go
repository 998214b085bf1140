package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PlanTemplate models a plan definition file (plan.yml).
type PlanTemplate struct {
	Plan struct {
		Name        string `yaml:"name"`
		Type        string `yaml:"type"`
		Description string `yaml:"description"`
		Timezone    string `yaml:"timezone"`
	} `yaml:"plan"`
	Phases []PhaseTemplate `yaml:"phases"`
	Tasks  []TaskTemplate  `yaml:"tasks"`
}

type PhaseTemplate struct {
	Number      int    `yaml:"number"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type TaskTemplate struct {
	Number           int    `yaml:"number"`
	Phase            int    `yaml:"phase"`
	DayOffset        int    `yaml:"day_offset"`
	Title            string `yaml:"title"`
	Description      string `yaml:"description"`
	Category         string `yaml:"category"`
	ExecutionType    string `yaml:"execution_type"`
	Priority         int    `yaml:"priority"`
	EstimatedMinutes *int   `yaml:"estimated_minutes"`
}

// Validate ensures the template meets the same constraints the store enforces.
func (c *PlanTemplate) Validate() error {
	if c.Plan.Name == "" {
		return fmt.Errorf("plan.name is required")
	}
	if c.Plan.Timezone != "" {
		if _, err := time.LoadLocation(c.Plan.Timezone); err != nil {
			return fmt.Errorf("plan.timezone %q is invalid: %w", c.Plan.Timezone, err)
		}
	}
	phases := map[int]bool{}
	for _, ph := range c.Phases {
		if ph.Number < 1 {
			return fmt.Errorf("phase %q: number must be >= 1", ph.Name)
		}
		if ph.Name == "" {
			return fmt.Errorf("phase %d: name is required", ph.Number)
		}
		if phases[ph.Number] {
			return fmt.Errorf("phase %d defined twice", ph.Number)
		}
		phases[ph.Number] = true
	}
	tasks := map[int]bool{}
	for _, t := range c.Tasks {
		if t.Number < 1 {
			return fmt.Errorf("task %q: number must be >= 1", t.Title)
		}
		if tasks[t.Number] {
			return fmt.Errorf("task %d defined twice", t.Number)
		}
		tasks[t.Number] = true
		if t.Title == "" {
			return fmt.Errorf("task %d: title is required", t.Number)
		}
		if t.DayOffset < 0 {
			return fmt.Errorf("task %d: day_offset must be >= 0", t.Number)
		}
		if t.Priority != 0 && (t.Priority < 1 || t.Priority > 3) {
			return fmt.Errorf("task %d: priority must be between 1 and 3", t.Number)
		}
		if t.EstimatedMinutes != nil && *t.EstimatedMinutes < 0 {
			return fmt.Errorf("task %d: estimated_minutes must be >= 0", t.Number)
		}
		switch t.ExecutionType {
		case "", "human", "agent_assisted":
		default:
			return fmt.Errorf("task %d: execution_type must be human or agent_assisted", t.Number)
		}
		if t.Phase != 0 && !phases[t.Phase] {
			return fmt.Errorf("task %d references unknown phase %d", t.Number, t.Phase)
		}
	}
	return nil
}

// DefaultPlanTemplate returns the built-in plan seeded into an empty database.
func DefaultPlanTemplate() *PlanTemplate {
	cfg, err := PlanFromYAML([]byte(defaultTemplate))
	if err != nil {
		panic(fmt.Sprintf("built-in plan template: %v", err))
	}
	return cfg
}

// PlanFromYAML parses and validates a plan template from raw YAML bytes.
func PlanFromYAML(data []byte) (*PlanTemplate, error) {
	var cfg PlanTemplate
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid plan yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PlanFromFile reads a YAML plan template from the given path.
func PlanFromFile(path string) (*PlanTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return PlanFromYAML(data)
}

const defaultTemplate = `plan:
  name: Launch Plan
  type: gtm
  description: Four-week product launch plan

phases:
  - number: 1
    name: Foundation
    description: Positioning, landing page and tracking
  - number: 2
    name: Audience
    description: Build the waitlist and early community
  - number: 3
    name: Launch
    description: Public launch week
  - number: 4
    name: Follow-through
    description: Retention and feedback loop

tasks:
  - {number: 1, phase: 1, day_offset: 0, title: Write positioning statement, category: strategy, priority: 1, estimated_minutes: 45}
  - {number: 2, phase: 1, day_offset: 0, title: Draft landing page copy, category: content, execution_type: agent_assisted, priority: 2, estimated_minutes: 30}
  - {number: 3, phase: 1, day_offset: 2, title: Set up analytics, category: ops, priority: 2, estimated_minutes: 20}
  - {number: 4, phase: 1, day_offset: 4, title: Publish landing page, category: content, priority: 1, estimated_minutes: 30}
  - {number: 5, phase: 2, day_offset: 7, title: List 30 target communities, category: outreach, execution_type: agent_assisted, priority: 2, estimated_minutes: 25}
  - {number: 6, phase: 2, day_offset: 9, title: Send 10 personal invites, category: outreach, priority: 1, estimated_minutes: 40}
  - {number: 7, phase: 2, day_offset: 11, title: Post build-in-public update, category: content, priority: 3, estimated_minutes: 15}
  - {number: 8, phase: 3, day_offset: 14, title: Launch on product directories, category: launch, priority: 1, estimated_minutes: 60}
  - {number: 9, phase: 3, day_offset: 15, title: Reply to every launch comment, category: launch, priority: 1, estimated_minutes: 45}
  - {number: 10, phase: 3, day_offset: 18, title: Write launch retrospective, category: strategy, execution_type: agent_assisted, priority: 2, estimated_minutes: 30}
  - {number: 11, phase: 4, day_offset: 21, title: Interview five early users, category: research, priority: 1, estimated_minutes: 90}
  - {number: 12, phase: 4, day_offset: 25, title: Plan next month, category: strategy, priority: 2, estimated_minutes: 30}
`
