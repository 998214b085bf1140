package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"taskline/internal/config"
)

func TestDefaultPlanTemplateIsValid(t *testing.T) {
	tpl := config.DefaultPlanTemplate()
	if tpl.Plan.Name == "" {
		t.Fatalf("expected plan name")
	}
	if len(tpl.Phases) == 0 || len(tpl.Tasks) == 0 {
		t.Fatalf("expected phases and tasks, got %d/%d", len(tpl.Phases), len(tpl.Tasks))
	}
}

func TestPlanFromYAMLRejectsBadTemplates(t *testing.T) {
	cases := map[string]string{
		"missing name": `plan: {}`,
		"dup task": `plan: {name: p}
tasks:
  - {number: 1, title: a}
  - {number: 1, title: b}`,
		"negative offset": `plan: {name: p}
tasks:
  - {number: 1, title: a, day_offset: -2}`,
		"priority": `plan: {name: p}
tasks:
  - {number: 1, title: a, priority: 5}`,
		"unknown phase": `plan: {name: p}
phases:
  - {number: 1, name: one}
tasks:
  - {number: 1, title: a, phase: 2}`,
		"exec type": `plan: {name: p}
tasks:
  - {number: 1, title: a, execution_type: robot}`,
		"timezone": `plan: {name: p, timezone: Mars/Base}`,
	}
	for name, doc := range cases {
		if _, err := config.PlanFromYAML([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadSettingsFromEnv(t *testing.T) {
	t.Setenv("TASKLINE_TIMEZONE", "Europe/Paris")
	t.Setenv("TASKLINE_DAILY_SEND_HOUR", "7")
	t.Setenv("TASKLINE_AGENT_TIMEOUT", "5s")
	v := viper.New()
	v.SetEnvPrefix("TASKLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	s, err := config.Load(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Timezone != "Europe/Paris" || s.DailySendHour != 7 {
		t.Fatalf("env not applied: %+v", s)
	}
	if s.AgentTimeout != 5*time.Second {
		t.Fatalf("expected 5s agent timeout, got %s", s.AgentTimeout)
	}
	if s.CharLimit != 1500 || s.WeeklyReviewDay != "sun" || s.AIModel == "" {
		t.Fatalf("defaults not applied: %+v", s)
	}
}

func TestSettingsValidate(t *testing.T) {
	s := config.Default()
	if err := s.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	bad := *s
	bad.WeeklyReviewDay = "someday"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected weekday error")
	}
	bad = *s
	bad.Channel = config.ChannelTelegram
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected telegram token error")
	}
	bad = *s
	bad.Timezone = "Nowhere/Special"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected timezone error")
	}
}
