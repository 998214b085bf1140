package telemetry_test

import (
	"testing"

	"taskline/internal/telemetry"
)

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l, err := telemetry.NewLogger("debug", format)
		if err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		_ = l.Sync()
	}
	if _, err := telemetry.NewLogger("loud", "json"); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := telemetry.NewLogger("info", "xml"); err == nil {
		t.Fatalf("expected format error")
	}
	if telemetry.OrNop(nil) == nil {
		t.Fatalf("expected nop logger")
	}
}
