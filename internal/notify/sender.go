package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"taskline/internal/telemetry"
)

// DevModeID is returned by the disabled sender in place of a delivery id.
const DevModeID = "dev_mode"

// Sender delivers a text to one destination and returns the channel's
// delivery id.
type Sender interface {
	Name() string
	Send(ctx context.Context, to, text string) (string, error)
}

// Disabled logs messages instead of sending them.
type Disabled struct {
	Logger *zap.Logger
}

func (Disabled) Name() string { return "disabled" }

func (d Disabled) Send(ctx context.Context, to, text string) (string, error) {
	telemetry.OrNop(d.Logger).Info("outbound message (channel disabled)", zap.String("to", to), zap.String("text", text))
	return DevModeID, nil
}

// DeliveryError wraps a failure of the outbound channel.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
