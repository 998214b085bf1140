package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskline/internal/agent"
	"taskline/internal/channels"
	"taskline/internal/config"
	"taskline/internal/engine"
	"taskline/internal/inbound"
	"taskline/internal/notify"
	"taskline/internal/telemetry"
)

// Services is the wired object graph shared by the server and the CLI.
type Services struct {
	Settings *config.Settings
	DB       *sql.DB
	Engine   engine.Engine
	Agent    agent.Loop
	Inbound  inbound.Processor
	Notify   notify.Service
	// Telegram is set only when the telegram channel is configured.
	Telegram *channels.Telegram
	Logger   *zap.Logger
}

// Options tweak Build for commands that never talk to a channel.
type Options struct {
	ActorID string
	// Reasoner replaces the Anthropic client; tests use a scripted one.
	Reasoner agent.Reasoner
	// Offline forces the disabled sender so no channel is contacted.
	Offline bool
}

func Build(ctx context.Context, db *sql.DB, s *config.Settings, logger *zap.Logger, opts Options) (*Services, error) {
	logger = telemetry.OrNop(logger)
	eng := engine.New(db, s.Location())

	reasoner := opts.Reasoner
	if reasoner == nil {
		if s.AnthropicAPIKey != "" {
			reasoner = agent.NewAnthropicReasoner(s.AnthropicAPIKey, s.AIModel, s.MaxTokens)
		} else {
			logger.Warn("anthropic_api_key is not set; inbound messages will get the apology reply")
			reasoner = unconfiguredReasoner{}
		}
	}
	actor := opts.ActorID
	if actor == "" {
		actor = "agent"
	}
	loop := agent.Loop{
		Reasoner:    reasoner,
		Tasks:       eng,
		Logger:      logger.Named("agent"),
		CallTimeout: s.AgentTimeout,
		ActorID:     actor,
	}
	proc := inbound.Processor{
		Repo:          eng.Repo,
		Agent:         loop,
		Plans:         eng,
		DefaultPlanID: s.DefaultPlanID,
		Logger:        logger.Named("inbound"),
	}
	svc := &Services{Settings: s, DB: db, Engine: eng, Agent: loop, Inbound: proc, Logger: logger}

	var sender notify.Sender = notify.Disabled{Logger: logger.Named("notify")}
	if !opts.Offline {
		switch s.Channel {
		case config.ChannelTelegram:
			tg, err := channels.NewTelegram(s.TelegramToken, s.TelegramAllowedChatIDs, proc, logger.Named("telegram"))
			if err != nil {
				return nil, err
			}
			svc.Telegram = tg
			sender = tg
		case config.ChannelTwilio:
			sender = channels.Twilio{AccountSID: s.TwilioAccountSID, AuthToken: s.TwilioAuthToken, From: s.TwilioFromNumber}
		}
	}
	svc.Notify = notify.Service{
		Engine:    eng,
		Sender:    sender,
		To:        s.UserAddress,
		CharLimit: s.CharLimit,
		Logger:    logger.Named("notify"),
	}
	return svc, nil
}

// EnsureAdminKey generates an admin key when none is configured. The
// generated key is logged once so the operator can use it.
func EnsureAdminKey(s *config.Settings, logger *zap.Logger) {
	if s.AdminAPIKey != "" {
		return
	}
	s.AdminAPIKey = uuid.NewString()
	telemetry.OrNop(logger).Warn("admin_api_key not set; generated one for this run", zap.String("admin_api_key", s.AdminAPIKey))
}

type unconfiguredReasoner struct{}

func (unconfiguredReasoner) Respond(ctx context.Context, req agent.Request) (agent.Response, error) {
	return agent.Response{}, fmt.Errorf("anthropic_api_key is not configured")
}
