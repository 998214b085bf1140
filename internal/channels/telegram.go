package channels

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"taskline/internal/inbound"
	"taskline/internal/telemetry"
)

// MessageHandler processes one inbound message. inbound.Processor satisfies it.
type MessageHandler interface {
	Handle(ctx context.Context, msg inbound.Message) (inbound.Result, error)
}

// Telegram is both an inbound channel (long polling) and an outbound sender.
// Destinations are chat ids in decimal.
type Telegram struct {
	bot        *tgbotapi.BotAPI
	allowedIDs map[int64]struct{}
	handler    MessageHandler
	logger     *zap.Logger
}

// NewTelegram connects to the Bot API. An empty allow list accepts every chat.
func NewTelegram(token string, allowedIDs []int64, handler MessageHandler, logger *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init failed: %w", err)
	}
	allowed := make(map[int64]struct{}, len(allowedIDs))
	for _, id := range allowedIDs {
		allowed[id] = struct{}{}
	}
	logger = telemetry.OrNop(logger)
	if len(allowed) == 0 {
		logger.Warn("telegram allow list is empty; every chat is accepted")
	}
	return &Telegram{bot: bot, allowedIDs: allowed, handler: handler, logger: logger}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, to, text string) (string, error) {
	chatID, err := strconv.ParseInt(strings.TrimSpace(to), 10, 64)
	if err != nil {
		return "", fmt.Errorf("telegram destination %q is not a chat id", to)
	}
	m, err := t.bot.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("tg-msg-%d-%d", chatID, m.MessageID), nil
}

// Start polls for updates until ctx is done, reconnecting with backoff.
func (t *Telegram) Start(ctx context.Context) error {
	if t.handler == nil {
		return fmt.Errorf("telegram: no message handler")
	}
	t.logger.Info("telegram bot started", zap.String("user", t.bot.Self.UserName))
	backoff := time.Second
	const maxBackoff = 30 * time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates := t.bot.GetUpdatesChan(u)
		pollErr := t.poll(ctx, updates)
		t.bot.StopReceivingUpdates()
		if pollErr == nil {
			return nil
		}
		t.logger.Warn("telegram poll disconnected, reconnecting", zap.Error(pollErr), zap.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (t *Telegram) poll(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	// A long poll returns at least every 60s; silence for longer means a dead connection.
	const stallTimeout = 150 * time.Second
	timer := time.NewTimer(stallTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("update channel closed")
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(stallTimeout)
			if update.Message == nil {
				continue
			}
			t.handleUpdate(ctx, update.UpdateID, update.Message)
		case <-timer.C:
			return fmt.Errorf("no updates received for %v", stallTimeout)
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, updateID int, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if len(t.allowedIDs) > 0 {
		if _, ok := t.allowedIDs[chatID]; !ok {
			t.logger.Warn("telegram access denied", zap.Int64("chat_id", chatID))
			return
		}
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	res, err := t.handler.Handle(ctx, inbound.Message{
		Body:       text,
		From:       strconv.FormatInt(chatID, 10),
		DeliveryID: fmt.Sprintf("tg-%d", updateID),
		Channel:    t.Name(),
	})
	if err != nil {
		t.logger.Error("telegram message failed", zap.Int("update_id", updateID), zap.Error(err))
		res.Reply = inbound.ApologyReply
	}
	if res.Duplicate || res.Reply == "" {
		return
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, res.Reply)); err != nil {
		t.logger.Error("telegram reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
