package dispatch

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"hydromate/internal/model"
)

// TelegramNotifier delivers push-channel reminders through a Telegram bot.
// The user id doubles as the Telegram chat id.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	logger zerolog.Logger
}

// NewTelegramNotifier creates a notifier from a bot token.
func NewTelegramNotifier(token string, logger zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramNotifier{
		bot:    bot,
		logger: logger.With().Str("component", "telegram").Logger(),
	}, nil
}

// Send delivers the reminder message to the user's chat.
func (n *TelegramNotifier) Send(ctx context.Context, r *model.ReminderLog) error {
	msg := tgbotapi.NewMessage(r.UserID, "💧 "+r.Message)
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}

	n.logger.Debug().Int64("user_id", r.UserID).Int64("reminder_id", r.ID).Msg("reminder delivered")
	return nil
}

// LogNotifier writes reminders to the log instead of a transport. Used when
// no delivery credentials are configured and for non-push channels.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notifier").Logger()}
}

// Send logs the reminder.
func (n *LogNotifier) Send(ctx context.Context, r *model.ReminderLog) error {
	n.logger.Info().
		Int64("user_id", r.UserID).
		Int64("reminder_id", r.ID).
		Str("channel", string(r.Channel)).
		Str("message", r.Message).
		Msg("reminder delivered (log only)")
	return nil
}
