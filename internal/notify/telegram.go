package notify

import (
	"context"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier отправляет сообщение в чат; destination это chat id
type TelegramNotifier struct {
	bot    messageSender
	logger *zap.Logger
}

func NewTelegramNotifier(b messageSender, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{bot: b, logger: logger}
}

// NewTelegramBot создаёт клиента только для отправки, без регистрации хендлеров
func NewTelegramBot(token string) (*bot.Bot, error) {
	return bot.New(token, bot.WithSkipGetMe())
}

func (n *TelegramNotifier) Send(ctx context.Context, destination, payload string) bool {
	chatID, err := strconv.ParseInt(destination, 10, 64)
	if err != nil {
		n.logger.Warn("Invalid telegram chat id", zap.String("destination", destination))
		return false
	}

	_, err = n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   payload,
	})
	if err != nil {
		n.logger.Error("Failed to send telegram message", zap.Int64("chat_id", chatID), zap.Error(err))
		return false
	}

	return true
}
