package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"
)

// Sender posts text to a chat. The chat transport itself lives outside this module.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// LogSender writes messages to the log instead of a chat.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, chatID int64, text string) error {
	s.logger.Info("chat message", "chat_id", chatID, "text", text)
	return nil
}

// DeliveryHandler decodes queued messages and hands their text to sender.
func DeliveryHandler(sender Sender, logger *slog.Logger) func(context.Context, kafkago.Message) error {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, km kafkago.Message) error {
		var msg Message
		if err := json.Unmarshal(km.Value, &msg); err != nil {
			logger.Error("decode notification", "offset", km.Offset, "error", err)
			return nil
		}
		if err := sender.Send(ctx, msg.ChatID, Render(msg)); err != nil {
			return fmt.Errorf("deliver %s %s for booking %d: %w", msg.Kind, msg.ID, msg.BookingID, err)
		}
		return nil
	}
}
