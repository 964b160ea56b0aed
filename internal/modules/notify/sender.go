// README: Outbound message senders. WhatsApp delivery is mocked by a logging sender.
package notify

import (
	"context"

	"go.uber.org/zap"
)

type Sender interface {
	Send(ctx context.Context, phone, text string) error
}

// LogSender stands in for the WhatsApp gateway and only logs messages.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, phone, text string) error {
	s.log.Info("whatsapp message", zap.String("phone", phone), zap.String("text", text))
	return nil
}
