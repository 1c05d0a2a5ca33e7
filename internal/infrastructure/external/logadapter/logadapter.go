// Package logadapter provides development stand-ins for the carrier and
// the ops chat that only write to the log.
package logadapter

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/tutoring-backoffice/internal/application/port"
)

// SmsSender logs outbound messages instead of sending them
type SmsSender struct {
	logger *zap.Logger
}

// NewSmsSender creates a log-only SMS sender
func NewSmsSender(logger *zap.Logger) *SmsSender {
	return &SmsSender{logger: logger}
}

// Send logs the message and returns a synthetic message id
func (s *SmsSender) Send(ctx context.Context, msg port.OutboundSms) (string, error) {
	id := "LOG" + uuid.NewString()
	s.logger.Info("SMS (log sender)",
		zap.String("message_id", id),
		zap.String("to", msg.To),
		zap.String("body", msg.Body),
		zap.Strings("media_urls", msg.MediaURLs))
	return id, nil
}

// Notifier writes ops announcements to the log
type Notifier struct {
	logger *zap.Logger
}

// NewNotifier creates a log-only notifier
func NewNotifier(logger *zap.Logger) *Notifier {
	return &Notifier{logger: logger}
}

func (n *Notifier) NotifySuccess(ctx context.Context, message string) error {
	n.logger.Info("Ops notification", zap.String("message", message))
	return nil
}

func (n *Notifier) NotifyError(ctx context.Context, message string) error {
	n.logger.Warn("Ops notification", zap.String("message", message))
	return nil
}

var (
	_ port.SmsSender = (*SmsSender)(nil)
	_ port.Notifier  = (*Notifier)(nil)
)
