package port

import (
	"context"

	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
)

// PaymentWebhook delivers one payment payload to the payout system
type PaymentWebhook interface {
	Send(ctx context.Context, payload *entity.PaymentPayload) error
}

// OutboundSms is the provider-facing shape of one message
type OutboundSms struct {
	To        string
	Body      string
	MediaURLs []string
}

// SmsSender hands a message to the carrier and returns its message id
type SmsSender interface {
	Send(ctx context.Context, msg OutboundSms) (string, error)
}

// Notifier posts operational messages to the back-office team
type Notifier interface {
	NotifySuccess(ctx context.Context, message string) error
	NotifyError(ctx context.Context, message string) error
}
