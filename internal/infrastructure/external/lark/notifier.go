package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/tutoring-backoffice/internal/application/port"
)

const (
	successPrefix = "[OK] "
	errorPrefix   = "[ERROR] "
)

// Notifier posts ops announcements as text messages to a Lark group chat
type Notifier struct {
	messageAPI *MessageAPI
	chatID     string
	logger     *zap.Logger
}

// NewNotifier creates a notifier bound to the client's ops chat
func NewNotifier(client *SDKClient, logger *zap.Logger) *Notifier {
	return newNotifier(client.Messages(), client.ChatID(), logger)
}

func newNotifier(messages messageCreator, chatID string, logger *zap.Logger) *Notifier {
	return &Notifier{
		messageAPI: NewMessageAPI(messages, logger),
		chatID:     chatID,
		logger:     logger,
	}
}

func (n *Notifier) NotifySuccess(ctx context.Context, message string) error {
	return n.post(ctx, successPrefix+message)
}

func (n *Notifier) NotifyError(ctx context.Context, message string) error {
	return n.post(ctx, errorPrefix+message)
}

func (n *Notifier) post(ctx context.Context, text string) error {
	if n.chatID == "" {
		return fmt.Errorf("lark chat id is not configured")
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("content cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal text content: %w", err)
	}

	if _, err := n.messageAPI.SendMessage(ctx, "chat_id", n.chatID, "text", string(content)); err != nil {
		return fmt.Errorf("failed to notify ops chat: %w", err)
	}
	return nil
}

var _ port.Notifier = (*Notifier)(nil)
