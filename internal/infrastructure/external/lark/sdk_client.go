package lark

import (
	"context"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string
	ChatID    string // Ops group chat that receives announcements
	BaseURL   string // Optional, e.g. https://open.larksuite.com for the international tenant
}

// messageCreator is the slice of the IM API the notifier needs
type messageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// SDKClient wraps the Lark SDK client
type SDKClient struct {
	client *lark.Client
	chatID string
	logger *zap.Logger
}

// NewSDKClient creates a new Lark SDK client
func NewSDKClient(cfg Config, logger *zap.Logger) *SDKClient {
	opts := []lark.ClientOptionFunc{
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(cfg.BaseURL))
	}

	return &SDKClient{
		client: lark.NewClient(cfg.AppID, cfg.AppSecret, opts...),
		chatID: cfg.ChatID,
		logger: logger,
	}
}

// Messages returns the IM message API of the underlying SDK client
func (c *SDKClient) Messages() messageCreator {
	return c.client.Im.Message
}

// ChatID returns the configured ops chat
func (c *SDKClient) ChatID() string {
	return c.chatID
}
