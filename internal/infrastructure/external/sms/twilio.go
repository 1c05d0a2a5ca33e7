package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/tutoring-backoffice/internal/application/port"
)

// DefaultAPIURL is the Twilio REST base URL
const DefaultAPIURL = "https://api.twilio.com"

// Config holds the carrier credentials
type Config struct {
	APIURL     string
	AccountSID string
	AuthToken  string
	FromNumber string
	Timeout    time.Duration
}

// TwilioSender sends messages through the Twilio Messages API
type TwilioSender struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type errorResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

// NewTwilioSender creates a new carrier client
func NewTwilioSender(cfg Config, logger *zap.Logger) *TwilioSender {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &TwilioSender{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Send posts one message and returns the carrier's message SID
func (s *TwilioSender) Send(ctx context.Context, msg port.OutboundSms) (string, error) {
	form := url.Values{}
	form.Set("To", msg.To)
	form.Set("From", s.config.FromNumber)
	form.Set("Body", msg.Body)
	for _, media := range msg.MediaURLs {
		form.Add("MediaUrl", media)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.config.APIURL, url.PathEscape(s.config.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(s.config.AccountSID, s.config.AuthToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("SMS request failed", zap.String("to", msg.To), zap.Error(err))
		return "", fmt.Errorf("sms request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read sms response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			s.logger.Error("Carrier rejected SMS",
				zap.String("to", msg.To),
				zap.Int("status", resp.StatusCode),
				zap.Int("code", apiErr.Code),
				zap.String("message", apiErr.Message))
			return "", fmt.Errorf("carrier error %d: %s", apiErr.Code, apiErr.Message)
		}
		return "", fmt.Errorf("carrier returned %d", resp.StatusCode)
	}

	var out messageResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to decode sms response: %w", err)
	}
	if out.SID == "" {
		return "", fmt.Errorf("carrier response missing message sid")
	}

	s.logger.Debug("SMS accepted by carrier",
		zap.String("to", msg.To),
		zap.String("sid", out.SID),
		zap.String("status", out.Status))
	return out.SID, nil
}

var _ port.SmsSender = (*TwilioSender)(nil)
