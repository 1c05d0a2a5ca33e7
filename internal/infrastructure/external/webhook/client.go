package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/tutoring-backoffice/internal/application/port"
	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body
const SignatureHeader = "X-Signature"

const maxErrorBody = 512

// Config holds payment webhook configuration
type Config struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// PaymentClient posts payment payloads to the payout webhook
type PaymentClient struct {
	url        string
	secret     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewPaymentClient creates a new payment webhook client
func NewPaymentClient(cfg Config, logger *zap.Logger) *PaymentClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PaymentClient{
		url:        cfg.URL,
		secret:     cfg.Secret,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Send posts one payload. Any non-2xx answer is an error.
func (c *PaymentClient) Send(ctx context.Context, payload *entity.PaymentPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payment payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Payment-Id", payload.PaymentID)
	if c.secret != "" {
		req.Header.Set(SignatureHeader, Sign(c.secret, body))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Payment webhook request failed",
			zap.String("payment_id", payload.PaymentID),
			zap.Error(err))
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Error("Payment webhook rejected payload",
			zap.String("payment_id", payload.PaymentID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	c.logger.Debug("Payment webhook delivered",
		zap.String("payment_id", payload.PaymentID),
		zap.String("teacher_id", payload.Teacher.ID))
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature produced by Sign in constant time.
// An empty secret disables verification.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" {
		return true
	}
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

// Verify interface compliance
var _ port.PaymentWebhook = (*PaymentClient)(nil)
