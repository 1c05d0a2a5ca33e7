package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/tutoring-backoffice/internal/application/dispatcher"
	"github.com/garyjia/tutoring-backoffice/internal/application/port"
	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
	"github.com/garyjia/tutoring-backoffice/internal/domain/event"
	"github.com/garyjia/tutoring-backoffice/internal/domain/sms"
	"github.com/garyjia/tutoring-backoffice/pkg/utils"
)

const defaultSendConcurrency = 5

// SmsService renders template messages, prices them and sends them in bulk
type SmsService interface {
	GenerateMessage(req sms.TemplateRequest) (string, error)
	Preview(req PreviewRequest) (*SmsPreview, error)
	EstimateCost(recipientCount, segmentsPerMessage int, hasMedia bool) float64
	SendBulk(ctx context.Context, input BulkSendInput) (*entity.BulkSendResult, error)
	// UpdateDeliveryStatus applies a carrier status callback to the message it refers to
	UpdateDeliveryStatus(ctx context.Context, providerMessageID, status, errorMessage string) (*entity.SmsMessage, error)
	GetBatch(ctx context.Context, batchID string) ([]*entity.SmsMessage, error)
}

// PreviewRequest describes a message to price. Template wins over Body when both are set.
type PreviewRequest struct {
	Template       sms.TemplateRequest
	Body           string
	RecipientCount int
	HasMedia       bool
}

// SmsPreview is the rendered message and what sending it would cost
type SmsPreview struct {
	Message          string       `json:"message"`
	Encoding         sms.Encoding `json:"encoding"`
	Units            int          `json:"units"`
	Segments         int          `json:"segments"`
	PerSegment       int          `json:"per_segment"`
	RecipientCount   int          `json:"recipient_count"`
	CostPerRecipient float64      `json:"cost_per_recipient"`
	TotalCost        float64      `json:"total_cost"`
}

// BulkSendInput is one body sent to many recipients
type BulkSendInput struct {
	Body       string
	MediaURLs  []string
	Recipients []entity.SmsRecipient
}

// SmsOptions tunes SmsService
type SmsOptions struct {
	Company           string
	TemplateOverrides map[string]string
	Concurrency       int
}

type smsServiceImpl struct {
	generator   *sms.Generator
	sender      port.SmsSender
	messageRepo port.SmsMessageRepository
	dispatcher  dispatcher.Dispatcher
	logger      Logger
	concurrency int
}

// NewSmsService creates a new SmsService
func NewSmsService(
	sender port.SmsSender,
	messageRepo port.SmsMessageRepository,
	events dispatcher.Dispatcher,
	logger Logger,
	opts SmsOptions,
) SmsService {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultSendConcurrency
	}

	generator := sms.NewGenerator(opts.Company, opts.TemplateOverrides)
	generator.OnRenderError = func(kind sms.TemplateKind, err error) {
		logger.Error("SMS template failed to render", "kind", kind, "error", err)
	}

	return &smsServiceImpl{
		generator:   generator,
		sender:      sender,
		messageRepo: messageRepo,
		dispatcher:  events,
		logger:      logger,
		concurrency: opts.Concurrency,
	}
}

func (s *smsServiceImpl) GenerateMessage(req sms.TemplateRequest) (string, error) {
	return s.generator.Generate(req)
}

func (s *smsServiceImpl) EstimateCost(recipientCount, segmentsPerMessage int, hasMedia bool) float64 {
	return sms.EstimateCost(recipientCount, segmentsPerMessage, hasMedia)
}

func (s *smsServiceImpl) Preview(req PreviewRequest) (*SmsPreview, error) {
	if req.RecipientCount < 0 {
		return nil, entity.NewValidationError("recipient_count", "must not be negative")
	}

	var message string
	if req.Template != nil {
		var err error
		if message, err = s.generator.Generate(req.Template); err != nil {
			return nil, err
		}
	} else {
		if strings.TrimSpace(req.Body) == "" {
			return nil, entity.NewValidationError("body", "either a template or a body is required")
		}
		message = sms.WithFooter(req.Body)
	}

	info := sms.Analyze(message)
	return &SmsPreview{
		Message:          message,
		Encoding:         info.Encoding,
		Units:            info.Units,
		Segments:         info.Segments,
		PerSegment:       info.PerSegment,
		RecipientCount:   req.RecipientCount,
		CostPerRecipient: sms.EstimateCost(1, info.Segments, req.HasMedia),
		TotalCost:        sms.EstimateCost(req.RecipientCount, info.Segments, req.HasMedia),
	}, nil
}

// SendBulk sends body to every eligible recipient. Recipients that opted out
// or whose phone cannot be normalized to E.164 are skipped. Each send is
// persisted before it is attempted; the counts are returned once every send
// has settled.
func (s *smsServiceImpl) SendBulk(ctx context.Context, input BulkSendInput) (*entity.BulkSendResult, error) {
	if strings.TrimSpace(input.Body) == "" {
		return nil, entity.NewValidationError("body", "must not be empty")
	}
	if len(input.Recipients) == 0 {
		return nil, entity.NewValidationError("recipients", "must not be empty")
	}

	body := sms.WithFooter(input.Body)
	info := sms.Analyze(body)
	result := &entity.BulkSendResult{BatchID: uuid.NewString()}

	type target struct {
		recipient entity.SmsRecipient
		phone     string
	}
	var eligible []target
	for _, r := range input.Recipients {
		if r.SmsOptOut {
			result.Skipped++
			continue
		}
		phone, err := utils.NormalizePhone(r.Phone)
		if err != nil {
			s.logger.Info("Skipping recipient with invalid phone", "recipient_id", r.ID, "error", err)
			result.Skipped++
			continue
		}
		eligible = append(eligible, target{recipient: r, phone: phone})
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.concurrency)
	)
	for _, t := range eligible {
		wg.Add(1)
		sem <- struct{}{}
		go func(t target) {
			defer wg.Done()
			defer func() { <-sem }()

			ok := s.sendOne(ctx, result.BatchID, t.recipient.ID, t.phone, body, input.MediaURLs, info)

			mu.Lock()
			defer mu.Unlock()
			if ok {
				result.Sent++
			} else {
				result.Failed++
			}
		}(t)
	}
	wg.Wait()

	s.logger.Info("SMS batch finished",
		"batch_id", result.BatchID,
		"sent", result.Sent,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"segments", info.Segments,
	)

	s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeSmsBatchSent, result.BatchID, map[string]interface{}{
		"sent":           result.Sent,
		"failed":         result.Failed,
		"skipped":        result.Skipped,
		"estimated_cost": sms.EstimateCost(result.Sent, info.Segments, len(input.MediaURLs) > 0),
	}))

	return result, nil
}

func (s *smsServiceImpl) sendOne(ctx context.Context, batchID, recipientID, phone, body string, mediaURLs []string, info sms.SegmentInfo) bool {
	now := time.Now()
	msg := &entity.SmsMessage{
		ID:          uuid.NewString(),
		BatchID:     batchID,
		RecipientID: recipientID,
		To:          phone,
		Body:        body,
		MediaURLs:   mediaURLs,
		Segments:    info.Segments,
		Encoding:    string(info.Encoding),
		Status:      entity.SmsStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		s.logger.Error("Failed to record SMS message, not sending",
			"error", err, "batch_id", batchID, "recipient_id", recipientID)
		return false
	}

	providerID, sendErr := s.sender.Send(ctx, port.OutboundSms{To: phone, Body: body, MediaURLs: mediaURLs})

	status, errMsg := entity.SmsStatusSent, ""
	if sendErr != nil {
		status, errMsg = entity.SmsStatusFailed, sendErr.Error()
		s.logger.Error("SMS send failed", "error", sendErr, "message_id", msg.ID, "recipient_id", recipientID)
	}

	if err := s.messageRepo.UpdateStatus(ctx, msg.ID, status, providerID, errMsg); err != nil {
		if errors.Is(err, entity.ErrFinalStatus) {
			s.logger.Info("Delivery callback arrived before send result, keeping it", "message_id", msg.ID)
		} else {
			s.logger.Error("Failed to record SMS send result",
				"error", err, "message_id", msg.ID, "status", status)
		}
	}
	return sendErr == nil
}

func (s *smsServiceImpl) UpdateDeliveryStatus(ctx context.Context, providerMessageID, status, errorMessage string) (*entity.SmsMessage, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !entity.IsFinalSmsStatus(status) {
		return nil, entity.NewValidationError("status", fmt.Sprintf("unknown delivery status %q", status))
	}
	if providerMessageID == "" {
		return nil, entity.NewValidationError("message_sid", "is required")
	}

	msg, err := s.messageRepo.GetByProviderMessageID(ctx, providerMessageID)
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", providerMessageID, err)
	}

	if entity.IsFinalSmsStatus(msg.Status) {
		s.logger.Info("Ignoring late delivery status", "message_id", msg.ID, "status", status, "current", msg.Status)
		return msg, nil
	}

	if err := s.messageRepo.UpdateStatus(ctx, msg.ID, status, msg.ProviderMessageID, errorMessage); err != nil {
		if errors.Is(err, entity.ErrFinalStatus) {
			s.logger.Info("Ignoring late delivery status", "message_id", msg.ID, "status", status)
			return s.messageRepo.GetByID(ctx, msg.ID)
		}
		s.logger.Error("Failed to update delivery status", "error", err, "message_id", msg.ID)
		return nil, fmt.Errorf("update message %s: %w", msg.ID, err)
	}

	msg.Status = status
	msg.ErrorMessage = errorMessage
	msg.UpdatedAt = time.Now()
	s.logger.Info("SMS delivery status updated", "message_id", msg.ID, "status", status)
	return msg, nil
}

func (s *smsServiceImpl) GetBatch(ctx context.Context, batchID string) ([]*entity.SmsMessage, error) {
	messages, err := s.messageRepo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch %s: %w", batchID, err)
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("batch %s: %w", batchID, entity.ErrNotFound)
	}
	return messages, nil
}
