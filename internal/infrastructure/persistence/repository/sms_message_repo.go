package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/tutoring-backoffice/internal/application/port"
	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
	"github.com/garyjia/tutoring-backoffice/internal/infrastructure/persistence/sqlite"
)

// SmsMessageRepository implements port.SmsMessageRepository
type SmsMessageRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSmsMessageRepository creates a new SMS message repository
func NewSmsMessageRepository(db *sql.DB, logger *zap.Logger) port.SmsMessageRepository {
	return &SmsMessageRepository{db: db, logger: logger}
}

const smsColumns = `id, batch_id, recipient_id, to_number, body, media_urls, segments, encoding, status,
	provider_message_id, error_message, created_at, updated_at`

// Create inserts a message record
func (r *SmsMessageRepository) Create(ctx context.Context, msg *entity.SmsMessage) error {
	now := time.Now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	if msg.UpdatedAt.IsZero() {
		msg.UpdatedAt = now
	}

	mediaURLs := msg.MediaURLs
	if mediaURLs == nil {
		mediaURLs = []string{}
	}
	media, err := json.Marshal(mediaURLs)
	if err != nil {
		return fmt.Errorf("failed to encode media urls: %w", err)
	}

	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		`INSERT INTO sms_messages (`+smsColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID,
		msg.BatchID,
		msg.RecipientID,
		msg.To,
		msg.Body,
		string(media),
		msg.Segments,
		msg.Encoding,
		msg.Status,
		msg.ProviderMessageID,
		msg.ErrorMessage,
		msg.CreatedAt,
		msg.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create SMS message",
			zap.String("message_id", msg.ID),
			zap.String("batch_id", msg.BatchID),
			zap.Error(err))
		return fmt.Errorf("failed to create sms message: %w", err)
	}
	return nil
}

// GetByID retrieves a message by ID
func (r *SmsMessageRepository) GetByID(ctx context.Context, id string) (*entity.SmsMessage, error) {
	return r.getOne(ctx, "id", id)
}

// GetByProviderMessageID retrieves a message by the id the provider assigned
func (r *SmsMessageRepository) GetByProviderMessageID(ctx context.Context, providerMessageID string) (*entity.SmsMessage, error) {
	if providerMessageID == "" {
		return nil, notFound("sms message", "with empty provider id")
	}
	return r.getOne(ctx, "provider_message_id", providerMessageID)
}

func (r *SmsMessageRepository) getOne(ctx context.Context, column, value string) (*entity.SmsMessage, error) {
	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+smsColumns+` FROM sms_messages WHERE `+column+` = ?`, value)

	msg, err := scanSmsMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("sms message", value)
	}
	if err != nil {
		r.logger.Error("Failed to get SMS message", zap.String(column, value), zap.Error(err))
		return nil, fmt.Errorf("failed to get sms message: %w", err)
	}
	return msg, nil
}

// ListByBatch returns the batch's messages ordered by destination number
func (r *SmsMessageRepository) ListByBatch(ctx context.Context, batchID string) ([]*entity.SmsMessage, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx,
		`SELECT `+smsColumns+` FROM sms_messages WHERE batch_id = ? ORDER BY to_number, id`, batchID)
	if err != nil {
		r.logger.Error("Failed to list SMS batch", zap.String("batch_id", batchID), zap.Error(err))
		return nil, fmt.Errorf("failed to list sms batch: %w", err)
	}
	defer rows.Close()

	var messages []*entity.SmsMessage
	for rows.Next() {
		msg, err := scanSmsMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sms message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// UpdateStatus records a send result or a delivery callback. Rows already in
// a final status are left untouched.
func (r *SmsMessageRepository) UpdateStatus(ctx context.Context, id, status, providerMessageID, errorMessage string) error {
	exec := sqlite.ExecutorFrom(ctx, r.db)
	result, err := exec.ExecContext(ctx, `
		UPDATE sms_messages
		SET status = ?, provider_message_id = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		status, providerMessageID, errorMessage, time.Now(), id,
		entity.SmsStatusPending, entity.SmsStatusSent,
	)
	if err != nil {
		r.logger.Error("Failed to update SMS status",
			zap.String("message_id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to update sms status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		var stored string
		err := exec.QueryRowContext(ctx, `SELECT status FROM sms_messages WHERE id = ?`, id).Scan(&stored)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("sms message", id)
		}
		if err != nil {
			return fmt.Errorf("failed to check sms status: %w", err)
		}
		return fmt.Errorf("sms message %s is %s: %w", id, stored, entity.ErrFinalStatus)
	}
	return nil
}

func scanSmsMessage(row rowScanner) (*entity.SmsMessage, error) {
	var (
		msg   entity.SmsMessage
		media string
	)
	err := row.Scan(
		&msg.ID,
		&msg.BatchID,
		&msg.RecipientID,
		&msg.To,
		&msg.Body,
		&media,
		&msg.Segments,
		&msg.Encoding,
		&msg.Status,
		&msg.ProviderMessageID,
		&msg.ErrorMessage,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if media != "" {
		if err := json.Unmarshal([]byte(media), &msg.MediaURLs); err != nil {
			return nil, fmt.Errorf("invalid media urls for message %s: %w", msg.ID, err)
		}
	}
	if len(msg.MediaURLs) == 0 {
		msg.MediaURLs = nil
	}
	return &msg, nil
}

// Verify interface compliance
var _ port.SmsMessageRepository = (*SmsMessageRepository)(nil)
