package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/tutoring-backoffice/internal/application/port"
	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
	"github.com/garyjia/tutoring-backoffice/internal/infrastructure/persistence/sqlite"
)

// PaymentNotificationRepository implements port.PaymentNotificationRepository
type PaymentNotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPaymentNotificationRepository creates a new payment notification repository
func NewPaymentNotificationRepository(db *sql.DB, logger *zap.Logger) port.PaymentNotificationRepository {
	return &PaymentNotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create records a webhook attempt and sets its ID
func (r *PaymentNotificationRepository) Create(ctx context.Context, notification *entity.PaymentNotification) error {
	query := `
		INSERT INTO payment_notifications (
			payment_id, run_id, teacher_id, status, total_amount, total_hours,
			sent_at, error_message, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = now
	}
	notification.UpdatedAt = now
	if notification.Status == "" {
		notification.Status = entity.NotificationStatusPending
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		notification.PaymentID,
		notification.RunID,
		notification.TeacherID,
		notification.Status,
		notification.TotalAmount,
		notification.TotalHours,
		nullableTime(notification.SentAt),
		notification.ErrorMessage,
		notification.CreatedAt,
		notification.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create payment notification",
			zap.String("run_id", notification.RunID),
			zap.String("teacher_id", notification.TeacherID),
			zap.Error(err))
		return fmt.Errorf("failed to create payment notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	notification.ID = id
	return nil
}

// MarkSent marks a notification as delivered to the webhook
func (r *PaymentNotificationRepository) MarkSent(ctx context.Context, id int64) error {
	query := `
		UPDATE payment_notifications
		SET status = ?, sent_at = ?, error_message = '', updated_at = ?
		WHERE id = ?
	`

	now := time.Now()
	if err := r.exec(ctx, query, entity.NotificationStatusSent, now, now, id); err != nil {
		r.logger.Error("Failed to mark payment notification as sent",
			zap.Int64("id", id),
			zap.Error(err))
		return fmt.Errorf("failed to mark sent: %w", err)
	}
	return nil
}

// MarkFailed marks a notification as failed with the webhook error
func (r *PaymentNotificationRepository) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE payment_notifications
		SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`

	if err := r.exec(ctx, query, entity.NotificationStatusFailed, errorMessage, time.Now(), id); err != nil {
		r.logger.Error("Failed to mark payment notification as failed",
			zap.Int64("id", id),
			zap.Error(err))
		return fmt.Errorf("failed to mark failed: %w", err)
	}
	return nil
}

func (r *PaymentNotificationRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return notFound("payment notification", fmt.Sprint(args[len(args)-1]))
	}
	return nil
}

// ListByRun returns the run's notifications in creation order
func (r *PaymentNotificationRepository) ListByRun(ctx context.Context, runID string) ([]*entity.PaymentNotification, error) {
	query := `
		SELECT id, payment_id, run_id, teacher_id, status, total_amount, total_hours,
			sent_at, error_message, created_at, updated_at
		FROM payment_notifications
		WHERE run_id = ?
		ORDER BY id
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, runID)
	if err != nil {
		r.logger.Error("Failed to list payment notifications",
			zap.String("run_id", runID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list payment notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*entity.PaymentNotification
	for rows.Next() {
		var (
			n      entity.PaymentNotification
			sentAt sql.NullTime
		)
		err := rows.Scan(
			&n.ID,
			&n.PaymentID,
			&n.RunID,
			&n.TeacherID,
			&n.Status,
			&n.TotalAmount,
			&n.TotalHours,
			&sentAt,
			&n.ErrorMessage,
			&n.CreatedAt,
			&n.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment notification: %w", err)
		}
		n.SentAt = timePtr(sentAt)
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// Verify interface compliance
var _ port.PaymentNotificationRepository = (*PaymentNotificationRepository)(nil)
