package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/tutoring-backoffice/internal/application/port"
	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
	"github.com/garyjia/tutoring-backoffice/internal/domain/event"
	"github.com/garyjia/tutoring-backoffice/internal/domain/payroll"
)

// PaymentNotificationService posts one payment webhook per teacher of a paid run
type PaymentNotificationService interface {
	// NotifyRunPaid sends the webhooks for a paid run and records every attempt.
	// Individual failures are recorded and counted, not returned.
	NotifyRunPaid(ctx context.Context, runID string) (*PaymentNotificationSummary, error)
	// HandleRunPaid adapts NotifyRunPaid to the event dispatcher
	HandleRunPaid(ctx context.Context, evt *event.Event) error
	ListNotifications(ctx context.Context, runID string) ([]*entity.PaymentNotification, error)
}

// PaymentNotificationSummary counts the webhook attempts of one run
type PaymentNotificationSummary struct {
	RunID  string `json:"run_id"`
	Sent   int    `json:"sent"`
	Failed int    `json:"failed"`
}

type paymentNotificationServiceImpl struct {
	runRepo          port.PayrollRunRepository
	itemRepo         port.LineItemRepository
	teacherRepo      port.TeacherRepository
	notificationRepo port.PaymentNotificationRepository
	webhook          port.PaymentWebhook
	notifier         port.Notifier
	logger           Logger
}

// NewPaymentNotificationService creates a new PaymentNotificationService.
// A nil webhook disables delivery; notifier may be nil.
func NewPaymentNotificationService(
	runRepo port.PayrollRunRepository,
	itemRepo port.LineItemRepository,
	teacherRepo port.TeacherRepository,
	notificationRepo port.PaymentNotificationRepository,
	webhook port.PaymentWebhook,
	notifier port.Notifier,
	logger Logger,
) PaymentNotificationService {
	return &paymentNotificationServiceImpl{
		runRepo:          runRepo,
		itemRepo:         itemRepo,
		teacherRepo:      teacherRepo,
		notificationRepo: notificationRepo,
		webhook:          webhook,
		notifier:         notifier,
		logger:           logger,
	}
}

func (s *paymentNotificationServiceImpl) HandleRunPaid(ctx context.Context, evt *event.Event) error {
	runID := evt.GetPayloadString("run_id")
	if runID == "" {
		runID = evt.AggregateID
	}
	_, err := s.NotifyRunPaid(ctx, runID)
	return err
}

func (s *paymentNotificationServiceImpl) NotifyRunPaid(ctx context.Context, runID string) (*PaymentNotificationSummary, error) {
	summary := &PaymentNotificationSummary{RunID: runID}
	if s.webhook == nil {
		s.logger.Info("Payment webhook not configured, skipping notifications", "run_id", runID)
		return summary, nil
	}

	run, err := s.runRepo.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	if run.Status != entity.RunStatusPaid {
		return nil, entity.NewValidationError("status", fmt.Sprintf("run %s is %s, not paid", runID, run.Status))
	}

	items, err := s.itemRepo.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list line items of run %s: %w", runID, err)
	}

	groups := payroll.GroupByTeacher(items)
	teacherIDs := make([]string, 0, len(groups))
	for id := range groups {
		teacherIDs = append(teacherIDs, id)
	}
	sort.Strings(teacherIDs)

	for _, teacherID := range teacherIDs {
		if s.notifyTeacher(ctx, run, teacherID, groups[teacherID]) {
			summary.Sent++
		} else {
			summary.Failed++
		}
	}

	s.logger.Info("Payment notifications finished",
		"run_id", runID, "sent", summary.Sent, "failed", summary.Failed)
	s.announce(ctx, run, summary)
	return summary, nil
}

// notifyTeacher records and sends one webhook; it reports whether the send succeeded
func (s *paymentNotificationServiceImpl) notifyTeacher(ctx context.Context, run *entity.PayrollRun, teacherID string, items []*entity.PayrollLineItem) bool {
	teacher, err := s.teacherRepo.GetByID(ctx, teacherID)
	if err != nil {
		s.logger.Error("Failed to load teacher for payment notification",
			"error", err, "run_id", run.ID, "teacher_id", teacherID)
		teacher = &entity.Teacher{ID: teacherID}
	}

	payload := BuildPaymentPayload(run, teacher, items, time.Now())
	notification := &entity.PaymentNotification{
		PaymentID:   payload.PaymentID,
		RunID:       run.ID,
		TeacherID:   teacherID,
		Status:      entity.NotificationStatusPending,
		TotalAmount: payload.Amounts.Total,
		TotalHours:  payload.Amounts.Hours,
	}
	recorded := true
	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		recorded = false
		s.logger.Error("Failed to record payment notification",
			"error", err, "run_id", run.ID, "teacher_id", teacherID)
	}

	if err := s.webhook.Send(ctx, payload); err != nil {
		s.logger.Error("Payment webhook failed",
			"error", err, "run_id", run.ID, "teacher_id", teacherID, "payment_id", payload.PaymentID)
		if recorded {
			if markErr := s.notificationRepo.MarkFailed(ctx, notification.ID, err.Error()); markErr != nil {
				s.logger.Error("Failed to mark payment notification failed", "error", markErr, "id", notification.ID)
			}
		}
		return false
	}

	if recorded {
		if err := s.notificationRepo.MarkSent(ctx, notification.ID); err != nil {
			s.logger.Error("Failed to mark payment notification sent", "error", err, "id", notification.ID)
		}
	}
	s.logger.Info("Payment webhook sent",
		"run_id", run.ID, "teacher_id", teacherID, "payment_id", payload.PaymentID, "total", payload.Amounts.Total)
	return true
}

func (s *paymentNotificationServiceImpl) announce(ctx context.Context, run *entity.PayrollRun, summary *PaymentNotificationSummary) {
	if s.notifier == nil {
		return
	}

	msg := fmt.Sprintf("Payroll %s to %s paid: %d payment notifications sent, %d failed",
		run.PeriodStart.Format(time.DateOnly), run.PeriodEnd.Format(time.DateOnly), summary.Sent, summary.Failed)

	var err error
	if summary.Failed > 0 {
		err = s.notifier.NotifyError(ctx, msg)
	} else {
		err = s.notifier.NotifySuccess(ctx, msg)
	}
	if err != nil {
		s.logger.Error("Failed to notify ops", "error", err, "run_id", run.ID)
	}
}

func (s *paymentNotificationServiceImpl) ListNotifications(ctx context.Context, runID string) ([]*entity.PaymentNotification, error) {
	notifications, err := s.notificationRepo.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list notifications of run %s: %w", runID, err)
	}
	return notifications, nil
}

// BuildPaymentPayload assembles the webhook body for one teacher of a run
func BuildPaymentPayload(run *entity.PayrollRun, teacher *entity.Teacher, items []*entity.PayrollLineItem, now time.Time) *entity.PaymentPayload {
	amounts := make([]float64, 0, len(items))
	hours := make([]float64, 0, len(items))
	lines := make([]entity.PaymentLineItem, 0, len(items))
	for _, item := range items {
		amounts = append(amounts, item.FinalAmount)
		hours = append(hours, item.ActualHours)
		lines = append(lines, entity.PaymentLineItem{
			ID:          item.ID,
			Description: item.Description,
			Hours:       item.ActualHours,
			Rate:        item.HourlyRate,
			Amount:      item.FinalAmount,
			RateSource:  item.RateSource,
		})
	}

	return &entity.PaymentPayload{
		PaymentID: uuid.NewString(),
		Teacher: entity.PaymentTeacher{
			ID:    teacher.ID,
			Name:  teacher.Name,
			Email: teacher.Email,
		},
		Amounts: entity.PaymentAmounts{
			Total: payroll.Sum(amounts...),
			Hours: payroll.Sum(hours...),
		},
		Period: entity.PaymentPeriod{
			Start: run.PeriodStart.Format(time.DateOnly),
			End:   run.PeriodEnd.Format(time.DateOnly),
		},
		LineItems:     lines,
		PaymentMethod: teacher.PaymentMethod,
		Timestamp:     now.UTC(),
	}
}

// OpsAnnouncer relays domain events to the ops Notifier
type OpsAnnouncer struct {
	notifier port.Notifier
	logger   Logger
}

// NewOpsAnnouncer creates an announcer posting to notifier
func NewOpsAnnouncer(notifier port.Notifier, logger Logger) *OpsAnnouncer {
	return &OpsAnnouncer{notifier: notifier, logger: logger}
}

// Handle is a dispatcher handler for run generation, enrollment end and SMS batch events
func (a *OpsAnnouncer) Handle(ctx context.Context, evt *event.Event) error {
	msg, isError := describeEvent(evt)
	if msg == "" {
		return nil
	}

	var err error
	if isError {
		err = a.notifier.NotifyError(ctx, msg)
	} else {
		err = a.notifier.NotifySuccess(ctx, msg)
	}
	if err != nil {
		a.logger.Error("Failed to notify ops", "error", err, "event_type", evt.Type, "event_id", evt.ID)
		return fmt.Errorf("notify ops: %w", err)
	}
	return nil
}

func describeEvent(evt *event.Event) (string, bool) {
	switch evt.Type {
	case event.TypeRunGenerated:
		return fmt.Sprintf("Payroll draft generated for %s to %s: %d line items, %d teachers, total %.2f",
			evt.GetPayloadString("period_start"), evt.GetPayloadString("period_end"),
			evt.GetPayloadInt("line_items"), evt.GetPayloadInt("teacher_count"), evt.GetPayloadFloat("total")), false
	case event.TypeEnrollmentEnded:
		return fmt.Sprintf("Enrollment %s (%s) ended on %s, %d assignments closed",
			evt.AggregateID, evt.GetPayloadString("student_name"), evt.GetPayloadString("end_date"),
			evt.GetPayloadInt("assignments_ended")), false
	case event.TypeSmsBatchSent:
		failed := evt.GetPayloadInt("failed")
		return fmt.Sprintf("SMS batch %s: %d sent, %d failed, %d skipped, estimated cost $%.4f",
			evt.AggregateID, evt.GetPayloadInt("sent"), failed, evt.GetPayloadInt("skipped"),
			evt.GetPayloadFloat("estimated_cost")), failed > 0
	}
	return "", false
}
