package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
	"github.com/garyjia/tutoring-backoffice/internal/domain/event"
)

type notificationFixture struct {
	svc           PaymentNotificationService
	runs          *mockRunRepo
	items         *mockLineItemRepo
	notifications *mockPaymentNotificationRepo
	webhook       *mockWebhook
	notifier      *mockNotifier
	logger        *mockLogger
}

func newNotificationFixture(t *testing.T, status entity.RunStatus) *notificationFixture {
	t.Helper()

	f := &notificationFixture{
		runs:          newMockRunRepo(),
		items:         newMockLineItemRepo(),
		notifications: newMockPaymentNotificationRepo(),
		webhook:       &mockWebhook{},
		notifier:      &mockNotifier{},
		logger:        &mockLogger{},
	}

	f.runs.put(entity.PayrollRun{
		ID:          "run-1",
		PeriodStart: date(2024, 3, 4),
		PeriodEnd:   date(2024, 3, 17),
		Status:      status,
		Version:     4,
	})
	ctx := context.Background()
	for _, item := range []*entity.PayrollLineItem{
		{ID: "li-1", RunID: "run-1", TeacherID: "t2", Description: "Assignment a3", ActualHours: 6, HourlyRate: 25, FinalAmount: 150, RateSource: entity.RateSourceTeacherDefault},
		{ID: "li-2", RunID: "run-1", TeacherID: "t1", Description: "Math - Kim", ActualHours: 4, HourlyRate: 50, FinalAmount: 200, RateSource: entity.RateSourceAssignment},
		{ID: "li-3", RunID: "run-1", TeacherID: "t1", Description: "Math - Kim", ActualHours: 2, HourlyRate: 35, FinalAmount: 70.1, RateSource: entity.RateSourceServiceDefault},
		{ID: "li-4", RunID: "run-2", TeacherID: "t1", Description: "other run", ActualHours: 1, HourlyRate: 10, FinalAmount: 10},
	} {
		require.NoError(t, f.items.Create(ctx, item))
	}

	teachers := newMockTeacherRepo(
		&entity.Teacher{ID: "t1", Name: "Ana", Email: "ana@school.test", PaymentMethod: "ach"},
		&entity.Teacher{ID: "t2", Name: "Ben", Email: "ben@school.test", PaymentMethod: "check"},
	)
	f.svc = NewPaymentNotificationService(f.runs, f.items, teachers, f.notifications, f.webhook, f.notifier, f.logger)
	return f
}

func TestPaymentNotificationService_NotifyRunPaid(t *testing.T) {
	f := newNotificationFixture(t, entity.RunStatusPaid)

	summary, err := f.svc.NotifyRunPaid(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, &PaymentNotificationSummary{RunID: "run-1", Sent: 2, Failed: 0}, summary)

	require.Len(t, f.webhook.payloads, 2)
	ana := f.webhook.payloads[0]
	assert.Equal(t, "t1", ana.Teacher.ID)
	assert.Equal(t, "ana@school.test", ana.Teacher.Email)
	assert.Equal(t, 270.1, ana.Amounts.Total)
	assert.Equal(t, 6.0, ana.Amounts.Hours)
	assert.Equal(t, "2024-03-04", ana.Period.Start)
	assert.Equal(t, "2024-03-17", ana.Period.End)
	assert.Equal(t, "ach", ana.PaymentMethod)
	require.Len(t, ana.LineItems, 2)
	assert.Equal(t, "li-2", ana.LineItems[0].ID)
	assert.Equal(t, entity.RateSourceAssignment, ana.LineItems[0].RateSource)
	assert.NotEmpty(t, ana.PaymentID)

	assert.Equal(t, "t2", f.webhook.payloads[1].Teacher.ID)
	assert.NotEqual(t, ana.PaymentID, f.webhook.payloads[1].PaymentID)

	records, err := f.svc.ListNotifications(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, entity.NotificationStatusSent, r.Status)
	}
	assert.Equal(t, ana.PaymentID, records[0].PaymentID)
	assert.Equal(t, 270.1, records[0].TotalAmount)

	require.Len(t, f.notifier.successes, 1)
	assert.Contains(t, f.notifier.successes[0], "2 payment notifications sent, 0 failed")
	assert.Empty(t, f.notifier.failures)
}

func TestPaymentNotificationService_NotifyRunPaid_PartialFailure(t *testing.T) {
	f := newNotificationFixture(t, entity.RunStatusPaid)
	f.webhook.sendFunc = func(ctx context.Context, payload *entity.PaymentPayload) error {
		if payload.Teacher.ID == "t2" {
			return errors.New("webhook returned 502")
		}
		return nil
	}

	summary, err := f.svc.NotifyRunPaid(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 1, summary.Failed)

	records, err := f.svc.ListNotifications(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, entity.NotificationStatusSent, records[0].Status)
	assert.Equal(t, entity.NotificationStatusFailed, records[1].Status)
	assert.Equal(t, "webhook returned 502", records[1].ErrorMessage)

	assert.Empty(t, f.notifier.successes)
	require.Len(t, f.notifier.failures, 1)
	assert.Contains(t, f.notifier.failures[0], "Payroll 2024-03-04 to 2024-03-17 paid")
	assert.True(t, f.logger.hasError("Payment webhook failed"))
}

func TestPaymentNotificationService_NotifyRunPaid_RequiresPaidRun(t *testing.T) {
	f := newNotificationFixture(t, entity.RunStatusApproved)

	_, err := f.svc.NotifyRunPaid(context.Background(), "run-1")
	assert.True(t, errors.Is(err, entity.ErrValidation))
	assert.Empty(t, f.webhook.payloads)
}

func TestPaymentNotificationService_NoWebhook(t *testing.T) {
	f := newNotificationFixture(t, entity.RunStatusPaid)
	f.svc = NewPaymentNotificationService(f.runs, f.items, newMockTeacherRepo(), f.notifications, nil, nil, f.logger)

	summary, err := f.svc.NotifyRunPaid(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Zero(t, summary.Sent)
	assert.Zero(t, summary.Failed)

	records, err := f.svc.ListNotifications(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPaymentNotificationService_HandleRunPaid(t *testing.T) {
	f := newNotificationFixture(t, entity.RunStatusPaid)

	err := f.svc.HandleRunPaid(context.Background(), event.NewEvent(event.TypeRunPaid, "run-1", nil))
	require.NoError(t, err)
	assert.Len(t, f.webhook.payloads, 2)
}

func TestBuildPaymentPayload_UnknownTeacher(t *testing.T) {
	run := &entity.PayrollRun{ID: "run-1", PeriodStart: date(2024, 3, 4), PeriodEnd: date(2024, 3, 17)}
	items := []*entity.PayrollLineItem{
		{ID: "li-1", ActualHours: 1.25, HourlyRate: 40, FinalAmount: 50},
		{ID: "li-2", ActualHours: 0.1, HourlyRate: 40, FinalAmount: 4.2},
	}
	local := time.Date(2024, 3, 18, 10, 0, 0, 0, time.FixedZone("PDT", -7*3600))

	payload := BuildPaymentPayload(run, &entity.Teacher{ID: "t9"}, items, local)
	assert.Equal(t, "t9", payload.Teacher.ID)
	assert.Empty(t, payload.Teacher.Name)
	assert.Equal(t, 54.2, payload.Amounts.Total)
	assert.Equal(t, 1.35, payload.Amounts.Hours)
	assert.Equal(t, time.UTC, payload.Timestamp.Location())
	assert.True(t, payload.Timestamp.Equal(local))
}

func TestOpsAnnouncer_Handle(t *testing.T) {
	tests := []struct {
		name        string
		evt         *event.Event
		wantSuccess string
		wantFailure string
	}{
		{
			name: "run generated",
			evt: event.NewEvent(event.TypeRunGenerated, "run-1", map[string]interface{}{
				"period_start": "2024-03-04", "period_end": "2024-03-17",
				"line_items": 3, "teacher_count": 2, "total": 420.0,
			}),
			wantSuccess: "Payroll draft generated for 2024-03-04 to 2024-03-17: 3 line items, 2 teachers, total 420.00",
		},
		{
			name: "enrollment ended",
			evt: event.NewEvent(event.TypeEnrollmentEnded, "e1", map[string]interface{}{
				"student_name": "Kim", "end_date": "2024-03-15", "assignments_ended": 2,
			}),
			wantSuccess: "Enrollment e1 (Kim) ended on 2024-03-15, 2 assignments closed",
		},
		{
			name: "sms batch with failures",
			evt: event.NewEvent(event.TypeSmsBatchSent, "batch-1", map[string]interface{}{
				"sent": 8, "failed": 2, "skipped": 1, "estimated_cost": 0.0632,
			}),
			wantFailure: "SMS batch batch-1: 8 sent, 2 failed, 1 skipped, estimated cost $0.0632",
		},
		{
			name: "ignored type",
			evt:  event.NewEvent(event.TypeRunStatusChanged, "run-1", nil),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &mockNotifier{}
			announcer := NewOpsAnnouncer(notifier, &mockLogger{})

			require.NoError(t, announcer.Handle(context.Background(), tt.evt))

			if tt.wantSuccess != "" {
				assert.Equal(t, []string{tt.wantSuccess}, notifier.successes)
			} else {
				assert.Empty(t, notifier.successes)
			}
			if tt.wantFailure != "" {
				assert.Equal(t, []string{tt.wantFailure}, notifier.failures)
			} else {
				assert.Empty(t, notifier.failures)
			}
		})
	}
}
