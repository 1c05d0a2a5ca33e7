package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/tutoring-backoffice/internal/application/port"
	"github.com/garyjia/tutoring-backoffice/internal/application/service"
	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
	"github.com/garyjia/tutoring-backoffice/internal/domain/event"
	"github.com/garyjia/tutoring-backoffice/internal/domain/payroll"
	"github.com/garyjia/tutoring-backoffice/internal/domain/sms"
	"github.com/garyjia/tutoring-backoffice/internal/domain/workflow"
)

type mockPayrollService struct {
	GenerateRunFunc         func(ctx context.Context, start, end time.Time) (*entity.PayrollRunDetail, error)
	GetRunFunc              func(ctx context.Context, runID string) (*entity.PayrollRunDetail, error)
	ListRunsFunc            func(ctx context.Context, filter port.RunFilter) ([]*entity.PayrollRun, error)
	UpdateLineItemHoursFunc func(ctx context.Context, id string, hours float64, expectedVersion *int) (*service.LineItemResult, error)
	BulkAdjustHoursFunc     func(ctx context.Context, runID string, teacherIDs []string, hours float64) (*service.BulkAdjustResult, error)
	AddManualLineItemFunc   func(ctx context.Context, runID string, input service.ManualLineItemInput) (*service.LineItemResult, error)
	AdjustLineItemFunc      func(ctx context.Context, id string, adjustment float64) (*service.LineItemResult, error)
	DeleteLineItemFunc      func(ctx context.Context, id string) (*entity.PayrollRun, error)
	TransitionStatusFunc    func(ctx context.Context, runID string, target entity.RunStatus, actor string, expectedVersion *int) (*entity.PayrollRun, error)
	ExportRunFunc           func(ctx context.Context, runID string) (*service.ExportFile, error)
}

func (m *mockPayrollService) DefaultPeriod(now time.Time) payroll.Period {
	return payroll.DefaultPeriod(now, payroll.DefaultAnchor)
}

func (m *mockPayrollService) GenerateRun(ctx context.Context, start, end time.Time) (*entity.PayrollRunDetail, error) {
	return m.GenerateRunFunc(ctx, start, end)
}

func (m *mockPayrollService) GenerateScheduledRun(ctx context.Context, now time.Time) (*entity.PayrollRunDetail, bool, error) {
	return nil, false, errors.New("not implemented")
}

func (m *mockPayrollService) GetRun(ctx context.Context, runID string) (*entity.PayrollRunDetail, error) {
	return m.GetRunFunc(ctx, runID)
}

func (m *mockPayrollService) ListRuns(ctx context.Context, filter port.RunFilter) ([]*entity.PayrollRun, error) {
	return m.ListRunsFunc(ctx, filter)
}

func (m *mockPayrollService) UpdateLineItemHours(ctx context.Context, id string, hours float64, expectedVersion *int) (*service.LineItemResult, error) {
	return m.UpdateLineItemHoursFunc(ctx, id, hours, expectedVersion)
}

func (m *mockPayrollService) BulkAdjustHours(ctx context.Context, runID string, teacherIDs []string, hours float64) (*service.BulkAdjustResult, error) {
	return m.BulkAdjustHoursFunc(ctx, runID, teacherIDs, hours)
}

func (m *mockPayrollService) AddManualLineItem(ctx context.Context, runID string, input service.ManualLineItemInput) (*service.LineItemResult, error) {
	return m.AddManualLineItemFunc(ctx, runID, input)
}

func (m *mockPayrollService) AdjustLineItem(ctx context.Context, id string, adjustment float64) (*service.LineItemResult, error) {
	return m.AdjustLineItemFunc(ctx, id, adjustment)
}

func (m *mockPayrollService) DeleteLineItem(ctx context.Context, id string) (*entity.PayrollRun, error) {
	return m.DeleteLineItemFunc(ctx, id)
}

func (m *mockPayrollService) TransitionStatus(ctx context.Context, runID string, target entity.RunStatus, actor string, expectedVersion *int) (*entity.PayrollRun, error) {
	return m.TransitionStatusFunc(ctx, runID, target, actor, expectedVersion)
}

func (m *mockPayrollService) ExportRun(ctx context.Context, runID string) (*service.ExportFile, error) {
	return m.ExportRunFunc(ctx, runID)
}

type mockEnrollmentService struct {
	EndEnrollmentFunc func(ctx context.Context, id string, endDate time.Time) (*service.EndEnrollmentResult, error)
}

func (m *mockEnrollmentService) EndEnrollment(ctx context.Context, id string, endDate time.Time) (*service.EndEnrollmentResult, error) {
	return m.EndEnrollmentFunc(ctx, id, endDate)
}

type mockSmsService struct {
	GenerateMessageFunc      func(req sms.TemplateRequest) (string, error)
	PreviewFunc              func(req service.PreviewRequest) (*service.SmsPreview, error)
	SendBulkFunc             func(ctx context.Context, input service.BulkSendInput) (*entity.BulkSendResult, error)
	UpdateDeliveryStatusFunc func(ctx context.Context, sid, status, errMsg string) (*entity.SmsMessage, error)
	GetBatchFunc             func(ctx context.Context, batchID string) ([]*entity.SmsMessage, error)
}

func (m *mockSmsService) GenerateMessage(req sms.TemplateRequest) (string, error) {
	return m.GenerateMessageFunc(req)
}

func (m *mockSmsService) Preview(req service.PreviewRequest) (*service.SmsPreview, error) {
	return m.PreviewFunc(req)
}

func (m *mockSmsService) EstimateCost(recipientCount, segmentsPerMessage int, hasMedia bool) float64 {
	return sms.EstimateCost(recipientCount, segmentsPerMessage, hasMedia)
}

func (m *mockSmsService) SendBulk(ctx context.Context, input service.BulkSendInput) (*entity.BulkSendResult, error) {
	return m.SendBulkFunc(ctx, input)
}

func (m *mockSmsService) UpdateDeliveryStatus(ctx context.Context, sid, status, errMsg string) (*entity.SmsMessage, error) {
	return m.UpdateDeliveryStatusFunc(ctx, sid, status, errMsg)
}

func (m *mockSmsService) GetBatch(ctx context.Context, batchID string) ([]*entity.SmsMessage, error) {
	return m.GetBatchFunc(ctx, batchID)
}

type mockNotificationService struct {
	NotifyRunPaidFunc     func(ctx context.Context, runID string) (*service.PaymentNotificationSummary, error)
	ListNotificationsFunc func(ctx context.Context, runID string) ([]*entity.PaymentNotification, error)
}

func (m *mockNotificationService) NotifyRunPaid(ctx context.Context, runID string) (*service.PaymentNotificationSummary, error) {
	return m.NotifyRunPaidFunc(ctx, runID)
}

func (m *mockNotificationService) HandleRunPaid(ctx context.Context, evt *event.Event) error {
	return nil
}

func (m *mockNotificationService) ListNotifications(ctx context.Context, runID string) ([]*entity.PaymentNotification, error) {
	return m.ListNotificationsFunc(ctx, runID)
}

type mockLogger struct {
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.errors = append(m.errors, msg)
}

type testDeps struct {
	payroll       *mockPayrollService
	enrollment    *mockEnrollmentService
	sms           *mockSmsService
	notifications *mockNotificationService
	logger        *mockLogger
}

func newTestServer(t *testing.T) (*Server, *testDeps) {
	t.Helper()
	deps := &testDeps{
		payroll:       &mockPayrollService{},
		enrollment:    &mockEnrollmentService{},
		sms:           &mockSmsService{},
		notifications: &mockNotificationService{},
		logger:        &mockLogger{},
	}
	server := NewServer(ServerConfig{Host: "127.0.0.1", Port: 0, Mode: gin.TestMode}, Services{
		Payroll:       deps.payroll,
		Enrollment:    deps.enrollment,
		Sms:           deps.sms,
		Notifications: deps.notifications,
	}, deps.logger)
	return server, deps
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	server, _ := newTestServer(t)

	w := doJSON(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)

	notReady := NewServer(ServerConfig{Mode: gin.TestMode}, Services{Ready: func() bool { return false }}, &mockLogger{})
	w = doJSON(t, notReady, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", entity.NewValidationError("hours", "must not be negative"), http.StatusBadRequest},
		{"missing field", &sms.MissingRequiredFieldError{Kind: sms.KindEventReminder, Fields: []string{"event_name"}}, http.StatusBadRequest},
		{"not found", entity.ErrNotFound, http.StatusNotFound},
		{"wrapped not found", errors.Join(errors.New("get run r1"), entity.ErrNotFound), http.StatusNotFound},
		{"invalid transition", &workflow.InvalidTransitionError{From: "paid", To: "draft"}, http.StatusConflict},
		{"stale version", entity.ErrStaleVersion, http.StatusConflict},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, message := classifyError(tt.err)
			assert.Equal(t, tt.status, status)
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", message)
			} else {
				assert.Equal(t, tt.err.Error(), message)
			}
		})
	}

	inconsistent := &service.InconsistentStateError{
		Operation:  "end enrollment",
		EntityID:   "e1",
		StepErr:    errors.New("assignments"),
		RestoreErr: errors.New("restore"),
	}
	status, message := classifyError(inconsistent)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, inconsistent.Error(), message)
}

func TestGenerateRun(t *testing.T) {
	t.Run("explicit period", func(t *testing.T) {
		server, deps := newTestServer(t)
		deps.payroll.GenerateRunFunc = func(ctx context.Context, start, end time.Time) (*entity.PayrollRunDetail, error) {
			assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), start)
			assert.Equal(t, time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC), end)
			return &entity.PayrollRunDetail{Run: &entity.PayrollRun{ID: "r1"}}, nil
		}

		w := doJSON(t, server, http.MethodPost, "/api/payroll/runs", GenerateRunRequest{PeriodStart: "2024-03-04", PeriodEnd: "2024-03-17"})
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.True(t, decode(t, w).Success)
	})

	t.Run("default period when bounds omitted", func(t *testing.T) {
		server, deps := newTestServer(t)
		var gotStart, gotEnd time.Time
		deps.payroll.GenerateRunFunc = func(ctx context.Context, start, end time.Time) (*entity.PayrollRunDetail, error) {
			gotStart, gotEnd = start, end
			return &entity.PayrollRunDetail{Run: &entity.PayrollRun{ID: "r1"}}, nil
		}

		w := doJSON(t, server, http.MethodPost, "/api/payroll/runs", nil)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, time.Monday, gotStart.Weekday())
		assert.Equal(t, 13*24*time.Hour, gotEnd.Sub(gotStart))
	})

	t.Run("half a period is rejected", func(t *testing.T) {
		server, _ := newTestServer(t)
		w := doJSON(t, server, http.MethodPost, "/api/payroll/runs", GenerateRunRequest{PeriodStart: "2024-03-04"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad date", func(t *testing.T) {
		server, _ := newTestServer(t)
		w := doJSON(t, server, http.MethodPost, "/api/payroll/runs", GenerateRunRequest{PeriodStart: "03/04/2024", PeriodEnd: "2024-03-17"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode(t, w).Error, "period_start")
	})
}

func TestListRuns(t *testing.T) {
	server, deps := newTestServer(t)
	deps.payroll.ListRunsFunc = func(ctx context.Context, filter port.RunFilter) ([]*entity.PayrollRun, error) {
		assert.Equal(t, entity.RunStatusReview, filter.Status)
		assert.Equal(t, 20, filter.Limit)
		assert.Equal(t, 0, filter.Offset)
		return nil, nil
	}

	w := doJSON(t, server, http.MethodGet, "/api/payroll/runs?status=review&limit=500&offset=-3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, decode(t, w).Data)
}

func TestGetRun_NotFound(t *testing.T) {
	server, deps := newTestServer(t)
	deps.payroll.GetRunFunc = func(ctx context.Context, runID string) (*entity.PayrollRunDetail, error) {
		return nil, entity.ErrNotFound
	}

	w := doJSON(t, server, http.MethodGet, "/api/payroll/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, decode(t, w).Success)
}

func TestTransitionRun(t *testing.T) {
	t.Run("passes status, actor and version", func(t *testing.T) {
		server, deps := newTestServer(t)
		deps.payroll.TransitionStatusFunc = func(ctx context.Context, runID string, target entity.RunStatus, actor string, expectedVersion *int) (*entity.PayrollRun, error) {
			assert.Equal(t, "r1", runID)
			assert.Equal(t, entity.RunStatusApproved, target)
			assert.Equal(t, "ops@school.test", actor)
			require.NotNil(t, expectedVersion)
			assert.Equal(t, 3, *expectedVersion)
			return &entity.PayrollRun{ID: runID, Status: target}, nil
		}

		version := 3
		w := doJSON(t, server, http.MethodPost, "/api/payroll/runs/r1/transition", TransitionRequest{
			Status: "approved", Actor: "ops@school.test", ExpectedVersion: &version,
		})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invalid transition is a conflict", func(t *testing.T) {
		server, deps := newTestServer(t)
		deps.payroll.TransitionStatusFunc = func(ctx context.Context, runID string, target entity.RunStatus, actor string, expectedVersion *int) (*entity.PayrollRun, error) {
			return nil, &workflow.InvalidTransitionError{From: "draft", To: "paid"}
		}

		w := doJSON(t, server, http.MethodPost, "/api/payroll/runs/r1/transition", TransitionRequest{Status: "paid"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, decode(t, w).Error, "draft -> paid")
	})

	t.Run("missing status", func(t *testing.T) {
		server, _ := newTestServer(t)
		w := doJSON(t, server, http.MethodPost, "/api/payroll/runs/r1/transition", map[string]string{"actor": "x"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLineItemEndpoints(t *testing.T) {
	server, deps := newTestServer(t)
	result := &service.LineItemResult{Item: &entity.PayrollLineItem{ID: "li1"}, Run: &entity.PayrollRun{ID: "r1"}}

	deps.payroll.UpdateLineItemHoursFunc = func(ctx context.Context, id string, hours float64, expectedVersion *int) (*service.LineItemResult, error) {
		assert.Equal(t, "li1", id)
		assert.Equal(t, 0.0, hours)
		assert.Nil(t, expectedVersion)
		return result, nil
	}
	deps.payroll.AdjustLineItemFunc = func(ctx context.Context, id string, adjustment float64) (*service.LineItemResult, error) {
		assert.Equal(t, -12.5, adjustment)
		return result, nil
	}
	deps.payroll.DeleteLineItemFunc = func(ctx context.Context, id string) (*entity.PayrollRun, error) {
		return nil, entity.NewValidationError("run", "only manual items can be deleted")
	}
	deps.payroll.AddManualLineItemFunc = func(ctx context.Context, runID string, input service.ManualLineItemInput) (*service.LineItemResult, error) {
		assert.Equal(t, service.ManualLineItemInput{TeacherID: "t1", Description: "Bonus", Hours: 1, HourlyRate: 40}, input)
		return result, nil
	}
	deps.payroll.BulkAdjustHoursFunc = func(ctx context.Context, runID string, teacherIDs []string, hours float64) (*service.BulkAdjustResult, error) {
		assert.Equal(t, []string{"t1", "t2"}, teacherIDs)
		return &service.BulkAdjustResult{Run: &entity.PayrollRun{ID: runID}, Updated: 3}, nil
	}

	w := doJSON(t, server, http.MethodPatch, "/api/payroll/line-items/li1", map[string]interface{}{"hours": 0})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, server, http.MethodPatch, "/api/payroll/line-items/li1", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "hours is required")

	w = doJSON(t, server, http.MethodPost, "/api/payroll/line-items/li1/adjust", map[string]interface{}{"adjustment_amount": -12.5})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, server, http.MethodDelete, "/api/payroll/line-items/li1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, server, http.MethodPost, "/api/payroll/runs/r1/line-items", map[string]interface{}{
		"teacher_id": "t1", "description": "Bonus", "hours": 1, "hourly_rate": 40,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, server, http.MethodPost, "/api/payroll/runs/r1/bulk-hours", map[string]interface{}{
		"teacher_ids": []string{"t1", "t2"}, "hours": 6,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, server, http.MethodPost, "/api/payroll/runs/r1/bulk-hours", map[string]interface{}{
		"teacher_ids": []string{}, "hours": 6,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportRun(t *testing.T) {
	server, deps := newTestServer(t)
	deps.payroll.ExportRunFunc = func(ctx context.Context, runID string) (*service.ExportFile, error) {
		return &service.ExportFile{Name: "payroll_2024-03-04.xlsx", ContentType: "application/test", Data: []byte("xlsx")}, nil
	}

	w := doJSON(t, server, http.MethodGet, "/api/payroll/runs/r1/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/test", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "payroll_2024-03-04.xlsx")
	assert.Equal(t, "xlsx", w.Body.String())
}

func TestNotifications(t *testing.T) {
	server, deps := newTestServer(t)
	deps.notifications.ListNotificationsFunc = func(ctx context.Context, runID string) ([]*entity.PaymentNotification, error) {
		return []*entity.PaymentNotification{{ID: 1, RunID: runID, TeacherID: "t1", Status: entity.NotificationStatusSent}}, nil
	}
	deps.notifications.NotifyRunPaidFunc = func(ctx context.Context, runID string) (*service.PaymentNotificationSummary, error) {
		return &service.PaymentNotificationSummary{RunID: runID, Sent: 1}, nil
	}

	w := doJSON(t, server, http.MethodGet, "/api/payroll/runs/r1/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w).Data, 1)

	w = doJSON(t, server, http.MethodPost, "/api/payroll/runs/r1/notifications", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEndEnrollment(t *testing.T) {
	server, deps := newTestServer(t)
	deps.enrollment.EndEnrollmentFunc = func(ctx context.Context, id string, endDate time.Time) (*service.EndEnrollmentResult, error) {
		assert.Equal(t, "e1", id)
		assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), endDate)
		return &service.EndEnrollmentResult{AssignmentsEnded: 2}, nil
	}

	w := doJSON(t, server, http.MethodPost, "/api/enrollments/e1/end", EndEnrollmentRequest{EndDate: "2024-06-30"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, server, http.MethodPost, "/api/enrollments/e1/end", EndEnrollmentRequest{EndDate: "June 30"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	deps.enrollment.EndEnrollmentFunc = func(ctx context.Context, id string, endDate time.Time) (*service.EndEnrollmentResult, error) {
		return nil, &service.InconsistentStateError{Operation: "end enrollment", EntityID: id, StepErr: errors.New("a"), RestoreErr: errors.New("b")}
	}
	w = doJSON(t, server, http.MethodPost, "/api/enrollments/e1/end", EndEnrollmentRequest{EndDate: "2024-06-30"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decode(t, w).Error, "manual check required")
	assert.Contains(t, deps.logger.errors, "Request failed")
}

func TestSmsGenerateAndPreview(t *testing.T) {
	server, deps := newTestServer(t)
	deps.sms.GenerateMessageFunc = func(req sms.TemplateRequest) (string, error) {
		assert.Equal(t, sms.KindEventReminder, req.Kind())
		return "Open house Sat. Reply STOP to opt out.", nil
	}
	deps.sms.PreviewFunc = func(req service.PreviewRequest) (*service.SmsPreview, error) {
		assert.Nil(t, req.Template)
		assert.Equal(t, "Hello", req.Body)
		assert.Equal(t, 10, req.RecipientCount)
		return &service.SmsPreview{Message: "Hello", Segments: 1, TotalCost: 0.079}, nil
	}

	w := doJSON(t, server, http.MethodPost, "/api/sms/generate", map[string]interface{}{
		"kind": "event_reminder",
		"data": map[string]string{"event_name": "Open house", "event_date": "Sat"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Open house Sat. Reply STOP to opt out.", decode(t, w).Data.(map[string]interface{})["message"])

	w = doJSON(t, server, http.MethodPost, "/api/sms/generate", map[string]interface{}{"kind": "birthday"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, server, http.MethodPost, "/api/sms/preview", map[string]interface{}{"body": "Hello", "recipient_count": 10})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSmsEstimate(t *testing.T) {
	server, _ := newTestServer(t)

	w := doJSON(t, server, http.MethodGet, "/api/sms/estimate?recipient_count=100&segments=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.InDelta(t, 1.58, data["estimated_cost"], 1e-9)

	w = doJSON(t, server, http.MethodGet, "/api/sms/estimate?recipient_count=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSmsSendBulk(t *testing.T) {
	server, deps := newTestServer(t)
	deps.sms.SendBulkFunc = func(ctx context.Context, input service.BulkSendInput) (*entity.BulkSendResult, error) {
		assert.Equal(t, "Hi", input.Body)
		require.Len(t, input.Recipients, 2)
		assert.True(t, input.Recipients[1].SmsOptOut)
		return &entity.BulkSendResult{BatchID: "b1", Sent: 1, Skipped: 1}, nil
	}

	w := doJSON(t, server, http.MethodPost, "/api/sms/bulk", map[string]interface{}{
		"body": "Hi",
		"recipients": []map[string]interface{}{
			{"id": "f1", "phone": "4155550100"},
			{"id": "f2", "phone": "4155550101", "sms_opt_out": true},
		},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, server, http.MethodPost, "/api/sms/bulk", map[string]interface{}{"body": "Hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSmsDeliveryStatus(t *testing.T) {
	server, deps := newTestServer(t)
	var calls int
	deps.sms.UpdateDeliveryStatusFunc = func(ctx context.Context, sid, status, errMsg string) (*entity.SmsMessage, error) {
		calls++
		assert.Equal(t, "SM123", sid)
		assert.Equal(t, "undelivered", status)
		assert.Equal(t, "carrier error 30003", errMsg)
		return &entity.SmsMessage{ID: "m1", Status: status}, nil
	}

	form := url.Values{"MessageSid": {"SM123"}, "MessageStatus": {"undelivered"}, "ErrorCode": {"30003"}}
	req := httptest.NewRequest(http.MethodPost, "/api/sms/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	for _, status := range []string{"queued", "sent"} {
		w = doJSON(t, server, http.MethodPost, "/api/sms/status", map[string]string{"message_sid": "SM123", "message_status": status})
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 1, calls, "interim statuses are acknowledged without an update")
}

func TestSmsGetBatch(t *testing.T) {
	server, deps := newTestServer(t)
	deps.sms.GetBatchFunc = func(ctx context.Context, batchID string) ([]*entity.SmsMessage, error) {
		if batchID == "b1" {
			return []*entity.SmsMessage{{ID: "m1", BatchID: "b1"}}, nil
		}
		return nil, nil
	}

	w := doJSON(t, server, http.MethodGet, "/api/sms/batches/b1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, server, http.MethodGet, "/api/sms/batches/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_StartStop(t *testing.T) {
	server, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.NoError(t, server.Stop())
}

func TestCORSPreflight(t *testing.T) {
	server, _ := newTestServer(t)

	w := doJSON(t, server, http.MethodOptions, "/api/payroll/runs", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}
