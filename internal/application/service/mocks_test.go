package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/tutoring-backoffice/internal/application/port"
	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
)

// Mock repositories keep copies of what they store so that callers only see
// their writes through the repository, as with a real database.

type mockTeacherRepo struct {
	mu       sync.Mutex
	teachers map[string]*entity.Teacher
	listErr  error
}

func newMockTeacherRepo(teachers ...*entity.Teacher) *mockTeacherRepo {
	m := &mockTeacherRepo{teachers: make(map[string]*entity.Teacher)}
	for _, t := range teachers {
		m.teachers[t.ID] = t
	}
	return m
}

func (m *mockTeacherRepo) Create(ctx context.Context, teacher *entity.Teacher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teachers[teacher.ID] = teacher
	return nil
}

func (m *mockTeacherRepo) GetByID(ctx context.Context, id string) (*entity.Teacher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.teachers[id]; ok {
		return t, nil
	}
	return nil, entity.ErrNotFound
}

func (m *mockTeacherRepo) List(ctx context.Context) ([]*entity.Teacher, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.Teacher, 0, len(m.teachers))
	for _, t := range m.teachers {
		out = append(out, t)
	}
	return out, nil
}

type mockServiceRepo struct {
	services map[string]*entity.Service
}

func newMockServiceRepo(services ...*entity.Service) *mockServiceRepo {
	m := &mockServiceRepo{services: make(map[string]*entity.Service)}
	for _, s := range services {
		m.services[s.ID] = s
	}
	return m
}

func (m *mockServiceRepo) Create(ctx context.Context, service *entity.Service) error {
	m.services[service.ID] = service
	return nil
}

func (m *mockServiceRepo) GetByID(ctx context.Context, id string) (*entity.Service, error) {
	if s, ok := m.services[id]; ok {
		return s, nil
	}
	return nil, entity.ErrNotFound
}

func (m *mockServiceRepo) List(ctx context.Context) ([]*entity.Service, error) {
	out := make([]*entity.Service, 0, len(m.services))
	for _, s := range m.services {
		out = append(out, s)
	}
	return out, nil
}

type mockEnrollmentRepo struct {
	mu               sync.Mutex
	enrollments      map[string]entity.Enrollment
	updateStatusFunc func(ctx context.Context, id, status string, endDate *time.Time) error
	updateCalls      int
}

func newMockEnrollmentRepo(enrollments ...entity.Enrollment) *mockEnrollmentRepo {
	m := &mockEnrollmentRepo{enrollments: make(map[string]entity.Enrollment)}
	for _, e := range enrollments {
		m.enrollments[e.ID] = e
	}
	return m
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *entity.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (m *mockEnrollmentRepo) GetByID(ctx context.Context, id string) (*entity.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, entity.ErrNotFound
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, id, status string, endDate *time.Time) error {
	m.mu.Lock()
	m.updateCalls++
	m.mu.Unlock()

	if m.updateStatusFunc != nil {
		if err := m.updateStatusFunc(ctx, id, status, endDate); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return entity.ErrNotFound
	}
	e.Status = status
	e.EndDate = endDate
	m.enrollments[id] = e
	return nil
}

func (m *mockEnrollmentRepo) get(id string) entity.Enrollment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enrollments[id]
}

type mockAssignmentRepo struct {
	assignments         []*entity.Assignment
	listErr             error
	endByEnrollmentFunc func(ctx context.Context, enrollmentID string, endDate time.Time) (int, error)
}

func (m *mockAssignmentRepo) Create(ctx context.Context, assignment *entity.Assignment) error {
	m.assignments = append(m.assignments, assignment)
	return nil
}

func (m *mockAssignmentRepo) GetByID(ctx context.Context, id string) (*entity.Assignment, error) {
	for _, a := range m.assignments {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (m *mockAssignmentRepo) ListActive(ctx context.Context) ([]*entity.Assignment, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*entity.Assignment
	for _, a := range m.assignments {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAssignmentRepo) EndByEnrollment(ctx context.Context, enrollmentID string, endDate time.Time) (int, error) {
	if m.endByEnrollmentFunc != nil {
		return m.endByEnrollmentFunc(ctx, enrollmentID, endDate)
	}
	count := 0
	for _, a := range m.assignments {
		if a.EnrollmentID == enrollmentID && a.IsActive {
			a.IsActive = false
			d := endDate
			a.EndDate = &d
			count++
		}
	}
	return count, nil
}

type mockRunRepo struct {
	mu         sync.Mutex
	runs       map[string]entity.PayrollRun
	createFunc func(ctx context.Context, run *entity.PayrollRun) error
}

func newMockRunRepo() *mockRunRepo {
	return &mockRunRepo{runs: make(map[string]entity.PayrollRun)}
}

func (m *mockRunRepo) Create(ctx context.Context, run *entity.PayrollRun) error {
	if m.createFunc != nil {
		if err := m.createFunc(ctx, run); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	return nil
}

func (m *mockRunRepo) GetByID(ctx context.Context, id string) (*entity.PayrollRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[id]; ok {
		return &r, nil
	}
	return nil, fmt.Errorf("run %s: %w", id, entity.ErrNotFound)
}

func (m *mockRunRepo) GetByPeriod(ctx context.Context, start, end time.Time) (*entity.PayrollRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.PeriodStart.Equal(start) && r.PeriodEnd.Equal(end) {
			return &r, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (m *mockRunRepo) List(ctx context.Context, filter port.RunFilter) ([]*entity.PayrollRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.PayrollRun
	for _, r := range m.runs {
		if filter.Status == "" || r.Status == filter.Status {
			r := r
			out = append(out, &r)
		}
	}
	return out, nil
}

func (m *mockRunRepo) Update(ctx context.Context, run *entity.PayrollRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.runs[run.ID]
	if !ok {
		return entity.ErrNotFound
	}
	if stored.Version != run.Version {
		return entity.ErrStaleVersion
	}
	run.Version++
	m.runs[run.ID] = *run
	return nil
}

func (m *mockRunRepo) get(id string) entity.PayrollRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[id]
}

func (m *mockRunRepo) put(run entity.PayrollRun) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
}

type mockLineItemRepo struct {
	mu                sync.Mutex
	items             map[string]entity.PayrollLineItem
	order             []string
	createBatchFunc   func(ctx context.Context, items []*entity.PayrollLineItem) error
	updateAmountsFunc func(ctx context.Context, item *entity.PayrollLineItem) error
}

func newMockLineItemRepo() *mockLineItemRepo {
	return &mockLineItemRepo{items: make(map[string]entity.PayrollLineItem)}
}

func (m *mockLineItemRepo) Create(ctx context.Context, item *entity.PayrollLineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = *item
	m.order = append(m.order, item.ID)
	return nil
}

func (m *mockLineItemRepo) CreateBatch(ctx context.Context, items []*entity.PayrollLineItem) error {
	if m.createBatchFunc != nil {
		if err := m.createBatchFunc(ctx, items); err != nil {
			return err
		}
	}
	for _, item := range items {
		if err := m.Create(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockLineItemRepo) GetByID(ctx context.Context, id string) (*entity.PayrollLineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[id]; ok {
		return &item, nil
	}
	return nil, entity.ErrNotFound
}

func (m *mockLineItemRepo) ListByRun(ctx context.Context, runID string) ([]*entity.PayrollLineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.PayrollLineItem
	for _, id := range m.order {
		item, ok := m.items[id]
		if ok && item.RunID == runID {
			out = append(out, &item)
		}
	}
	return out, nil
}

func (m *mockLineItemRepo) UpdateAmounts(ctx context.Context, item *entity.PayrollLineItem) error {
	if m.updateAmountsFunc != nil {
		if err := m.updateAmountsFunc(ctx, item); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.items[item.ID]
	if !ok {
		return entity.ErrNotFound
	}
	stored.ActualHours = item.ActualHours
	stored.AdjustmentAmount = item.AdjustmentAmount
	stored.FinalAmount = item.FinalAmount
	stored.UpdatedAt = item.UpdatedAt
	m.items[item.ID] = stored
	return nil
}

func (m *mockLineItemRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return entity.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *mockLineItemRepo) get(id string) entity.PayrollLineItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id]
}

// snapshot and restore let a test transaction roll back line item writes
func (m *mockLineItemRepo) snapshot() map[string]entity.PayrollLineItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := make(map[string]entity.PayrollLineItem, len(m.items))
	for id, item := range m.items {
		saved[id] = item
	}
	return saved
}

func (m *mockLineItemRepo) restore(saved map[string]entity.PayrollLineItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = saved
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockSmsMessageRepo struct {
	mu         sync.Mutex
	messages   map[string]entity.SmsMessage
	createFunc func(ctx context.Context, msg *entity.SmsMessage) error
}

func newMockSmsMessageRepo() *mockSmsMessageRepo {
	return &mockSmsMessageRepo{messages: make(map[string]entity.SmsMessage)}
}

func (m *mockSmsMessageRepo) Create(ctx context.Context, msg *entity.SmsMessage) error {
	if m.createFunc != nil {
		if err := m.createFunc(ctx, msg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ID] = *msg
	return nil
}

func (m *mockSmsMessageRepo) GetByID(ctx context.Context, id string) (*entity.SmsMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.messages[id]; ok {
		return &msg, nil
	}
	return nil, entity.ErrNotFound
}

func (m *mockSmsMessageRepo) GetByProviderMessageID(ctx context.Context, providerMessageID string) (*entity.SmsMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ProviderMessageID == providerMessageID {
			return &msg, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (m *mockSmsMessageRepo) ListByBatch(ctx context.Context, batchID string) ([]*entity.SmsMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.SmsMessage
	for _, msg := range m.messages {
		if msg.BatchID == batchID {
			msg := msg
			out = append(out, &msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].To < out[j].To })
	return out, nil
}

func (m *mockSmsMessageRepo) UpdateStatus(ctx context.Context, id, status, providerMessageID, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return entity.ErrNotFound
	}
	if entity.IsFinalSmsStatus(msg.Status) {
		return entity.ErrFinalStatus
	}
	msg.Status = status
	msg.ProviderMessageID = providerMessageID
	msg.ErrorMessage = errorMessage
	m.messages[id] = msg
	return nil
}

func (m *mockSmsMessageRepo) all() []entity.SmsMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.SmsMessage, 0, len(m.messages))
	for _, msg := range m.messages {
		out = append(out, msg)
	}
	return out
}

type mockSmsSender struct {
	mu       sync.Mutex
	sent     []port.OutboundSms
	sendFunc func(ctx context.Context, msg port.OutboundSms) (string, error)
}

func (m *mockSmsSender) Send(ctx context.Context, msg port.OutboundSms) (string, error) {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	n := len(m.sent)
	m.mu.Unlock()

	if m.sendFunc != nil {
		return m.sendFunc(ctx, msg)
	}
	return fmt.Sprintf("SM%03d", n), nil
}

type mockPaymentNotificationRepo struct {
	mu            sync.Mutex
	nextID        int64
	notifications map[int64]entity.PaymentNotification
}

func newMockPaymentNotificationRepo() *mockPaymentNotificationRepo {
	return &mockPaymentNotificationRepo{notifications: make(map[int64]entity.PaymentNotification)}
}

func (m *mockPaymentNotificationRepo) Create(ctx context.Context, n *entity.PaymentNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	n.ID = m.nextID
	m.notifications[n.ID] = *n
	return nil
}

func (m *mockPaymentNotificationRepo) MarkSent(ctx context.Context, id int64) error {
	return m.setStatus(id, entity.NotificationStatusSent, "")
}

func (m *mockPaymentNotificationRepo) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	return m.setStatus(id, entity.NotificationStatusFailed, errorMessage)
}

func (m *mockPaymentNotificationRepo) setStatus(id int64, status, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return entity.ErrNotFound
	}
	n.Status = status
	n.ErrorMessage = errorMessage
	m.notifications[id] = n
	return nil
}

func (m *mockPaymentNotificationRepo) ListByRun(ctx context.Context, runID string) ([]*entity.PaymentNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.PaymentNotification
	for id := int64(1); id <= m.nextID; id++ {
		if n, ok := m.notifications[id]; ok && n.RunID == runID {
			n := n
			out = append(out, &n)
		}
	}
	return out, nil
}

type mockWebhook struct {
	mu       sync.Mutex
	payloads []*entity.PaymentPayload
	sendFunc func(ctx context.Context, payload *entity.PaymentPayload) error
}

func (m *mockWebhook) Send(ctx context.Context, payload *entity.PaymentPayload) error {
	m.mu.Lock()
	m.payloads = append(m.payloads, payload)
	m.mu.Unlock()
	if m.sendFunc != nil {
		return m.sendFunc(ctx, payload)
	}
	return nil
}

type mockNotifier struct {
	mu        sync.Mutex
	successes []string
	failures  []string
}

func (m *mockNotifier) NotifySuccess(ctx context.Context, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes = append(m.successes, message)
	return nil
}

func (m *mockNotifier) NotifyError(ctx context.Context, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, message)
	return nil
}

type mockExporter struct {
	exportFunc func(detail *entity.PayrollRunDetail, teachers map[string]*entity.Teacher) ([]byte, error)
}

func (m *mockExporter) Export(detail *entity.PayrollRunDetail, teachers map[string]*entity.Teacher) ([]byte, error) {
	if m.exportFunc != nil {
		return m.exportFunc(detail, teachers)
	}
	return []byte("xlsx"), nil
}

func (m *mockExporter) ContentType() string { return "application/octet-stream" }
func (m *mockExporter) Extension() string   { return "xlsx" }

type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) hasError(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.errors {
		if e == msg {
			return true
		}
	}
	return false
}
