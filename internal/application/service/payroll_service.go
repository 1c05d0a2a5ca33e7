package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/garyjia/tutoring-backoffice/internal/application/dispatcher"
	"github.com/garyjia/tutoring-backoffice/internal/application/port"
	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
	"github.com/garyjia/tutoring-backoffice/internal/domain/event"
	"github.com/garyjia/tutoring-backoffice/internal/domain/payroll"
	"github.com/garyjia/tutoring-backoffice/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

const defaultBulkConcurrency = 8

// PayrollService generates payroll runs and drives them through review, approval and payment
type PayrollService interface {
	// DefaultPeriod returns the bi-weekly period containing now
	DefaultPeriod(now time.Time) payroll.Period
	GenerateRun(ctx context.Context, periodStart, periodEnd time.Time) (*entity.PayrollRunDetail, error)
	// GenerateScheduledRun generates the default-period run unless one already
	// exists; created is false when it was skipped
	GenerateScheduledRun(ctx context.Context, now time.Time) (detail *entity.PayrollRunDetail, created bool, err error)
	GetRun(ctx context.Context, runID string) (*entity.PayrollRunDetail, error)
	ListRuns(ctx context.Context, filter port.RunFilter) ([]*entity.PayrollRun, error)
	UpdateLineItemHours(ctx context.Context, lineItemID string, hours float64, expectedVersion *int) (*LineItemResult, error)
	BulkAdjustHours(ctx context.Context, runID string, teacherIDs []string, hours float64) (*BulkAdjustResult, error)
	AddManualLineItem(ctx context.Context, runID string, input ManualLineItemInput) (*LineItemResult, error)
	AdjustLineItem(ctx context.Context, lineItemID string, adjustment float64) (*LineItemResult, error)
	DeleteLineItem(ctx context.Context, lineItemID string) (*entity.PayrollRun, error)
	TransitionStatus(ctx context.Context, runID string, target entity.RunStatus, actor string, expectedVersion *int) (*entity.PayrollRun, error)
	ExportRun(ctx context.Context, runID string) (*ExportFile, error)
}

// ManualLineItemInput is a hand-entered line item
type ManualLineItemInput struct {
	TeacherID   string
	Description string
	Hours       float64
	HourlyRate  float64
}

// LineItemResult is a changed line item with the run totals it produced
type LineItemResult struct {
	Item *entity.PayrollLineItem `json:"line_item"`
	Run  *entity.PayrollRun      `json:"run"`
}

// BulkAdjustResult reports a bulk hours update. Failed items keep their previous hours.
type BulkAdjustResult struct {
	Run     *entity.PayrollRun `json:"run"`
	Updated int                `json:"updated"`
	Failed  int                `json:"failed"`
}

// ExportFile is a rendered payroll register
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// PayrollOptions tunes PayrollService
type PayrollOptions struct {
	PeriodAnchor    time.Time
	BulkConcurrency int
}

// PayrollDeps are the collaborators of PayrollService
type PayrollDeps struct {
	Teachers    port.TeacherRepository
	Services    port.ServiceRepository
	Enrollments port.EnrollmentRepository
	Assignments port.AssignmentRepository
	Runs        port.PayrollRunRepository
	LineItems   port.LineItemRepository
	TxManager   port.TransactionManager
	Dispatcher  dispatcher.Dispatcher
	Exporter    port.PayrollExporter
	Logger      Logger

	// Now defaults to time.Now
	Now func() time.Time
}

type payrollServiceImpl struct {
	deps PayrollDeps
	opts PayrollOptions
	now  func() time.Time
}

// NewPayrollService creates a new PayrollService
func NewPayrollService(deps PayrollDeps, opts PayrollOptions) PayrollService {
	if opts.PeriodAnchor.IsZero() {
		opts.PeriodAnchor = payroll.DefaultAnchor
	}
	if opts.BulkConcurrency <= 0 {
		opts.BulkConcurrency = defaultBulkConcurrency
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &payrollServiceImpl{deps: deps, opts: opts, now: now}
}

func (s *payrollServiceImpl) DefaultPeriod(now time.Time) payroll.Period {
	return payroll.DefaultPeriod(now, s.opts.PeriodAnchor)
}

// GenerateRun builds a draft run from the active assignments overlapping the
// period and stores the run with its line items in one transaction
func (s *payrollServiceImpl) GenerateRun(ctx context.Context, periodStart, periodEnd time.Time) (*entity.PayrollRunDetail, error) {
	period, err := payroll.NewPeriod(periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	sources, err := s.loadSources(ctx)
	if err != nil {
		s.deps.Logger.Error("Failed to load assignments", "error", err)
		return nil, fmt.Errorf("load assignments: %w", err)
	}

	run, items := payroll.BuildRun(period, sources, s.now())

	err = s.deps.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.deps.Runs.GetByPeriod(txCtx, period.Start, period.End)
		switch {
		case err == nil:
			return entity.NewValidationError("period", fmt.Sprintf("run %s already covers this period", existing.ID))
		case !errors.Is(err, entity.ErrNotFound):
			return fmt.Errorf("look up run for period: %w", err)
		}
		if err := s.deps.Runs.Create(txCtx, run); err != nil {
			return fmt.Errorf("create run: %w", err)
		}
		if err := s.deps.LineItems.CreateBatch(txCtx, items); err != nil {
			return fmt.Errorf("create line items: %w", err)
		}
		return nil
	})
	if err != nil {
		s.deps.Logger.Error("Failed to generate payroll run", "error", err,
			"period_start", period.Start, "period_end", period.End)
		return nil, err
	}

	s.deps.Logger.Info("Payroll run generated",
		"run_id", run.ID,
		"period_start", period.Start.Format(time.DateOnly),
		"period_end", period.End.Format(time.DateOnly),
		"line_items", len(items),
		"total_adjusted", run.TotalAdjusted,
	)

	s.deps.Dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeRunGenerated, run.ID, map[string]interface{}{
		"period_start":  period.Start.Format(time.DateOnly),
		"period_end":    period.End.Format(time.DateOnly),
		"line_items":    len(items),
		"teacher_count": run.TeacherCount,
		"total":         run.TotalAdjusted,
	}))

	return &entity.PayrollRunDetail{Run: run, LineItems: items}, nil
}

func (s *payrollServiceImpl) GenerateScheduledRun(ctx context.Context, now time.Time) (*entity.PayrollRunDetail, bool, error) {
	period := s.DefaultPeriod(now)

	existing, err := s.deps.Runs.GetByPeriod(ctx, period.Start, period.End)
	switch {
	case err == nil:
		s.deps.Logger.Info("Payroll run already exists for period, skipping",
			"run_id", existing.ID, "period_start", period.Start.Format(time.DateOnly))
		return nil, false, nil
	case !errors.Is(err, entity.ErrNotFound):
		return nil, false, fmt.Errorf("look up run for period: %w", err)
	}

	detail, err := s.GenerateRun(ctx, period.Start, period.End)
	if err != nil {
		return nil, false, err
	}
	return detail, true, nil
}

// loadSources joins every active assignment with its teacher, service and
// enrollment. Assignments whose teacher is unknown are skipped.
func (s *payrollServiceImpl) loadSources(ctx context.Context) ([]payroll.AssignmentSource, error) {
	assignments, err := s.deps.Assignments.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	teachers, err := s.teacherIndex(ctx)
	if err != nil {
		return nil, err
	}
	services, err := s.deps.Services.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	serviceByID := make(map[string]*entity.Service, len(services))
	for _, svc := range services {
		serviceByID[svc.ID] = svc
	}

	enrollments := make(map[string]*entity.Enrollment)
	sources := make([]payroll.AssignmentSource, 0, len(assignments))
	for _, a := range assignments {
		teacher, ok := teachers[a.TeacherID]
		if !ok {
			s.deps.Logger.Error("Skipping assignment with unknown teacher",
				"assignment_id", a.ID, "teacher_id", a.TeacherID)
			continue
		}

		enrollment, cached := enrollments[a.EnrollmentID]
		if !cached && a.EnrollmentID != "" {
			enrollment, err = s.deps.Enrollments.GetByID(ctx, a.EnrollmentID)
			if err != nil && !errors.Is(err, entity.ErrNotFound) {
				return nil, fmt.Errorf("get enrollment %s: %w", a.EnrollmentID, err)
			}
			enrollments[a.EnrollmentID] = enrollment
		}

		svc := serviceByID[a.ServiceID]
		sources = append(sources, payroll.AssignmentSource{
			Assignment: a,
			Service:    svc,
			Teacher:    teacher,
			Label:      describeAssignment(svc, enrollment),
		})
	}
	return sources, nil
}

func describeAssignment(svc *entity.Service, enrollment *entity.Enrollment) string {
	var parts []string
	if svc != nil && svc.Name != "" {
		parts = append(parts, svc.Name)
	}
	if enrollment != nil && enrollment.StudentName != "" {
		parts = append(parts, enrollment.StudentName)
	}
	return strings.Join(parts, " - ")
}

func (s *payrollServiceImpl) teacherIndex(ctx context.Context) (map[string]*entity.Teacher, error) {
	teachers, err := s.deps.Teachers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	index := make(map[string]*entity.Teacher, len(teachers))
	for _, t := range teachers {
		index[t.ID] = t
	}
	return index, nil
}

func (s *payrollServiceImpl) GetRun(ctx context.Context, runID string) (*entity.PayrollRunDetail, error) {
	run, err := s.deps.Runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	items, err := s.deps.LineItems.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list line items of run %s: %w", runID, err)
	}
	return &entity.PayrollRunDetail{Run: run, LineItems: items}, nil
}

func (s *payrollServiceImpl) ListRuns(ctx context.Context, filter port.RunFilter) ([]*entity.PayrollRun, error) {
	if filter.Status != "" && !workflow.State(filter.Status).IsValid() {
		return nil, entity.NewValidationError("status", fmt.Sprintf("unknown run status %q", filter.Status))
	}
	runs, err := s.deps.Runs.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// runMutation changes a run's line items inside the run transaction and
// returns the item set the totals are computed from
type runMutation func(ctx context.Context, run *entity.PayrollRun, items []*entity.PayrollLineItem) ([]*entity.PayrollLineItem, error)

// mutateRun loads the run and its items in a transaction, applies mutate,
// recomputes the totals and stores the run with a bumped version
func (s *payrollServiceImpl) mutateRun(ctx context.Context, runID string, expectedVersion *int, mutate runMutation) (*entity.PayrollRun, error) {
	var run *entity.PayrollRun
	err := s.deps.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		run, err = s.deps.Runs.GetByID(txCtx, runID)
		if err != nil {
			return fmt.Errorf("get run %s: %w", runID, err)
		}
		if expectedVersion != nil && *expectedVersion != run.Version {
			return fmt.Errorf("run %s is at version %d, expected %d: %w",
				runID, run.Version, *expectedVersion, entity.ErrStaleVersion)
		}

		items, err := s.deps.LineItems.ListByRun(txCtx, runID)
		if err != nil {
			return fmt.Errorf("list line items of run %s: %w", runID, err)
		}
		if items, err = mutate(txCtx, run, items); err != nil {
			return err
		}

		payroll.ComputeTotals(items).Apply(run)
		run.UpdatedAt = s.now()
		if err := s.deps.Runs.Update(txCtx, run); err != nil {
			return fmt.Errorf("update run %s: %w", runID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

func requireEditable(run *entity.PayrollRun) error {
	if !run.Status.IsEditable() {
		return entity.NewValidationError("status",
			fmt.Sprintf("line items can only be edited while the run is in review, run is %s", run.Status))
	}
	return nil
}

func requireManualAllowed(run *entity.PayrollRun) error {
	if !run.Status.AllowsManualItems() {
		return entity.NewValidationError("status",
			fmt.Sprintf("manual line items can only change in draft or review, run is %s", run.Status))
	}
	return nil
}

func findItem(items []*entity.PayrollLineItem, id string) *entity.PayrollLineItem {
	for _, item := range items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// updateItem applies change to one line item of its run
func (s *payrollServiceImpl) updateItem(ctx context.Context, lineItemID string, expectedVersion *int, change func(item *entity.PayrollLineItem)) (*LineItemResult, error) {
	item, err := s.deps.LineItems.GetByID(ctx, lineItemID)
	if err != nil {
		return nil, fmt.Errorf("get line item %s: %w", lineItemID, err)
	}

	var updated *entity.PayrollLineItem
	run, err := s.mutateRun(ctx, item.RunID, expectedVersion, func(txCtx context.Context, run *entity.PayrollRun, items []*entity.PayrollLineItem) ([]*entity.PayrollLineItem, error) {
		if err := requireEditable(run); err != nil {
			return nil, err
		}
		target := findItem(items, lineItemID)
		if target == nil {
			return nil, fmt.Errorf("line item %s: %w", lineItemID, entity.ErrNotFound)
		}

		change(target)
		target.UpdatedAt = s.now()
		if err := s.deps.LineItems.UpdateAmounts(txCtx, target); err != nil {
			return nil, fmt.Errorf("update line item %s: %w", lineItemID, err)
		}
		updated = target
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return &LineItemResult{Item: updated, Run: run}, nil
}

func (s *payrollServiceImpl) UpdateLineItemHours(ctx context.Context, lineItemID string, hours float64, expectedVersion *int) (*LineItemResult, error) {
	if err := payroll.ValidateHours(hours); err != nil {
		return nil, err
	}

	result, err := s.updateItem(ctx, lineItemID, expectedVersion, func(item *entity.PayrollLineItem) {
		payroll.SetActualHours(item, hours)
	})
	if err != nil {
		s.deps.Logger.Error("Failed to update line item hours", "error", err, "line_item_id", lineItemID)
		return nil, err
	}

	s.deps.Logger.Info("Line item hours updated",
		"line_item_id", lineItemID, "hours", result.Item.ActualHours, "run_version", result.Run.Version)
	return result, nil
}

func (s *payrollServiceImpl) AdjustLineItem(ctx context.Context, lineItemID string, adjustment float64) (*LineItemResult, error) {
	result, err := s.updateItem(ctx, lineItemID, nil, func(item *entity.PayrollLineItem) {
		payroll.SetAdjustment(item, adjustment)
	})
	if err != nil {
		s.deps.Logger.Error("Failed to adjust line item", "error", err, "line_item_id", lineItemID)
		return nil, err
	}

	s.deps.Logger.Info("Line item adjusted",
		"line_item_id", lineItemID, "adjustment", result.Item.AdjustmentAmount)
	return result, nil
}

// BulkAdjustHours sets the actual hours of every line item of the given
// teachers. Items are written concurrently inside the run transaction, so a
// run that leaves review before the totals are stored rolls the whole edit back.
func (s *payrollServiceImpl) BulkAdjustHours(ctx context.Context, runID string, teacherIDs []string, hours float64) (*BulkAdjustResult, error) {
	if len(teacherIDs) == 0 {
		return nil, entity.NewValidationError("teacher_ids", "must not be empty")
	}
	if err := payroll.ValidateHours(hours); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(teacherIDs))
	for _, id := range teacherIDs {
		wanted[id] = true
	}

	var updated, failed atomic.Int32
	run, err := s.mutateRun(ctx, runID, nil, func(txCtx context.Context, run *entity.PayrollRun, items []*entity.PayrollLineItem) ([]*entity.PayrollLineItem, error) {
		if err := requireEditable(run); err != nil {
			return nil, err
		}

		var (
			wg  sync.WaitGroup
			sem = make(chan struct{}, s.opts.BulkConcurrency)
			now = s.now()
		)
		for _, item := range items {
			if !wanted[item.TeacherID] {
				continue
			}

			wg.Add(1)
			sem <- struct{}{}
			go func(item *entity.PayrollLineItem) {
				defer wg.Done()
				defer func() { <-sem }()

				previous := *item
				payroll.SetActualHours(item, hours)
				item.UpdatedAt = now
				if err := s.deps.LineItems.UpdateAmounts(txCtx, item); err != nil {
					*item = previous
					failed.Add(1)
					s.deps.Logger.Error("Bulk hours update failed for line item",
						"error", err, "line_item_id", item.ID, "teacher_id", item.TeacherID)
					return
				}
				updated.Add(1)
			}(item)
		}
		wg.Wait()
		return items, nil
	})
	if err != nil {
		s.deps.Logger.Error("Bulk hours update aborted", "error", err, "run_id", runID)
		return nil, err
	}

	result := &BulkAdjustResult{Run: run, Updated: int(updated.Load()), Failed: int(failed.Load())}
	s.deps.Logger.Info("Bulk hours update finished",
		"run_id", runID, "hours", hours, "updated", result.Updated, "failed", result.Failed)
	return result, nil
}

func (s *payrollServiceImpl) AddManualLineItem(ctx context.Context, runID string, input ManualLineItemInput) (*LineItemResult, error) {
	item, err := payroll.NewManualLineItem(runID, input.TeacherID, input.Description, input.Hours, input.HourlyRate, s.now())
	if err != nil {
		return nil, err
	}

	if _, err := s.deps.Teachers.GetByID(ctx, input.TeacherID); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, entity.NewValidationError("teacher_id", fmt.Sprintf("unknown teacher %q", input.TeacherID))
		}
		return nil, fmt.Errorf("get teacher %s: %w", input.TeacherID, err)
	}

	run, err := s.mutateRun(ctx, runID, nil, func(txCtx context.Context, run *entity.PayrollRun, items []*entity.PayrollLineItem) ([]*entity.PayrollLineItem, error) {
		if err := requireManualAllowed(run); err != nil {
			return nil, err
		}
		if err := s.deps.LineItems.Create(txCtx, item); err != nil {
			return nil, fmt.Errorf("create line item: %w", err)
		}
		return append(items, item), nil
	})
	if err != nil {
		s.deps.Logger.Error("Failed to add manual line item", "error", err, "run_id", runID)
		return nil, err
	}

	s.deps.Logger.Info("Manual line item added",
		"run_id", runID, "line_item_id", item.ID, "teacher_id", item.TeacherID, "amount", item.FinalAmount)
	return &LineItemResult{Item: item, Run: run}, nil
}

func (s *payrollServiceImpl) DeleteLineItem(ctx context.Context, lineItemID string) (*entity.PayrollRun, error) {
	item, err := s.deps.LineItems.GetByID(ctx, lineItemID)
	if err != nil {
		return nil, fmt.Errorf("get line item %s: %w", lineItemID, err)
	}
	if !item.IsManual() {
		return nil, entity.NewValidationError("line_item_id", "only manual line items can be deleted")
	}

	run, err := s.mutateRun(ctx, item.RunID, nil, func(txCtx context.Context, run *entity.PayrollRun, items []*entity.PayrollLineItem) ([]*entity.PayrollLineItem, error) {
		if err := requireManualAllowed(run); err != nil {
			return nil, err
		}
		if err := s.deps.LineItems.Delete(txCtx, lineItemID); err != nil {
			return nil, fmt.Errorf("delete line item %s: %w", lineItemID, err)
		}

		kept := items[:0]
		for _, it := range items {
			if it.ID != lineItemID {
				kept = append(kept, it)
			}
		}
		return kept, nil
	})
	if err != nil {
		s.deps.Logger.Error("Failed to delete line item", "error", err, "line_item_id", lineItemID)
		return nil, err
	}

	s.deps.Logger.Info("Manual line item deleted", "line_item_id", lineItemID, "run_id", run.ID)
	return run, nil
}

// TransitionStatus moves the run through the lifecycle state machine.
// Entering paid dispatches the payment notifications detached from ctx; their
// outcome never affects the stored status.
func (s *payrollServiceImpl) TransitionStatus(ctx context.Context, runID string, target entity.RunStatus, actor string, expectedVersion *int) (*entity.PayrollRun, error) {
	if !workflow.State(target).IsValid() {
		return nil, entity.NewValidationError("status", fmt.Sprintf("unknown run status %q", target))
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = "system"
	}

	var from entity.RunStatus
	run, err := s.mutateRun(ctx, runID, expectedVersion, func(txCtx context.Context, run *entity.PayrollRun, items []*entity.PayrollLineItem) ([]*entity.PayrollLineItem, error) {
		from = run.Status
		current := workflow.State(run.Status)
		if !current.IsValid() {
			return nil, fmt.Errorf("run %s has unknown status %q", run.ID, run.Status)
		}

		machine := workflow.NewPayrollRunMachine(current)
		if err := machine.TransitionTo(txCtx, workflow.State(target)); err != nil {
			return nil, err
		}

		now := s.now()
		run.Status = entity.RunStatus(machine.State())
		switch run.Status {
		case entity.RunStatusApproved:
			run.ApprovedAt = &now
			run.ApprovedBy = actor
		case entity.RunStatusPaid:
			run.PaidAt = &now
		}
		return items, nil
	})
	if err != nil {
		s.deps.Logger.Error("Failed to transition payroll run",
			"error", err, "run_id", runID, "target", target)
		return nil, err
	}

	s.deps.Logger.Info("Payroll run status changed",
		"run_id", run.ID, "from", from, "to", run.Status, "actor", actor, "version", run.Version)

	s.deps.Dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeRunStatusChanged, run.ID, map[string]interface{}{
		"from":  string(from),
		"to":    string(run.Status),
		"actor": actor,
	}))
	if run.Status == entity.RunStatusPaid {
		s.deps.Dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeRunPaid, run.ID, map[string]interface{}{
			"run_id": run.ID,
		}))
	}
	return run, nil
}

func (s *payrollServiceImpl) ExportRun(ctx context.Context, runID string) (*ExportFile, error) {
	if s.deps.Exporter == nil {
		return nil, fmt.Errorf("payroll export is not configured")
	}

	detail, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	teachers, err := s.teacherIndex(ctx)
	if err != nil {
		return nil, err
	}

	data, err := s.deps.Exporter.Export(detail, teachers)
	if err != nil {
		s.deps.Logger.Error("Failed to export payroll run", "error", err, "run_id", runID)
		return nil, fmt.Errorf("export run %s: %w", runID, err)
	}

	return &ExportFile{
		Name: fmt.Sprintf("payroll_%s_%s.%s",
			detail.Run.PeriodStart.Format(time.DateOnly),
			detail.Run.PeriodEnd.Format(time.DateOnly),
			s.deps.Exporter.Extension()),
		ContentType: s.deps.Exporter.ContentType(),
		Data:        data,
	}, nil
}
