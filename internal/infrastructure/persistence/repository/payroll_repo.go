package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/tutoring-backoffice/internal/application/port"
	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
	"github.com/garyjia/tutoring-backoffice/internal/infrastructure/persistence/sqlite"
)

// PayrollRunRepository implements port.PayrollRunRepository
type PayrollRunRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPayrollRunRepository creates a new payroll run repository
func NewPayrollRunRepository(db *sql.DB, logger *zap.Logger) port.PayrollRunRepository {
	return &PayrollRunRepository{db: db, logger: logger}
}

const runColumns = `id, period_start, period_end, status, total_hours, total_calculated, total_adjusted,
	teacher_count, approved_at, approved_by, paid_at, version, created_at, updated_at`

// Create inserts a run. A second run for the same period violates the unique index.
func (r *PayrollRunRepository) Create(ctx context.Context, run *entity.PayrollRun) error {
	now := time.Now()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	if run.UpdatedAt.IsZero() {
		run.UpdatedAt = now
	}
	if run.Version == 0 {
		run.Version = 1
	}

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		`INSERT INTO payroll_runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		formatDate(run.PeriodStart),
		formatDate(run.PeriodEnd),
		string(run.Status),
		run.TotalHours,
		run.TotalCalculated,
		run.TotalAdjusted,
		run.TeacherCount,
		nullableTime(run.ApprovedAt),
		run.ApprovedBy,
		nullableTime(run.PaidAt),
		run.Version,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create payroll run",
			zap.String("run_id", run.ID),
			zap.String("period_start", formatDate(run.PeriodStart)),
			zap.Error(err))
		return fmt.Errorf("failed to create payroll run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by ID
func (r *PayrollRunRepository) GetByID(ctx context.Context, id string) (*entity.PayrollRun, error) {
	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM payroll_runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("payroll run", id)
	}
	if err != nil {
		r.logger.Error("Failed to get payroll run", zap.String("run_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get payroll run: %w", err)
	}
	return run, nil
}

// GetByPeriod retrieves the run covering exactly [start, end]
func (r *PayrollRunRepository) GetByPeriod(ctx context.Context, start, end time.Time) (*entity.PayrollRun, error) {
	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM payroll_runs WHERE period_start = ? AND period_end = ?`,
		formatDate(start), formatDate(end))

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("payroll run for period", formatDate(start)+".."+formatDate(end))
	}
	if err != nil {
		r.logger.Error("Failed to get payroll run by period", zap.Error(err))
		return nil, fmt.Errorf("failed to get payroll run by period: %w", err)
	}
	return run, nil
}

// List returns runs newest period first
func (r *PayrollRunRepository) List(ctx context.Context, filter port.RunFilter) ([]*entity.PayrollRun, error) {
	var (
		query strings.Builder
		args  []interface{}
	)
	query.WriteString(`SELECT ` + runColumns + ` FROM payroll_runs`)
	if filter.Status != "" {
		query.WriteString(` WHERE status = ?`)
		args = append(args, string(filter.Status))
	}
	query.WriteString(` ORDER BY period_start DESC`)
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query.WriteString(` LIMIT ? OFFSET ?`)
		args = append(args, limit, filter.Offset)
	}

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query.String(), args...)
	if err != nil {
		r.logger.Error("Failed to list payroll runs", zap.Error(err))
		return nil, fmt.Errorf("failed to list payroll runs: %w", err)
	}
	defer rows.Close()

	var runs []*entity.PayrollRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Update writes the mutable columns if the stored version still matches
// run.Version, and increments run.Version on success
func (r *PayrollRunRepository) Update(ctx context.Context, run *entity.PayrollRun) error {
	exec := sqlite.ExecutorFrom(ctx, r.db)
	result, err := exec.ExecContext(ctx, `
		UPDATE payroll_runs
		SET status = ?, total_hours = ?, total_calculated = ?, total_adjusted = ?, teacher_count = ?,
			approved_at = ?, approved_by = ?, paid_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		string(run.Status),
		run.TotalHours,
		run.TotalCalculated,
		run.TotalAdjusted,
		run.TeacherCount,
		nullableTime(run.ApprovedAt),
		run.ApprovedBy,
		nullableTime(run.PaidAt),
		run.UpdatedAt,
		run.ID,
		run.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update payroll run", zap.String("run_id", run.ID), zap.Error(err))
		return fmt.Errorf("failed to update payroll run: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check payroll run update: %w", err)
	}
	if n == 0 {
		var stored int
		err := exec.QueryRowContext(ctx, `SELECT version FROM payroll_runs WHERE id = ?`, run.ID).Scan(&stored)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("payroll run", run.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to read payroll run version: %w", err)
		}
		return fmt.Errorf("payroll run %s is at version %d, not %d: %w",
			run.ID, stored, run.Version, entity.ErrStaleVersion)
	}

	run.Version++
	return nil
}

func scanRun(row rowScanner) (*entity.PayrollRun, error) {
	var (
		run        entity.PayrollRun
		start, end string
		status     string
		approvedAt sql.NullTime
		paidAt     sql.NullTime
	)
	err := row.Scan(
		&run.ID,
		&start,
		&end,
		&status,
		&run.TotalHours,
		&run.TotalCalculated,
		&run.TotalAdjusted,
		&run.TeacherCount,
		&approvedAt,
		&run.ApprovedBy,
		&paidAt,
		&run.Version,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Status = entity.RunStatus(status)
	run.ApprovedAt = timePtr(approvedAt)
	run.PaidAt = timePtr(paidAt)
	if run.PeriodStart, err = parseDate(start); err != nil {
		return nil, err
	}
	if run.PeriodEnd, err = parseDate(end); err != nil {
		return nil, err
	}
	return &run, nil
}

// LineItemRepository implements port.LineItemRepository
type LineItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLineItemRepository creates a new line item repository
func NewLineItemRepository(db *sql.DB, logger *zap.Logger) port.LineItemRepository {
	return &LineItemRepository{db: db, logger: logger}
}

const lineItemColumns = `id, run_id, teacher_id, teacher_assignment_id, description, calculated_hours,
	actual_hours, hourly_rate, calculated_amount, adjustment_amount, final_amount, rate_source,
	created_at, updated_at`

// Create inserts a line item
func (r *LineItemRepository) Create(ctx context.Context, item *entity.PayrollLineItem) error {
	return r.insert(ctx, sqlite.ExecutorFrom(ctx, r.db), item)
}

// CreateBatch inserts items with the executor carried by ctx; callers wrap it
// in a transaction to make the batch atomic
func (r *LineItemRepository) CreateBatch(ctx context.Context, items []*entity.PayrollLineItem) error {
	exec := sqlite.ExecutorFrom(ctx, r.db)
	for _, item := range items {
		if err := r.insert(ctx, exec, item); err != nil {
			return err
		}
	}
	return nil
}

func (r *LineItemRepository) insert(ctx context.Context, exec sqlite.Executor, item *entity.PayrollLineItem) error {
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = now
	}

	var assignmentID interface{}
	if item.AssignmentID != nil {
		assignmentID = *item.AssignmentID
	}

	_, err := exec.ExecContext(ctx,
		`INSERT INTO payroll_line_items (`+lineItemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.RunID,
		item.TeacherID,
		assignmentID,
		item.Description,
		item.CalculatedHours,
		item.ActualHours,
		item.HourlyRate,
		item.CalculatedAmount,
		item.AdjustmentAmount,
		item.FinalAmount,
		item.RateSource,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create line item",
			zap.String("line_item_id", item.ID),
			zap.String("run_id", item.RunID),
			zap.Error(err))
		return fmt.Errorf("failed to create line item: %w", err)
	}
	return nil
}

// GetByID retrieves a line item by ID
func (r *LineItemRepository) GetByID(ctx context.Context, id string) (*entity.PayrollLineItem, error) {
	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+lineItemColumns+` FROM payroll_line_items WHERE id = ?`, id)

	item, err := scanLineItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("line item", id)
	}
	if err != nil {
		r.logger.Error("Failed to get line item", zap.String("line_item_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get line item: %w", err)
	}
	return item, nil
}

// ListByRun returns the run's line items in insertion order
func (r *LineItemRepository) ListByRun(ctx context.Context, runID string) ([]*entity.PayrollLineItem, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx,
		`SELECT `+lineItemColumns+` FROM payroll_line_items WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		r.logger.Error("Failed to list line items", zap.String("run_id", runID), zap.Error(err))
		return nil, fmt.Errorf("failed to list line items: %w", err)
	}
	defer rows.Close()

	var items []*entity.PayrollLineItem
	for rows.Next() {
		item, err := scanLineItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateAmounts persists actual hours, adjustment and final amount
func (r *LineItemRepository) UpdateAmounts(ctx context.Context, item *entity.PayrollLineItem) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, `
		UPDATE payroll_line_items
		SET actual_hours = ?, adjustment_amount = ?, final_amount = ?, updated_at = ?
		WHERE id = ?`,
		item.ActualHours, item.AdjustmentAmount, item.FinalAmount, item.UpdatedAt, item.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update line item amounts", zap.String("line_item_id", item.ID), zap.Error(err))
		return fmt.Errorf("failed to update line item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return notFound("line item", item.ID)
	}
	return nil
}

// Delete removes a line item
func (r *LineItemRepository) Delete(ctx context.Context, id string) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		`DELETE FROM payroll_line_items WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete line item", zap.String("line_item_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete line item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return notFound("line item", id)
	}
	return nil
}

func scanLineItem(row rowScanner) (*entity.PayrollLineItem, error) {
	var (
		item         entity.PayrollLineItem
		assignmentID sql.NullString
	)
	err := row.Scan(
		&item.ID,
		&item.RunID,
		&item.TeacherID,
		&assignmentID,
		&item.Description,
		&item.CalculatedHours,
		&item.ActualHours,
		&item.HourlyRate,
		&item.CalculatedAmount,
		&item.AdjustmentAmount,
		&item.FinalAmount,
		&item.RateSource,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if assignmentID.Valid {
		id := assignmentID.String
		item.AssignmentID = &id
	}
	return &item, nil
}

// Verify interface compliance
var (
	_ port.PayrollRunRepository = (*PayrollRunRepository)(nil)
	_ port.LineItemRepository   = (*LineItemRepository)(nil)
)
