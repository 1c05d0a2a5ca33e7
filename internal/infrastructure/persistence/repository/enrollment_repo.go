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

// EnrollmentRepository implements port.EnrollmentRepository
type EnrollmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEnrollmentRepository creates a new enrollment repository
func NewEnrollmentRepository(db *sql.DB, logger *zap.Logger) port.EnrollmentRepository {
	return &EnrollmentRepository{db: db, logger: logger}
}

// Create inserts an enrollment
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *entity.Enrollment) error {
	enrollment.UpdatedAt = time.Now()
	if enrollment.Status == "" {
		enrollment.Status = entity.EnrollmentStatusActive
	}

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, `
		INSERT INTO enrollments (id, family_id, student_name, service_id, status, start_date, end_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		enrollment.ID,
		enrollment.FamilyID,
		enrollment.StudentName,
		enrollment.ServiceID,
		enrollment.Status,
		formatDate(enrollment.StartDate),
		nullableDate(enrollment.EndDate),
		enrollment.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create enrollment", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		return fmt.Errorf("failed to create enrollment: %w", err)
	}
	return nil
}

// GetByID retrieves an enrollment by ID
func (r *EnrollmentRepository) GetByID(ctx context.Context, id string) (*entity.Enrollment, error) {
	var (
		e         entity.Enrollment
		startDate string
		endDate   sql.NullString
	)
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, family_id, student_name, service_id, status, start_date, end_date, updated_at
		FROM enrollments WHERE id = ?`, id,
	).Scan(&e.ID, &e.FamilyID, &e.StudentName, &e.ServiceID, &e.Status, &startDate, &endDate, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("enrollment", id)
	}
	if err != nil {
		r.logger.Error("Failed to get enrollment", zap.String("enrollment_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}

	if e.StartDate, err = parseDate(startDate); err != nil {
		return nil, err
	}
	if e.EndDate, err = parseNullableDate(endDate); err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateStatus sets status and end date; a nil endDate clears it
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id, status string, endDate *time.Time) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		`UPDATE enrollments SET status = ?, end_date = ?, updated_at = ? WHERE id = ?`,
		status, nullableDate(endDate), time.Now(), id,
	)
	if err != nil {
		r.logger.Error("Failed to update enrollment status",
			zap.String("enrollment_id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to update enrollment status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return notFound("enrollment", id)
	}
	return nil
}

// AssignmentRepository implements port.AssignmentRepository
type AssignmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *sql.DB, logger *zap.Logger) port.AssignmentRepository {
	return &AssignmentRepository{db: db, logger: logger}
}

const assignmentColumns = `id, teacher_id, enrollment_id, service_id, hourly_rate_teacher, hours_per_week,
	weekly_schedule, is_active, start_date, end_date, updated_at`

// Create inserts an assignment
func (r *AssignmentRepository) Create(ctx context.Context, a *entity.Assignment) error {
	a.UpdatedAt = time.Now()

	var schedule interface{}
	if len(a.WeeklySchedule) > 0 {
		raw, err := json.Marshal(a.WeeklySchedule)
		if err != nil {
			return fmt.Errorf("failed to encode weekly schedule: %w", err)
		}
		schedule = string(raw)
	}

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		`INSERT INTO teacher_assignments (`+assignmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.TeacherID,
		a.EnrollmentID,
		a.ServiceID,
		nullableFloat(a.HourlyRateTeacher),
		nullableFloat(a.HoursPerWeek),
		schedule,
		a.IsActive,
		nullableDate(a.StartDate),
		nullableDate(a.EndDate),
		a.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create assignment", zap.String("assignment_id", a.ID), zap.Error(err))
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

// GetByID retrieves an assignment by ID
func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*entity.Assignment, error) {
	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM teacher_assignments WHERE id = ?`, id)

	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("assignment", id)
	}
	if err != nil {
		r.logger.Error("Failed to get assignment", zap.String("assignment_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

// ListActive returns every active assignment in a stable order
func (r *AssignmentRepository) ListActive(ctx context.Context) ([]*entity.Assignment, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM teacher_assignments WHERE is_active = 1 ORDER BY teacher_id, id`)
	if err != nil {
		r.logger.Error("Failed to list active assignments", zap.Error(err))
		return nil, fmt.Errorf("failed to list active assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*entity.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// EndByEnrollment deactivates the enrollment's active assignments
func (r *AssignmentRepository) EndByEnrollment(ctx context.Context, enrollmentID string, endDate time.Time) (int, error) {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, `
		UPDATE teacher_assignments
		SET is_active = 0, end_date = ?, updated_at = ?
		WHERE enrollment_id = ? AND is_active = 1`,
		formatDate(endDate), time.Now(), enrollmentID,
	)
	if err != nil {
		r.logger.Error("Failed to end assignments",
			zap.String("enrollment_id", enrollmentID),
			zap.Error(err))
		return 0, fmt.Errorf("failed to end assignments: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count ended assignments: %w", err)
	}
	return int(n), nil
}

func scanAssignment(row rowScanner) (*entity.Assignment, error) {
	var (
		a          entity.Assignment
		rate       sql.NullFloat64
		hours      sql.NullFloat64
		schedule   sql.NullString
		start, end sql.NullString
	)
	err := row.Scan(
		&a.ID,
		&a.TeacherID,
		&a.EnrollmentID,
		&a.ServiceID,
		&rate,
		&hours,
		&schedule,
		&a.IsActive,
		&start,
		&end,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.HourlyRateTeacher = floatPtr(rate)
	a.HoursPerWeek = floatPtr(hours)
	if schedule.Valid && schedule.String != "" {
		if err := json.Unmarshal([]byte(schedule.String), &a.WeeklySchedule); err != nil {
			return nil, fmt.Errorf("invalid weekly schedule for assignment %s: %w", a.ID, err)
		}
	}
	if a.StartDate, err = parseNullableDate(start); err != nil {
		return nil, err
	}
	if a.EndDate, err = parseNullableDate(end); err != nil {
		return nil, err
	}
	return &a, nil
}

// Verify interface compliance
var (
	_ port.EnrollmentRepository = (*EnrollmentRepository)(nil)
	_ port.AssignmentRepository = (*AssignmentRepository)(nil)
)
