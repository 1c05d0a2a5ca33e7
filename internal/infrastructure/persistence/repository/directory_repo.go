package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/tutoring-backoffice/internal/application/port"
	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
	"github.com/garyjia/tutoring-backoffice/internal/infrastructure/persistence/sqlite"
)

// TeacherRepository implements port.TeacherRepository
type TeacherRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTeacherRepository creates a new teacher repository
func NewTeacherRepository(db *sql.DB, logger *zap.Logger) port.TeacherRepository {
	return &TeacherRepository{db: db, logger: logger}
}

const teacherColumns = `id, name, email, phone, default_hourly_rate, payment_method, is_active, created_at, updated_at`

// Create inserts a teacher
func (r *TeacherRepository) Create(ctx context.Context, teacher *entity.Teacher) error {
	now := time.Now()
	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = now
	}
	teacher.UpdatedAt = now

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		`INSERT INTO teachers (`+teacherColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		teacher.ID,
		teacher.Name,
		teacher.Email,
		teacher.Phone,
		teacher.DefaultHourlyRate,
		teacher.PaymentMethod,
		teacher.IsActive,
		teacher.CreatedAt,
		teacher.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create teacher", zap.String("teacher_id", teacher.ID), zap.Error(err))
		return fmt.Errorf("failed to create teacher: %w", err)
	}
	return nil
}

// GetByID retrieves a teacher by ID
func (r *TeacherRepository) GetByID(ctx context.Context, id string) (*entity.Teacher, error) {
	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+teacherColumns+` FROM teachers WHERE id = ?`, id)

	teacher, err := scanTeacher(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("teacher", id)
	}
	if err != nil {
		r.logger.Error("Failed to get teacher", zap.String("teacher_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get teacher: %w", err)
	}
	return teacher, nil
}

// List returns every teacher ordered by name
func (r *TeacherRepository) List(ctx context.Context) ([]*entity.Teacher, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx,
		`SELECT `+teacherColumns+` FROM teachers ORDER BY name, id`)
	if err != nil {
		r.logger.Error("Failed to list teachers", zap.Error(err))
		return nil, fmt.Errorf("failed to list teachers: %w", err)
	}
	defer rows.Close()

	var teachers []*entity.Teacher
	for rows.Next() {
		teacher, err := scanTeacher(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan teacher: %w", err)
		}
		teachers = append(teachers, teacher)
	}
	return teachers, rows.Err()
}

func scanTeacher(row rowScanner) (*entity.Teacher, error) {
	var t entity.Teacher
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Email,
		&t.Phone,
		&t.DefaultHourlyRate,
		&t.PaymentMethod,
		&t.IsActive,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ServiceRepository implements port.ServiceRepository
type ServiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewServiceRepository creates a new service repository
func NewServiceRepository(db *sql.DB, logger *zap.Logger) port.ServiceRepository {
	return &ServiceRepository{db: db, logger: logger}
}

// Create inserts a service
func (r *ServiceRepository) Create(ctx context.Context, service *entity.Service) error {
	if service.CreatedAt.IsZero() {
		service.CreatedAt = time.Now()
	}

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		`INSERT INTO services (id, name, default_teacher_rate, created_at) VALUES (?, ?, ?, ?)`,
		service.ID, service.Name, nullableFloat(service.DefaultTeacherRate), service.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create service", zap.String("service_id", service.ID), zap.Error(err))
		return fmt.Errorf("failed to create service: %w", err)
	}
	return nil
}

// GetByID retrieves a service by ID
func (r *ServiceRepository) GetByID(ctx context.Context, id string) (*entity.Service, error) {
	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, name, default_teacher_rate, created_at FROM services WHERE id = ?`, id)

	service, err := scanService(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("service", id)
	}
	if err != nil {
		r.logger.Error("Failed to get service", zap.String("service_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return service, nil
}

// List returns every service
func (r *ServiceRepository) List(ctx context.Context) ([]*entity.Service, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx,
		`SELECT id, name, default_teacher_rate, created_at FROM services ORDER BY name, id`)
	if err != nil {
		r.logger.Error("Failed to list services", zap.Error(err))
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var services []*entity.Service
	for rows.Next() {
		service, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, service)
	}
	return services, rows.Err()
}

func scanService(row rowScanner) (*entity.Service, error) {
	var (
		s    entity.Service
		rate sql.NullFloat64
	)
	if err := row.Scan(&s.ID, &s.Name, &rate, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.DefaultTeacherRate = floatPtr(rate)
	return &s, nil
}

// Verify interface compliance
var (
	_ port.TeacherRepository = (*TeacherRepository)(nil)
	_ port.ServiceRepository = (*ServiceRepository)(nil)
)
