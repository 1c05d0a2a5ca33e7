package entity

import "time"

// Teacher is a tutor on the payroll
type Teacher struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Phone             string    `json:"phone,omitempty"`
	DefaultHourlyRate float64   `json:"default_hourly_rate"`
	PaymentMethod     string    `json:"payment_method,omitempty"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Service is a tutoring offering with an optional default teacher rate
type Service struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	DefaultTeacherRate *float64  `json:"default_teacher_rate,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Enrollment registers a student of a family to a service
type Enrollment struct {
	ID          string     `json:"id"`
	FamilyID    string     `json:"family_id"`
	StudentName string     `json:"student_name"`
	ServiceID   string     `json:"service_id"`
	Status      string     `json:"status"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Assignment links a teacher to an enrollment
type Assignment struct {
	ID                string         `json:"id"`
	TeacherID         string         `json:"teacher_id"`
	EnrollmentID      string         `json:"enrollment_id"`
	ServiceID         string         `json:"service_id"`
	HourlyRateTeacher *float64       `json:"hourly_rate_teacher,omitempty"`
	HoursPerWeek      *float64       `json:"hours_per_week,omitempty"`
	WeeklySchedule    WeeklySchedule `json:"weekly_schedule,omitempty"`
	IsActive          bool           `json:"is_active"`
	StartDate         *time.Time     `json:"start_date,omitempty"`
	EndDate           *time.Time     `json:"end_date,omitempty"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// WeeklySchedule maps a weekday to the hours taught on that day
type WeeklySchedule map[time.Weekday]float64

// HasHours reports whether the schedule carries any teaching time
func (w WeeklySchedule) HasHours() bool {
	for _, h := range w {
		if h > 0 {
			return true
		}
	}
	return false
}

// Overlaps reports whether the assignment's active window intersects [start, end].
// Nil bounds are open.
func (a *Assignment) Overlaps(start, end time.Time) bool {
	if a.StartDate != nil && a.StartDate.After(end) {
		return false
	}
	if a.EndDate != nil && a.EndDate.Before(start) {
		return false
	}
	return true
}
