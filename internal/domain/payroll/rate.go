package payroll

import "github.com/garyjia/tutoring-backoffice/internal/domain/entity"

// RateResolution is the effective hourly rate of a line item and the tier that produced it
type RateResolution struct {
	Rate   float64
	Source string
}

// ResolveRate picks the first non-nil rate in precedence order:
// assignment rate, service default, teacher default.
// service may be nil when the assignment has no service.
func ResolveRate(assignment *entity.Assignment, service *entity.Service, teacher *entity.Teacher) RateResolution {
	if assignment != nil && assignment.HourlyRateTeacher != nil {
		return RateResolution{Rate: *assignment.HourlyRateTeacher, Source: entity.RateSourceAssignment}
	}
	if service != nil && service.DefaultTeacherRate != nil {
		return RateResolution{Rate: *service.DefaultTeacherRate, Source: entity.RateSourceServiceDefault}
	}

	var rate float64
	if teacher != nil {
		rate = teacher.DefaultHourlyRate
	}
	return RateResolution{Rate: rate, Source: entity.RateSourceTeacherDefault}
}
