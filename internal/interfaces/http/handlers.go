package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/tutoring-backoffice/internal/application/service"
	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
	"github.com/garyjia/tutoring-backoffice/internal/domain/sms"
	"github.com/garyjia/tutoring-backoffice/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	payroll       service.PayrollService
	enrollment    service.EnrollmentService
	sms           service.SmsService
	notifications service.PaymentNotificationService
	ready         func() bool
	logger        Logger
	now           func() time.Time
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		payroll:       services.Payroll,
		enrollment:    services.Enrollment,
		sms:           services.Sms,
		notifications: services.Notifications,
		ready:         services.Ready,
		logger:        logger,
		now:           time.Now,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// EndEnrollmentRequest is the body of POST /api/enrollments/:id/end
type EndEnrollmentRequest struct {
	EndDate string `json:"end_date" binding:"required"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	if h.ready != nil && !h.ready() {
		status, code = "starting", http.StatusServiceUnavailable
	}

	c.JSON(code, Response{
		Success: code == http.StatusOK,
		Data: HealthResponse{
			Status:    status,
			Timestamp: h.now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// EndEnrollment handles POST /api/enrollments/:id/end
func (h *Handlers) EndEnrollment(c *gin.Context) {
	var req EndEnrollmentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	endDate, err := parseDate("end_date", req.EndDate)
	if err != nil {
		h.respondError(c, "end enrollment", err)
		return
	}

	result, err := h.enrollment.EndEnrollment(c.Request.Context(), c.Param("id"), endDate)
	if err != nil {
		h.respondError(c, "end enrollment", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// bindJSON decodes the request body and answers 400 when it does not fit
func (h *Handlers) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.logger.Error("Invalid request body", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body: " + err.Error(),
		})
		return false
	}
	return true
}

// respondError writes the status that matches err's kind.
// Unclassified errors are logged and hidden behind a generic message.
func (h *Handlers) respondError(c *gin.Context, operation string, err error) {
	status, message := classifyError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "operation", operation, "error", err)
	}
	c.JSON(status, Response{Success: false, Error: message})
}

func classifyError(err error) (int, string) {
	var inconsistent *service.InconsistentStateError
	switch {
	case errors.As(err, &inconsistent):
		return http.StatusInternalServerError, inconsistent.Error()
	case errors.Is(err, entity.ErrValidation), errors.Is(err, sms.ErrMissingRequiredField):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrGuardFailed),
		errors.Is(err, entity.ErrStaleVersion):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// parseDate reads a YYYY-MM-DD value
func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, entity.NewValidationError(field, "must be a YYYY-MM-DD date")
	}
	return t, nil
}
