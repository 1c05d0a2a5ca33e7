package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/tutoring-backoffice/internal/application/port"
	"github.com/garyjia/tutoring-backoffice/internal/application/service"
	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
)

// GenerateRunRequest is the body of POST /api/payroll/runs.
// Both bounds empty selects the bi-weekly period containing today.
type GenerateRunRequest struct {
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

// ListRunsRequest represents query parameters for listing runs
type ListRunsRequest struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// TransitionRequest moves a run to another status
type TransitionRequest struct {
	Status          string `json:"status" binding:"required"`
	Actor           string `json:"actor"`
	ExpectedVersion *int   `json:"expected_version"`
}

// UpdateHoursRequest replaces the hours of a line item
type UpdateHoursRequest struct {
	Hours           *float64 `json:"hours" binding:"required"`
	ExpectedVersion *int     `json:"expected_version"`
}

// AdjustRequest sets the adjustment amount of a line item
type AdjustRequest struct {
	Amount *float64 `json:"adjustment_amount" binding:"required"`
}

// BulkHoursRequest sets the same hours on every item of the listed teachers
type BulkHoursRequest struct {
	TeacherIDs []string `json:"teacher_ids" binding:"required,min=1"`
	Hours      *float64 `json:"hours" binding:"required"`
}

// ManualLineItemRequest adds a hand-entered line item
type ManualLineItemRequest struct {
	TeacherID   string   `json:"teacher_id" binding:"required"`
	Description string   `json:"description"`
	Hours       *float64 `json:"hours" binding:"required"`
	HourlyRate  *float64 `json:"hourly_rate" binding:"required"`
}

// GenerateRun handles POST /api/payroll/runs
func (h *Handlers) GenerateRun(c *gin.Context) {
	var req GenerateRunRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}

	var (
		period = h.payroll.DefaultPeriod(h.now())
		err    error
	)
	switch {
	case req.PeriodStart == "" && req.PeriodEnd == "":
	case req.PeriodStart == "" || req.PeriodEnd == "":
		h.respondError(c, "generate run", entity.NewValidationError("period", "period_start and period_end go together"))
		return
	default:
		if period.Start, err = parseDate("period_start", req.PeriodStart); err != nil {
			h.respondError(c, "generate run", err)
			return
		}
		if period.End, err = parseDate("period_end", req.PeriodEnd); err != nil {
			h.respondError(c, "generate run", err)
			return
		}
	}

	detail, err := h.payroll.GenerateRun(c.Request.Context(), period.Start, period.End)
	if err != nil {
		h.respondError(c, "generate run", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: detail})
}

// ListRuns handles GET /api/payroll/runs
func (h *Handlers) ListRuns(c *gin.Context) {
	var req ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return
	}

	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	runs, err := h.payroll.ListRuns(c.Request.Context(), port.RunFilter{
		Status: entity.RunStatus(req.Status),
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		h.respondError(c, "list runs", err)
		return
	}
	if runs == nil {
		runs = []*entity.PayrollRun{}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: runs})
}

// GetRun handles GET /api/payroll/runs/:id
func (h *Handlers) GetRun(c *gin.Context) {
	detail, err := h.payroll.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get run", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: detail})
}

// TransitionRun handles POST /api/payroll/runs/:id/transition
func (h *Handlers) TransitionRun(c *gin.Context) {
	var req TransitionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	run, err := h.payroll.TransitionStatus(c.Request.Context(), c.Param("id"), entity.RunStatus(req.Status), req.Actor, req.ExpectedVersion)
	if err != nil {
		h.respondError(c, "transition run", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: run})
}

// AddManualLineItem handles POST /api/payroll/runs/:id/line-items
func (h *Handlers) AddManualLineItem(c *gin.Context) {
	var req ManualLineItemRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.payroll.AddManualLineItem(c.Request.Context(), c.Param("id"), service.ManualLineItemInput{
		TeacherID:   req.TeacherID,
		Description: req.Description,
		Hours:       *req.Hours,
		HourlyRate:  *req.HourlyRate,
	})
	if err != nil {
		h.respondError(c, "add line item", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: result})
}

// BulkAdjustHours handles POST /api/payroll/runs/:id/bulk-hours
func (h *Handlers) BulkAdjustHours(c *gin.Context) {
	var req BulkHoursRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.payroll.BulkAdjustHours(c.Request.Context(), c.Param("id"), req.TeacherIDs, *req.Hours)
	if err != nil {
		h.respondError(c, "bulk adjust hours", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// ExportRun handles GET /api/payroll/runs/:id/export
func (h *Handlers) ExportRun(c *gin.Context) {
	file, err := h.payroll.ExportRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "export run", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// ListNotifications handles GET /api/payroll/runs/:id/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	notifications, err := h.notifications.ListNotifications(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "list notifications", err)
		return
	}
	if notifications == nil {
		notifications = []*entity.PaymentNotification{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: notifications})
}

// ResendNotifications handles POST /api/payroll/runs/:id/notifications
func (h *Handlers) ResendNotifications(c *gin.Context) {
	summary, err := h.notifications.NotifyRunPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "resend notifications", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: summary})
}

// UpdateLineItemHours handles PATCH /api/payroll/line-items/:id
func (h *Handlers) UpdateLineItemHours(c *gin.Context) {
	var req UpdateHoursRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.payroll.UpdateLineItemHours(c.Request.Context(), c.Param("id"), *req.Hours, req.ExpectedVersion)
	if err != nil {
		h.respondError(c, "update hours", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// AdjustLineItem handles POST /api/payroll/line-items/:id/adjust
func (h *Handlers) AdjustLineItem(c *gin.Context) {
	var req AdjustRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.payroll.AdjustLineItem(c.Request.Context(), c.Param("id"), *req.Amount)
	if err != nil {
		h.respondError(c, "adjust line item", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// DeleteLineItem handles DELETE /api/payroll/line-items/:id
func (h *Handlers) DeleteLineItem(c *gin.Context) {
	run, err := h.payroll.DeleteLineItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "delete line item", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: run})
}
