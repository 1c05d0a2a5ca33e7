package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/tutoring-backoffice/internal/application/service"
	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
	"github.com/garyjia/tutoring-backoffice/internal/domain/sms"
)

// GenerateMessageRequest renders one template
type GenerateMessageRequest struct {
	Kind string          `json:"kind" binding:"required"`
	Data json.RawMessage `json:"data"`
}

// PreviewMessageRequest prices either a template or a free-form body
type PreviewMessageRequest struct {
	Kind           string          `json:"kind"`
	Data           json.RawMessage `json:"data"`
	Body           string          `json:"body"`
	RecipientCount int             `json:"recipient_count"`
	HasMedia       bool            `json:"has_media"`
}

// EstimateCostRequest represents query parameters for a cost estimate
type EstimateCostRequest struct {
	RecipientCount int  `form:"recipient_count" binding:"min=0"`
	Segments       int  `form:"segments" binding:"min=0"`
	HasMedia       bool `form:"has_media"`
}

// BulkSendRequest sends one body to many recipients
type BulkSendRequest struct {
	Body       string                `json:"body" binding:"required"`
	MediaURLs  []string              `json:"media_urls"`
	Recipients []entity.SmsRecipient `json:"recipients" binding:"required,min=1"`
}

// DeliveryStatusRequest is a carrier status callback. Carriers post forms,
// internal callers may post JSON.
type DeliveryStatusRequest struct {
	MessageSid    string `form:"MessageSid" json:"message_sid"`
	MessageStatus string `form:"MessageStatus" json:"message_status"`
	ErrorCode     string `form:"ErrorCode" json:"error_code"`
	ErrorMessage  string `form:"ErrorMessage" json:"error_message"`
}

// interim carrier statuses that do not change a stored message. A message is
// already sent once the carrier accepted it, so that callback is interim too.
var interimStatuses = map[string]bool{
	"accepted":  true,
	"scheduled": true,
	"queued":    true,
	"sending":   true,
	"sent":      true,
}

// GenerateMessage handles POST /api/sms/generate
func (h *Handlers) GenerateMessage(c *gin.Context) {
	var req GenerateMessageRequest
	if !h.bindJSON(c, &req) {
		return
	}

	tmpl, err := sms.ParseTemplateRequest(req.Kind, req.Data)
	if err != nil {
		h.respondError(c, "generate message", err)
		return
	}

	message, err := h.sms.GenerateMessage(tmpl)
	if err != nil {
		h.respondError(c, "generate message", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    gin.H{"message": message},
	})
}

// PreviewMessage handles POST /api/sms/preview
func (h *Handlers) PreviewMessage(c *gin.Context) {
	var req PreviewMessageRequest
	if !h.bindJSON(c, &req) {
		return
	}

	preview := service.PreviewRequest{
		Body:           req.Body,
		RecipientCount: req.RecipientCount,
		HasMedia:       req.HasMedia,
	}
	if req.Kind != "" {
		tmpl, err := sms.ParseTemplateRequest(req.Kind, req.Data)
		if err != nil {
			h.respondError(c, "preview message", err)
			return
		}
		preview.Template = tmpl
	}

	result, err := h.sms.Preview(preview)
	if err != nil {
		h.respondError(c, "preview message", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// EstimateCost handles GET /api/sms/estimate
func (h *Handlers) EstimateCost(c *gin.Context) {
	var req EstimateCostRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"recipient_count": req.RecipientCount,
			"segments":        req.Segments,
			"has_media":       req.HasMedia,
			"estimated_cost":  h.sms.EstimateCost(req.RecipientCount, req.Segments, req.HasMedia),
		},
	})
}

// SendBulk handles POST /api/sms/bulk
func (h *Handlers) SendBulk(c *gin.Context) {
	var req BulkSendRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.sms.SendBulk(c.Request.Context(), service.BulkSendInput{
		Body:       req.Body,
		MediaURLs:  req.MediaURLs,
		Recipients: req.Recipients,
	})
	if err != nil {
		h.respondError(c, "send bulk", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// DeliveryStatus handles POST /api/sms/status
func (h *Handlers) DeliveryStatus(c *gin.Context) {
	var req DeliveryStatusRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid status callback",
		})
		return
	}

	status := strings.ToLower(strings.TrimSpace(req.MessageStatus))
	if interimStatuses[status] {
		c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"ignored": status}})
		return
	}

	errMsg := req.ErrorMessage
	if errMsg == "" && req.ErrorCode != "" {
		errMsg = "carrier error " + req.ErrorCode
	}

	msg, err := h.sms.UpdateDeliveryStatus(c.Request.Context(), req.MessageSid, status, errMsg)
	if err != nil {
		h.respondError(c, "delivery status", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: msg})
}

// GetBatch handles GET /api/sms/batches/:id
func (h *Handlers) GetBatch(c *gin.Context) {
	messages, err := h.sms.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get batch", err)
		return
	}
	if len(messages) == 0 {
		h.respondError(c, "get batch", entity.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: messages})
}
