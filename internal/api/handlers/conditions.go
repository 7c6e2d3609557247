package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/propertydesk/propertydesk/internal/api/respond"
	"github.com/propertydesk/propertydesk/internal/middleware"
	"github.com/propertydesk/propertydesk/internal/services"
)

// ConditionReportHandlers serves /api/v1/conditions.
type ConditionReportHandlers struct {
	svc            *services.ConditionReportService
	maxUploadBytes int64
}

// NewConditionReportHandlers creates the handlers. Attachment bodies larger
// than maxUploadMB are rejected with 413.
func NewConditionReportHandlers(svc *services.ConditionReportService, maxUploadMB int) *ConditionReportHandlers {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &ConditionReportHandlers{svc: svc, maxUploadBytes: int64(maxUploadMB) << 20}
}

// POST /api/v1/conditions
func (h *ConditionReportHandlers) Create(c *gin.Context) {
	var in services.CreateConditionReport
	if !bindJSON(c, &in) {
		return
	}
	view, err := h.svc.Create(c.Request.Context(), middleware.CallerFrom(c), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.Created(c, "Condition report created successfully", view)
}

// GET /api/v1/conditions/property/:propertyId
func (h *ConditionReportHandlers) ListByProperty(c *gin.Context) {
	list, err := h.svc.ListByProperty(c.Request.Context(), middleware.CallerFrom(c), c.Param("propertyId"), pageFrom(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Condition reports retrieved successfully", list)
}

// GET /api/v1/conditions/:id
func (h *ConditionReportHandlers) Get(c *gin.Context) {
	view, err := h.svc.Get(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Condition report retrieved successfully", view)
}

// PATCH /api/v1/conditions/:id
func (h *ConditionReportHandlers) Update(c *gin.Context) {
	var in services.UpdateConditionReport
	if !bindJSON(c, &in) {
		return
	}
	view, err := h.svc.Update(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Condition report updated successfully", view)
}

// DELETE /api/v1/conditions/:id
func (h *ConditionReportHandlers) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.CallerFrom(c), c.Param("id")); err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Condition report deleted successfully", nil)
}

// POST /api/v1/conditions/:id/sign
func (h *ConditionReportHandlers) Sign(c *gin.Context) {
	var in services.SignConditionReport
	if !bindOptionalJSON(c, &in) {
		return
	}
	view, err := h.svc.Sign(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Condition report signed successfully", view)
}

// Attach accepts a multipart upload in the "file" field.
// POST /api/v1/conditions/:id/attachments
func (h *ConditionReportHandlers) Attach(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Fail(c, http.StatusRequestEntityTooLarge, "Attachment exceeds the upload size limit")
			return
		}
		respond.BadRequest(c, "A file is required in the 'file' form field")
		return
	}
	defer file.Close()

	view, err := h.svc.Attach(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"), header.Filename, file, header.Size)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Attachment uploaded successfully", view)
}
