package handlers

import (
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/propertydesk/propertydesk/internal/api/respond"
	"github.com/propertydesk/propertydesk/internal/middleware"
	"github.com/propertydesk/propertydesk/internal/services"
)

// FileHandlers streams stored attachments. Access follows the owning
// condition report: whoever may view the report may download its files.
type FileHandlers struct {
	reports *services.ConditionReportService
}

// NewFileHandlers creates the attachment download handler.
func NewFileHandlers(reports *services.ConditionReportService) *FileHandlers {
	return &FileHandlers{reports: reports}
}

// GET /api/v1/files/*path
func (h *FileHandlers) Serve(c *gin.Context) {
	file := strings.TrimPrefix(c.Param("path"), "/")
	reportID, ok := services.AttachmentReportID(file)
	if !ok {
		respond.Fail(c, http.StatusNotFound, "Attachment not found")
		return
	}

	rc, err := h.reports.OpenAttachment(c.Request.Context(), middleware.CallerFrom(c), reportID, file)
	if err != nil {
		respond.Error(c, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(file))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Content-Disposition": `inline; filename="` + path.Base(file) + `"`,
		"Cache-Control":       "private, no-store",
	})
}
