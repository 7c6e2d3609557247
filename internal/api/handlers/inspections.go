package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/propertydesk/propertydesk/internal/api/respond"
	"github.com/propertydesk/propertydesk/internal/middleware"
	"github.com/propertydesk/propertydesk/internal/services"
)

// InspectionHandlers serves /api/v1/inspections.
type InspectionHandlers struct {
	svc *services.InspectionService
}

// NewInspectionHandlers creates a new InspectionHandlers
func NewInspectionHandlers(svc *services.InspectionService) *InspectionHandlers {
	return &InspectionHandlers{svc: svc}
}

// POST /api/v1/inspections
func (h *InspectionHandlers) Create(c *gin.Context) {
	var in services.CreateInspection
	if !bindJSON(c, &in) {
		return
	}
	view, err := h.svc.Create(c.Request.Context(), middleware.CallerFrom(c), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.Created(c, "Inspection scheduled successfully", view)
}

// GET /api/v1/inspections/property/:propertyId
func (h *InspectionHandlers) ListByProperty(c *gin.Context) {
	list, err := h.svc.ListByProperty(c.Request.Context(), middleware.CallerFrom(c), c.Param("propertyId"), pageFrom(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Inspections retrieved successfully", list)
}

// GET /api/v1/inspections/:id
func (h *InspectionHandlers) Get(c *gin.Context) {
	view, err := h.svc.Get(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Inspection retrieved successfully", view)
}

// PATCH /api/v1/inspections/:id
func (h *InspectionHandlers) Update(c *gin.Context) {
	var in services.UpdateInspection
	if !bindJSON(c, &in) {
		return
	}
	view, err := h.svc.Update(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Inspection updated successfully", view)
}

// DELETE /api/v1/inspections/:id
func (h *InspectionHandlers) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.CallerFrom(c), c.Param("id")); err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Inspection deleted successfully", nil)
}

// Confirm records the assigned tenant's availability.
// POST /api/v1/inspections/:id/confirm
func (h *InspectionHandlers) Confirm(c *gin.Context) {
	var in services.ConfirmInspection
	if !bindOptionalJSON(c, &in) {
		return
	}
	view, err := h.svc.Confirm(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Inspection confirmed successfully", view)
}

// POST /api/v1/inspections/:id/complete
func (h *InspectionHandlers) Complete(c *gin.Context) {
	var in services.CompleteInspection
	if !bindOptionalJSON(c, &in) {
		return
	}
	view, err := h.svc.Complete(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Inspection completed successfully", view)
}
