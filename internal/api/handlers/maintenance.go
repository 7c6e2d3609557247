package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/propertydesk/propertydesk/internal/api/respond"
	"github.com/propertydesk/propertydesk/internal/middleware"
	"github.com/propertydesk/propertydesk/internal/services"
)

// MaintenanceHandlers serves /api/v1/maintenance.
type MaintenanceHandlers struct {
	svc *services.MaintenanceService
}

// NewMaintenanceHandlers creates a new MaintenanceHandlers
func NewMaintenanceHandlers(svc *services.MaintenanceService) *MaintenanceHandlers {
	return &MaintenanceHandlers{svc: svc}
}

// POST /api/v1/maintenance
func (h *MaintenanceHandlers) Create(c *gin.Context) {
	var in services.CreateMaintenance
	if !bindJSON(c, &in) {
		return
	}
	view, err := h.svc.Create(c.Request.Context(), middleware.CallerFrom(c), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.Created(c, "Maintenance request created successfully", view)
}

// GET /api/v1/maintenance/property/:propertyId?status=&priority=
func (h *MaintenanceHandlers) ListByProperty(c *gin.Context) {
	filter := services.MaintenanceListFilter{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
	}
	list, err := h.svc.ListByProperty(c.Request.Context(), middleware.CallerFrom(c), c.Param("propertyId"), filter, pageFrom(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Maintenance requests retrieved successfully", list)
}

// GET /api/v1/maintenance/:id
func (h *MaintenanceHandlers) Get(c *gin.Context) {
	view, err := h.svc.Get(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Maintenance request retrieved successfully", view)
}

// PATCH /api/v1/maintenance/:id
func (h *MaintenanceHandlers) Update(c *gin.Context) {
	var in services.UpdateMaintenance
	if !bindJSON(c, &in) {
		return
	}
	view, err := h.svc.Update(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Maintenance request updated successfully", view)
}

// DELETE /api/v1/maintenance/:id
func (h *MaintenanceHandlers) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.CallerFrom(c), c.Param("id")); err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Maintenance request deleted successfully", nil)
}

// POST /api/v1/maintenance/:id/resolve
func (h *MaintenanceHandlers) Resolve(c *gin.Context) {
	var in services.ResolveMaintenance
	if !bindOptionalJSON(c, &in) {
		return
	}
	view, err := h.svc.Resolve(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Maintenance request resolved successfully", view)
}
