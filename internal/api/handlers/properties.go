package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/propertydesk/propertydesk/internal/api/respond"
	"github.com/propertydesk/propertydesk/internal/middleware"
	"github.com/propertydesk/propertydesk/internal/services"
)

// PropertyHandlers serves /api/v1/properties.
type PropertyHandlers struct {
	svc *services.PropertyService
}

// NewPropertyHandlers creates a new PropertyHandlers
func NewPropertyHandlers(svc *services.PropertyService) *PropertyHandlers {
	return &PropertyHandlers{svc: svc}
}

// List returns the public listing.
// GET /api/v1/properties?city=&status=&min_rent=&max_rent=&page=&limit=
func (h *PropertyHandlers) List(c *gin.Context) {
	minRent, ok := floatQuery(c, "min_rent")
	if !ok {
		return
	}
	maxRent, ok := floatQuery(c, "max_rent")
	if !ok {
		return
	}
	filter := services.PropertyListFilter{
		Status:     c.Query("status"),
		City:       c.Query("city"),
		LandlordID: c.Query("landlord_id"),
		MinRent:    minRent,
		MaxRent:    maxRent,
	}
	list, err := h.svc.List(c.Request.Context(), middleware.CallerFrom(c), filter, pageFrom(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Properties retrieved successfully", list)
}

// GET /api/v1/properties/:id
func (h *PropertyHandlers) Get(c *gin.Context) {
	view, err := h.svc.Get(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Property retrieved successfully", view)
}

// POST /api/v1/properties
func (h *PropertyHandlers) Create(c *gin.Context) {
	var in services.CreateProperty
	if !bindJSON(c, &in) {
		return
	}
	view, err := h.svc.Create(c.Request.Context(), middleware.CallerFrom(c), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.Created(c, "Property created successfully", view)
}

// PATCH /api/v1/properties/:id
func (h *PropertyHandlers) Update(c *gin.Context) {
	var in services.UpdateProperty
	if !bindJSON(c, &in) {
		return
	}
	view, err := h.svc.Update(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Property updated successfully", view)
}

// DELETE /api/v1/properties/:id
func (h *PropertyHandlers) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.CallerFrom(c), c.Param("id")); err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Property deleted successfully", nil)
}

type tenantRequest struct {
	TenantID string `json:"tenantId"`
}

// POST /api/v1/properties/:id/tenants
func (h *PropertyHandlers) AddTenant(c *gin.Context) {
	var in tenantRequest
	if !bindJSON(c, &in) {
		return
	}
	if in.TenantID == "" {
		respond.BadRequest(c, "tenantId is required")
		return
	}
	view, err := h.svc.AddTenant(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"), in.TenantID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Tenant added successfully", view)
}

// DELETE /api/v1/properties/:id/tenants/:tenantId
func (h *PropertyHandlers) RemoveTenant(c *gin.Context) {
	view, err := h.svc.RemoveTenant(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"), c.Param("tenantId"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Tenant removed successfully", view)
}
