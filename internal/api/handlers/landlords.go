package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/propertydesk/propertydesk/internal/api/respond"
	"github.com/propertydesk/propertydesk/internal/middleware"
	"github.com/propertydesk/propertydesk/internal/services"
)

// LandlordHandlers serves /api/v1/landlords.
type LandlordHandlers struct {
	svc *services.LandlordService
}

// NewLandlordHandlers creates a new LandlordHandlers
func NewLandlordHandlers(svc *services.LandlordService) *LandlordHandlers {
	return &LandlordHandlers{svc: svc}
}

// POST /api/v1/landlords
func (h *LandlordHandlers) Create(c *gin.Context) {
	var in services.CreateLandlordProfile
	if !bindJSON(c, &in) {
		return
	}
	view, err := h.svc.Create(c.Request.Context(), middleware.CallerFrom(c), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.Created(c, "Landlord profile created successfully", view)
}

// GET /api/v1/landlords/:id
func (h *LandlordHandlers) Get(c *gin.Context) {
	view, err := h.svc.Get(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Landlord profile retrieved successfully", view)
}

// PATCH /api/v1/landlords/:id
func (h *LandlordHandlers) Update(c *gin.Context) {
	var in services.UpdateLandlordProfile
	if !bindJSON(c, &in) {
		return
	}
	view, err := h.svc.Update(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Landlord profile updated successfully", view)
}

// DELETE /api/v1/landlords/:id
func (h *LandlordHandlers) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.CallerFrom(c), c.Param("id")); err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Landlord profile deleted successfully", nil)
}

// Verify marks a profile as verified. Administrators only.
// POST /api/v1/landlords/:id/verify
func (h *LandlordHandlers) Verify(c *gin.Context) {
	view, err := h.svc.Verify(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Landlord profile verified successfully", view)
}
