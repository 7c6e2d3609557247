package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/propertydesk/propertydesk/internal/api/respond"
	"github.com/propertydesk/propertydesk/internal/middleware"
	"github.com/propertydesk/propertydesk/internal/services"
)

// ReviewHandlers serves /api/v1/reviews. Listing and reading published
// reviews does not require a token.
type ReviewHandlers struct {
	svc *services.ReviewService
}

// NewReviewHandlers creates a new ReviewHandlers
func NewReviewHandlers(svc *services.ReviewService) *ReviewHandlers {
	return &ReviewHandlers{svc: svc}
}

// POST /api/v1/reviews
func (h *ReviewHandlers) Create(c *gin.Context) {
	var in services.CreateReview
	if !bindJSON(c, &in) {
		return
	}
	view, err := h.svc.Create(c.Request.Context(), middleware.CallerFrom(c), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.Created(c, "Review submitted successfully", view)
}

// ListByProperty returns a page of reviews with the rating summary.
// GET /api/v1/reviews/property/:propertyId
func (h *ReviewHandlers) ListByProperty(c *gin.Context) {
	list, err := h.svc.ListByProperty(c.Request.Context(), middleware.CallerFrom(c), c.Param("propertyId"), pageFrom(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Reviews retrieved successfully", list)
}

// GET /api/v1/reviews/:id
func (h *ReviewHandlers) Get(c *gin.Context) {
	view, err := h.svc.Get(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Review retrieved successfully", view)
}

// PATCH /api/v1/reviews/:id
func (h *ReviewHandlers) Update(c *gin.Context) {
	var in services.UpdateReview
	if !bindJSON(c, &in) {
		return
	}
	view, err := h.svc.Update(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Review updated successfully", view)
}

// DELETE /api/v1/reviews/:id
func (h *ReviewHandlers) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.CallerFrom(c), c.Param("id")); err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Review deleted successfully", nil)
}

// POST /api/v1/reviews/:id/respond
func (h *ReviewHandlers) Respond(c *gin.Context) {
	var in services.RespondToReview
	if !bindJSON(c, &in) {
		return
	}
	view, err := h.svc.Respond(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	respond.OK(c, "Response added successfully", view)
}
