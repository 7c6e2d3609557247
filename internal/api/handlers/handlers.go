// Package handlers exposes the property-scoped resources over HTTP. Each
// handler reads the caller established by the auth middleware, delegates to
// its service and writes the outcome through the respond envelope. No
// authorization decision is made here.
package handlers

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/propertydesk/propertydesk/internal/api/respond"
	"github.com/propertydesk/propertydesk/internal/services"
)

const msgInvalidBody = "Invalid request body"

// bindJSON decodes the request body into dst, answering 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respond.BadRequest(c, msgInvalidBody)
		return false
	}
	return true
}

// bindOptionalJSON is bindJSON for actions whose body may be omitted.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		respond.BadRequest(c, msgInvalidBody)
		return false
	}
	return true
}

// pageFrom reads ?page=&limit= into a normalised page.
func pageFrom(c *gin.Context) services.Page {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return services.NewPage(page, limit)
}

// floatQuery parses an optional numeric query parameter.
func floatQuery(c *gin.Context, name string) (*float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		respond.BadRequest(c, name+" must be a number")
		return nil, false
	}
	return &v, true
}
