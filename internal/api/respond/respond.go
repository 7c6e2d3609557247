// Package respond writes the API's JSON envelope:
//
//	{"status": "success" | "error", "message": "...", "data": ...}
//
// Lifecycle errors are mapped to HTTP status by kind. Internal errors are
// logged with their cause and answered with a generic message.
package respond

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/propertydesk/propertydesk/internal/access"
)

// Envelope is the body of every API response.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// OK writes a 200 success envelope.
func OK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Envelope{Status: "success", Message: message, Data: data})
}

// Created writes a 201 success envelope.
func Created(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, Envelope{Status: "success", Message: message, Data: data})
}

// Fail writes an error envelope with an explicit status.
func Fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Envelope{Status: "error", Message: message})
}

// BadRequest writes a 400 for a payload that could not be decoded.
func BadRequest(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, message)
}

// Error maps err onto the envelope.
func Error(c *gin.Context, err error) {
	e := access.AsError(err)
	status := StatusFor(e.Kind)
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		_ = c.Error(err)
	}
	Fail(c, status, e.Message)
}

// StatusFor returns the HTTP status of an error kind.
func StatusFor(kind access.Kind) int {
	switch kind {
	case access.KindNotFound:
		return http.StatusNotFound
	case access.KindForbidden:
		return http.StatusForbidden
	case access.KindNoValidUpdates, access.KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
