// audit.go records accepted mutations to the audit log, with optional
// shipping to external audit destinations.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/propertydesk/propertydesk/internal/audit"
	"github.com/propertydesk/propertydesk/internal/config"
	"github.com/propertydesk/propertydesk/internal/db/models"
	"github.com/propertydesk/propertydesk/internal/safego"
)

// AuditLogWriter persists audit records.
type AuditLogWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// resourceTypes maps the first path segment under /api/v1 to the audited
// resource type.
var resourceTypes = map[string]string{
	"properties":  "property",
	"conditions":  "condition_report",
	"inspections": "inspection",
	"reviews":     "review",
	"maintenance": "maintenance_request",
	"landlords":   "landlord_profile",
	"files":       "attachment",
}

// AuditMiddleware records requests after the handler has run. By default
// only successful writes are recorded; cfg can widen that to reads and
// failed requests. Persistence and shipping happen off the request path.
func AuditMiddleware(repo AuditLogWriter, shipper audit.Shipper, cfg *config.AuditConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method == http.MethodOptions {
			return
		}
		if !shouldAudit(c.Request.Method, c.Writer.Status(), cfg) {
			return
		}

		resourceType, action := describeRoute(c.Request.Method, c.FullPath())
		if resourceType == "" {
			return
		}

		now := time.Now().UTC()
		status := c.Writer.Status()
		userID := c.GetString(UserIDKey)
		role := c.GetString(RoleKey)
		resourceID := c.Param("id")
		if resourceID == "" {
			resourceID = c.Param("propertyId")
		}
		ip := c.ClientIP()
		requestID := RequestIDFrom(c)

		metadata := map[string]interface{}{
			"status_code": status,
			"method":      c.Request.Method,
			"path":        c.FullPath(),
		}
		if m := c.GetString(AuthMethodKey); m != "" {
			metadata["auth_method"] = m
		}
		if requestID != "" {
			metadata["request_id"] = requestID
		}

		entry := &models.AuditLog{
			Action:       action,
			ResourceType: &resourceType,
			IPAddress:    &ip,
			Metadata:     metadata,
			CreatedAt:    now,
		}
		if userID != "" {
			entry.UserID = &userID
		}
		if resourceID != "" {
			entry.ResourceID = &resourceID
		}

		safego.Go("audit-log", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if repo != nil {
				if err := repo.CreateAuditLog(ctx, entry); err != nil {
					slog.Error("failed to write audit log", "action", action, "error", err)
				}
			}
			if shipper != nil {
				shipped := &audit.LogEntry{
					Timestamp:    now,
					RequestID:    requestID,
					Action:       action,
					UserID:       userID,
					Role:         role,
					ResourceType: resourceType,
					ResourceID:   resourceID,
					IPAddress:    ip,
					StatusCode:   status,
					Metadata:     metadata,
				}
				if err := shipper.Ship(ctx, shipped); err != nil {
					slog.Warn("failed to ship audit log", "action", action, "error", err)
				}
			}
		})
	}
}

func shouldAudit(method string, status int, cfg *config.AuditConfig) bool {
	isRead := method == http.MethodGet || method == http.MethodHead
	failed := status >= 400
	if cfg == nil {
		return !isRead && !failed
	}
	if isRead && !cfg.LogReadOperations {
		return false
	}
	if failed && !cfg.LogFailedRequests {
		return false
	}
	return true
}

// describeRoute derives "<resource_type>" and "<resource_type>.<action>"
// from a route template such as /api/v1/conditions/:id/sign. Routes outside
// /api/v1 or with an unknown resource return an empty resource type.
func describeRoute(method, fullPath string) (string, string) {
	rest, ok := strings.CutPrefix(fullPath, "/api/v1/")
	if !ok {
		return "", ""
	}
	segments := strings.Split(rest, "/")
	resourceType, ok := resourceTypes[segments[0]]
	if !ok {
		return "", ""
	}

	verb := ""
	for i := len(segments) - 1; i > 0; i-- {
		s := segments[i]
		if s == "" || strings.HasPrefix(s, ":") || strings.HasPrefix(s, "*") {
			continue
		}
		verb = s
		break
	}
	if verb == "" || verb == "property" {
		switch method {
		case http.MethodPost:
			verb = "create"
		case http.MethodPatch, http.MethodPut:
			verb = "update"
		case http.MethodDelete:
			verb = "delete"
		default:
			verb = "read"
		}
	} else if method == http.MethodDelete {
		verb += ".remove"
	}
	return resourceType, resourceType + "." + verb
}
