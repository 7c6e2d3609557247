// Package middleware provides Gin HTTP middleware for request ids, metrics,
// security headers, rate limiting, authentication and audit logging.
//
// Middleware ordering is fixed in router.go:
//
//	RequestID → Logger → Metrics → Security → CORS → Auth → RateLimit → Audit → Handler
//
// Auth runs before rate limiting so authenticated callers are limited per
// user rather than per IP. Audit runs last and records only mutations the
// handler accepted.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/propertydesk/propertydesk/internal/access"
	"github.com/propertydesk/propertydesk/internal/auth"
	"github.com/propertydesk/propertydesk/internal/db/models"
)

// Context keys set by the auth middleware.
const (
	UserIDKey     = "user_id"
	RoleKey       = "role"
	MemberIDKey   = "member_id"
	AuthMethodKey = "auth_method"
)

// UserProvisioner stores the caller named by a token.
type UserProvisioner interface {
	Upsert(ctx context.Context, user *models.User) error
}

// Authenticator validates bearer tokens and, when auto-provisioning is on,
// records each caller in the users table the first time this process sees
// them.
type Authenticator struct {
	users         UserProvisioner
	autoProvision bool
	now           func() time.Time
	seen          sync.Map // user id -> struct{}
}

func NewAuthenticator(users UserProvisioner, autoProvision bool) *Authenticator {
	return &Authenticator{users: users, autoProvision: autoProvision && users != nil, now: time.Now}
}

// Required rejects requests without a valid bearer token with 401.
func (a *Authenticator) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, msg := bearerToken(c.GetHeader("Authorization"))
		if msg != "" {
			abortJSON(c, http.StatusUnauthorized, msg)
			return
		}
		claims, err := auth.ValidateJWT(token)
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		if !a.establish(c, claims) {
			return
		}
		c.Next()
	}
}

// Optional authenticates the caller when a valid token is present and
// otherwise lets the request through anonymously.
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, msg := bearerToken(c.GetHeader("Authorization"))
		if msg == "" {
			if claims, err := auth.ValidateJWT(token); err == nil {
				if !a.establish(c, claims) {
					return
				}
			}
		}
		c.Next()
	}
}

// establish sets the caller in the gin context. It returns false after
// aborting the request.
func (a *Authenticator) establish(c *gin.Context, claims *auth.Claims) bool {
	role := auth.NormalizeRole(claims.Role)
	if err := auth.ValidateRole(role); err != nil {
		abortJSON(c, http.StatusUnauthorized, "Token carries an unknown role")
		return false
	}

	if a.autoProvision {
		if _, ok := a.seen.Load(claims.UserID); !ok {
			now := a.now().UTC()
			err := a.users.Upsert(c.Request.Context(), &models.User{
				ID:        claims.UserID,
				Email:     claims.Email,
				Name:      claims.Name,
				Role:      role,
				CreatedAt: now,
				UpdatedAt: now,
			})
			if err != nil {
				slog.Error("failed to provision user", "user_id", claims.UserID, "error", err)
				abortJSON(c, http.StatusInternalServerError, "Failed to load user")
				return false
			}
			a.seen.Store(claims.UserID, struct{}{})
		}
	}

	c.Set(UserIDKey, claims.UserID)
	c.Set(RoleKey, role)
	c.Set(MemberIDKey, claims.MemberID)
	c.Set(AuthMethodKey, "jwt")
	return true
}

// bearerToken extracts the token from an Authorization header, returning a
// client-facing message when the header is unusable.
func bearerToken(header string) (string, string) {
	if header == "" {
		return "", "Missing authorization header"
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", "Authorization header must start with 'Bearer '"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "Authorization token is empty"
	}
	return token, ""
}

// CallerFrom returns the caller established by the auth middleware, or an
// anonymous caller.
func CallerFrom(c *gin.Context) access.Caller {
	return access.Caller{
		ID:       c.GetString(UserIDKey),
		Role:     c.GetString(RoleKey),
		MemberID: c.GetString(MemberIDKey),
	}
}

// abortJSON ends the request with the API's error envelope.
func abortJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"status": "error", "message": message})
}
