package auth

import (
	"net/http"
	"strings"

	"github.com/ericthayer/devlog/internal/models"
	"github.com/gin-gonic/gin"
)

const (
	ctxUserID = "auth.userID"
	ctxRole   = "auth.role"
)

// Middleware verifies the Bearer token and stores the caller's identity on
// the request context. Requests without a valid token are rejected.
func Middleware(secretKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := ParseToken(token, secretKey)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

// RequireRole rejects callers whose role does not satisfy check.
func RequireRole(check func(models.Role) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !check(RoleFromContext(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

// UserIDFromContext returns the authenticated user's ID, or "" when the
// request is unauthenticated.
func UserIDFromContext(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// RoleFromContext returns the authenticated user's role, defaulting to
// reader.
func RoleFromContext(c *gin.Context) models.Role {
	if v, ok := c.Get(ctxRole); ok {
		if role, ok := v.(models.Role); ok {
			return role
		}
	}
	return models.RoleReader
}
