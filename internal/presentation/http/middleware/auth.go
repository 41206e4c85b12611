package middleware

import (
	"net/http"

	"github.com/AtRiskMedia/campaigns-go/internal/application/services"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/security"
	"github.com/gin-gonic/gin"
)

const adminRoleKey = "adminRole"

// AdminContext resolves an admin token from the Authorization header or the
// admin cookie. Requests without a valid token pass through anonymously.
func AdminContext(authService *services.AuthService, logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			if cookie, err := c.Cookie(security.AdminTokenType); err == nil {
				token = cookie
			}
		}
		if token != "" {
			if role, ok := authService.ValidateAdminToken(token); ok {
				c.Set(adminRoleKey, role)
			} else {
				logger.Auth().Debug("Ignoring invalid admin token", "path", c.Request.URL.Path)
			}
		}
		c.Next()
	}
}

// RequireAdmin rejects requests that did not present an admin token.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin authentication required"})
			return
		}
		c.Next()
	}
}

// IsAdmin reports whether AdminContext accepted an admin token for this request.
func IsAdmin(c *gin.Context) bool {
	role, exists := c.Get(adminRoleKey)
	return exists && role == services.RoleAdmin
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return ""
	}
	return authHeader[7:]
}
