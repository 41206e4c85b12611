package handlers

import (
	"net/http"
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/application/services"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/security"
	"github.com/gin-gonic/gin"
)

// AuthHandlers contains all authentication-related HTTP handlers
type AuthHandlers struct {
	authService *services.AuthService
	tokenTTL    time.Duration
	logger      *logging.ChanneledLogger
}

// NewAuthHandlers creates auth handlers with injected dependencies
func NewAuthHandlers(authService *services.AuthService, tokenTTL time.Duration, logger *logging.ChanneledLogger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		tokenTTL:    tokenTTL,
		logger:      logger,
	}
}

// PostLogin handles POST /api/v1/auth/login - admin authentication
func (h *AuthHandlers) PostLogin(c *gin.Context) {
	start := time.Now()
	h.logger.Auth().Debug("Received login request", "method", c.Request.Method, "path", c.Request.URL.Path)

	var loginReq struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&loginReq); err != nil {
		h.logger.Auth().Error("Login request JSON binding failed", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	result := h.authService.AuthenticateAdmin(loginReq.Password)
	if !result.Success {
		h.logger.Auth().Warn("Login attempt failed", "error", result.Error, "duration", time.Since(start))
		c.JSON(http.StatusUnauthorized, gin.H{"error": result.Error})
		return
	}

	c.SetCookie(
		security.AdminTokenType,
		result.Token,
		int(h.tokenTTL.Seconds()),
		"/",
		"",
		false,
		true,
	)

	h.logger.Auth().Info("Login completed", "role", result.Role, "duration", time.Since(start))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   result.Token,
		"role":    result.Role,
	})
}

// PostLogout handles POST /api/v1/auth/logout
func (h *AuthHandlers) PostLogout(c *gin.Context) {
	c.SetCookie(security.AdminTokenType, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
