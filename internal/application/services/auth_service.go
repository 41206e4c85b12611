package services

import (
	"time"

	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/campaigns-go/internal/infrastructure/security"
	"golang.org/x/crypto/bcrypt"
)

// RoleAdmin is the only role issued by the admin login.
const RoleAdmin = "admin"

// AuthResult is the outcome of an admin login.
type AuthResult struct {
	Token   string `json:"token,omitempty"`
	Role    string `json:"role,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// AuthService handles admin authentication.
type AuthService struct {
	adminPassword string
	jwtSecret     string
	tokenTTL      time.Duration
	logger        *logging.ChanneledLogger
}

// NewAuthService creates a new auth service. Without a configured secret a
// random one is generated, so tokens do not survive a restart.
func NewAuthService(adminPassword, jwtSecret string, tokenTTL time.Duration, logger *logging.ChanneledLogger) *AuthService {
	if jwtSecret == "" {
		key, err := security.GenerateSecureKey(64)
		if err == nil {
			jwtSecret = key
		}
		logger.Auth().Warn("JWT_SECRET not set, using an ephemeral secret")
	}
	return &AuthService{
		adminPassword: adminPassword,
		jwtSecret:     jwtSecret,
		tokenTTL:      tokenTTL,
		logger:        logger,
	}
}

// AuthenticateAdmin validates the admin password and issues a JWT.
func (a *AuthService) AuthenticateAdmin(password string) *AuthResult {
	if a.adminPassword == "" || password == "" {
		a.logger.Auth().Warn("Admin login rejected", "reason", "no password configured or supplied")
		return &AuthResult{Success: false, Error: "Invalid credentials"}
	}

	ok := bcrypt.CompareHashAndPassword([]byte(a.adminPassword), []byte(password)) == nil
	// Fallback for plaintext passwords during transition/testing
	if !ok && password == a.adminPassword {
		ok = true
	}
	if !ok {
		a.logger.Auth().Warn("Admin login rejected", "reason", "invalid credentials")
		return &AuthResult{Success: false, Error: "Invalid credentials"}
	}

	token, err := security.GenerateAdminToken(RoleAdmin, a.jwtSecret, a.tokenTTL)
	if err != nil {
		a.logger.Auth().Error("Token generation failed", "error", err)
		return &AuthResult{Success: false, Error: "Token generation failed"}
	}

	a.logger.Auth().Info("Admin login succeeded")
	return &AuthResult{Token: token, Role: RoleAdmin, Success: true}
}

// ValidateAdminToken returns the role carried by a valid admin token.
func (a *AuthService) ValidateAdminToken(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	claims, err := security.ValidateJWT(token, a.jwtSecret)
	if err != nil {
		a.logger.Auth().Debug("Rejected admin token", "error", err)
		return "", false
	}
	role := security.AdminRoleFromClaims(claims)
	return role, role == RoleAdmin
}
