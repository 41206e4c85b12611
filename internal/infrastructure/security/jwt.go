// Package security provides JWT token utilities
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// AdminTokenType marks tokens issued by the admin login.
const AdminTokenType = "admin_auth"

// GenerateAdminToken signs an HS256 token carrying the given role.
func GenerateAdminToken(role, jwtSecret string, ttl time.Duration) (string, error) {
	if jwtSecret == "" {
		return "", errors.New("empty jwt secret")
	}
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"role": role,
		"type": AdminTokenType,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

// ValidateJWT validates a JWT token and returns the claims
func ValidateJWT(tokenString, jwtSecret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// AdminRoleFromClaims returns the role of an admin token, or "" when the
// claims do not describe one.
func AdminRoleFromClaims(claims jwt.MapClaims) string {
	if t, _ := claims["type"].(string); t != AdminTokenType {
		return ""
	}
	role, _ := claims["role"].(string)
	return role
}
