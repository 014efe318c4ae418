package middleware

import (
	"fmt"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// VerifyJWT verifies a JWT token signed with the service HMAC secret.
func VerifyJWT(tokenString string) (jwt.MapClaims, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid JWT token")
}

func hasPermission(jwtToken string, requiredPermissions []string) (jwt.MapClaims, bool) {
	claims, err := VerifyJWT(jwtToken)
	if err != nil {
		return nil, false
	}

	// If "any" is passed, just verify the token without checking specific permissions
	for _, requiredPerm := range requiredPermissions {
		if requiredPerm == "any" {
			return claims, true
		}
	}

	// Extract user permissions from the JWT claims
	userPermissions, ok := claims["permissions"].([]interface{})
	if !ok {
		return claims, false // No permissions found
	}

	// Convert user permissions to a map for quick lookup
	permissionSet := make(map[string]bool)
	for _, p := range userPermissions {
		if perm, ok := p.(string); ok {
			permissionSet[perm] = true
		}
	}

	// Check if the user has any of the required permissions
	for _, requiredPerm := range requiredPermissions {
		if permissionSet[requiredPerm] {
			return claims, true
		}
	}

	return claims, false // No matching permissions found
}

// IsAuthenticated is a middleware that checks for a valid JWT token
func IsAuthenticated(requiredPermissions []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		var token string

		if authHeader != "" {
			// Validate Bearer Token
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return c.Status(401).JSON(fiber.Map{
					"status": "error",
					"error":  "Invalid authorization header format",
				})
			}
			token = tokenParts[1]
		} else {
			// Try to get token from cookie as fallback
			token = c.Cookies("access")
			if token == "" {
				return c.Status(401).JSON(fiber.Map{
					"status": "error",
					"error":  "Authorization token missing",
				})
			}
		}

		claims, allowed := hasPermission(token, requiredPermissions)
		if claims == nil {
			return c.Status(401).JSON(fiber.Map{
				"status": "error",
				"error":  "Invalid or expired token",
			})
		}
		if !allowed {
			return c.Status(403).JSON(fiber.Map{
				"status": "error",
				"error":  "Insufficient permissions",
			})
		}

		c.Locals("user", claims)
		c.Locals("permissions", permissionSetFromClaims(claims))
		return c.Next()
	}
}

func permissionSetFromClaims(claims jwt.MapClaims) map[string]bool {
	permissionSet := make(map[string]bool)
	userPermissions, ok := claims["permissions"].([]interface{})
	if !ok {
		return permissionSet
	}
	for _, p := range userPermissions {
		if perm, ok := p.(string); ok {
			permissionSet[perm] = true
		}
	}
	return permissionSet
}
