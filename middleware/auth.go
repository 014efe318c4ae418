package middleware

import (
	"classflow/constants"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Permission helper functions to work with existing middleware

// RequirePermissions is a helper function that creates a middleware with specific permissions
func RequirePermissions(permissions ...string) fiber.Handler {
	return IsAuthenticated(permissions)
}

// RequireStaff gates staff-only operations (schedule CRUD, admin cancel,
// bulk cancel). The capability check happens once here, not per handler.
func RequireStaff() fiber.Handler {
	return IsAuthenticated(constants.StaffPermissions)
}

// RequireAnyPermission allows access if user has any of the specified permissions
func RequireAnyPermission(permissions ...string) fiber.Handler {
	allPerms := append(permissions, constants.PermAny)
	return IsAuthenticated(allPerms)
}

// RequireAuthentication only requires valid authentication without specific permissions
func RequireAuthentication() fiber.Handler {
	return IsAuthenticated([]string{constants.PermAny})
}

// CheckPermissionInController checks if user has specific permission within a controller
func CheckPermissionInController(c *fiber.Ctx, requiredPermission string) bool {
	userPermissions, ok := c.Locals("permissions").(map[string]bool)
	if !ok {
		userClaims, ok := c.Locals("user").(jwt.MapClaims)
		if !ok {
			return false
		}
		userPermissions = permissionSetFromClaims(userClaims)
	}

	return userPermissions[requiredPermission]
}
