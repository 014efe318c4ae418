package utils

import (
	"errors"
	"fmt"

	"classflow/database"
	userModel "classflow/models/user"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

var validate = validator.New()

// ValidateStruct runs the request DTO through the shared validator.
func ValidateStruct(v interface{}) error {
	return validate.Struct(v)
}

// GetUserByUUID resolves a JWT subject uuid to the local account row.
func GetUserByUUID(uuid string) (*userModel.User, error) {
	var u userModel.User
	err := database.DB.Where("uuid = ?", uuid).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("user not found")
		}
		return nil, err
	}
	return &u, nil
}

// CurrentUser loads the account of the authenticated request from the
// claims the auth middleware stored in locals.
func CurrentUser(c *fiber.Ctx) (*userModel.User, error) {
	claims, ok := c.Locals("user").(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid user claims")
	}
	uuid, ok := claims["uuid"].(string)
	if !ok || uuid == "" {
		return nil, fmt.Errorf("user uuid not found in token")
	}
	return GetUserByUUID(uuid)
}

// ActorLabel names the acting user for audit columns.
func ActorLabel(u *userModel.User) string {
	if u == nil {
		return "anonymous"
	}
	return fmt.Sprintf("user:%d", u.ID)
}
