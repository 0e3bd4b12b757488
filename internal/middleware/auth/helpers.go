package auth

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/soft-connect/server/internal/models"
)

func setUserContext(c echo.Context, user *models.User) {
	c.Set("userID", user.ID)
	c.Set("role", user.Role)
	c.Set("status", user.Status)
}

func CurrentUserID(c echo.Context) uuid.UUID {
	if id, ok := c.Get("userID").(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func CurrentRole(c echo.Context) string {
	if role, ok := c.Get("role").(string); ok {
		return role
	}
	return ""
}

func IsAdmin(c echo.Context) bool {
	return CurrentRole(c) == models.RoleAdmin
}
