package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/soft-connect/server/internal/models"
)

// RequireRoles composes after RequireLogin. The role is re-read from the
// database instead of trusted from the token claims, so a demoted or
// deactivated user is blocked immediately, not at token expiry.
func (g *Gate) RequireRoles(allowed ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var user models.User
			err := g.DB.WithContext(c.Request().Context()).
				Where("id = ?", CurrentUserID(c)).
				First(&user).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return echo.NewHTTPError(http.StatusUnauthorized, "Usuario no encontrado en el sistema")
				}
				return err
			}

			for _, role := range allowed {
				if user.Role == role {
					setUserContext(c, &user)
					return next(c)
				}
			}

			return echo.NewHTTPError(http.StatusForbidden, echo.Map{
				"message":       fmt.Sprintf("Acceso denegado. Se requieren permisos de: %s", strings.Join(allowed, ", ")),
				"requiredRoles": allowed,
				"userRole":      user.Role,
			})
		}
	}
}
