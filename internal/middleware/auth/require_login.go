package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/soft-connect/server/internal/models"
	"github.com/soft-connect/server/internal/tokens"
)

const unauthorizedMessage = "Acceso no autorizado"

// Gate guards protected routes. Every check short-circuits with the same
// 401 so a probing client learns nothing about which step failed.
type Gate struct {
	DB     *gorm.DB
	Secret []byte
}

// RequireLogin validates the access cookie against both the signature and
// the token ledger, then attaches the authenticated identity to the
// request context. Ledger first: a revoked token must fail even while its
// signature is still valid.
func (g *Gate) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie("accessToken")
		if err != nil || cookie.Value == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, unauthorizedMessage)
		}

		var row models.Token
		err = g.DB.WithContext(c.Request().Context()).
			Where("token = ? AND token_type = ? AND used = ?",
				cookie.Value, models.TokenTypeAccess, false).
			First(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusUnauthorized, unauthorizedMessage)
			}
			return err
		}
		if time.Now().After(row.ExpiresAt) {
			return echo.NewHTTPError(http.StatusUnauthorized, unauthorizedMessage)
		}

		claims, err := tokens.Parse(cookie.Value, g.Secret)
		if err != nil || claims.Type != models.TokenTypeAccess {
			return echo.NewHTTPError(http.StatusUnauthorized, unauthorizedMessage)
		}
		userID, err := claims.UserID()
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, unauthorizedMessage)
		}

		var user models.User
		err = g.DB.WithContext(c.Request().Context()).
			Select("id", "role", "status").
			Where("id = ?", userID).
			First(&user).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusUnauthorized, unauthorizedMessage)
			}
			return err
		}

		setUserContext(c, &user)
		return next(c)
	}
}
