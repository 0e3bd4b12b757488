package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	mwauth "github.com/soft-connect/server/internal/middleware/auth"
	"github.com/soft-connect/server/internal/models"
	"github.com/soft-connect/server/internal/mykafka"
	"github.com/soft-connect/server/internal/repo"
	"github.com/soft-connect/server/internal/service"
	"github.com/soft-connect/server/internal/tokens"
)

// Registration is restricted to institutional addresses; the check lives
// at the boundary, not in the session service.
var allowedEmailDomains = []string{"@ueb.edu.ec", "@mailes.ueb.edu.ec"}

type AuthHandler struct {
	DB       *gorm.DB
	Service  *service.AuthService
	Producer *mykafka.Producer
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *credentialsRequest) validate(requireDomain bool) error {
	if _, err := mail.ParseAddress(r.Email); err != nil || len(r.Email) > 100 {
		return errors.New("Debe ser un email válido")
	}
	if r.Password == "" || len(r.Password) > 255 {
		return errors.New("La contraseña es requerida")
	}
	if requireDomain {
		email := strings.ToLower(r.Email)
		for _, domain := range allowedEmailDomains {
			if strings.HasSuffix(email, domain) {
				return nil
			}
		}
		return fmt.Errorf("Solo se permiten correos con %s", strings.Join(allowedEmailDomains, " y "))
	}
	return nil
}

func mapAuthError(err error) error {
	switch {
	case errors.Is(err, repo.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "Credenciales inválidas")
	case errors.Is(err, repo.ErrUserAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, "El usuario ya existe")
	case errors.Is(err, repo.ErrTokenRevoked), errors.Is(err, tokens.ErrInvalidToken):
		return echo.NewHTTPError(http.StatusUnauthorized, "Token inválido o expirado")
	default:
		return err
	}
}

func (h *AuthHandler) setAuthCookies(c echo.Context, pair *service.TokenPair) {
	c.SetCookie(CreateCookie("accessToken", pair.AccessToken, "/", pair.AccessExp))
	c.SetCookie(CreateCookie("refreshToken", pair.RefreshToken, "/", pair.RefreshExp))
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := req.validate(true); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, pair, err := h.Service.Register(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return mapAuthError(err)
	}

	h.setAuthCookies(c, pair)

	publish(c, h.Producer, "user_events", user.ID.String(), map[string]interface{}{
		"type":   "user_registered",
		"userID": user.ID,
		"email":  user.Email,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := req.validate(false); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, pair, err := h.Service.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return mapAuthError(err)
	}

	h.setAuthCookies(c, pair)

	publish(c, h.Producer, "user_events", user.ID.String(), map[string]interface{}{
		"type":   "user_logged_in",
		"userID": user.ID,
		"email":  user.Email,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// RefreshToken rotates only the access cookie; the refresh token stays
// valid until its own expiry.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	refreshCookie, err := c.Cookie("refreshToken")
	if err != nil || refreshCookie.Value == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "No autorizado")
	}

	accessToken, accessExp, userID, err := h.Service.Refresh(c.Request().Context(), refreshCookie.Value)
	if err != nil {
		return mapAuthError(err)
	}

	c.SetCookie(CreateCookie("accessToken", accessToken, "/", accessExp))

	return c.JSON(http.StatusOK, echo.Map{
		"user": echo.Map{"id": userID},
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	accessCookie, errAccess := c.Cookie("accessToken")
	refreshCookie, errRefresh := c.Cookie("refreshToken")
	if errAccess != nil || errRefresh != nil || accessCookie.Value == "" || refreshCookie.Value == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "No hay sesión activa")
	}

	if err := h.Service.Logout(c.Request().Context(), accessCookie.Value); err != nil {
		return err
	}

	expired := time.Now().Add(-time.Hour)
	c.SetCookie(CreateCookie("accessToken", "", "/", expired))
	c.SetCookie(CreateCookie("refreshToken", "", "/", expired))

	return c.JSON(http.StatusOK, echo.Map{"message": "Logout exitoso"})
}

func (h *AuthHandler) Me(c echo.Context) error {
	var user models.User
	err := h.DB.WithContext(c.Request().Context()).
		Where("id = ?", mwauth.CurrentUserID(c)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Usuario no encontrado")
		}
		return err
	}

	return c.JSON(http.StatusOK, user)
}
