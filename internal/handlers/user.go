package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/soft-connect/server/internal/hash"
	mwauth "github.com/soft-connect/server/internal/middleware/auth"
	"github.com/soft-connect/server/internal/models"
	"github.com/soft-connect/server/internal/repo"
	"github.com/soft-connect/server/internal/util"
)

type UserHandler struct {
	DB *gorm.DB
}

type userRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	Status    string `json:"status"`
}

func validRole(role string) bool {
	return role == models.RoleAdmin || role == models.RoleStudent
}

func validStatus(status string) bool {
	switch status {
	case models.StatusActive, models.StatusInactive, models.StatusPending:
		return true
	}
	return false
}

// validateRoleStatus rejects values outside the known enums; empty means
// "not provided" and is the caller's business.
func validateRoleStatus(role, status string) error {
	if role != "" && !validRole(role) {
		return echo.NewHTTPError(http.StatusBadRequest, "Rol inválido")
	}
	if status != "" && !validStatus(status) {
		return echo.NewHTTPError(http.StatusBadRequest, "Estado inválido")
	}
	return nil
}

func (h *UserHandler) emailTaken(c echo.Context, email string, exclude uuid.UUID) (bool, error) {
	var count int64
	q := h.DB.WithContext(c.Request().Context()).Model(&models.User{}).
		Where("email = ?", repo.NormalizeEmail(email))
	if exclude != uuid.Nil {
		q = q.Where("id <> ?", exclude)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (h *UserHandler) fetchUser(c echo.Context, id uuid.UUID, includeDeleted bool) (*models.User, error) {
	q := h.DB.WithContext(c.Request().Context())
	if includeDeleted {
		q = q.Unscoped()
	}

	var user models.User
	if err := q.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "Usuario no encontrado")
		}
		return nil, err
	}
	return &user, nil
}

func (h *UserHandler) CreateUser(c echo.Context) error {
	var req userRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "El email y la contraseña son requeridos")
	}
	if err := validateRoleStatus(req.Role, req.Status); err != nil {
		return err
	}

	taken, err := h.emailTaken(c, req.Email, uuid.Nil)
	if err != nil {
		return err
	}
	if taken {
		return echo.NewHTTPError(http.StatusConflict, "Este email ya está registrado")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return err
	}

	user := models.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     repo.NormalizeEmail(req.Email),
		Password:  pwHash,
		Role:      models.RoleStudent,
		Status:    models.StatusPending,
	}
	if req.Role != "" {
		user.Role = req.Role
	}
	if req.Status != "" {
		user.Status = req.Status
	}

	if err := h.DB.WithContext(c.Request().Context()).Create(&user).Error; err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, user)
}

// GetUsers lists users for administration. Admin accounts are excluded
// unless include_admin=true is passed.
func (h *UserHandler) GetUsers(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	q := h.DB.WithContext(c.Request().Context()).Model(&models.User{})

	if c.QueryParam("include_admin") != "true" {
		q = q.Where("role <> ?", models.RoleAdmin)
	}
	if status := c.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if role := c.QueryParam("role"); role != "" && role != models.RoleAdmin {
		q = q.Where("role = ?", role)
	}
	if term := strings.TrimSpace(c.QueryParam("search")); term != "" {
		pattern := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ?",
			pattern, pattern, pattern)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return err
	}

	var items []models.User
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data": items,
		"meta": listMeta(page, limit, total, offset),
	})
}

func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.fetchUser(c, id, false)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateUser lets a user edit their own profile; admins can edit anyone and
// change role/status.
func (h *UserHandler) UpdateUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	isAdmin := mwauth.IsAdmin(c)
	if !isAdmin && id != mwauth.CurrentUserID(c) {
		return echo.NewHTTPError(http.StatusForbidden, "No tienes permiso para actualizar este usuario")
	}

	var req userRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.fetchUser(c, id, false)
	if err != nil {
		return err
	}

	if req.Email != "" {
		taken, err := h.emailTaken(c, req.Email, id)
		if err != nil {
			return err
		}
		if taken {
			return echo.NewHTTPError(http.StatusConflict, "Este email ya está en uso por otro usuario")
		}
		user.Email = repo.NormalizeEmail(req.Email)
	}
	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.Password != "" {
		pwHash, err := hash.HashPassword(req.Password)
		if err != nil {
			return err
		}
		user.Password = pwHash
	}
	if isAdmin {
		if err := validateRoleStatus(req.Role, req.Status); err != nil {
			return err
		}
		if req.Role != "" {
			user.Role = req.Role
		}
		if req.Status != "" {
			user.Status = req.Status
		}
	}

	if err := h.DB.WithContext(c.Request().Context()).Save(user).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) ChangePassword(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if !mwauth.IsAdmin(c) && id != mwauth.CurrentUserID(c) {
		return echo.NewHTTPError(http.StatusForbidden, "No tienes permiso para cambiar esta contraseña")
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.NewPassword == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "La nueva contraseña es requerida")
	}

	user, err := h.fetchUser(c, id, false)
	if err != nil {
		return err
	}
	if !hash.CheckPassword(user.Password, req.CurrentPassword) {
		return echo.NewHTTPError(http.StatusBadRequest, "La contraseña actual es incorrecta")
	}

	pwHash, err := hash.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := h.DB.WithContext(c.Request().Context()).
		Model(user).Update("password", pwHash).Error; err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Contraseña actualizada"})
}

func (h *UserHandler) SoftDeleteUser(c echo.Context) error {
	return h.deleteUser(c, false)
}

func (h *UserHandler) HardDeleteUser(c echo.Context) error {
	return h.deleteUser(c, true)
}

func (h *UserHandler) deleteUser(c echo.Context, hard bool) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if id == mwauth.CurrentUserID(c) {
		return echo.NewHTTPError(http.StatusForbidden, "No puedes eliminar tu propia cuenta")
	}

	if _, err := h.fetchUser(c, id, true); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if hard {
		// The ledger rows go with the user, in the same transaction, so no
		// orphaned token can ever authenticate a purged account.
		err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Unscoped().Where("user_id = ?", id).Delete(&models.Token{}).Error; err != nil {
				return err
			}
			return tx.Unscoped().Delete(&models.User{}, "id = ?", id).Error
		})
	} else {
		err = h.DB.WithContext(ctx).Delete(&models.User{}, "id = ?", id).Error
	}
	if err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
