package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	mwauth "github.com/soft-connect/server/internal/middleware/auth"
	"github.com/soft-connect/server/internal/models"
	"github.com/soft-connect/server/internal/mykafka"
	"github.com/soft-connect/server/internal/service/search"
	"github.com/soft-connect/server/internal/util"
)

type PostHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	Search   *search.Service
}

type postRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
}

func (r *postRequest) validate() error {
	if n := len(strings.TrimSpace(r.Title)); n < 10 || n > 255 {
		return errors.New("El título debe tener entre 10 y 255 caracteres")
	}
	if strings.TrimSpace(r.Description) == "" {
		return errors.New("La descripción es requerida")
	}
	return nil
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "ID inválido")
	}
	return id, nil
}

func (h *PostHandler) fetchPost(c echo.Context, id uuid.UUID, includeDeleted bool) (*models.Post, error) {
	q := h.DB.WithContext(c.Request().Context()).Preload("Author")
	if includeDeleted {
		q = q.Unscoped()
	}

	var post models.Post
	if err := q.Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "Post no encontrado")
		}
		return nil, err
	}
	return &post, nil
}

func (h *PostHandler) reindex(c echo.Context, post *models.Post) {
	if err := h.Search.IndexPost(c.Request().Context(), post); err != nil {
		c.Logger().Errorf("search index error: %v", err)
	}
}

func (h *PostHandler) GetPosts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	q := h.DB.WithContext(c.Request().Context()).Model(&models.Post{})

	if status := strings.TrimSpace(c.QueryParam("status")); status != "" {
		q = q.Where("status = ?", status)
	}
	if solved := c.QueryParam("is_solved"); solved != "" {
		q = q.Where("is_solved = ?", solved == "true")
	}
	if author := c.QueryParam("author_id"); author != "" {
		q = q.Where("author_id = ?", author)
	}
	if term := strings.TrimSpace(c.QueryParam("search")); term != "" {
		pattern := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return err
	}

	var items []models.Post
	if err := q.Preload("Author").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data": items,
		"meta": listMeta(page, limit, total, offset),
	})
}

// GetPost increments the view counter of active posts before returning.
func (h *PostHandler) GetPost(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	post, err := h.fetchPost(c, id, false)
	if err != nil {
		return err
	}

	if post.Status == models.PostStatusActive {
		if err := h.DB.WithContext(c.Request().Context()).
			Model(post).
			UpdateColumn("views", gorm.Expr("views + 1")).Error; err != nil {
			return err
		}
		// UpdateColumn with an expression leaves the struct untouched;
		// the response must carry the count including this visit.
		post.Views++
	}

	return c.JSON(http.StatusOK, post)
}

func (h *PostHandler) GetMyPosts(c echo.Context) error {
	q := c.Request().URL.Query()
	q.Set("author_id", mwauth.CurrentUserID(c).String())
	c.Request().URL.RawQuery = q.Encode()
	return h.GetPosts(c)
}

func (h *PostHandler) CreatePost(c echo.Context) error {
	var req postRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := req.validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	post := models.Post{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		AuthorID:    mwauth.CurrentUserID(c),
		Status:      models.PostStatusActive,
	}
	if err := h.DB.WithContext(c.Request().Context()).Create(&post).Error; err != nil {
		return err
	}

	created, err := h.fetchPost(c, post.ID, false)
	if err != nil {
		return err
	}

	h.reindex(c, created)
	publish(c, h.Producer, "post_events", post.ID.String(), map[string]interface{}{
		"type":   "post_created",
		"postID": post.ID,
		"userID": post.AuthorID,
	})

	return c.JSON(http.StatusCreated, created)
}

func (h *PostHandler) UpdatePost(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req postRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := req.validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	post, err := h.fetchPost(c, id, false)
	if err != nil {
		return err
	}
	if !mwauth.IsAdmin(c) && post.AuthorID != mwauth.CurrentUserID(c) {
		return echo.NewHTTPError(http.StatusForbidden, "No tienes permiso para actualizar este post")
	}

	post.Title = strings.TrimSpace(req.Title)
	post.Description = req.Description
	if req.Status != "" {
		post.Status = req.Status
	}
	if err := h.DB.WithContext(c.Request().Context()).Save(post).Error; err != nil {
		return err
	}

	h.reindex(c, post)
	publish(c, h.Producer, "post_events", post.ID.String(), map[string]interface{}{
		"type":   "post_updated",
		"postID": post.ID,
	})

	return c.JSON(http.StatusOK, post)
}

func (h *PostHandler) SoftDeletePost(c echo.Context) error {
	return h.deletePost(c, false)
}

func (h *PostHandler) HardDeletePost(c echo.Context) error {
	return h.deletePost(c, true)
}

func (h *PostHandler) deletePost(c echo.Context, hard bool) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	post, err := h.fetchPost(c, id, true)
	if err != nil {
		return err
	}
	if !mwauth.IsAdmin(c) && post.AuthorID != mwauth.CurrentUserID(c) {
		return echo.NewHTTPError(http.StatusForbidden, "No tienes permiso para eliminar este post")
	}

	ctx := c.Request().Context()
	if hard {
		// Purge dependents explicitly so the removal does not rely on
		// database-level cascades being configured.
		err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Where("post_id = ?", id).Delete(&models.Answer{}).Error; err != nil {
				return err
			}
			return tx.Unscoped().Delete(&models.Post{}, "id = ?", id).Error
		})
		if err == nil {
			if esErr := h.Search.DeletePost(ctx, id); esErr != nil {
				c.Logger().Errorf("search delete error: %v", esErr)
			}
		}
	} else {
		err = h.DB.WithContext(ctx).Delete(&models.Post{}, "id = ?", id).Error
	}
	if err != nil {
		return err
	}

	publish(c, h.Producer, "post_events", id.String(), map[string]interface{}{
		"type":   "post_deleted",
		"postID": id,
		"hard":   hard,
	})

	return c.NoContent(http.StatusNoContent)
}

// ToggleLike creates or removes the caller's like and keeps likes_count in
// step within one transaction.
func (h *PostHandler) ToggleLike(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	userID := mwauth.CurrentUserID(c)

	post, err := h.fetchPost(c, id, false)
	if err != nil {
		return err
	}

	var liked bool
	err = h.DB.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		var like models.Like
		findErr := tx.Where("post_id = ? AND user_id = ?", id, userID).First(&like).Error
		switch {
		case findErr == nil:
			if err := tx.Delete(&like).Error; err != nil {
				return err
			}
			return tx.Model(post).UpdateColumn("likes_count", gorm.Expr("likes_count - 1")).Error
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			liked = true
			if err := tx.Create(&models.Like{PostID: &id, UserID: userID}).Error; err != nil {
				return err
			}
			return tx.Model(post).UpdateColumn("likes_count", gorm.Expr("likes_count + 1")).Error
		default:
			return findErr
		}
	})
	if err != nil {
		return err
	}

	var count int
	if err := h.DB.WithContext(c.Request().Context()).Model(&models.Post{}).
		Select("likes_count").Where("id = ?", id).Scan(&count).Error; err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"likesCount": count,
		"isLiked":    liked,
	})
}

func (h *PostHandler) CheckLike(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var like models.Like
	err = h.DB.WithContext(c.Request().Context()).
		Where("post_id = ? AND user_id = ?", id, mwauth.CurrentUserID(c)).
		First(&like).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusOK, echo.Map{"hasLiked": false})
		}
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{"hasLiked": true, "likeId": like.ID})
}

// MarkSolved toggles the solved flag; only the author may do it.
func (h *PostHandler) MarkSolved(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	post, err := h.fetchPost(c, id, false)
	if err != nil {
		return err
	}
	if post.AuthorID != mwauth.CurrentUserID(c) {
		return echo.NewHTTPError(http.StatusForbidden, "Solo el autor puede marcar el post como resuelto")
	}

	post.IsSolved = !post.IsSolved
	if err := h.DB.WithContext(c.Request().Context()).Save(post).Error; err != nil {
		return err
	}

	h.reindex(c, post)
	return c.JSON(http.StatusOK, post)
}
