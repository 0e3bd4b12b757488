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
	"github.com/soft-connect/server/internal/util"
)

type AnswerHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

type answerRequest struct {
	Content string `json:"content"`
	PostID  string `json:"post_id,omitempty"`
}

func (h *AnswerHandler) fetchAnswer(c echo.Context, id uuid.UUID, includeDeleted bool) (*models.Answer, error) {
	q := h.DB.WithContext(c.Request().Context()).Preload("Author").
		Preload("Post", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "title", "status", "author_id")
		})
	if includeDeleted {
		q = q.Unscoped()
	}

	var answer models.Answer
	if err := q.Where("id = ?", id).First(&answer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "Respuesta no encontrada")
		}
		return nil, err
	}
	return &answer, nil
}

func (h *AnswerHandler) GetAnswers(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	q := h.DB.WithContext(c.Request().Context()).Model(&models.Answer{})

	if postID := c.QueryParam("post_id"); postID != "" {
		q = q.Where("post_id = ?", postID)
	}
	if author := c.QueryParam("author_id"); author != "" {
		q = q.Where("author_id = ?", author)
	}
	if term := strings.TrimSpace(c.QueryParam("search")); term != "" {
		q = q.Where("LOWER(content) LIKE ?", "%"+strings.ToLower(term)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return err
	}

	var items []models.Answer
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

func (h *AnswerHandler) GetAnswer(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	answer, err := h.fetchAnswer(c, id, false)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, answer)
}

func (h *AnswerHandler) GetAnswersByPost(c echo.Context) error {
	q := c.Request().URL.Query()
	q.Set("post_id", c.Param("postId"))
	c.Request().URL.RawQuery = q.Encode()
	return h.GetAnswers(c)
}

func (h *AnswerHandler) GetMyAnswers(c echo.Context) error {
	q := c.Request().URL.Query()
	q.Set("author_id", mwauth.CurrentUserID(c).String())
	c.Request().URL.RawQuery = q.Encode()
	return h.GetAnswers(c)
}

func (h *AnswerHandler) CreateAnswer(c echo.Context) error {
	var req answerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Content) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "El contenido de la respuesta es requerido")
	}
	postID, err := uuid.Parse(req.PostID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "ID inválido")
	}

	ctx := c.Request().Context()

	var post models.Post
	if err := h.DB.WithContext(ctx).Where("id = ?", postID).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Post no encontrado")
		}
		return err
	}
	if post.Status == models.PostStatusClosed {
		return echo.NewHTTPError(http.StatusBadRequest, "No se pueden agregar respuestas a un post cerrado")
	}

	answer := models.Answer{
		Content:  req.Content,
		PostID:   postID,
		AuthorID: mwauth.CurrentUserID(c),
	}
	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&answer).Error; err != nil {
			return err
		}
		return tx.Model(&post).UpdateColumn("answers_count", gorm.Expr("answers_count + 1")).Error
	})
	if err != nil {
		return err
	}

	created, err := h.fetchAnswer(c, answer.ID, false)
	if err != nil {
		return err
	}

	publish(c, h.Producer, "answer_events", answer.ID.String(), map[string]interface{}{
		"type":     "answer_created",
		"answerID": answer.ID,
		"postID":   postID,
		"userID":   answer.AuthorID,
	})

	return c.JSON(http.StatusCreated, created)
}

func (h *AnswerHandler) UpdateAnswer(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req answerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Content) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "El contenido de la respuesta es requerido")
	}

	answer, err := h.fetchAnswer(c, id, false)
	if err != nil {
		return err
	}

	isAdmin := mwauth.IsAdmin(c)
	if !isAdmin && answer.AuthorID != mwauth.CurrentUserID(c) {
		return echo.NewHTTPError(http.StatusForbidden, "No tienes permiso para actualizar esta respuesta")
	}
	if answer.Post != nil && answer.Post.Status == models.PostStatusClosed && !isAdmin {
		return echo.NewHTTPError(http.StatusBadRequest, "No se pueden editar respuestas en posts cerrados")
	}

	if err := h.DB.WithContext(c.Request().Context()).
		Model(&models.Answer{}).Where("id = ?", id).
		Update("content", req.Content).Error; err != nil {
		return err
	}

	updated, err := h.fetchAnswer(c, id, false)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *AnswerHandler) SoftDeleteAnswer(c echo.Context) error {
	return h.deleteAnswer(c, false)
}

func (h *AnswerHandler) HardDeleteAnswer(c echo.Context) error {
	return h.deleteAnswer(c, true)
}

// deleteAnswer is allowed for the answer's author, the post's owner, or an
// admin, and keeps the post's answers_count in step.
func (h *AnswerHandler) deleteAnswer(c echo.Context, hard bool) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	answer, err := h.fetchAnswer(c, id, true)
	if err != nil {
		return err
	}

	userID := mwauth.CurrentUserID(c)
	isPostOwner := answer.Post != nil && answer.Post.AuthorID == userID
	if !mwauth.IsAdmin(c) && answer.AuthorID != userID && !isPostOwner {
		return echo.NewHTTPError(http.StatusForbidden, "No tienes permiso para eliminar esta respuesta")
	}

	err = h.DB.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		q := tx
		if hard {
			q = q.Unscoped()
			if err := q.Where("answer_id = ?", id).Delete(&models.Like{}).Error; err != nil {
				return err
			}
		}
		if err := q.Delete(&models.Answer{}, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", answer.PostID).
			UpdateColumn("answers_count", gorm.Expr("answers_count - 1")).Error
	})
	if err != nil {
		return err
	}

	publish(c, h.Producer, "answer_events", id.String(), map[string]interface{}{
		"type":     "answer_deleted",
		"answerID": id,
		"postID":   answer.PostID,
		"hard":     hard,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "Respuesta eliminada correctamente"})
}

// RestoreAnswer undoes a soft delete and re-increments the counter.
func (h *AnswerHandler) RestoreAnswer(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	answer, err := h.fetchAnswer(c, id, true)
	if err != nil {
		return err
	}
	if !answer.DeletedAt.Valid {
		return echo.NewHTTPError(http.StatusBadRequest, "La respuesta no está eliminada")
	}
	if !mwauth.IsAdmin(c) && answer.AuthorID != mwauth.CurrentUserID(c) {
		return echo.NewHTTPError(http.StatusForbidden, "No tienes permiso para restaurar esta respuesta")
	}

	err = h.DB.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Model(&models.Answer{}).Where("id = ?", id).
			Update("deleted_at", nil).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", answer.PostID).
			UpdateColumn("answers_count", gorm.Expr("answers_count + 1")).Error
	})
	if err != nil {
		return err
	}

	restored, err := h.fetchAnswer(c, id, false)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, restored)
}

// ToggleLike mirrors the post toggle but counts rows instead of keeping a
// denormalized counter.
func (h *AnswerHandler) ToggleLike(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	userID := mwauth.CurrentUserID(c)

	if _, err := h.fetchAnswer(c, id, false); err != nil {
		return err
	}

	ctx := c.Request().Context()
	var liked bool
	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var like models.Like
		findErr := tx.Where("answer_id = ? AND user_id = ?", id, userID).First(&like).Error
		switch {
		case findErr == nil:
			return tx.Delete(&like).Error
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			liked = true
			return tx.Create(&models.Like{AnswerID: &id, UserID: userID}).Error
		default:
			return findErr
		}
	})
	if err != nil {
		return err
	}

	var count int64
	if err := h.DB.WithContext(ctx).Model(&models.Like{}).
		Where("answer_id = ?", id).Count(&count).Error; err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"likesCount": count,
		"isLiked":    liked,
	})
}

func (h *AnswerHandler) CheckLike(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var like models.Like
	err = h.DB.WithContext(c.Request().Context()).
		Where("answer_id = ? AND user_id = ?", id, mwauth.CurrentUserID(c)).
		First(&like).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusOK, echo.Map{"hasLiked": false})
		}
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{"hasLiked": true, "likeId": like.ID})
}
