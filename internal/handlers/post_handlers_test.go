package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/soft-connect/server/internal/models"
)

func withParamID(c echo.Context, id string) {
	c.SetParamNames("id")
	c.SetParamValues(id)
}

func TestCreatePost(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("ana@ueb.edu.ec", "Secret123", models.RoleStudent, models.StatusActive)

	payload := map[string]string{
		"title":       "Como resolver integrales dobles",
		"description": "Necesito ayuda con el cambio de variable.",
	}
	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/posts", payload)
	asUser(c, user)

	require.NoError(t, env.P.CreatePost(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, user.ID, created.AuthorID)
	require.Equal(t, models.PostStatusActive, created.Status)
	require.NotNil(t, created.Author)
}

func TestCreatePostRejectsShortTitle(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("ana@ueb.edu.ec", "Secret123", models.RoleStudent, models.StatusActive)

	payload := map[string]string{"title": "corto", "description": "x"}
	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/posts", payload)
	asUser(c, user)

	requireHTTPError(t, env.P.CreatePost(c), http.StatusBadRequest)
}

func TestGetPostsFiltersAndPaginates(t *testing.T) {
	env := newTestEnv(t)
	ana := env.createUser("ana@ueb.edu.ec", "Secret123", models.RoleStudent, models.StatusActive)
	luis := env.createUser("luis@ueb.edu.ec", "Secret123", models.RoleStudent, models.StatusActive)

	for i := 0; i < 3; i++ {
		env.createPost(ana, fmt.Sprintf("Pregunta de calculo numero %d", i))
	}
	env.createPost(luis, "Duda sobre estructuras de datos")

	rec, c := env.doJSONRequest(http.MethodGet,
		"/api/v1/posts?author_id="+ana.ID.String()+"&page=1&size=2", nil)
	require.NoError(t, env.P.GetPosts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.Post          `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	require.EqualValues(t, 3, resp.Meta["total"])
	require.EqualValues(t, 2, resp.Meta["total_pages"])
	require.Equal(t, true, resp.Meta["has_next"])
}

func TestGetPostsSearchFilter(t *testing.T) {
	env := newTestEnv(t)
	ana := env.createUser("ana@ueb.edu.ec", "Secret123", models.RoleStudent, models.StatusActive)
	env.createPost(ana, "Recursividad en arboles binarios")
	env.createPost(ana, "Normalizacion de bases de datos")

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/posts?search=ARBOLES", nil)
	require.NoError(t, env.P.GetPosts(c))

	var resp struct {
		Data []models.Post `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Contains(t, resp.Data[0].Title, "arboles")
}

func TestGetPostIncrementsViews(t *testing.T) {
	env := newTestEnv(t)
	ana := env.createUser("ana@ueb.edu.ec", "Secret123", models.RoleStudent, models.StatusActive)
	post := env.createPost(ana, "Pregunta sobre concurrencia")

	for i := 1; i <= 2; i++ {
		rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/posts/"+post.ID.String(), nil)
		withParamID(c, post.ID.String())
		require.NoError(t, env.P.GetPost(c))
		require.Equal(t, http.StatusOK, rec.Code)

		// The returned count includes the visit that was just recorded.
		var body models.Post
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, i, body.Views)
	}

	var fresh models.Post
	require.NoError(t, env.DB.First(&fresh, "id = ?", post.ID).Error)
	require.Equal(t, 2, fresh.Views)
}

func TestGetPostUnknownID(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodGet, "/api/v1/posts/not-a-uuid", nil)
	withParamID(c, "not-a-uuid")
	requireHTTPError(t, env.P.GetPost(c), http.StatusBadRequest)

	_, c2 := env.doJSONRequest(http.MethodGet, "/api/v1/posts/x", nil)
	withParamID(c2, "4dd4b8d8-0000-4000-8000-000000000000")
	requireHTTPError(t, env.P.GetPost(c2), http.StatusNotFound)
}

func TestUpdatePostOwnership(t *testing.T) {
	env := newTestEnv(t)
	ana := env.createUser("ana@ueb.edu.ec", "Secret123", models.RoleStudent, models.StatusActive)
	luis := env.createUser("luis@ueb.edu.ec", "Secret123", models.RoleStudent, models.StatusActive)
	admin := env.createUser("admin@ueb.edu.ec", "Secret123", models.RoleAdmin, models.StatusActive)
	post := env.createPost(ana, "Titulo original de la pregunta")

	payload := map[string]string{
		"title":       "Titulo corregido de la pregunta",
		"description": "Descripcion actualizada.",
	}

	_, cLuis := env.doJSONRequest(http.MethodPut, "/api/v1/posts/"+post.ID.String(), payload)
	withParamID(cLuis, post.ID.String())
	asUser(cLuis, luis)
	requireHTTPError(t, env.P.UpdatePost(cLuis), http.StatusForbidden)

	recAdmin, cAdmin := env.doJSONRequest(http.MethodPut, "/api/v1/posts/"+post.ID.String(), payload)
	withParamID(cAdmin, post.ID.String())
	asUser(cAdmin, admin)
	require.NoError(t, env.P.UpdatePost(cAdmin))
	require.Equal(t, http.StatusOK, recAdmin.Code)

	var fresh models.Post
	require.NoError(t, env.DB.First(&fresh, "id = ?", post.ID).Error)
	require.Equal(t, "Titulo corregido de la pregunta", fresh.Title)
}

func TestToggleLikeTwice(t *testing.T) {
	env := newTestEnv(t)
	ana := env.createUser("ana@ueb.edu.ec", "Secret123", models.RoleStudent, models.StatusActive)
	luis := env.createUser("luis@ueb.edu.ec", "Secret123", models.RoleStudent, models.StatusActive)
	post := env.createPost(ana, "Pregunta sobre punteros en C")

	like := func() (int, bool) {
		rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/posts/"+post.ID.String()+"/like", nil)
		withParamID(c, post.ID.String())
		asUser(c, luis)
		require.NoError(t, env.P.ToggleLike(c))

		var resp struct {
			LikesCount int  `json:"likesCount"`
			IsLiked    bool `json:"isLiked"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp.LikesCount, resp.IsLiked
	}

	count, liked := like()
	require.True(t, liked)
	require.Equal(t, 1, count)

	count, liked = like()
	require.False(t, liked)
	require.Equal(t, 0, count)

	var likes int64
	require.NoError(t, env.DB.Model(&models.Like{}).Count(&likes).Error)
	require.Zero(t, likes)
}

func TestCheckLike(t *testing.T) {
	env := newTestEnv(t)
	ana := env.createUser("ana@ueb.edu.ec", "Secret123", models.RoleStudent, models.StatusActive)
	post := env.createPost(ana, "Pregunta sobre complejidad algoritmica")

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/posts/"+post.ID.String()+"/like", nil)
	withParamID(c, post.ID.String())
	asUser(c, ana)
	require.NoError(t, env.P.CheckLike(c))

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, false, resp["hasLiked"])

	require.NoError(t, env.DB.Create(&models.Like{PostID: &post.ID, UserID: ana.ID}).Error)

	rec2, c2 := env.doJSONRequest(http.MethodGet, "/api/v1/posts/"+post.ID.String()+"/like", nil)
	withParamID(c2, post.ID.String())
	asUser(c2, ana)
	require.NoError(t, env.P.CheckLike(c2))
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &resp))
	require.Equal(t, true, resp["hasLiked"])
	require.NotEmpty(t, resp["likeId"])
}

func TestMarkSolvedAuthorOnly(t *testing.T) {
	env := newTestEnv(t)
	ana := env.createUser("ana@ueb.edu.ec", "Secret123", models.RoleStudent, models.StatusActive)
	luis := env.createUser("luis@ueb.edu.ec", "Secret123", models.RoleStudent, models.StatusActive)
	post := env.createPost(ana, "Pregunta con respuesta aceptable")

	_, cLuis := env.doJSONRequest(http.MethodPatch, "/api/v1/posts/"+post.ID.String()+"/solved", nil)
	withParamID(cLuis, post.ID.String())
	asUser(cLuis, luis)
	requireHTTPError(t, env.P.MarkSolved(cLuis), http.StatusForbidden)

	rec, c := env.doJSONRequest(http.MethodPatch, "/api/v1/posts/"+post.ID.String()+"/solved", nil)
	withParamID(c, post.ID.String())
	asUser(c, ana)
	require.NoError(t, env.P.MarkSolved(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var fresh models.Post
	require.NoError(t, env.DB.First(&fresh, "id = ?", post.ID).Error)
	require.True(t, fresh.IsSolved)
}

func TestSoftDeleteHidesPost(t *testing.T) {
	env := newTestEnv(t)
	ana := env.createUser("ana@ueb.edu.ec", "Secret123", models.RoleStudent, models.StatusActive)
	post := env.createPost(ana, "Pregunta que sera eliminada")

	rec, c := env.doJSONRequest(http.MethodDelete, "/api/v1/posts/"+post.ID.String(), nil)
	withParamID(c, post.ID.String())
	asUser(c, ana)
	require.NoError(t, env.P.SoftDeletePost(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var count int64
	require.NoError(t, env.DB.Model(&models.Post{}).Count(&count).Error)
	require.Zero(t, count)

	var unscoped int64
	require.NoError(t, env.DB.Unscoped().Model(&models.Post{}).Count(&unscoped).Error)
	require.EqualValues(t, 1, unscoped)
}

func TestHardDeletePurgesDependents(t *testing.T) {
	env := newTestEnv(t)
	ana := env.createUser("ana@ueb.edu.ec", "Secret123", models.RoleStudent, models.StatusActive)
	luis := env.createUser("luis@ueb.edu.ec", "Secret123", models.RoleStudent, models.StatusActive)
	post := env.createPost(ana, "Pregunta con dependencias")
	env.createAnswer(luis, post, "Una respuesta cualquiera")
	require.NoError(t, env.DB.Create(&models.Like{PostID: &post.ID, UserID: luis.ID}).Error)

	rec, c := env.doJSONRequest(http.MethodDelete, "/api/v1/posts/"+post.ID.String()+"/hard", nil)
	withParamID(c, post.ID.String())
	asUser(c, ana)
	require.NoError(t, env.P.HardDeletePost(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var posts, answers, likes int64
	require.NoError(t, env.DB.Unscoped().Model(&models.Post{}).Count(&posts).Error)
	require.NoError(t, env.DB.Unscoped().Model(&models.Answer{}).Count(&answers).Error)
	require.NoError(t, env.DB.Model(&models.Like{}).Count(&likes).Error)
	require.Zero(t, posts)
	require.Zero(t, answers)
	require.Zero(t, likes)
}

func TestGetMyPosts(t *testing.T) {
	env := newTestEnv(t)
	ana := env.createUser("ana@ueb.edu.ec", "Secret123", models.RoleStudent, models.StatusActive)
	luis := env.createUser("luis@ueb.edu.ec", "Secret123", models.RoleStudent, models.StatusActive)
	env.createPost(ana, "Pregunta escrita por ana aqui")
	env.createPost(luis, "Pregunta escrita por luis aqui")

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/posts/my", nil)
	asUser(c, ana)
	require.NoError(t, env.P.GetMyPosts(c))

	var resp struct {
		Data []models.Post `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, ana.ID, resp.Data[0].AuthorID)
}
