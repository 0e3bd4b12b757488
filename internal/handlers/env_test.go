package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/soft-connect/server/internal/hash"
	"github.com/soft-connect/server/internal/models"
	"github.com/soft-connect/server/internal/repo"
	"github.com/soft-connect/server/internal/service"
)

var testSecret = []byte("test_secret")

type testEnv struct {
	T  *testing.T
	E  *echo.Echo
	DB *gorm.DB
	A  *AuthHandler
	P  *PostHandler
	AN *AnswerHandler
	U  *UserHandler
}

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.Token{}, &models.Post{}, &models.Answer{}, &models.Like{},
	); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	db := initTestDB(t)

	authSvc := &service.AuthService{
		Repo:   &repo.GormRepo{DB: db},
		Secret: testSecret,
	}

	return &testEnv{
		T:  t,
		E:  echo.New(),
		DB: db,
		A:  &AuthHandler{DB: db, Service: authSvc},
		P:  &PostHandler{DB: db},
		AN: &AnswerHandler{DB: db},
		U:  &UserHandler{DB: db},
	}
}

func (env *testEnv) doJSONRequest(method, path string, body interface{}, cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

// asUser mimics what the auth gate would have attached to the context.
func asUser(c echo.Context, user *models.User) {
	c.Set("userID", user.ID)
	c.Set("role", user.Role)
	c.Set("status", user.Status)
}

func (env *testEnv) createUser(email, password, role, status string) *models.User {
	pwHash, err := hash.HashPassword(password)
	require.NoError(env.T, err)
	user := &models.User{
		Email:    email,
		Password: pwHash,
		Role:     role,
		Status:   status,
		Active:   true,
	}
	require.NoError(env.T, env.DB.Create(user).Error)
	return user
}

func (env *testEnv) createPost(author *models.User, title string) *models.Post {
	post := &models.Post{
		Title:       title,
		Description: "test description",
		AuthorID:    author.ID,
		Status:      models.PostStatusActive,
	}
	require.NoError(env.T, env.DB.Create(post).Error)
	return post
}

func (env *testEnv) createAnswer(author *models.User, post *models.Post, content string) *models.Answer {
	answer := &models.Answer{
		Content:  content,
		PostID:   post.ID,
		AuthorID: author.ID,
	}
	require.NoError(env.T, env.DB.Create(answer).Error)
	require.NoError(env.T, env.DB.Model(post).
		UpdateColumn("answers_count", gorm.Expr("answers_count + 1")).Error)
	return answer
}

func requireHTTPError(t *testing.T, err error, code int) *echo.HTTPError {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError, got %v", err)
	require.Equal(t, code, he.Code)
	return he
}
