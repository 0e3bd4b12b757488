package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/soft-connect/server/internal/models"
	"github.com/soft-connect/server/internal/tokens"
)

var testSecret = []byte("test_secret")

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Token{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func issueAccess(t *testing.T, db *gorm.DB, user *models.User) string {
	raw, exp, err := tokens.Sign(user.ID, models.TokenTypeAccess, testSecret)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Token{
		Token:     raw,
		UserID:    user.ID,
		TokenType: models.TokenTypeAccess,
		ExpiresAt: exp,
	}).Error)
	return raw
}

func doRequest(t *testing.T, g *Gate, handler echo.HandlerFunc, mw []echo.MiddlewareFunc, cookies ...*http.Cookie) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := handler
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return rec, h(c)
}

func okHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"userID": CurrentUserID(c), "role": CurrentRole(c)})
}

func TestRequireLoginMissingCookie(t *testing.T) {
	g := &Gate{DB: initTestDB(t), Secret: testSecret}

	_, err := doRequest(t, g, okHandler, []echo.MiddlewareFunc{g.RequireLogin})
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestRequireLoginValidToken(t *testing.T) {
	db := initTestDB(t)
	g := &Gate{DB: db, Secret: testSecret}

	user := &models.User{Email: "ana@ueb.edu.ec", Password: "x", Role: models.RoleStudent, Status: models.StatusActive}
	require.NoError(t, db.Create(user).Error)
	raw := issueAccess(t, db, user)

	rec, err := doRequest(t, g, okHandler, []echo.MiddlewareFunc{g.RequireLogin},
		&http.Cookie{Name: "accessToken", Value: raw})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireLoginRevokedLedgerRow(t *testing.T) {
	db := initTestDB(t)
	g := &Gate{DB: db, Secret: testSecret}

	user := &models.User{Email: "ana@ueb.edu.ec", Password: "x", Status: models.StatusActive}
	require.NoError(t, db.Create(user).Error)
	raw := issueAccess(t, db, user)
	require.NoError(t, db.Model(&models.Token{}).Where("token = ?", raw).Update("used", true).Error)

	_, err := doRequest(t, g, okHandler, []echo.MiddlewareFunc{g.RequireLogin},
		&http.Cookie{Name: "accessToken", Value: raw})
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestRequireLoginExpiredLedgerRow(t *testing.T) {
	db := initTestDB(t)
	g := &Gate{DB: db, Secret: testSecret}

	user := &models.User{Email: "ana@ueb.edu.ec", Password: "x", Status: models.StatusActive}
	require.NoError(t, db.Create(user).Error)
	raw := issueAccess(t, db, user)
	require.NoError(t, db.Model(&models.Token{}).Where("token = ?", raw).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	_, err := doRequest(t, g, okHandler, []echo.MiddlewareFunc{g.RequireLogin},
		&http.Cookie{Name: "accessToken", Value: raw})
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestRequireLoginRejectsRefreshToken(t *testing.T) {
	db := initTestDB(t)
	g := &Gate{DB: db, Secret: testSecret}

	user := &models.User{Email: "ana@ueb.edu.ec", Password: "x", Status: models.StatusActive}
	require.NoError(t, db.Create(user).Error)

	raw, exp, err := tokens.Sign(user.ID, models.TokenTypeRefresh, testSecret)
	require.NoError(t, err)
	// Ledger row forged as access: the type claim still has to match.
	require.NoError(t, db.Create(&models.Token{
		Token: raw, UserID: user.ID, TokenType: models.TokenTypeAccess, ExpiresAt: exp,
	}).Error)

	_, err = doRequest(t, g, okHandler, []echo.MiddlewareFunc{g.RequireLogin},
		&http.Cookie{Name: "accessToken", Value: raw})
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestRequireLoginDeletedUser(t *testing.T) {
	db := initTestDB(t)
	g := &Gate{DB: db, Secret: testSecret}

	user := &models.User{Email: "ana@ueb.edu.ec", Password: "x", Status: models.StatusActive}
	require.NoError(t, db.Create(user).Error)
	raw := issueAccess(t, db, user)
	require.NoError(t, db.Delete(user).Error)

	_, err := doRequest(t, g, okHandler, []echo.MiddlewareFunc{g.RequireLogin},
		&http.Cookie{Name: "accessToken", Value: raw})
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestRequireRoles(t *testing.T) {
	db := initTestDB(t)
	g := &Gate{DB: db, Secret: testSecret}

	student := &models.User{Email: "ana@ueb.edu.ec", Password: "x", Role: models.RoleStudent, Status: models.StatusActive}
	require.NoError(t, db.Create(student).Error)
	raw := issueAccess(t, db, student)
	ck := &http.Cookie{Name: "accessToken", Value: raw}

	_, err := doRequest(t, g, okHandler,
		[]echo.MiddlewareFunc{g.RequireLogin, g.RequireRoles(models.RoleAdmin)}, ck)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, he.Code)

	rec, err := doRequest(t, g, okHandler,
		[]echo.MiddlewareFunc{g.RequireLogin, g.RequireRoles(models.RoleAdmin, models.RoleStudent)}, ck)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRolesSeesFreshRole(t *testing.T) {
	db := initTestDB(t)
	g := &Gate{DB: db, Secret: testSecret}

	user := &models.User{Email: "ana@ueb.edu.ec", Password: "x", Role: models.RoleAdmin, Status: models.StatusActive}
	require.NoError(t, db.Create(user).Error)
	raw := issueAccess(t, db, user)
	ck := &http.Cookie{Name: "accessToken", Value: raw}

	// Demotion takes effect on the very next request.
	require.NoError(t, db.Model(user).Update("role", models.RoleStudent).Error)

	_, err := doRequest(t, g, okHandler,
		[]echo.MiddlewareFunc{g.RequireLogin, g.RequireRoles(models.RoleAdmin)}, ck)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, he.Code)
}
