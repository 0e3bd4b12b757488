package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/soft-connect/server/internal/handlers"
	mwauth "github.com/soft-connect/server/internal/middleware/auth"
)

type Deps struct {
	DB            *gorm.DB
	AuthHandler   *handlers.AuthHandler
	PostHandler   *handlers.PostHandler
	AnswerHandler *handlers.AnswerHandler
	UserHandler   *handlers.UserHandler
	SearchHandler *handlers.SearchHandler
	Gate          *mwauth.Gate
}

// limiter caps requests per client IP for a route group. Budgets follow
// the per-minute figures the API has always used: 100 reads, 30 writes,
// 60 for auth and account management.
func limiter(perMinute int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / 60.0),
		Burst:     perMinute,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiter(store)
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	read := limiter(100)
	write := limiter(30)
	account := limiter(60)

	v1 := e.Group("/api/v1")
	login := d.Gate.RequireLogin
	adminOnly := d.Gate.RequireRoles("admin")

	auth := v1.Group("/auth", account)
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/refresh-token", d.AuthHandler.RefreshToken)
	auth.POST("/logout", d.AuthHandler.Logout, login)
	auth.GET("/me", d.AuthHandler.Me, login)

	posts := v1.Group("/posts")
	posts.GET("", d.PostHandler.GetPosts, read)
	posts.GET("/:id", d.PostHandler.GetPost, read)
	posts.POST("", d.PostHandler.CreatePost, write, login)
	posts.GET("/my/posts", d.PostHandler.GetMyPosts, account, login)
	posts.PUT("/:id", d.PostHandler.UpdatePost, write, login)
	posts.DELETE("/:id/soft", d.PostHandler.SoftDeletePost, write, login)
	posts.DELETE("/:id/hard", d.PostHandler.HardDeletePost, write, login)
	posts.POST("/:id/like", d.PostHandler.ToggleLike, account, login)
	posts.GET("/:id/check-like", d.PostHandler.CheckLike, read, login)
	posts.PATCH("/:id/solved", d.PostHandler.MarkSolved, account, login)

	answers := v1.Group("/answers")
	answers.GET("", d.AnswerHandler.GetAnswers, read)
	answers.GET("/:id", d.AnswerHandler.GetAnswer, read)
	answers.GET("/post/:postId", d.AnswerHandler.GetAnswersByPost, read)
	answers.POST("", d.AnswerHandler.CreateAnswer, write, login)
	answers.GET("/my/answers", d.AnswerHandler.GetMyAnswers, account, login)
	answers.PUT("/:id", d.AnswerHandler.UpdateAnswer, write, login)
	answers.DELETE("/:id/soft", d.AnswerHandler.SoftDeleteAnswer, write, login)
	answers.DELETE("/:id/hard", d.AnswerHandler.HardDeleteAnswer, write, login)
	answers.POST("/:id/restore", d.AnswerHandler.RestoreAnswer, write, login)
	answers.POST("/:id/like", d.AnswerHandler.ToggleLike, account, login)
	answers.GET("/:id/check-like", d.AnswerHandler.CheckLike, read, login)

	users := v1.Group("/users", account)
	users.POST("", d.UserHandler.CreateUser, login, adminOnly)
	users.GET("", d.UserHandler.GetUsers, login, adminOnly)
	users.GET("/:id", d.UserHandler.GetUser, login)
	users.PUT("/:id", d.UserHandler.UpdateUser, login)
	users.PATCH("/:id/password", d.UserHandler.ChangePassword, login)
	users.DELETE("/:id/soft", d.UserHandler.SoftDeleteUser, login, adminOnly)
	users.DELETE("/:id/hard", d.UserHandler.HardDeleteUser, login, adminOnly)

	v1.GET("/search", d.SearchHandler.SearchPosts, read)
}
