package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/avdonin/reviewbase/internal/handlers"
	"github.com/avdonin/reviewbase/internal/middleware/auth"
)

type Deps struct {
	DB              *gorm.DB
	TokenService    *auth.TokenService
	AuthHandler     *handlers.AuthHandler
	UserHandler     *handlers.UserHandler
	TitleHandler    *handlers.TitleHandler
	GenreHandler    *handlers.GenreHandler
	CategoryHandler *handlers.CategoryHandler
	ReviewHandler   *handlers.ReviewHandler
	CommentHandler  *handlers.CommentHandler
	SearchHandler   *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/signup", d.AuthHandler.Signup)
	authGroup.POST("/token", d.AuthHandler.Token)
	authGroup.POST("/refresh", d.AuthHandler.Refresh)

	users := v1.Group("/users", d.TokenService.Require)
	users.GET("/me", d.UserHandler.Me)
	users.PATCH("/me", d.UserHandler.Me)
	users.GET("", d.UserHandler.List)
	users.POST("", d.UserHandler.Create)
	users.GET("/:username", d.UserHandler.Get)
	users.PATCH("/:username", d.UserHandler.Patch)
	users.DELETE("/:username", d.UserHandler.Delete)

	titles := v1.Group("/titles", d.TokenService.Optional)
	titles.GET("", d.TitleHandler.List)
	titles.POST("", d.TitleHandler.Create)
	titles.GET("/search", d.SearchHandler.Search)
	titles.GET("/:title_id", d.TitleHandler.Get)
	titles.PATCH("/:title_id", d.TitleHandler.Patch)
	titles.PUT("/:title_id", d.TitleHandler.Put)
	titles.DELETE("/:title_id", d.TitleHandler.Delete)

	titles.GET("/:title_id/reviews", d.ReviewHandler.List)
	titles.POST("/:title_id/reviews", d.ReviewHandler.Create)
	titles.GET("/:title_id/reviews/:review_id", d.ReviewHandler.Get)
	titles.PATCH("/:title_id/reviews/:review_id", d.ReviewHandler.Patch)
	titles.DELETE("/:title_id/reviews/:review_id", d.ReviewHandler.Delete)

	titles.GET("/:title_id/reviews/:review_id/comments", d.CommentHandler.List)
	titles.POST("/:title_id/reviews/:review_id/comments", d.CommentHandler.Create)
	titles.GET("/:title_id/reviews/:review_id/comments/:id", d.CommentHandler.Get)
	titles.PATCH("/:title_id/reviews/:review_id/comments/:id", d.CommentHandler.Patch)
	titles.DELETE("/:title_id/reviews/:review_id/comments/:id", d.CommentHandler.Delete)

	genres := v1.Group("/genres", d.TokenService.Optional)
	genres.GET("", d.GenreHandler.List)
	genres.POST("", d.GenreHandler.Create)
	genres.DELETE("/:slug", d.GenreHandler.Delete)

	categories := v1.Group("/categories", d.TokenService.Optional)
	categories.GET("", d.CategoryHandler.List)
	categories.POST("", d.CategoryHandler.Create)
	categories.DELETE("/:slug", d.CategoryHandler.Delete)
}
