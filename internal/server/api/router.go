package api

import (
	"filevault/internal/server/config"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter creates and configures the echo router with all routes and middleware.
func SetupRouter(handler *Handler, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization", HeaderUserID, HeaderUserRole},
	}))
	e.Use(RequestLogger())
	e.Use(Metrics())

	// Rate limiter on upload endpoint only
	uploadLimiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// Ops
	e.GET("/health", handler.HandleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	files := e.Group("/api/files")

	// Anonymous share-link surface: possession of the token is the
	// capability, no identity required.
	files.GET("/shared/:shareId", handler.HandleSharedInfo)
	files.POST("/shared/:shareId/download", handler.HandleSharedDownload)

	// Authenticated surface
	auth := files.Group("", IdentityRequired())
	auth.POST("/upload", handler.HandleUpload, uploadLimiter.Middleware())
	auth.GET("/my-files", handler.HandleMyFiles)
	auth.GET("/preview/:id", handler.HandlePreview)
	auth.POST("/download/:id", handler.HandleDownload)
	auth.GET("/:id", handler.HandleGetFile)
	auth.PUT("/:id", handler.HandleUpdateFile)
	auth.DELETE("/:id", handler.HandleDeleteFile)

	// Moderation surface
	admin := e.Group("/api/admin", IdentityRequired(), AdminRequired())
	admin.GET("/stats", handler.HandleAdminStats)
	admin.GET("/files", handler.HandleAdminFiles)
	admin.GET("/users", handler.HandleAdminUsers)
	admin.PUT("/users/:id", handler.HandleAdminUpdateUser)
	admin.PUT("/files/:id/soft-delete", handler.HandleAdminSoftDelete)
	admin.DELETE("/files/:id/permanent", handler.HandleAdminPermanentDelete)

	return e
}
