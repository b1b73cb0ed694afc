package httptransport

import (
	"log/slog"

	"github.com/aidarbekov/walletd/internal/transport/http/handler"
	"github.com/aidarbekov/walletd/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(logger *slog.Logger, authHandler *handler.AuthHandler, tokenHandler *handler.TokenHandler, syncHandler *handler.SyncHandler, hmacKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	authMW := middleware.Auth(hmacKey)

	// Public auth routes
	auth := r.Group("/auth")
	auth.POST("/magic-link", authHandler.RequestMagicLink)
	auth.GET("/verify", authHandler.Verify)
	auth.POST("/logout", authMW, authHandler.Logout)
	auth.GET("/session", authMW, authHandler.Session)

	// Protected token routes
	tokens := r.Group("/tokens", authMW)
	tokens.GET("", tokenHandler.List)
	tokens.POST("", tokenHandler.Create)
	tokens.GET("/:hash", tokenHandler.GetByHash)
	tokens.PATCH("/:hash", tokenHandler.Update)
	tokens.DELETE("/:hash", tokenHandler.Delete)
	tokens.DELETE("", tokenHandler.Clear)

	wallet := r.Group("/wallet", authMW)
	wallet.GET("/summary", tokenHandler.Summary)

	sync := r.Group("/sync", authMW)
	sync.GET("/events", syncHandler.RecentEvents)

	return r
}
