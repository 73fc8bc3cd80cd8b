package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mdelcroix/courier/internal/auth"
	"github.com/mdelcroix/courier/internal/config"
	"github.com/mdelcroix/courier/internal/core"
	"github.com/mdelcroix/courier/internal/store"
)

// NewServer builds the REST/WebSocket HTTP server.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	handlers := NewAPIHandlers(authService, st, logger, cfg.AuthRateLimit)

	router.GET("/health", handlers.Health)
	router.POST("/register", handlers.Register)
	router.POST("/login", handlers.Login)
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, authService, logger)))

	api := router.Group("/", AuthMiddleware(authService, logger))
	api.POST("/logout", handlers.Logout)
	api.PATCH("/user/:username/status", handlers.SetStatus)
	api.PUT("/user/:username/picture", handlers.UploadAvatar)
	api.GET("/user/:username/picture", handlers.GetAvatar)
	api.GET("/users/username", handlers.ListUsernames)
	api.GET("/messages", handlers.ListMessages)
	api.PATCH("/messages/:id/reaction", handlers.UpdateReaction)
	api.POST("/messages/read", handlers.MarkRead)

	srv := &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadTimeout,
	}

	handlers.startLimiter(srv)

	return srv
}
