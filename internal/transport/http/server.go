package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/clinkchat/clinkchat-server/internal/auth"
	"github.com/clinkchat/clinkchat-server/internal/config"
	"github.com/clinkchat/clinkchat-server/internal/core"
)

// NewServer builds the HTTP server: the REST auth API, the metrics and
// health endpoints, and the realtime WebSocket upgrade.
func NewServer(hub *core.Hub, authService *auth.Service, handoff *auth.Handoff, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	api := NewAPIHandlers(authService, handoff, logger)
	router.POST("/api/register", api.Register)
	router.POST("/api/login", api.Login)
	router.POST("/api/socket-token", AuthMiddleware(authService, logger), api.SocketToken)

	router.GET("/healthz", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, logger)))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
