package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/realtime-notifier/internal/api/handlers/notification"
	"github.com/aliskhannn/realtime-notifier/internal/middlewares"
)

type tokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

// New wires the REST API under /api/v1, the push channel at /ws and the metrics endpoint.
func New(handler *notification.Handler, verifier tokenVerifier, push http.Handler, gatherer prometheus.Gatherer) *ginext.Engine {
	e := ginext.New()
	e.Use(middlewares.CORSMiddleware())
	e.Use(ginext.Logger())
	e.Use(ginext.Recovery())

	e.GET("/ws", gin.WrapH(push))
	e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	e.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := e.Group("/api/v1")
	api.Use(middlewares.AuthMiddleware(verifier))
	{
		api.POST("/notifications", handler.Create)
		api.GET("/notifications/sent", handler.ListSent)
		api.GET("/notifications/received", handler.ListReceived)
		api.GET("/notifications/stats", handler.Stats)
		api.GET("/notifications/:id", handler.Get)
		api.GET("/notifications/:id/status", handler.GetStatus)
		api.PATCH("/notifications/:id", handler.Update)
		api.DELETE("/notifications/:id", handler.Cancel)
		api.GET("/presence/:userId", handler.Presence)
	}

	return e
}
