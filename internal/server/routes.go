package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes sets up all control-plane routes on the Gin router.
func (s *Server) registerRoutes(router *gin.Engine) {
	// Liveness. Hosting health checks probe the root path.
	router.GET("/", handleLiveness)
	router.GET("/healthz", handleLiveness)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	// Inbound Telegram deliveries.
	router.POST("/webhook/:botID", s.handleWebhook)

	api := router.Group("/api")
	{
		api.POST("/usage", s.handleUsageIngest)
		api.GET("/usage", s.handleUsageStats)

		api.GET("/bots", s.handleBotList)
		api.POST("/bots", s.handleBotCreate)
		api.PATCH("/bots/:id", s.handleBotUpdateStatus)
		api.DELETE("/bots/:id", s.handleBotDelete)
		api.PATCH("/bots/:id/model", s.handleBotUpdateModel)

		api.POST("/telegram/verify", s.handleTelegramVerify)
	}
}

func handleLiveness(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
