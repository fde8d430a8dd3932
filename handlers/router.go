package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"report-case-service/middleware"
)

// NewRouter builds the HTTP router
func NewRouter(h *Handlers, adminToken string) *gin.Engine {
	router := gin.Default()
	router.Use(middleware.SecurityHeaders())

	router.GET("/health", h.Health)
	router.GET("/version", h.Version)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(middleware.InternalAdminToken(adminToken))
	{
		api.POST("/reports", h.SubmitReport)

		api.GET("/cases", h.ListCases)
		api.GET("/cases/:id", h.GetCase)
		api.POST("/cases/:id/resolve", h.ResolveCase)
		api.GET("/pending", h.ListPending)

		api.GET("/settings", h.GetSettings)
		api.PUT("/settings/channel", h.SetChannel)
		api.PUT("/settings/message", h.SetMessage)
		api.GET("/blacklist", h.ListBlacklist)
		api.POST("/blacklist/:user_id", h.ToggleBlacklist)
	}

	return router
}
