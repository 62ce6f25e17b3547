package router

import (
	"github.com/gin-gonic/gin"

	"leadhub.app/aggregator/internal/http/handler"
	"leadhub.app/aggregator/internal/service"
)

type RouterConfig struct {
	TraceHeaderName string
	IsProduction    bool
}

func SetupRoutes(router *gin.Engine, services *service.Services, db handler.Pinger, cfg RouterConfig) {
	healthHandler := handler.NewHealthHandler(db)
	router.GET("/health", healthHandler.Check)

	router.GET("/", handler.Index)

	adminHandler := handler.NewAdminHandler(services.Stats())
	router.GET("/admin", adminHandler.Dashboard)

	statsHandler := handler.NewStatsHandler(services.Stats())
	router.GET("/stats", statsHandler.Overview)

	v1 := router.Group("/api/v1")
	{
		leadHandler := handler.NewLeadHandler(services.LeadIngest(), services.Leads(), cfg.TraceHeaderName)
		LeadRouter(v1.Group("/leads"), leadHandler)

		webhookHandler := handler.NewCRMWebhookHandler(services.Payments(), services.Registry(), cfg.TraceHeaderName)
		WebhookRouter(v1.Group("/webhooks"), webhookHandler)
	}
}
