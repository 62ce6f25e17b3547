package router

import (
	"github.com/gin-gonic/gin"

	"leadhub.app/aggregator/internal/http/handler"
)

func WebhookRouter(router *gin.RouterGroup, handler *handler.CRMWebhookHandler) {
	router.POST("/crm/:crm_id", handler.Handle)
}
