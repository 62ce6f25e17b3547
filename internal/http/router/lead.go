package router

import (
	"github.com/gin-gonic/gin"

	"leadhub.app/aggregator/internal/http/handler"
)

func LeadRouter(router *gin.RouterGroup, handler *handler.LeadHandler) {
	router.POST("", handler.Create)
	router.GET("", handler.List)
	router.GET("/:lead_id", handler.Get)
}
