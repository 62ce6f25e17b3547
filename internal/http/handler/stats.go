package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"leadhub.app/aggregator/internal/service"
)

type StatsHandler struct {
	stats service.StatsService
}

func NewStatsHandler(stats service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

func (h *StatsHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()

	overview, err := h.stats.Overview(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to collect stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to collect stats"})
		return
	}

	c.JSON(http.StatusOK, overview)
}
