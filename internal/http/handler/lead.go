package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"leadhub.app/aggregator/internal/apperr"
	"leadhub.app/aggregator/internal/http/dto"
	"leadhub.app/aggregator/internal/service"
)

type LeadHandler struct {
	ingest      service.LeadIngestService
	queries     service.LeadQueryService
	traceHeader string
}

func NewLeadHandler(ingest service.LeadIngestService, queries service.LeadQueryService, traceHeader string) *LeadHandler {
	return &LeadHandler{
		ingest:      ingest,
		queries:     queries,
		traceHeader: traceHeader,
	}
}

func (h *LeadHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid lead request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	traceID := c.GetHeader(h.traceHeader)
	if traceID == "" {
		if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
			traceID = spanCtx.TraceID().String()
		}
	}
	params := service.IngestLeadParams{
		FormData:   req.FormData.AsMap(),
		LandingID:  req.LandingID,
		CampaignID: req.CampaignID,
	}
	if traceID != "" {
		params.TraceID = &traceID
	}

	result, err := h.ingest.Ingest(ctx, params)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindValidation {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to create lead", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create lead"})
		return
	}

	resp := dto.CreateLeadResponse{
		LeadID:       result.Lead.LeadID,
		CampaignID:   result.Lead.CampaignID,
		Status:       "created",
		Message:      "Lead created successfully",
		QueuedForCRM: result.QueuedForCRM,
	}
	if result.Task != nil {
		resp.TaskID = &result.Task.TaskID
	} else {
		resp.Message = "Lead created (no CRM integration configured)"
	}

	c.JSON(http.StatusOK, resp)
}

func (h *LeadHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	details, err := h.queries.Get(ctx, c.Param("lead_id"))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to load lead", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load lead"})
		return
	}

	c.JSON(http.StatusOK, dto.LeadDetailsResponse{
		Lead:       details.Lead,
		Events:     details.Events,
		EventCount: details.EventCount,
	})
}

func (h *LeadHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var params service.ListLeadsParams
	if v := c.Query("campaign_id"); v != "" {
		params.CampaignID = &v
	}
	if v := c.Query("status"); v != "" {
		params.Status = &v
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		params.Limit = int32(limit)
	}
	if v := c.Query("offset"); v != "" {
		offset, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
			return
		}
		params.Offset = int32(offset)
	}

	page, err := h.queries.List(ctx, params)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list leads", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list leads"})
		return
	}

	c.JSON(http.StatusOK, dto.ListLeadsResponse{
		Leads:  page.Leads,
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}
