package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"leadhub.app/aggregator/internal/apperr"
	"leadhub.app/aggregator/internal/http/dto"
	"leadhub.app/aggregator/internal/integration"
	"leadhub.app/aggregator/internal/service"
)

const eventTypePaymentReceived = "payment_received"

type CRMWebhookHandler struct {
	payments    service.PaymentService
	registry    *integration.Registry
	traceHeader string
}

func NewCRMWebhookHandler(payments service.PaymentService, registry *integration.Registry, traceHeader string) *CRMWebhookHandler {
	return &CRMWebhookHandler{
		payments:    payments,
		registry:    registry,
		traceHeader: traceHeader,
	}
}

func (h *CRMWebhookHandler) Handle(c *gin.Context) {
	ctx := c.Request.Context()
	crmID := c.Param("crm_id")

	var req dto.CRMWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid webhook payload", "error", err, "crm_id", crmID)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	crm, ok := h.registry.CRMConfig(crmID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "CRM configuration not found"})
		return
	}

	if crm.WebhookSecret != "" && req.Signature != nil {
		if !validSignature(crm.WebhookSecret, req.EventType, req.LeadID, *req.Signature) {
			slog.WarnContext(ctx, "webhook signature mismatch", "crm_id", crmID, "lead_id", req.LeadID)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}

	if req.EventType != eventTypePaymentReceived {
		slog.InfoContext(ctx, "webhook acknowledged without processing",
			"crm_id", crmID,
			"event_type", req.EventType,
		)
		c.JSON(http.StatusOK, dto.CRMWebhookResponse{
			Status:  "processed",
			Message: "Webhook received",
		})
		return
	}

	traceID := c.GetHeader(h.traceHeader)
	if traceID == "" {
		if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
			traceID = spanCtx.TraceID().String()
		}
	}
	params := service.RegisterPaymentParams{
		LeadID:      req.LeadID,
		CRMID:       crmID,
		PaymentData: req.PaymentData,
	}
	if traceID != "" {
		params.TraceID = &traceID
	}

	result, err := h.payments.RegisterPayment(ctx, params)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
		case apperr.KindValidation:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			slog.ErrorContext(ctx, "failed to process webhook", "error", err, "crm_id", crmID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process webhook"})
		}
		return
	}

	resp := dto.CRMWebhookResponse{
		Status:  "success",
		Message: "Payment processed",
	}
	if result.Task != nil {
		resp.YandexDirectTaskID = &result.Task.TaskID
	}

	c.JSON(http.StatusOK, resp)
}

// validSignature checks the HMAC-SHA256 the CRM computes over
// "<event_type>:<lead_id>" with the shared webhook secret, hex encoded.
func validSignature(secret, eventType, leadID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(eventType + ":" + leadID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
