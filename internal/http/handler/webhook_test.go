package handler_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"leadhub.app/aggregator/core/config"
	"leadhub.app/aggregator/internal/apperr"
	"leadhub.app/aggregator/internal/http/handler"
	"leadhub.app/aggregator/internal/integration"
	"leadhub.app/aggregator/internal/model"
	"leadhub.app/aggregator/internal/service"
)

func sign(secret, eventType, leadID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(eventType + ":" + leadID))
	return hex.EncodeToString(mac.Sum(nil))
}

var _ = Describe("CRMWebhookHandler", func() {
	const webhookSecret = "s3cret"

	var (
		router   *gin.Engine
		payments *mockPaymentService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		payments = &mockPaymentService{}

		registry, err := integration.NewRegistry(config.Integrations{
			CRMConfigs: []config.CRMConfig{
				{CRMID: "amo_main", CRMType: "amocrm", APIEndpoint: "https://amo.example", WebhookSecret: webhookSecret},
				{CRMID: "plain", CRMType: "generic", APIEndpoint: "https://crm.example"},
			},
		}, nil)
		Expect(err).NotTo(HaveOccurred())

		h := handler.NewCRMWebhookHandler(payments, registry, "X-Trace-Id")
		router.POST("/api/v1/webhooks/crm/:crm_id", h.Handle)
	})

	post := func(crmID string, body map[string]any) *httptest.ResponseRecorder {
		data, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/crm/"+crmID, bytes.NewBuffer(data))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("processes a payment_received webhook", func() {
		payments.registerFn = func(_ context.Context, params service.RegisterPaymentParams) (*service.RegisterPaymentResult, error) {
			return &service.RegisterPaymentResult{
				Lead: &model.Lead{LeadID: params.LeadID, Status: model.LeadStatusPaid},
				Task: &model.Task{TaskID: "task-yd", TaskType: model.TaskTypeSendToYandexDirect},
			}, nil
		}

		w := post("plain", map[string]any{
			"event_type":   "payment_received",
			"lead_id":      "lead_abc12345",
			"payment_data": map[string]any{"amount": 100.0, "currency": "RUB"},
		})

		Expect(w.Code).To(Equal(http.StatusOK))

		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["status"]).To(Equal("success"))
		Expect(resp["yandex_direct_task_id"]).To(Equal("task-yd"))

		Expect(payments.capturedParams.CRMID).To(Equal("plain"))
		Expect(payments.capturedParams.PaymentData).To(HaveKeyWithValue("amount", 100.0))
	})

	It("acknowledges other event types without touching the lead", func() {
		w := post("plain", map[string]any{
			"event_type": "lead_updated",
			"lead_id":    "lead_abc12345",
		})

		Expect(w.Code).To(Equal(http.StatusOK))

		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["status"]).To(Equal("processed"))
		Expect(payments.capturedParams).To(BeNil())
	})

	It("returns 404 for an unknown crm_id", func() {
		w := post("ghost", map[string]any{
			"event_type": "payment_received",
			"lead_id":    "lead_abc12345",
		})

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("accepts a valid signature", func() {
		w := post("amo_main", map[string]any{
			"event_type": "payment_received",
			"lead_id":    "lead_abc12345",
			"signature":  sign(webhookSecret, "payment_received", "lead_abc12345"),
		})

		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("rejects a bad signature with 401", func() {
		w := post("amo_main", map[string]any{
			"event_type": "payment_received",
			"lead_id":    "lead_abc12345",
			"signature":  "deadbeef",
		})

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(payments.capturedParams).To(BeNil())
	})

	It("returns 404 when the lead does not exist", func() {
		payments.registerFn = func(_ context.Context, params service.RegisterPaymentParams) (*service.RegisterPaymentResult, error) {
			return nil, apperr.NotFound("lead %s not found", params.LeadID)
		}

		w := post("plain", map[string]any{
			"event_type": "payment_received",
			"lead_id":    "lead_gone",
		})

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})
})
