package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"leadhub.app/aggregator/internal/apperr"
	"leadhub.app/aggregator/internal/http/handler"
	"leadhub.app/aggregator/internal/model"
	"leadhub.app/aggregator/internal/service"
)

var _ = Describe("LeadHandler", func() {
	var (
		router  *gin.Engine
		ingest  *mockLeadIngestService
		queries *mockLeadQueryService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		ingest = &mockLeadIngestService{}
		queries = &mockLeadQueryService{}
		h := handler.NewLeadHandler(ingest, queries, "X-Trace-Id")

		router.POST("/api/v1/leads", h.Create)
		router.GET("/api/v1/leads", h.List)
		router.GET("/api/v1/leads/:lead_id", h.Get)
	})

	Describe("Create", func() {
		It("returns 200 with the created lead and task id", func() {
			campaign := "camp1"
			ingest.ingestFn = func(_ context.Context, params service.IngestLeadParams) (*service.LeadIngestResult, error) {
				return &service.LeadIngestResult{
					Lead: &model.Lead{
						LeadID:     "lead_abc12345",
						CampaignID: params.CampaignID,
						Status:     model.LeadStatusNew,
					},
					Task:         &model.Task{TaskID: "task-1", TaskType: model.TaskTypeSendToCRM},
					QueuedForCRM: true,
				}, nil
			}

			body, _ := json.Marshal(map[string]any{
				"form_data":   map[string]any{"email": "a@b.com", "name": "Ann"},
				"campaign_id": campaign,
			})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/leads", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))

			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["lead_id"]).To(Equal("lead_abc12345"))
			Expect(resp["status"]).To(Equal("created"))
			Expect(resp["task_id"]).To(Equal("task-1"))
			Expect(resp["queued_for_crm"]).To(BeTrue())

			Expect(ingest.capturedParams).NotTo(BeNil())
			Expect(*ingest.capturedParams.CampaignID).To(Equal(campaign))
			Expect(ingest.capturedParams.FormData).To(HaveKeyWithValue("email", "a@b.com"))
		})

		It("passes the trace header through to the service", func() {
			body, _ := json.Marshal(map[string]any{
				"form_data": map[string]any{"email": "a@b.com"},
			})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/leads", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Trace-Id", "0123456789abcdef0123456789abcdef")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(ingest.capturedParams.TraceID).NotTo(BeNil())
			Expect(*ingest.capturedParams.TraceID).To(Equal("0123456789abcdef0123456789abcdef"))
		})

		It("returns 400 when form_data is missing", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/leads", bytes.NewBufferString(`{}`))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 400 on a validation error from the service", func() {
			ingest.ingestFn = func(context.Context, service.IngestLeadParams) (*service.LeadIngestResult, error) {
				return nil, apperr.Validation("form_data must not be empty")
			}

			body, _ := json.Marshal(map[string]any{"form_data": map[string]any{"email": "a@b.com"}})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/leads", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 500 on an unexpected service error", func() {
			ingest.ingestFn = func(context.Context, service.IngestLeadParams) (*service.LeadIngestResult, error) {
				return nil, apperr.System("db down")
			}

			body, _ := json.Marshal(map[string]any{"form_data": map[string]any{"email": "a@b.com"}})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/leads", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("Get", func() {
		It("returns the lead with its event history", func() {
			queries.getFn = func(_ context.Context, leadID string) (*service.LeadDetails, error) {
				return &service.LeadDetails{
					Lead: &model.Lead{LeadID: leadID, Status: model.LeadStatusPaid, CreatedAt: time.Now()},
					Events: []model.Event{
						{EventType: model.EventTypeLeadCreated, AggregateID: leadID},
						{EventType: model.EventTypePaymentRegistered, AggregateID: leadID},
					},
					EventCount: 2,
				}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/leads/lead_abc12345", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))

			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["event_count"]).To(BeEquivalentTo(2))
		})

		It("returns 404 for an unknown lead", func() {
			queries.getFn = func(_ context.Context, leadID string) (*service.LeadDetails, error) {
				return nil, apperr.NotFound("lead %s not found", leadID)
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/leads/lead_nope", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("List", func() {
		It("forwards filters and pagination", func() {
			var captured service.ListLeadsParams
			queries.listFn = func(_ context.Context, params service.ListLeadsParams) (*service.LeadPage, error) {
				captured = params
				return &service.LeadPage{
					Leads:  []model.Lead{{LeadID: "lead_1"}},
					Total:  1,
					Limit:  params.Limit,
					Offset: params.Offset,
				}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/leads?campaign_id=camp1&status=paid&limit=10&offset=20", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(*captured.CampaignID).To(Equal("camp1"))
			Expect(*captured.Status).To(Equal("paid"))
			Expect(captured.Limit).To(Equal(int32(10)))
			Expect(captured.Offset).To(Equal(int32(20)))
		})

		It("returns 400 on a non-numeric limit", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/leads?limit=ten", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
