package service_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"leadhub.app/aggregator/common/id"
	"leadhub.app/aggregator/internal/apperr"
	"leadhub.app/aggregator/internal/model"
	"leadhub.app/aggregator/internal/service"
	"leadhub.app/aggregator/internal/store"
)

var _ = Describe("PaymentService", func() {
	var (
		svc        service.PaymentService
		mockEvents *mockEventStore
		mockLeads  *mockLeadStore
		mockStats  *mockCampaignStatStore
		mockTasks  *mockTaskStore
		mockQueue  *mockQueueProducer
		ctx        context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		mockEvents = &mockEventStore{}
		mockLeads = &mockLeadStore{}
		mockStats = &mockCampaignStatStore{}
		mockTasks = &mockTaskStore{}
		mockQueue = &mockQueueProducer{}

		err := id.Init(1)
		Expect(err).NotTo(HaveOccurred())

		txRunner := &mockTxRunner{
			withTxFn: func(ctx context.Context, fn func(stores service.StoreProvider) error) error {
				return fn(&mockStoreProvider{
					events:        mockEvents,
					leads:         mockLeads,
					campaignStats: mockStats,
					tasks:         mockTasks,
				})
			},
		}

		svc = service.NewPaymentService(mockLeads, txRunner, mockQueue, 3, nil)
	})

	Describe("RegisterPayment", func() {
		Context("for a lead attributed to a campaign", func() {
			BeforeEach(func() {
				mockLeads.getByLeadIDFn = func(ctx context.Context, leadID string) (*model.Lead, error) {
					return &model.Lead{
						LeadID:     leadID,
						CampaignID: strptr("cmp_summer"),
						Status:     model.LeadStatusSentToCRM,
					}, nil
				}
			})

			It("marks the lead paid and queues the offline conversion", func() {
				result, err := svc.RegisterPayment(ctx, service.RegisterPaymentParams{
					LeadID:      "lead_ab12cd34",
					CRMID:       "amo_main",
					PaymentData: map[string]any{"amount": float64(4990), "currency": "RUB"},
				})

				Expect(err).NotTo(HaveOccurred())

				Expect(mockLeads.capturedUpdate).NotTo(BeNil())
				Expect(mockLeads.capturedUpdate.Status).To(Equal(model.LeadStatusPaid))
				Expect(mockLeads.capturedUpdate.PaymentAmount).To(HaveValue(Equal(float64(4990))))
				Expect(mockLeads.capturedUpdate.PaymentDate).NotTo(BeNil())

				Expect(mockStats.incrementPaymentsCalls).To(Equal(1))
				Expect(mockStats.capturedCampaignID).To(Equal("cmp_summer"))
				Expect(mockStats.capturedAmount).To(Equal(float64(4990)))

				Expect(mockEvents.capturedEvent.EventType).To(Equal(model.EventTypePaymentRegistered))
				Expect(mockEvents.capturedEvent.AggregateID).To(Equal("lead_ab12cd34"))
				Expect(mockEvents.capturedEvent.Payload["webhook_source"]).To(Equal("amo_main"))

				Expect(result.Task).NotTo(BeNil())
				Expect(result.Task.TaskType).To(Equal(model.TaskTypeSendToYandexDirect))
				var payload model.SendConversionPayload
				Expect(json.Unmarshal(result.Task.Payload, &payload)).To(Succeed())
				Expect(payload.LeadID).To(Equal("lead_ab12cd34"))
				Expect(payload.PaymentAmount).To(Equal(float64(4990)))

				Expect(mockQueue.notified).To(HaveLen(1))
				Expect(mockQueue.notified[0].TaskType).To(Equal("send_to_yandex_direct"))
			})

			It("leaves the payment fields untouched when payment data is absent", func() {
				result, err := svc.RegisterPayment(ctx, service.RegisterPaymentParams{
					LeadID: "lead_ab12cd34",
					CRMID:  "amo_main",
				})

				Expect(err).NotTo(HaveOccurred())

				Expect(mockLeads.capturedUpdate).NotTo(BeNil())
				Expect(mockLeads.capturedUpdate.Status).To(Equal(model.LeadStatusPaid))
				Expect(mockLeads.capturedUpdate.PaymentAmount).To(BeNil())
				Expect(mockLeads.capturedUpdate.PaymentDate).To(BeNil())

				Expect(mockStats.incrementPaymentsCalls).To(BeZero())

				// The conversion still goes out so the ad platform learns about
				// the sale, just with a zero amount.
				Expect(result.Task).NotTo(BeNil())
				var payload model.SendConversionPayload
				Expect(json.Unmarshal(result.Task.Payload, &payload)).To(Succeed())
				Expect(payload.PaymentAmount).To(BeZero())
			})
		})

		Context("for a lead without a campaign", func() {
			BeforeEach(func() {
				mockLeads.getByLeadIDFn = func(ctx context.Context, leadID string) (*model.Lead, error) {
					return &model.Lead{LeadID: leadID, Status: model.LeadStatusNew}, nil
				}
			})

			It("registers the payment without campaign bookkeeping or a task", func() {
				result, err := svc.RegisterPayment(ctx, service.RegisterPaymentParams{
					LeadID:      "lead_ab12cd34",
					CRMID:       "amo_main",
					PaymentData: map[string]any{"amount": float64(100)},
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(mockStats.incrementPaymentsCalls).To(BeZero())
				Expect(result.Task).To(BeNil())
				Expect(mockTasks.createCalls).To(BeZero())
				Expect(mockQueue.notified).To(BeEmpty())
				Expect(mockEvents.appendCalls).To(Equal(1))
			})
		})

		Context("when the lead does not exist", func() {
			BeforeEach(func() {
				mockLeads.getByLeadIDFn = func(ctx context.Context, leadID string) (*model.Lead, error) {
					return nil, store.ErrNotFound
				}
			})

			It("returns a not-found error", func() {
				_, err := svc.RegisterPayment(ctx, service.RegisterPaymentParams{
					LeadID: "lead_missing",
					CRMID:  "amo_main",
				})

				Expect(err).To(HaveOccurred())
				Expect(apperr.KindOf(err)).To(Equal(apperr.KindNotFound))
				Expect(mockEvents.appendCalls).To(BeZero())
			})
		})

		Context("with a missing lead id", func() {
			It("returns a validation error", func() {
				_, err := svc.RegisterPayment(ctx, service.RegisterPaymentParams{CRMID: "amo_main"})

				Expect(err).To(HaveOccurred())
				Expect(apperr.KindOf(err)).To(Equal(apperr.KindValidation))
			})
		})
	})
})
