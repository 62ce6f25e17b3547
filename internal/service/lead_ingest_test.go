package service_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"leadhub.app/aggregator/common/id"
	"leadhub.app/aggregator/core/config"
	"leadhub.app/aggregator/internal/apperr"
	"leadhub.app/aggregator/internal/integration"
	"leadhub.app/aggregator/internal/model"
	"leadhub.app/aggregator/internal/queue"
	"leadhub.app/aggregator/internal/service"
)

func buildRegistry(cfg config.Integrations) *integration.Registry {
	registry, err := integration.NewRegistry(cfg, nil)
	Expect(err).NotTo(HaveOccurred())
	return registry
}

var _ = Describe("LeadIngestService", func() {
	var (
		svc        service.LeadIngestService
		mockEvents *mockEventStore
		mockLeads  *mockLeadStore
		mockStats  *mockCampaignStatStore
		mockTasks  *mockTaskStore
		mockQueue  *mockQueueProducer
		registry   *integration.Registry
		ctx        context.Context
	)

	newService := func() service.LeadIngestService {
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
		return service.NewLeadIngestService(txRunner, registry, mockQueue, 3, nil)
	}

	BeforeEach(func() {
		ctx = context.Background()
		mockEvents = &mockEventStore{}
		mockLeads = &mockLeadStore{}
		mockStats = &mockCampaignStatStore{}
		mockTasks = &mockTaskStore{}
		mockQueue = &mockQueueProducer{}

		err := id.Init(1)
		Expect(err).NotTo(HaveOccurred())

		registry = buildRegistry(config.Integrations{
			DefaultCRM: &config.CRMConfig{
				CRMID:       "amo_main",
				CRMType:     integration.CRMTypeAmoCRM,
				APIEndpoint: "https://amo.example",
			},
		})
		svc = newService()
	})

	Describe("Ingest", func() {
		Context("with a configured default CRM", func() {
			It("creates the lead, appends lead_created, and queues the CRM send", func() {
				result, err := svc.Ingest(ctx, service.IngestLeadParams{
					FormData:   map[string]any{"name": "Anna", "email": "anna@example.com"},
					CampaignID: strptr("cmp_summer"),
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Lead).NotTo(BeNil())
				Expect(result.Lead.LeadID).To(HavePrefix("lead_"))
				Expect(result.Lead.Status).To(Equal(model.LeadStatusNew))
				Expect(result.QueuedForCRM).To(BeTrue())

				Expect(mockEvents.capturedEvent).NotTo(BeNil())
				Expect(mockEvents.capturedEvent.EventType).To(Equal(model.EventTypeLeadCreated))
				Expect(mockEvents.capturedEvent.AggregateID).To(Equal(result.Lead.LeadID))
				Expect(mockEvents.capturedEvent.Payload).To(HaveKey("form_data"))

				Expect(mockStats.incrementLeadsCalls).To(Equal(1))
				Expect(mockStats.capturedCampaignID).To(Equal("cmp_summer"))

				Expect(mockTasks.capturedTask).NotTo(BeNil())
				Expect(mockTasks.capturedTask.TaskType).To(Equal(model.TaskTypeSendToCRM))
				var payload model.SendToCRMPayload
				Expect(json.Unmarshal(mockTasks.capturedTask.Payload, &payload)).To(Succeed())
				Expect(payload.LeadID).To(Equal(result.Lead.LeadID))
				Expect(payload.CRMID).To(Equal("amo_main"))
				Expect(mockTasks.capturedTask.MaxAttempts).To(Equal(int32(3)))
			})

			It("notifies the queue after the transaction", func() {
				result, err := svc.Ingest(ctx, service.IngestLeadParams{
					FormData: map[string]any{"name": "Anna"},
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(mockQueue.notified).To(HaveLen(1))
				Expect(mockQueue.notified[0].TaskID).To(Equal(result.Task.TaskID))
				Expect(mockQueue.notified[0].TaskType).To(Equal("send_to_crm"))
			})

			It("still succeeds when the wake-up notification fails", func() {
				mockQueue.notifyFn = func(ctx context.Context, msg queue.TaskMessage) error {
					return errors.New("redis down")
				}

				result, err := svc.Ingest(ctx, service.IngestLeadParams{
					FormData: map[string]any{"name": "Anna"},
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.QueuedForCRM).To(BeTrue())
			})

			It("defaults the landing id", func() {
				_, err := svc.Ingest(ctx, service.IngestLeadParams{
					FormData: map[string]any{"name": "Anna"},
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(mockLeads.capturedLead.LandingID).To(Equal("default"))
				Expect(mockEvents.capturedEvent.Payload["landing_id"]).To(Equal("default"))
			})
		})

		Context("campaign resolution", func() {
			DescribeTable("picks the campaign in request, form, utm order",
				func(requestCampaign *string, form map[string]any, want string) {
					_, err := svc.Ingest(ctx, service.IngestLeadParams{
						FormData:   form,
						CampaignID: requestCampaign,
					})

					Expect(err).NotTo(HaveOccurred())
					if want == "" {
						Expect(mockLeads.capturedLead.CampaignID).To(BeNil())
						Expect(mockStats.incrementLeadsCalls).To(BeZero())
					} else {
						Expect(mockLeads.capturedLead.CampaignID).To(HaveValue(Equal(want)))
						Expect(mockStats.capturedCampaignID).To(Equal(want))
					}
				},
				Entry("explicit request field wins", strptr("cmp_req"),
					map[string]any{"campaign_id": "cmp_form", "utm_campaign": "cmp_utm"}, "cmp_req"),
				Entry("form campaign_id", nil,
					map[string]any{"campaign_id": "cmp_form", "utm_campaign": "cmp_utm"}, "cmp_form"),
				Entry("utm_campaign fallback", nil,
					map[string]any{"utm_campaign": "cmp_utm", "name": "x"}, "cmp_utm"),
				Entry("no campaign anywhere", nil,
					map[string]any{"name": "x"}, ""),
			)
		})

		Context("without a sendable CRM", func() {
			BeforeEach(func() {
				registry = buildRegistry(config.Integrations{})
				svc = newService()
			})

			It("creates the lead without queueing a task", func() {
				result, err := svc.Ingest(ctx, service.IngestLeadParams{
					FormData: map[string]any{"name": "Anna"},
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.QueuedForCRM).To(BeFalse())
				Expect(result.Task).To(BeNil())
				Expect(mockTasks.createCalls).To(BeZero())
				Expect(mockQueue.notified).To(BeEmpty())
				Expect(mockEvents.appendCalls).To(Equal(1))
			})
		})

		Context("when the resolved CRM has no endpoint", func() {
			BeforeEach(func() {
				registry = buildRegistry(config.Integrations{
					CRMConfigs: []config.CRMConfig{
						{CRMID: "inbound_only", WebhookSecret: "s"},
					},
					DefaultCRM: &config.CRMConfig{CRMID: "inbound_only"},
				})
				svc = newService()
			})

			It("skips the CRM task", func() {
				result, err := svc.Ingest(ctx, service.IngestLeadParams{
					FormData: map[string]any{"name": "Anna"},
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.QueuedForCRM).To(BeFalse())
				Expect(mockTasks.createCalls).To(BeZero())
			})
		})

		Context("with missing form data", func() {
			It("returns a validation error", func() {
				_, err := svc.Ingest(ctx, service.IngestLeadParams{})

				Expect(err).To(HaveOccurred())
				Expect(apperr.KindOf(err)).To(Equal(apperr.KindValidation))
				Expect(mockLeads.capturedLead).To(BeNil())
			})
		})
	})
})

func strptr(s string) *string {
	return &s
}
