package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"leadhub.app/aggregator/common/id"
	"leadhub.app/aggregator/internal/apperr"
	"leadhub.app/aggregator/internal/integration"
	"leadhub.app/aggregator/internal/model"
	"leadhub.app/aggregator/internal/queue"
)

type IngestLeadParams struct {
	FormData   map[string]any
	LandingID  string
	CampaignID *string

	TraceID *string
}

type LeadIngestResult struct {
	Lead         *model.Lead
	Event        *model.Event
	Task         *model.Task
	QueuedForCRM bool
}

type LeadIngestService interface {
	Ingest(ctx context.Context, params IngestLeadParams) (*LeadIngestResult, error)
}

type leadIngestService struct {
	txRunner    TxRunner
	registry    *integration.Registry
	queue       queue.Producer
	maxAttempts int32
	logger      *slog.Logger
}

func NewLeadIngestService(txRunner TxRunner, registry *integration.Registry, queue queue.Producer, maxAttempts int32, logger *slog.Logger) LeadIngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &leadIngestService{
		txRunner:    txRunner,
		registry:    registry,
		queue:       queue,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

func (s *leadIngestService) Ingest(ctx context.Context, params IngestLeadParams) (*LeadIngestResult, error) {
	if len(params.FormData) == 0 {
		return nil, apperr.Validation("form_data is required")
	}

	landingID := params.LandingID
	if landingID == "" {
		landingID = "default"
	}
	campaignID := effectiveCampaignID(params)

	crmConfig, crmFound := s.registry.ResolveCRM(landingID, campaignID)
	queueable := crmFound && crmConfig.APIEndpoint != ""

	var (
		lead  *model.Lead
		event *model.Event
		task  *model.Task
	)

	if err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		var err error
		lead, err = sp.Leads().Create(ctx, &model.Lead{
			ID:         id.New(),
			LeadID:     model.NewLeadID(),
			CampaignID: campaignID,
			LandingID:  landingID,
			FormData:   params.FormData,
			Status:     model.LeadStatusNew,
		})
		if err != nil {
			return fmt.Errorf("creating lead: %w", err)
		}

		if campaignID != nil {
			if _, err := sp.CampaignStats().IncrementLeads(ctx, id.New(), *campaignID); err != nil {
				return fmt.Errorf("incrementing campaign leads: %w", err)
			}
		}

		event, err = sp.Events().Append(ctx, &model.Event{
			ID:          id.New(),
			EventID:     uuid.NewString(),
			AggregateID: lead.LeadID,
			EventType:   model.EventTypeLeadCreated,
			Payload: map[string]any{
				"form_data":   params.FormData,
				"campaign_id": campaignID,
				"landing_id":  landingID,
			},
			Version: 1,
		})
		if err != nil {
			return fmt.Errorf("appending lead_created event: %w", err)
		}

		if queueable {
			payload, err := json.Marshal(model.SendToCRMPayload{
				LeadID: lead.LeadID,
				CRMID:  crmConfig.CRMID,
			})
			if err != nil {
				return fmt.Errorf("encoding task payload: %w", err)
			}

			task, err = sp.Tasks().Create(ctx, &model.Task{
				ID:          id.New(),
				TaskID:      uuid.NewString(),
				TaskType:    model.TaskTypeSendToCRM,
				Payload:     payload,
				MaxAttempts: s.maxAttempts,
				TraceID:     params.TraceID,
				ScheduledAt: time.Now().UTC(),
			})
			if err != nil {
				return fmt.Errorf("creating send_to_crm task: %w", err)
			}
		}

		return nil
	}); err != nil {
		return nil, err
	}

	// The task row is already committed; the notification is only a wake-up
	// hint, so a Redis hiccup must not fail the request.
	if task != nil {
		if err := s.queue.Notify(ctx, queue.TaskMessage{
			TaskID:   task.TaskID,
			TaskType: string(task.TaskType),
			TraceID:  params.TraceID,
		}); err != nil {
			s.logger.WarnContext(ctx, "task notification failed", "task_id", task.TaskID, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "lead ingested",
		"lead_id", lead.LeadID,
		"landing_id", landingID,
		"queued_for_crm", task != nil,
	)

	return &LeadIngestResult{
		Lead:         lead,
		Event:        event,
		Task:         task,
		QueuedForCRM: task != nil,
	}, nil
}

// effectiveCampaignID resolves the campaign in the same order the landing
// pages populate it: an explicit request field wins, then the form's own
// campaign_id, then the utm_campaign tag.
func effectiveCampaignID(params IngestLeadParams) *string {
	if params.CampaignID != nil && *params.CampaignID != "" {
		return params.CampaignID
	}
	for _, key := range []string{"campaign_id", "utm_campaign"} {
		if v, ok := params.FormData[key].(string); ok && v != "" {
			value := v
			return &value
		}
	}
	return nil
}
