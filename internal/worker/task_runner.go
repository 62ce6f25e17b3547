package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"leadhub.app/aggregator/common/id"
	"leadhub.app/aggregator/common/logger"
	"leadhub.app/aggregator/internal/apperr"
	"leadhub.app/aggregator/internal/integration"
	"leadhub.app/aggregator/internal/model"
	"leadhub.app/aggregator/internal/store"
)

const defaultRetrySweepLimit = 50

// HandlerFunc executes one task. The returned payload becomes the stored
// task result.
type HandlerFunc func(ctx context.Context, task *model.Task) (json.RawMessage, error)

type TaskRunnerConfig struct {
	Leads    store.LeadStore
	Events   store.EventStore
	Tasks    store.TaskStore
	TxRunner TxRunner
	Registry *integration.Registry
}

// TaskRunner dispatches claimed tasks to their type handlers. It owns the
// integration side effects; the Worker owns queue bookkeeping.
type TaskRunner struct {
	leads    store.LeadStore
	events   store.EventStore
	tasks    store.TaskStore
	txRunner TxRunner
	registry *integration.Registry

	handlers map[model.TaskType]HandlerFunc
}

func NewTaskRunner(cfg TaskRunnerConfig) *TaskRunner {
	r := &TaskRunner{
		leads:    cfg.Leads,
		events:   cfg.Events,
		tasks:    cfg.Tasks,
		txRunner: cfg.TxRunner,
		registry: cfg.Registry,
	}
	r.handlers = map[model.TaskType]HandlerFunc{
		model.TaskTypeSendToCRM:          r.handleSendToCRM,
		model.TaskTypeSendToYandexDirect: r.handleSendConversion,
		model.TaskTypeRetryFailed:        r.handleRetryFailed,
	}
	return r
}

func (r *TaskRunner) Dispatch(ctx context.Context, task *model.Task) (json.RawMessage, error) {
	handler, ok := r.handlers[task.TaskType]
	if !ok {
		return nil, apperr.Validation("unknown task type %q", task.TaskType)
	}
	return handler(ctx, task)
}

func (r *TaskRunner) handleSendToCRM(ctx context.Context, task *model.Task) (json.RawMessage, error) {
	var payload model.SendToCRMPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "decoding send_to_crm payload")
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		LeadID: &payload.LeadID,
		CRMID:  &payload.CRMID,
	})

	lead, err := r.leads.GetByLeadID(ctx, payload.LeadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("lead %s not found", payload.LeadID)
		}
		return nil, fmt.Errorf("fetching lead: %w", err)
	}

	sender, ok := r.registry.SenderByID(payload.CRMID)
	if !ok {
		return nil, apperr.Validation("crm %s is not configured for sending", payload.CRMID)
	}

	outcome, err := sender.SendLead(ctx, lead.FormData)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIntegration, err, "sending lead to crm %s", payload.CRMID)
	}
	if !outcome.Success() {
		return nil, apperr.Integration("crm %s returned status %d: %s",
			payload.CRMID, outcome.StatusCode, logger.Truncate(outcome.Body, 200))
	}

	// Projection update and event append commit together so a replay of the
	// event log always reproduces the lead state.
	if err := r.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		if _, err := sp.Leads().UpdateStatus(ctx, store.UpdateLeadStatusParams{
			LeadID: lead.LeadID,
			Status: model.LeadStatusSentToCRM,
			CRMID:  &payload.CRMID,
		}); err != nil {
			return fmt.Errorf("updating lead: %w", err)
		}

		if _, err := sp.Events().Append(ctx, &model.Event{
			ID:          id.New(),
			EventID:     uuid.NewString(),
			AggregateID: lead.LeadID,
			EventType:   model.EventTypeLeadSentToCRM,
			Payload: map[string]any{
				"crm_id": payload.CRMID,
				"crm_response": map[string]any{
					"status_code": outcome.StatusCode,
					"body":        outcome.Body,
				},
			},
			Version: 1,
		}); err != nil {
			return fmt.Errorf("appending lead_sent_to_crm event: %w", err)
		}

		return nil
	}); err != nil {
		return nil, fmt.Errorf("recording crm delivery: %w", err)
	}

	slog.InfoContext(ctx, "lead sent to crm", "status_code", outcome.StatusCode)

	return json.Marshal(map[string]any{
		"success":     true,
		"status_code": outcome.StatusCode,
	})
}

func (r *TaskRunner) handleSendConversion(ctx context.Context, task *model.Task) (json.RawMessage, error) {
	var payload model.SendConversionPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "decoding send_to_yandex_direct payload")
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{LeadID: &payload.LeadID})

	lead, err := r.leads.GetByLeadID(ctx, payload.LeadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("lead %s not found", payload.LeadID)
		}
		return nil, fmt.Errorf("fetching lead: %w", err)
	}

	if lead.CampaignID == nil || *lead.CampaignID == "" {
		return nil, apperr.Validation("lead %s has no campaign to report a conversion for", lead.LeadID)
	}
	campaignID := *lead.CampaignID
	ctx = logger.WithLogFields(ctx, logger.LogFields{CampaignID: &campaignID})

	outcome, err := r.registry.Conversions().SendConversion(ctx, campaignID, lead.LeadID, "PAYMENT", payload.PaymentAmount)
	if err != nil {
		// A campaign that was never wired up for offline conversions is a
		// configuration statement, not a delivery failure.
		if errors.Is(err, integration.ErrCampaignNotConfigured) {
			slog.InfoContext(ctx, "campaign has no yandex direct config, skipping conversion")
			return json.Marshal(map[string]any{
				"success":     true,
				"skipped":     true,
				"campaign_id": campaignID,
			})
		}
		return nil, apperr.Wrap(apperr.KindIntegration, err, "sending conversion for campaign %s", campaignID)
	}
	if !outcome.Success() {
		return nil, apperr.Integration("yandex direct returned status %d: %s",
			outcome.StatusCode, logger.Truncate(outcome.Body, 200))
	}

	if _, err := r.events.Append(ctx, &model.Event{
		ID:          id.New(),
		EventID:     uuid.NewString(),
		AggregateID: lead.LeadID,
		EventType:   model.EventTypeYandexDirectConversion,
		Payload: map[string]any{
			"campaign_id": campaignID,
			"amount":      payload.PaymentAmount,
			"response": map[string]any{
				"status_code": outcome.StatusCode,
				"body":        outcome.Body,
			},
		},
		Version: 1,
	}); err != nil {
		return nil, fmt.Errorf("appending yandex_direct_conversion event: %w", err)
	}

	slog.InfoContext(ctx, "conversion sent to yandex direct", "amount", payload.PaymentAmount)

	return json.Marshal(map[string]any{
		"success":     true,
		"status_code": outcome.StatusCode,
	})
}

func (r *TaskRunner) handleRetryFailed(ctx context.Context, task *model.Task) (json.RawMessage, error) {
	var payload model.RetryFailedPayload
	if len(task.Payload) > 0 {
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, err, "decoding retry_failed payload")
		}
	}

	limit := payload.Limit
	if limit <= 0 {
		limit = defaultRetrySweepLimit
	}

	failed, err := r.tasks.ListFailed(ctx, payload.TaskType, limit)
	if err != nil {
		return nil, fmt.Errorf("listing failed tasks: %w", err)
	}

	// Failed rows are terminal; the sweep clones them as fresh pending tasks
	// with a zeroed attempt budget instead of mutating them.
	requeued := 0
	if len(failed) > 0 {
		if err := r.txRunner.WithTx(ctx, func(sp StoreProvider) error {
			for _, original := range failed {
				if _, err := sp.Tasks().Create(ctx, &model.Task{
					ID:          id.New(),
					TaskID:      uuid.NewString(),
					TaskType:    original.TaskType,
					Payload:     original.Payload,
					MaxAttempts: original.MaxAttempts,
					TraceID:     original.TraceID,
					ScheduledAt: time.Now().UTC(),
				}); err != nil {
					return fmt.Errorf("cloning task %s: %w", original.TaskID, err)
				}
				requeued++
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}

	slog.InfoContext(ctx, "failed tasks requeued", "count", requeued)

	return json.Marshal(map[string]any{"requeued": requeued})
}
