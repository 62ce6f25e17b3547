package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"leadhub.app/aggregator/common/id"
	"leadhub.app/aggregator/internal/apperr"
	"leadhub.app/aggregator/internal/model"
	"leadhub.app/aggregator/internal/queue"
	"leadhub.app/aggregator/internal/store"
)

type RegisterPaymentParams struct {
	LeadID      string
	CRMID       string
	PaymentData map[string]any

	TraceID *string
}

type RegisterPaymentResult struct {
	Lead  *model.Lead
	Event *model.Event
	Task  *model.Task
}

// PaymentService turns a CRM payment webhook into projection updates, a
// payment_registered event, and an offline-conversion task.
type PaymentService interface {
	RegisterPayment(ctx context.Context, params RegisterPaymentParams) (*RegisterPaymentResult, error)
}

type paymentService struct {
	leads       store.LeadStore
	txRunner    TxRunner
	queue       queue.Producer
	maxAttempts int32
	logger      *slog.Logger
}

func NewPaymentService(leads store.LeadStore, txRunner TxRunner, queue queue.Producer, maxAttempts int32, logger *slog.Logger) PaymentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &paymentService{
		leads:       leads,
		txRunner:    txRunner,
		queue:       queue,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

func (s *paymentService) RegisterPayment(ctx context.Context, params RegisterPaymentParams) (*RegisterPaymentResult, error) {
	if params.LeadID == "" {
		return nil, apperr.Validation("lead_id is required")
	}

	lead, err := s.leads.GetByLeadID(ctx, params.LeadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("lead %s not found", params.LeadID)
		}
		return nil, fmt.Errorf("fetching lead: %w", err)
	}

	amount := paymentAmount(params.PaymentData)

	updateParams := store.UpdateLeadStatusParams{
		LeadID: lead.LeadID,
		Status: model.LeadStatusPaid,
	}
	// Payment fields are stamped only when the CRM actually sent payment data;
	// a bare payment_received webhook flips the status and nothing else.
	if len(params.PaymentData) > 0 {
		paidAt := paymentDate(params.PaymentData)
		updateParams.PaymentAmount = &amount
		updateParams.PaymentDate = &paidAt
	}

	var (
		updated *model.Lead
		event   *model.Event
		task    *model.Task
	)

	if err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		var err error
		updated, err = sp.Leads().UpdateStatus(ctx, updateParams)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.NotFound("lead %s not found", lead.LeadID)
			}
			return fmt.Errorf("updating lead: %w", err)
		}

		if lead.CampaignID != nil && len(params.PaymentData) > 0 {
			if _, err := sp.CampaignStats().IncrementPayments(ctx, id.New(), *lead.CampaignID, amount); err != nil {
				return fmt.Errorf("incrementing campaign payments: %w", err)
			}
		}

		event, err = sp.Events().Append(ctx, &model.Event{
			ID:          id.New(),
			EventID:     uuid.NewString(),
			AggregateID: lead.LeadID,
			EventType:   model.EventTypePaymentRegistered,
			Payload: map[string]any{
				"payment_data":   params.PaymentData,
				"webhook_source": params.CRMID,
			},
			Version: 1,
		})
		if err != nil {
			return fmt.Errorf("appending payment_registered event: %w", err)
		}

		// Offline conversions need a campaign to report against.
		if lead.CampaignID != nil {
			payload, err := json.Marshal(model.SendConversionPayload{
				LeadID:        lead.LeadID,
				PaymentAmount: amount,
			})
			if err != nil {
				return fmt.Errorf("encoding task payload: %w", err)
			}

			task, err = sp.Tasks().Create(ctx, &model.Task{
				ID:          id.New(),
				TaskID:      uuid.NewString(),
				TaskType:    model.TaskTypeSendToYandexDirect,
				Payload:     payload,
				MaxAttempts: s.maxAttempts,
				TraceID:     params.TraceID,
				ScheduledAt: time.Now().UTC(),
			})
			if err != nil {
				return fmt.Errorf("creating send_to_yandex_direct task: %w", err)
			}
		}

		return nil
	}); err != nil {
		return nil, err
	}

	if task != nil {
		if err := s.queue.Notify(ctx, queue.TaskMessage{
			TaskID:   task.TaskID,
			TaskType: string(task.TaskType),
			TraceID:  params.TraceID,
		}); err != nil {
			s.logger.WarnContext(ctx, "task notification failed", "task_id", task.TaskID, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "payment registered",
		"lead_id", lead.LeadID,
		"crm_id", params.CRMID,
		"amount", amount,
	)

	return &RegisterPaymentResult{
		Lead:  updated,
		Event: event,
		Task:  task,
	}, nil
}

func paymentAmount(data map[string]any) float64 {
	if v, ok := data["amount"].(float64); ok {
		return v
	}
	return 0
}

// paymentDate honours the timestamp the CRM supplied; absent or unparseable
// dates fall back to now.
func paymentDate(data map[string]any) time.Time {
	if v, ok := data["payment_date"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
