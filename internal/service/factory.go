package service

import (
	"log/slog"

	"leadhub.app/aggregator/internal/integration"
	"leadhub.app/aggregator/internal/queue"
	"leadhub.app/aggregator/internal/store"
)

type Services struct {
	stores      *store.Stores
	txRunner    TxRunner
	registry    *integration.Registry
	queue       queue.Producer
	maxAttempts int32
	logger      *slog.Logger
}

func NewServices(stores *store.Stores, txRunner TxRunner, registry *integration.Registry, queue queue.Producer, maxAttempts int32, logger *slog.Logger) *Services {
	if logger == nil {
		logger = slog.Default()
	}
	return &Services{
		stores:      stores,
		txRunner:    txRunner,
		registry:    registry,
		queue:       queue,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

func (s *Services) LeadIngest() LeadIngestService {
	return NewLeadIngestService(s.txRunner, s.registry, s.queue, s.maxAttempts, s.logger)
}

func (s *Services) Payments() PaymentService {
	return NewPaymentService(s.stores.Leads(), s.txRunner, s.queue, s.maxAttempts, s.logger)
}

func (s *Services) Leads() LeadQueryService {
	return NewLeadQueryService(s.stores.Leads(), s.stores.Events())
}

func (s *Services) Stats() StatsService {
	return NewStatsService(s.stores.Leads(), s.stores.Events(), s.stores.CampaignStats(), s.stores.Tasks())
}

func (s *Services) Registry() *integration.Registry {
	return s.registry
}
