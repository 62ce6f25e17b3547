package worker

import (
	"context"
	"encoding/json"

	"leadhub.app/aggregator/internal/model"
	"leadhub.app/aggregator/internal/store"
)

// Mirrors service.StoreProvider - defined here to avoid import cycles.
type StoreProvider interface {
	Events() store.EventStore
	Leads() store.LeadStore
	CampaignStats() store.CampaignStatStore
	Tasks() store.TaskStore
}

// Mirrors service.TxRunner - defined here to avoid import cycles.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

// TaskProcessor abstracts task execution for testability. The returned
// payload is stored as the task result on success; the error's kind decides
// between retry and terminal failure.
type TaskProcessor interface {
	Dispatch(ctx context.Context, task *model.Task) (json.RawMessage, error)
}
