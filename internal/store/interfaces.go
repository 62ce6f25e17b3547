package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"leadhub.app/aggregator/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// EventStore is the append-only event log. There is deliberately no update
// or delete: projections are rebuilt by replaying events per aggregate.
type EventStore interface {
	Append(ctx context.Context, event *model.Event) (*model.Event, error)
	ListByAggregate(ctx context.Context, aggregateID string) ([]model.Event, error)
	ListAll(ctx context.Context, limit, offset int32) ([]model.Event, error)
	Count(ctx context.Context) (int64, error)
	CountByType(ctx context.Context) (map[string]int64, error)
}

// LeadStore defines the contract for the lead projection
type LeadStore interface {
	Create(ctx context.Context, lead *model.Lead) (*model.Lead, error)
	GetByLeadID(ctx context.Context, leadID string) (*model.Lead, error)
	UpdateStatus(ctx context.Context, params UpdateLeadStatusParams) (*model.Lead, error)
	List(ctx context.Context, params ListLeadsParams) ([]model.Lead, error)
	Count(ctx context.Context, campaignID, status *string) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// CampaignStatStore defines the contract for the per-campaign rollup.
// Both increments are single-statement upserts: the first write for a
// campaign creates the row, and concurrent increments never lose updates.
type CampaignStatStore interface {
	IncrementLeads(ctx context.Context, id int64, campaignID string) (*model.CampaignStat, error)
	IncrementPayments(ctx context.Context, id int64, campaignID string, amount float64) (*model.CampaignStat, error)
	List(ctx context.Context) ([]model.CampaignStat, error)
}

// TaskStore defines the contract for the Postgres-backed task queue.
// ClaimReady is the only way a task moves pending -> processing, and every
// later transition is guarded on status = 'processing', which is what makes
// completed and failed terminal.
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) (*model.Task, error)
	GetByTaskID(ctx context.Context, taskID string) (*model.Task, error)
	ClaimReady(ctx context.Context, limit int32) ([]model.Task, error)
	Complete(ctx context.Context, taskID string, result json.RawMessage) (*model.Task, error)
	Fail(ctx context.Context, taskID, errMsg string) (*model.Task, error)
	Requeue(ctx context.Context, taskID string, nextAt time.Time, lastErr string) (*model.Task, error)
	ListFailed(ctx context.Context, taskType *model.TaskType, limit int32) ([]model.Task, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	ReclaimStale(ctx context.Context, olderThan time.Duration) (requeued, failed int64, err error)
}

type UpdateLeadStatusParams struct {
	LeadID        string
	Status        model.LeadStatus
	CRMID         *string
	PaymentAmount *float64
	PaymentDate   *time.Time
}

type ListLeadsParams struct {
	CampaignID *string
	Status     *string
	Limit      int32
	Offset     int32
}
