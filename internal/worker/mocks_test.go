package worker

import (
	"context"
	"encoding/json"
	"time"

	"leadhub.app/aggregator/internal/model"
	"leadhub.app/aggregator/internal/store"
)

type fakeLeadStore struct {
	getByLeadIDFn  func(ctx context.Context, leadID string) (*model.Lead, error)
	updateStatusFn func(ctx context.Context, params store.UpdateLeadStatusParams) (*model.Lead, error)
	capturedUpdate *store.UpdateLeadStatusParams
}

func (f *fakeLeadStore) Create(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	return lead, nil
}

func (f *fakeLeadStore) GetByLeadID(ctx context.Context, leadID string) (*model.Lead, error) {
	if f.getByLeadIDFn != nil {
		return f.getByLeadIDFn(ctx, leadID)
	}
	return nil, store.ErrNotFound
}

func (f *fakeLeadStore) UpdateStatus(ctx context.Context, params store.UpdateLeadStatusParams) (*model.Lead, error) {
	f.capturedUpdate = &params
	if f.updateStatusFn != nil {
		return f.updateStatusFn(ctx, params)
	}
	return &model.Lead{LeadID: params.LeadID, Status: params.Status}, nil
}

func (f *fakeLeadStore) List(ctx context.Context, params store.ListLeadsParams) ([]model.Lead, error) {
	return nil, nil
}

func (f *fakeLeadStore) Count(ctx context.Context, campaignID, status *string) (int64, error) {
	return 0, nil
}

func (f *fakeLeadStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return map[string]int64{}, nil
}

type fakeEventStore struct {
	appendFn      func(ctx context.Context, event *model.Event) (*model.Event, error)
	capturedEvent *model.Event
	appendCalls   int
}

func (f *fakeEventStore) Append(ctx context.Context, event *model.Event) (*model.Event, error) {
	f.appendCalls++
	f.capturedEvent = event
	if f.appendFn != nil {
		return f.appendFn(ctx, event)
	}
	return event, nil
}

func (f *fakeEventStore) ListByAggregate(ctx context.Context, aggregateID string) ([]model.Event, error) {
	return nil, nil
}

func (f *fakeEventStore) ListAll(ctx context.Context, limit, offset int32) ([]model.Event, error) {
	return nil, nil
}

func (f *fakeEventStore) Count(ctx context.Context) (int64, error) {
	return 0, nil
}

func (f *fakeEventStore) CountByType(ctx context.Context) (map[string]int64, error) {
	return map[string]int64{}, nil
}

type fakeTaskStore struct {
	claimReadyFn func(ctx context.Context, limit int32) ([]model.Task, error)

	createFn      func(ctx context.Context, task *model.Task) (*model.Task, error)
	createdTasks  []*model.Task
	completeCalls []string
	lastResult    json.RawMessage
	failCalls     []string
	lastFailErr   string
	requeueCalls  []string
	lastNextAt    time.Time
	lastRequeue   string

	completeFn func(ctx context.Context, taskID string, result json.RawMessage) (*model.Task, error)
	failFn     func(ctx context.Context, taskID, errMsg string) (*model.Task, error)
	requeueFn  func(ctx context.Context, taskID string, nextAt time.Time, lastErr string) (*model.Task, error)

	listFailedFn     func(ctx context.Context, taskType *model.TaskType, limit int32) ([]model.Task, error)
	capturedType     *model.TaskType
	capturedLimit    int32
	reclaimStaleFn   func(ctx context.Context, olderThan time.Duration) (int64, int64, error)
	reclaimStaleCall int
}

func (f *fakeTaskStore) Create(ctx context.Context, task *model.Task) (*model.Task, error) {
	f.createdTasks = append(f.createdTasks, task)
	if f.createFn != nil {
		return f.createFn(ctx, task)
	}
	return task, nil
}

func (f *fakeTaskStore) GetByTaskID(ctx context.Context, taskID string) (*model.Task, error) {
	return nil, store.ErrNotFound
}

func (f *fakeTaskStore) ClaimReady(ctx context.Context, limit int32) ([]model.Task, error) {
	if f.claimReadyFn != nil {
		return f.claimReadyFn(ctx, limit)
	}
	return nil, nil
}

func (f *fakeTaskStore) Complete(ctx context.Context, taskID string, result json.RawMessage) (*model.Task, error) {
	f.completeCalls = append(f.completeCalls, taskID)
	f.lastResult = result
	if f.completeFn != nil {
		return f.completeFn(ctx, taskID, result)
	}
	return &model.Task{TaskID: taskID, Status: model.TaskStatusCompleted}, nil
}

func (f *fakeTaskStore) Fail(ctx context.Context, taskID, errMsg string) (*model.Task, error) {
	f.failCalls = append(f.failCalls, taskID)
	f.lastFailErr = errMsg
	if f.failFn != nil {
		return f.failFn(ctx, taskID, errMsg)
	}
	return &model.Task{TaskID: taskID, Status: model.TaskStatusFailed}, nil
}

func (f *fakeTaskStore) Requeue(ctx context.Context, taskID string, nextAt time.Time, lastErr string) (*model.Task, error) {
	f.requeueCalls = append(f.requeueCalls, taskID)
	f.lastNextAt = nextAt
	f.lastRequeue = lastErr
	if f.requeueFn != nil {
		return f.requeueFn(ctx, taskID, nextAt, lastErr)
	}
	return &model.Task{TaskID: taskID, Status: model.TaskStatusPending}, nil
}

func (f *fakeTaskStore) ListFailed(ctx context.Context, taskType *model.TaskType, limit int32) ([]model.Task, error) {
	f.capturedType = taskType
	f.capturedLimit = limit
	if f.listFailedFn != nil {
		return f.listFailedFn(ctx, taskType, limit)
	}
	return nil, nil
}

func (f *fakeTaskStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func (f *fakeTaskStore) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, int64, error) {
	f.reclaimStaleCall++
	if f.reclaimStaleFn != nil {
		return f.reclaimStaleFn(ctx, olderThan)
	}
	return 0, 0, nil
}

type fakeStoreProvider struct {
	events *fakeEventStore
	leads  *fakeLeadStore
	tasks  *fakeTaskStore
}

func (f *fakeStoreProvider) Events() store.EventStore {
	return f.events
}

func (f *fakeStoreProvider) Leads() store.LeadStore {
	return f.leads
}

func (f *fakeStoreProvider) CampaignStats() store.CampaignStatStore {
	return nil
}

func (f *fakeStoreProvider) Tasks() store.TaskStore {
	return f.tasks
}

type fakeTxRunner struct {
	provider *fakeStoreProvider
	err      error
	calls    int
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(stores StoreProvider) error) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return fn(f.provider)
}

type fakeProcessor struct {
	dispatchFn func(ctx context.Context, task *model.Task) (json.RawMessage, error)
	dispatched []string
}

func (f *fakeProcessor) Dispatch(ctx context.Context, task *model.Task) (json.RawMessage, error) {
	f.dispatched = append(f.dispatched, task.TaskID)
	if f.dispatchFn != nil {
		return f.dispatchFn(ctx, task)
	}
	return json.RawMessage(`{"success":true}`), nil
}
