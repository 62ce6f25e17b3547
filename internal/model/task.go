package model

import (
	"encoding/json"
	"time"
)

type TaskType string

const (
	TaskTypeSendToCRM          TaskType = "send_to_crm"
	TaskTypeSendToYandexDirect TaskType = "send_to_yandex_direct"
	TaskTypeRetryFailed        TaskType = "retry_failed"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task is a unit of deferred work in the Postgres-backed queue.
// Attempts counts claims: it is incremented exactly once each time a worker
// claims the task, and completed/failed are terminal states.
type Task struct {
	ID           int64           `json:"id"`
	TaskID       string          `json:"task_id"`
	TaskType     TaskType        `json:"task_type"`
	Payload      json.RawMessage `json:"payload"`
	Status       TaskStatus      `json:"status"`
	Attempts     int32           `json:"attempts"`
	MaxAttempts  int32           `json:"max_attempts"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	TraceID      *string         `json:"trace_id,omitempty"`
	ScheduledAt  time.Time       `json:"scheduled_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SendToCRMPayload addresses the CRM by id; credentials stay in the
// integration registry instead of travelling through the queue.
type SendToCRMPayload struct {
	LeadID string `json:"lead_id"`
	CRMID  string `json:"crm_id"`
}

type SendConversionPayload struct {
	LeadID        string  `json:"lead_id"`
	PaymentAmount float64 `json:"payment_amount"`
}

// RetryFailedPayload re-enqueues failed tasks as fresh pending copies.
// TaskType narrows which failures to retry; Limit caps the sweep.
type RetryFailedPayload struct {
	TaskType *TaskType `json:"task_type,omitempty"`
	Limit    int32     `json:"limit,omitempty"`
}
