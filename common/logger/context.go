package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, enabling zero-touch logging where business
// context (lead_id, task_id, etc.) is automatically included in all log statements.
type LogFields struct {
	LeadID     *string // Public lead ID ("lead_..." form)
	TaskID     *string // Queue task ID
	TaskType   *string // Task type (e.g., "send_to_crm")
	CampaignID *string // Marketing campaign ID
	CRMID      *string // CRM configuration ID
	EventType  *string // Event type (e.g., "lead_created", "payment_registered")
	Component  string  // Component name (OTel semantic convention style, e.g., "aggregator.worker.dispatcher")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// mergeFields merges two LogFields, preferring non-nil/non-empty values from 'new'.
func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.LeadID != nil {
		result.LeadID = new.LeadID
	}
	if new.TaskID != nil {
		result.TaskID = new.TaskID
	}
	if new.TaskType != nil {
		result.TaskType = new.TaskType
	}
	if new.CampaignID != nil {
		result.CampaignID = new.CampaignID
	}
	if new.CRMID != nil {
		result.CRMID = new.CRMID
	}
	if new.EventType != nil {
		result.EventType = new.EventType
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{LeadID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging potentially long strings like payloads or error messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
