package model

import "time"

type EventType string

const (
	EventTypeLeadCreated            EventType = "lead_created"
	EventTypeLeadSentToCRM          EventType = "lead_sent_to_crm"
	EventTypePaymentRegistered      EventType = "payment_registered"
	EventTypeYandexDirectConversion EventType = "yandex_direct_conversion"
)

// Event is an immutable record in the append-only event log. Rows are only
// ever inserted; projections (Lead, CampaignStat) can be rebuilt by
// replaying events per aggregate in append order.
type Event struct {
	ID          int64          `json:"id"`
	EventID     string         `json:"event_id"`
	AggregateID string         `json:"aggregate_id"`
	EventType   EventType      `json:"event_type"`
	Payload     map[string]any `json:"payload"`
	Version     int32          `json:"version"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
