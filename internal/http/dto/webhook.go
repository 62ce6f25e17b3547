package dto

// CRMWebhookRequest is what CRMs post back to us. Only payment_received
// carries payment_data; other event types are acknowledged and dropped.
type CRMWebhookRequest struct {
	EventType   string         `json:"event_type" binding:"required"`
	LeadID      string         `json:"lead_id" binding:"required"`
	PaymentData map[string]any `json:"payment_data,omitempty"`
	Signature   *string        `json:"signature,omitempty"`
}

type CRMWebhookResponse struct {
	Status             string  `json:"status"`
	Message            string  `json:"message"`
	YandexDirectTaskID *string `json:"yandex_direct_task_id,omitempty"`
}
