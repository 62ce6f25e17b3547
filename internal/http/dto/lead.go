package dto

import (
	"leadhub.app/aggregator/internal/model"
)

// LeadFormData is the landing-page form as the pages actually submit it.
// Everything is optional; custom_fields carries whatever extra inputs a
// particular landing collects.
type LeadFormData struct {
	Name        *string        `json:"name,omitempty"`
	Email       *string        `json:"email,omitempty"`
	Phone       *string        `json:"phone,omitempty"`
	CampaignID  *string        `json:"campaign_id,omitempty"`
	LandingID   *string        `json:"landing_id,omitempty"`
	UTMCampaign *string        `json:"utm_campaign,omitempty"`
	UTMSource   *string        `json:"utm_source,omitempty"`
	UTMMedium   *string        `json:"utm_medium,omitempty"`
	Custom      map[string]any `json:"custom_fields,omitempty"`
}

// AsMap flattens the form into the map the services and field mappings work
// with. Unset fields are dropped; custom fields keep their nesting.
func (f LeadFormData) AsMap() map[string]any {
	m := make(map[string]any)
	put := func(key string, v *string) {
		if v != nil {
			m[key] = *v
		}
	}
	put("name", f.Name)
	put("email", f.Email)
	put("phone", f.Phone)
	put("campaign_id", f.CampaignID)
	put("landing_id", f.LandingID)
	put("utm_campaign", f.UTMCampaign)
	put("utm_source", f.UTMSource)
	put("utm_medium", f.UTMMedium)
	if len(f.Custom) > 0 {
		m["custom_fields"] = f.Custom
	}
	return m
}

type CreateLeadRequest struct {
	FormData   LeadFormData `json:"form_data" binding:"required"`
	LandingID  string       `json:"landing_id"`
	CampaignID *string      `json:"campaign_id,omitempty"`
}

type CreateLeadResponse struct {
	LeadID       string  `json:"lead_id"`
	CampaignID   *string `json:"campaign_id,omitempty"`
	Status       string  `json:"status"`
	Message      string  `json:"message"`
	TaskID       *string `json:"task_id,omitempty"`
	QueuedForCRM bool    `json:"queued_for_crm"`
}

type LeadDetailsResponse struct {
	Lead       *model.Lead   `json:"lead"`
	Events     []model.Event `json:"events"`
	EventCount int           `json:"event_count"`
}

type ListLeadsResponse struct {
	Leads  []model.Lead `json:"leads"`
	Total  int64        `json:"total"`
	Limit  int32        `json:"limit"`
	Offset int32        `json:"offset"`
}
