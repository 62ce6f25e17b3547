package model

import "time"

// CampaignStat is a per-campaign rollup projection. Counters only ever move
// through atomic upserts, so concurrent ingests and payments never lose
// increments.
type CampaignStat struct {
	ID            int64      `json:"id"`
	CampaignID    string     `json:"campaign_id"`
	TotalLeads    int64      `json:"total_leads"`
	TotalPayments int64      `json:"total_payments"`
	TotalRevenue  float64    `json:"total_revenue"`
	LastLeadAt    *time.Time `json:"last_lead_at,omitempty"`
	LastPaymentAt *time.Time `json:"last_payment_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
