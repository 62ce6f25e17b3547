package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusSentToCRM LeadStatus = "sent_to_crm"
	LeadStatusPaid      LeadStatus = "paid"
)

// Lead is the read-model projection of a captured lead. It is derived from
// the event log and updated in the same transaction as the corresponding
// event append.
type Lead struct {
	ID            int64          `json:"id"`
	LeadID        string         `json:"lead_id"`
	CampaignID    *string        `json:"campaign_id,omitempty"`
	LandingID     string         `json:"landing_id"`
	FormData      map[string]any `json:"form_data"`
	Status        LeadStatus     `json:"status"`
	CRMID         *string        `json:"crm_id,omitempty"`
	PaymentAmount *float64       `json:"payment_amount,omitempty"`
	PaymentDate   *time.Time     `json:"payment_date,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewLeadID generates a public lead identifier of the form "lead_3f2a9c1b".
// Short enough to read back over the phone, random enough to never collide
// in practice.
func NewLeadID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("lead_%s", hex[:8])
}
