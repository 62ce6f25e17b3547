package store

import (
	"leadhub.app/aggregator/core/db"
)

type Stores struct {
	q db.Querier
}

// NewStores binds the stores to a querier. Pass the pool for standalone
// operations or a transaction (via db.WithTx) for multi-write atomicity.
func NewStores(q db.Querier) *Stores {
	return &Stores{q: q}
}

func (s *Stores) Events() EventStore {
	return newEventStore(s.q)
}

func (s *Stores) Leads() LeadStore {
	return newLeadStore(s.q)
}

func (s *Stores) CampaignStats() CampaignStatStore {
	return newCampaignStatStore(s.q)
}

func (s *Stores) Tasks() TaskStore {
	return newTaskStore(s.q)
}
