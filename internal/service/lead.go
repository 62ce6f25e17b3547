package service

import (
	"context"
	"errors"
	"fmt"

	"leadhub.app/aggregator/internal/apperr"
	"leadhub.app/aggregator/internal/model"
	"leadhub.app/aggregator/internal/store"
)

const defaultLeadPageSize = 100

type LeadDetails struct {
	Lead       *model.Lead
	Events     []model.Event
	EventCount int
}

type LeadPage struct {
	Leads  []model.Lead
	Total  int64
	Limit  int32
	Offset int32
}

type ListLeadsParams struct {
	CampaignID *string
	Status     *string
	Limit      int32
	Offset     int32
}

// LeadQueryService answers read requests against the lead projection and
// the event log.
type LeadQueryService interface {
	Get(ctx context.Context, leadID string) (*LeadDetails, error)
	List(ctx context.Context, params ListLeadsParams) (*LeadPage, error)
}

type leadQueryService struct {
	leads  store.LeadStore
	events store.EventStore
}

func NewLeadQueryService(leads store.LeadStore, events store.EventStore) LeadQueryService {
	return &leadQueryService{leads: leads, events: events}
}

func (s *leadQueryService) Get(ctx context.Context, leadID string) (*LeadDetails, error) {
	lead, err := s.leads.GetByLeadID(ctx, leadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("lead %s not found", leadID)
		}
		return nil, fmt.Errorf("fetching lead: %w", err)
	}

	events, err := s.events.ListByAggregate(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("listing lead events: %w", err)
	}

	return &LeadDetails{
		Lead:       lead,
		Events:     events,
		EventCount: len(events),
	}, nil
}

func (s *leadQueryService) List(ctx context.Context, params ListLeadsParams) (*LeadPage, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultLeadPageSize
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	leads, err := s.leads.List(ctx, store.ListLeadsParams{
		CampaignID: params.CampaignID,
		Status:     params.Status,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, fmt.Errorf("listing leads: %w", err)
	}

	total, err := s.leads.Count(ctx, params.CampaignID, params.Status)
	if err != nil {
		return nil, fmt.Errorf("counting leads: %w", err)
	}

	if leads == nil {
		leads = []model.Lead{}
	}

	return &LeadPage{
		Leads:  leads,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}
