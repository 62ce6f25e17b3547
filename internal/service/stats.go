package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"leadhub.app/aggregator/common/logger"
	"leadhub.app/aggregator/internal/model"
	"leadhub.app/aggregator/internal/store"
)

const (
	dashboardRecentRows  = 10
	dashboardDetailWidth = 96
)

type StatsOverview struct {
	TotalLeads   int64            `json:"total_leads"`
	TotalEvents  int64            `json:"total_events"`
	LeadStatuses map[string]int64 `json:"lead_statuses"`
	EventTypes   map[string]int64 `json:"event_types"`
	TaskStatuses map[string]int64 `json:"task_statuses"`
	Timestamp    time.Time        `json:"timestamp"`
}

type CampaignRow struct {
	CampaignID     string
	TotalLeads     int64
	TotalPayments  int64
	TotalRevenue   float64
	ConversionRate float64
	LastLeadAt     *time.Time
}

type RecentLead struct {
	LeadID     string
	CampaignID string
	Status     model.LeadStatus
	Contact    string
	CreatedAt  time.Time
}

type RecentEvent struct {
	EventType   model.EventType
	AggregateID string
	Details     string
	CreatedAt   time.Time
}

type Dashboard struct {
	TotalLeads    int64
	TotalPayments int64
	TotalRevenue  float64
	Campaigns     []CampaignRow
	RecentLeads   []RecentLead
	RecentEvents  []RecentEvent
	GeneratedAt   time.Time
}

// StatsService aggregates counters for the stats endpoint and the admin
// dashboard.
type StatsService interface {
	Overview(ctx context.Context) (*StatsOverview, error)
	Dashboard(ctx context.Context) (*Dashboard, error)
}

type statsService struct {
	leads         store.LeadStore
	events        store.EventStore
	campaignStats store.CampaignStatStore
	tasks         store.TaskStore
}

func NewStatsService(leads store.LeadStore, events store.EventStore, campaignStats store.CampaignStatStore, tasks store.TaskStore) StatsService {
	return &statsService{
		leads:         leads,
		events:        events,
		campaignStats: campaignStats,
		tasks:         tasks,
	}
}

func (s *statsService) Overview(ctx context.Context) (*StatsOverview, error) {
	totalLeads, err := s.leads.Count(ctx, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("counting leads: %w", err)
	}

	totalEvents, err := s.events.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}

	leadStatuses, err := s.leads.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting lead statuses: %w", err)
	}

	eventTypes, err := s.events.CountByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting event types: %w", err)
	}

	taskStatuses, err := s.tasks.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting task statuses: %w", err)
	}

	return &StatsOverview{
		TotalLeads:   totalLeads,
		TotalEvents:  totalEvents,
		LeadStatuses: leadStatuses,
		EventTypes:   eventTypes,
		TaskStatuses: taskStatuses,
		Timestamp:    time.Now().UTC(),
	}, nil
}

func (s *statsService) Dashboard(ctx context.Context) (*Dashboard, error) {
	totalLeads, err := s.leads.Count(ctx, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("counting leads: %w", err)
	}

	leadStatuses, err := s.leads.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting lead statuses: %w", err)
	}

	stats, err := s.campaignStats.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing campaign stats: %w", err)
	}

	leads, err := s.leads.List(ctx, store.ListLeadsParams{Limit: dashboardRecentRows})
	if err != nil {
		return nil, fmt.Errorf("listing recent leads: %w", err)
	}

	events, err := s.events.ListAll(ctx, dashboardRecentRows, 0)
	if err != nil {
		return nil, fmt.Errorf("listing recent events: %w", err)
	}

	dashboard := &Dashboard{
		TotalLeads:    totalLeads,
		TotalPayments: leadStatuses[string(model.LeadStatusPaid)],
		Campaigns:     make([]CampaignRow, 0, len(stats)),
		RecentLeads:   make([]RecentLead, 0, len(leads)),
		RecentEvents:  make([]RecentEvent, 0, len(events)),
		GeneratedAt:   time.Now().UTC(),
	}

	for _, stat := range stats {
		row := CampaignRow{
			CampaignID:    stat.CampaignID,
			TotalLeads:    stat.TotalLeads,
			TotalPayments: stat.TotalPayments,
			TotalRevenue:  stat.TotalRevenue,
			LastLeadAt:    stat.LastLeadAt,
		}
		if stat.TotalLeads > 0 {
			row.ConversionRate = float64(stat.TotalPayments) / float64(stat.TotalLeads) * 100
		}
		dashboard.Campaigns = append(dashboard.Campaigns, row)
		dashboard.TotalRevenue += stat.TotalRevenue
	}

	for _, lead := range leads {
		row := RecentLead{
			LeadID:    lead.LeadID,
			Status:    lead.Status,
			Contact:   leadContact(lead.FormData),
			CreatedAt: lead.CreatedAt,
		}
		if lead.CampaignID != nil {
			row.CampaignID = *lead.CampaignID
		}
		dashboard.RecentLeads = append(dashboard.RecentLeads, row)
	}

	for _, event := range events {
		dashboard.RecentEvents = append(dashboard.RecentEvents, RecentEvent{
			EventType:   event.EventType,
			AggregateID: event.AggregateID,
			Details:     eventDetails(event.Payload),
			CreatedAt:   event.CreatedAt,
		})
	}

	return dashboard, nil
}

// leadContact picks whichever contact field the form captured.
func leadContact(form map[string]any) string {
	for _, key := range []string{"name", "email", "phone"} {
		if v, ok := form[key].(string); ok && v != "" {
			return v
		}
	}
	return "-"
}

func eventDetails(payload map[string]any) string {
	if len(payload) == 0 {
		return ""
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return logger.Truncate(string(data), dashboardDetailWidth)
}
