package handler_test

import (
	"context"

	"leadhub.app/aggregator/internal/model"
	"leadhub.app/aggregator/internal/service"
)

type mockLeadIngestService struct {
	ingestFn       func(ctx context.Context, params service.IngestLeadParams) (*service.LeadIngestResult, error)
	capturedParams *service.IngestLeadParams
}

func (m *mockLeadIngestService) Ingest(ctx context.Context, params service.IngestLeadParams) (*service.LeadIngestResult, error) {
	m.capturedParams = &params
	if m.ingestFn != nil {
		return m.ingestFn(ctx, params)
	}
	return &service.LeadIngestResult{Lead: &model.Lead{}}, nil
}

type mockLeadQueryService struct {
	getFn  func(ctx context.Context, leadID string) (*service.LeadDetails, error)
	listFn func(ctx context.Context, params service.ListLeadsParams) (*service.LeadPage, error)
}

func (m *mockLeadQueryService) Get(ctx context.Context, leadID string) (*service.LeadDetails, error) {
	if m.getFn != nil {
		return m.getFn(ctx, leadID)
	}
	return &service.LeadDetails{}, nil
}

func (m *mockLeadQueryService) List(ctx context.Context, params service.ListLeadsParams) (*service.LeadPage, error) {
	if m.listFn != nil {
		return m.listFn(ctx, params)
	}
	return &service.LeadPage{}, nil
}

type mockPaymentService struct {
	registerFn     func(ctx context.Context, params service.RegisterPaymentParams) (*service.RegisterPaymentResult, error)
	capturedParams *service.RegisterPaymentParams
}

func (m *mockPaymentService) RegisterPayment(ctx context.Context, params service.RegisterPaymentParams) (*service.RegisterPaymentResult, error) {
	m.capturedParams = &params
	if m.registerFn != nil {
		return m.registerFn(ctx, params)
	}
	return &service.RegisterPaymentResult{}, nil
}

type mockStatsService struct {
	overviewFn  func(ctx context.Context) (*service.StatsOverview, error)
	dashboardFn func(ctx context.Context) (*service.Dashboard, error)
}

func (m *mockStatsService) Overview(ctx context.Context) (*service.StatsOverview, error) {
	if m.overviewFn != nil {
		return m.overviewFn(ctx)
	}
	return &service.StatsOverview{}, nil
}

func (m *mockStatsService) Dashboard(ctx context.Context) (*service.Dashboard, error) {
	if m.dashboardFn != nil {
		return m.dashboardFn(ctx)
	}
	return &service.Dashboard{}, nil
}
