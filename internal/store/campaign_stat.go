package store

import (
	"context"

	"leadhub.app/aggregator/core/db"
	"leadhub.app/aggregator/internal/model"
)

type campaignStatStore struct {
	q db.Querier
}

func newCampaignStatStore(q db.Querier) CampaignStatStore {
	return &campaignStatStore{q: q}
}

const campaignStatColumns = `id, campaign_id, total_leads, total_payments, total_revenue, last_lead_at, last_payment_at, created_at, updated_at`

// IncrementLeads upserts in one statement; the id is only used when this is
// the first sighting of the campaign.
func (s *campaignStatStore) IncrementLeads(ctx context.Context, id int64, campaignID string) (*model.CampaignStat, error) {
	row := s.q.QueryRow(ctx, `
		INSERT INTO campaign_stats (id, campaign_id, total_leads, last_lead_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (campaign_id) DO UPDATE
		SET total_leads = campaign_stats.total_leads + 1,
		    last_lead_at = now(),
		    updated_at = now()
		RETURNING `+campaignStatColumns,
		id, campaignID,
	)
	return scanCampaignStat(row)
}

func (s *campaignStatStore) IncrementPayments(ctx context.Context, id int64, campaignID string, amount float64) (*model.CampaignStat, error) {
	row := s.q.QueryRow(ctx, `
		INSERT INTO campaign_stats (id, campaign_id, total_payments, total_revenue, last_payment_at)
		VALUES ($1, $2, 1, $3, now())
		ON CONFLICT (campaign_id) DO UPDATE
		SET total_payments = campaign_stats.total_payments + 1,
		    total_revenue = campaign_stats.total_revenue + EXCLUDED.total_revenue,
		    last_payment_at = now(),
		    updated_at = now()
		RETURNING `+campaignStatColumns,
		id, campaignID, amount,
	)
	return scanCampaignStat(row)
}

func (s *campaignStatStore) List(ctx context.Context) ([]model.CampaignStat, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+campaignStatColumns+`
		FROM campaign_stats
		ORDER BY total_leads DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []model.CampaignStat
	for rows.Next() {
		stat, err := scanCampaignStat(rows)
		if err != nil {
			return nil, err
		}
		stats = append(stats, *stat)
	}
	return stats, rows.Err()
}

func scanCampaignStat(row scanner) (*model.CampaignStat, error) {
	var stat model.CampaignStat
	err := row.Scan(
		&stat.ID, &stat.CampaignID, &stat.TotalLeads, &stat.TotalPayments,
		&stat.TotalRevenue, &stat.LastLeadAt, &stat.LastPaymentAt,
		&stat.CreatedAt, &stat.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &stat, nil
}
