package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"leadhub.app/aggregator/core/db"
	"leadhub.app/aggregator/internal/model"
)

type leadStore struct {
	q db.Querier
}

func newLeadStore(q db.Querier) LeadStore {
	return &leadStore{q: q}
}

const leadColumns = `id, lead_id, campaign_id, landing_id, form_data, status, crm_id, payment_amount, payment_date, created_at, updated_at`

func (s *leadStore) Create(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	formData, err := marshalJSONB(lead.FormData)
	if err != nil {
		return nil, fmt.Errorf("encoding form data: %w", err)
	}

	row := s.q.QueryRow(ctx, `
		INSERT INTO leads (id, lead_id, campaign_id, landing_id, form_data, status)
		VALUES ($1, $2, $3, $4, COALESCE($5, '{}'::jsonb), $6)
		RETURNING `+leadColumns,
		lead.ID, lead.LeadID, lead.CampaignID, lead.LandingID, formData, lead.Status,
	)
	return scanLead(row)
}

func (s *leadStore) GetByLeadID(ctx context.Context, leadID string) (*model.Lead, error) {
	row := s.q.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE lead_id = $1`,
		leadID,
	)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return lead, nil
}

// UpdateStatus bumps status and updated_at; crm_id and the payment fields
// are only written when the params carry them.
func (s *leadStore) UpdateStatus(ctx context.Context, params UpdateLeadStatusParams) (*model.Lead, error) {
	row := s.q.QueryRow(ctx, `
		UPDATE leads
		SET status = $2,
		    crm_id = COALESCE($3, crm_id),
		    payment_amount = COALESCE($4, payment_amount),
		    payment_date = COALESCE($5, payment_date),
		    updated_at = now()
		WHERE lead_id = $1
		RETURNING `+leadColumns,
		params.LeadID, params.Status, params.CRMID, params.PaymentAmount, params.PaymentDate,
	)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return lead, nil
}

func (s *leadStore) List(ctx context.Context, params ListLeadsParams) ([]model.Lead, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE ($1::text IS NULL OR campaign_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`,
		params.CampaignID, params.Status, params.Limit, params.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *lead)
	}
	return leads, rows.Err()
}

func (s *leadStore) Count(ctx context.Context, campaignID, status *string) (int64, error) {
	var count int64
	err := s.q.QueryRow(ctx, `
		SELECT count(*)
		FROM leads
		WHERE ($1::text IS NULL OR campaign_id = $1)
		  AND ($2::text IS NULL OR status = $2)`,
		campaignID, status,
	).Scan(&count)
	return count, err
}

func (s *leadStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := s.q.Query(ctx, `SELECT status, count(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func scanLead(row scanner) (*model.Lead, error) {
	var lead model.Lead
	var formData []byte

	err := row.Scan(
		&lead.ID, &lead.LeadID, &lead.CampaignID, &lead.LandingID, &formData,
		&lead.Status, &lead.CRMID, &lead.PaymentAmount, &lead.PaymentDate,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(formData, &lead.FormData); err != nil {
		return nil, fmt.Errorf("decoding form data: %w", err)
	}
	return &lead, nil
}
