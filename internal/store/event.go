package store

import (
	"context"
	"encoding/json"
	"fmt"

	"leadhub.app/aggregator/core/db"
	"leadhub.app/aggregator/internal/model"
)

type eventStore struct {
	q db.Querier
}

func newEventStore(q db.Querier) EventStore {
	return &eventStore{q: q}
}

const eventColumns = `id, event_id, aggregate_id, event_type, payload, version, metadata, created_at`

func (s *eventStore) Append(ctx context.Context, event *model.Event) (*model.Event, error) {
	payload, err := marshalJSONB(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("encoding event payload: %w", err)
	}
	metadata, err := marshalJSONB(event.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encoding event metadata: %w", err)
	}

	row := s.q.QueryRow(ctx, `
		INSERT INTO events (id, event_id, aggregate_id, event_type, payload, version, metadata)
		VALUES ($1, $2, $3, $4, COALESCE($5, '{}'::jsonb), $6, $7)
		RETURNING `+eventColumns,
		event.ID, event.EventID, event.AggregateID, event.EventType, payload, event.Version, metadata,
	)
	return scanEvent(row)
}

func (s *eventStore) ListByAggregate(ctx context.Context, aggregateID string) ([]model.Event, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE aggregate_id = $1
		ORDER BY created_at ASC, id ASC`,
		aggregateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

func (s *eventStore) ListAll(ctx context.Context, limit, offset int32) ([]model.Event, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

func (s *eventStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.q.QueryRow(ctx, `SELECT count(*) FROM events`).Scan(&count)
	return count, err
}

func (s *eventStore) CountByType(ctx context.Context) (map[string]int64, error) {
	rows, err := s.q.Query(ctx, `SELECT event_type, count(*) FROM events GROUP BY event_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var eventType string
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, err
		}
		counts[eventType] = count
	}
	return counts, rows.Err()
}

func scanEvent(row scanner) (*model.Event, error) {
	var event model.Event
	var payload, metadata []byte

	err := row.Scan(
		&event.ID, &event.EventID, &event.AggregateID, &event.EventType,
		&payload, &event.Version, &metadata, &event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(payload, &event.Payload); err != nil {
		return nil, fmt.Errorf("decoding event payload: %w", err)
	}
	if err := unmarshalJSONB(metadata, &event.Metadata); err != nil {
		return nil, fmt.Errorf("decoding event metadata: %w", err)
	}
	return &event, nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// marshalJSONB keeps nil maps as SQL NULL instead of the string "null".
func marshalJSONB(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalJSONB(data []byte, dest *map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}
