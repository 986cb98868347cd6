package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/qr-hub/internal/models"
	"github.com/qr-hub/internal/types"
)

// ClickHouseEventRepository is the analytics-grade EventLog backend
type ClickHouseEventRepository struct {
	db *ClickHouseDB
}

// NewClickHouseEventRepository creates a ClickHouse event log
func NewClickHouseEventRepository(db *ClickHouseDB) *ClickHouseEventRepository {
	return &ClickHouseEventRepository{db: db}
}

// Append writes one event as a single-row batch
func (r *ClickHouseEventRepository) Append(ctx context.Context, event *models.Event) error {
	prepareEvent(event)

	id, err := uuid.Parse(event.ID)
	if err != nil {
		return fmt.Errorf("invalid event id %q: %w", event.ID, err)
	}
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal event metadata: %w", err)
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO qr_events (id, qr_code_id, event_type, country, user_agent, metadata, created_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	if err := batch.Append(
		id,
		event.QRCodeID,
		string(event.EventType),
		event.Country,
		event.UserAgent,
		string(metadataJSON),
		event.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to append to batch: %w", err)
	}

	return batch.Send()
}

// ListByRecord returns the newest events for a record
func (r *ClickHouseEventRepository) ListByRecord(ctx context.Context, qrCodeID string, limit int) ([]*models.Event, error) {
	query := `
		SELECT id, qr_code_id, event_type, country, user_agent, metadata, created_at
		FROM qr_events
		WHERE qr_code_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.Conn().Query(ctx, query, qrCodeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	events := make([]*models.Event, 0)
	for rows.Next() {
		var (
			event     models.Event
			id        uuid.UUID
			eventType string
			metadata  string
		)
		if err := rows.Scan(&id, &event.QRCodeID, &eventType, &event.Country, &event.UserAgent, &metadata, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.ID = id.String()
		event.EventType = types.EventType(eventType)
		event.Metadata = decodeMetadata([]byte(metadata))
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}
