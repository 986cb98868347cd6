package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qr-hub/internal/models"
	"github.com/qr-hub/internal/types"
)

// EventRepository is the Postgres EventLog
type EventRepository struct {
	db *PostgresDB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *PostgresDB) *EventRepository {
	return &EventRepository{db: db}
}

// Append inserts an event, filling in id, type and timestamp defaults
func (r *EventRepository) Append(ctx context.Context, event *models.Event) error {
	prepareEvent(event)

	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal event metadata: %w", err)
	}

	query := `
		INSERT INTO qr_events (id, qr_code_id, event_type, country, user_agent, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.Pool().Exec(ctx, query,
		event.ID,
		event.QRCodeID,
		event.EventType,
		event.Country,
		event.UserAgent,
		metadataJSON,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ListByRecord returns the newest events for a record
func (r *EventRepository) ListByRecord(ctx context.Context, qrCodeID string, limit int) ([]*models.Event, error) {
	if _, err := uuid.Parse(qrCodeID); err != nil {
		return []*models.Event{}, nil
	}

	query := `
		SELECT id, qr_code_id, event_type, country, user_agent, metadata, created_at
		FROM qr_events
		WHERE qr_code_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, qrCodeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.Event, 0)
	for rows.Next() {
		var (
			event        models.Event
			eventType    string
			metadataJSON []byte
		)
		if err := rows.Scan(
			&event.ID,
			&event.QRCodeID,
			&eventType,
			&event.Country,
			&event.UserAgent,
			&metadataJSON,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.EventType = types.EventType(eventType)
		event.Metadata = decodeMetadata(metadataJSON)
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// prepareEvent applies the defaults shared by every EventLog backend
func prepareEvent(event *models.Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.EventType == "" {
		event.EventType = types.EventScan
	}
	if event.Metadata == nil {
		event.Metadata = map[string]interface{}{}
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
}

func decodeMetadata(data []byte) map[string]interface{} {
	metadata := map[string]interface{}{}
	if len(data) > 0 {
		_ = json.Unmarshal(data, &metadata)
	}
	return metadata
}
