package models

import (
	"time"

	"github.com/qr-hub/internal/types"
)

// Event is an append-only interaction recorded against a QR record
type Event struct {
	ID        string                 `json:"id" db:"id"`
	QRCodeID  string                 `json:"qr_code_id" db:"qr_code_id"`
	EventType types.EventType        `json:"event_type" db:"event_type"`
	Country   string                 `json:"country" db:"country"`
	UserAgent string                 `json:"user_agent" db:"user_agent"`
	Metadata  map[string]interface{} `json:"metadata" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// EventStats summarizes a record's activity
type EventStats struct {
	TotalScans   int64 `json:"totalScans"`
	RecentEvents int   `json:"recentEvents"`
}
