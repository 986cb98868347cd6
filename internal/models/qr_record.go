// Package models provides data models for the QR hub.
package models

import (
	"encoding/json"
	"time"

	"github.com/qr-hub/internal/types"
)

// QRRecord is a printed QR code: an immutable slug pointing at a mutable destination
type QRRecord struct {
	ID                string                  `json:"id" db:"id"`
	OwnerID           string                  `json:"user_id" db:"user_id"`
	Slug              string                  `json:"slug" db:"slug"`
	Name              string                  `json:"name" db:"name"`
	Type              types.QRType            `json:"type" db:"type"`
	DestinationConfig types.DestinationConfig `json:"destination_config" db:"destination_config"`
	IsActive          bool                    `json:"is_active" db:"is_active"`
	ScanCount         int64                   `json:"scan_count" db:"scan_count"`
	CreatedAt         time.Time               `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at" db:"updated_at"`
}

// UnmarshalJSON decodes destination_config into the variant named by type
func (r *QRRecord) UnmarshalJSON(data []byte) error {
	type alias QRRecord
	aux := struct {
		*alias
		DestinationConfig json.RawMessage `json:"destination_config"`
	}{alias: (*alias)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	cfg, err := types.DecodeDestinationConfig(r.Type, aux.DestinationConfig)
	if err != nil {
		return err
	}
	r.DestinationConfig = cfg
	return nil
}

// Clone returns a deep copy of the record
func (r *QRRecord) Clone() *QRRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.DestinationConfig = types.CloneDestinationConfig(r.DestinationConfig)
	return &c
}

// QRPatch is a partial update of a record. Nil fields are left unchanged.
type QRPatch struct {
	Name              *string
	DestinationConfig types.DestinationConfig
	IsActive          *bool
}

// IsEmpty reports whether the patch changes nothing
func (p QRPatch) IsEmpty() bool {
	return p.Name == nil && p.DestinationConfig == nil && p.IsActive == nil
}
