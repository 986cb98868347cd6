package service

import (
	"context"
	"errors"

	apperrors "github.com/qr-hub/internal/errors"
	"github.com/qr-hub/internal/logging"
	"github.com/qr-hub/internal/models"
	"github.com/qr-hub/internal/storage"
	"github.com/qr-hub/internal/types"
)

// AnalyticsEventLimit caps the events returned with analytics
const AnalyticsEventLimit = 100

// EventInput is an interaction reported against a slug
type EventInput struct {
	EventType types.EventType
	Country   string
	UserAgent string
	Metadata  map[string]interface{}
}

// Analytics is an owner's view of one record's activity
type Analytics struct {
	Record *models.QRRecord  `json:"qr"`
	Events []*models.Event   `json:"events"`
	Stats  models.EventStats `json:"stats"`
}

// EventService records interactions and reports analytics
type EventService struct {
	records storage.QRStore
	events  storage.EventLog
	logger  *logging.Logger
}

// NewEventService creates an event service
func NewEventService(records storage.QRStore, events storage.EventLog) *EventService {
	return &EventService{
		records: records,
		events:  events,
		logger:  logging.GetGlobalLogger().WithField("service", "events"),
	}
}

// RecordEvent appends an event for the record behind slug. Unknown slugs are
// ignored and failures are logged, never returned: event tracking must not
// break the caller.
func (s *EventService) RecordEvent(ctx context.Context, slugValue string, in EventInput) {
	logger := logging.FromContext(ctx).WithField("slug", slugValue)

	record, err := s.records.GetBySlug(ctx, slugValue)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.WithError(err).Warn("Failed to look up QR code for event")
		}
		return
	}
	s.RecordForRecord(ctx, record.ID, in)
}

// RecordForRecord appends an event for a known record id, swallowing failures
func (s *EventService) RecordForRecord(ctx context.Context, recordID string, in EventInput) {
	eventType := in.EventType
	if !eventType.IsValid() {
		eventType = types.EventScan
	}

	event := &models.Event{
		QRCodeID:  recordID,
		EventType: eventType,
		Country:   in.Country,
		UserAgent: in.UserAgent,
		Metadata:  in.Metadata,
	}
	if err := s.events.Append(ctx, event); err != nil {
		logging.FromContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"qrId":      recordID,
			"eventType": eventType,
		}).Warn("Failed to record QR event")
	}
}

// Analytics returns the record with its most recent events. Only the owner may read it.
func (s *EventService) Analytics(ctx context.Context, slugValue, ownerID string) (*Analytics, error) {
	record, err := ownedBySlug(ctx, s.records, slugValue, ownerID)
	if err != nil {
		return nil, err
	}

	events, err := s.events.ListByRecord(ctx, record.ID, AnalyticsEventLimit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list QR events", err)
	}
	if events == nil {
		events = []*models.Event{}
	}

	return &Analytics{
		Record: record,
		Events: events,
		Stats: models.EventStats{
			TotalScans:   record.ScanCount,
			RecentEvents: len(events),
		},
	}, nil
}
