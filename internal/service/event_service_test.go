package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/qr-hub/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventService_RecordAndAnalytics(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rec := h.create(t, ownerA, types.QRTypeFiat, fiatConfig)

	_, err := h.resolver.Resolve(ctx, rec.Slug)
	require.NoError(t, err)

	h.eventsSvc.RecordEvent(ctx, rec.Slug, EventInput{
		EventType: types.EventScan,
		Country:   "DE",
		UserAgent: "test-agent",
	})
	h.eventsSvc.RecordEvent(ctx, rec.Slug, EventInput{
		EventType: types.EventPaid,
		Metadata:  map[string]interface{}{"session_id": "cs_test"},
	})

	analytics, err := h.eventsSvc.Analytics(ctx, rec.Slug, ownerA)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, analytics.Record.ID)
	require.Len(t, analytics.Events, 2)
	assert.Equal(t, types.EventPaid, analytics.Events[0].EventType, "newest first")
	assert.Equal(t, "DE", analytics.Events[1].Country)
	assert.Equal(t, int64(1), analytics.Stats.TotalScans)
	assert.Equal(t, 2, analytics.Stats.RecentEvents)
}

func TestEventService_DefaultsAndUnknownSlug(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rec := h.create(t, ownerA, types.QRTypeFiat, fiatConfig)

	h.eventsSvc.RecordEvent(ctx, rec.Slug, EventInput{EventType: "bogus"})
	h.eventsSvc.RecordEvent(ctx, "missing1", EventInput{EventType: types.EventClicked})

	events, err := h.events.ListByRecord(ctx, rec.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventScan, events[0].EventType)
}

func TestEventService_AnalyticsOwnerOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rec := h.create(t, ownerA, types.QRTypeFiat, fiatConfig)

	_, err := h.eventsSvc.Analytics(ctx, rec.Slug, ownerB)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = h.eventsSvc.Analytics(ctx, "missing1", ownerA)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	analytics, err := h.eventsSvc.Analytics(ctx, rec.Slug, ownerA)
	require.NoError(t, err)
	assert.NotNil(t, analytics.Events)
	assert.Empty(t, analytics.Events)
}

func TestEventService_AnalyticsCapsEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rec := h.create(t, ownerA, types.QRTypeFiat, fiatConfig)

	for i := 0; i < AnalyticsEventLimit+20; i++ {
		h.eventsSvc.RecordForRecord(ctx, rec.ID, EventInput{EventType: types.EventClicked})
	}

	analytics, err := h.eventsSvc.Analytics(ctx, rec.Slug, ownerA)
	require.NoError(t, err)
	assert.Len(t, analytics.Events, AnalyticsEventLimit)
	assert.Equal(t, AnalyticsEventLimit, analytics.Stats.RecentEvents)
}
