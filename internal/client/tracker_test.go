package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeConal/smart-restaurant/internal/order"
)

func TestTrackKeepsExistingEntry(t *testing.T) {
	cache := NewCache(NewMemStore())
	tracker := NewTracker(cache, "ws://unused/ws", "http://unused")

	rich := sampleOrder("o1", order.StatusPreparing)
	require.NoError(t, tracker.Track(rich))

	// Re-tracking with a bare placeholder, as a restart with -track does,
	// must not wipe the accumulated entry.
	require.NoError(t, tracker.Track(&order.Order{ID: "o1", Status: order.StatusPendingAcceptance}))

	entry, err := cache.Load("o1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, order.StatusPreparing, entry.Status)
	assert.Equal(t, rich.Total, entry.Total)
	assert.Len(t, entry.Items, 1)
}

func TestTrackNewOrderSaves(t *testing.T) {
	cache := NewCache(NewMemStore())
	tracker := NewTracker(cache, "ws://unused/ws", "http://unused")

	require.NoError(t, tracker.Track(sampleOrder("o1", order.StatusAccepted)))

	ids, err := cache.TrackedIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, ids)
}
