package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublishRoutesByType(t *testing.T) {
	hub := NewHub()
	payments, err := hub.Subscribe("payment.updated")
	require.NoError(t, err)
	defer payments.Close()
	all, err := hub.Subscribe()
	require.NoError(t, err)
	defer all.Close()

	n := hub.Publish(context.Background(), Event{Type: "booking.created", Payload: json.RawMessage(`{"id":"BK1"}`)})
	assert.Equal(t, 1, n)

	got := <-all.Events()
	assert.Equal(t, "booking.created", got.Type)
	assert.JSONEq(t, `{"id":"BK1"}`, string(got.Payload))
	assert.Len(t, payments.Events(), 0)

	n = hub.Publish(context.Background(), Event{Type: "payment.updated", Payload: json.RawMessage(`{}`)})
	assert.Equal(t, 2, n)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub()
	assert.Equal(t, 0, hub.Publish(context.Background(), Event{Type: "x"}))

	var nilHub *Hub
	assert.Equal(t, 0, nilHub.Publish(context.Background(), Event{Type: "x"}))
	_, err := nilHub.Subscribe()
	assert.ErrorIs(t, err, ErrHubUnavailable)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	sub, err := hub.Subscribe()
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < DefaultSubscriberBuffer; i++ {
		assert.Equal(t, 1, hub.Publish(context.Background(), Event{Type: "x"}))
	}
	assert.Equal(t, 0, hub.Publish(context.Background(), Event{Type: "x"}))
}

func TestCloseUnsubscribes(t *testing.T) {
	hub := NewHub()
	sub, err := hub.Subscribe("a")
	require.NoError(t, err)
	assert.Equal(t, 1, hub.SubscriberCount())
	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestBridgeRelaySkipsOwnOrigin(t *testing.T) {
	hub := NewHub()
	sub, err := hub.Subscribe()
	require.NoError(t, err)
	defer sub.Close()
	bridge := NewRedisBridge(hub, nil, zap.NewNop())

	own, _ := json.Marshal(wireEvent{Origin: bridge.origin, Event: Event{Type: "mine"}})
	bridge.relay(context.Background(), string(own))
	assert.Len(t, sub.Events(), 0)

	other, _ := json.Marshal(wireEvent{Origin: "replica-2", Event: Event{Type: "theirs"}})
	bridge.relay(context.Background(), string(other))
	require.Len(t, sub.Events(), 1)
	assert.Equal(t, "theirs", (<-sub.Events()).Type)

	bridge.relay(context.Background(), "not json")
	assert.Len(t, sub.Events(), 0)
}
