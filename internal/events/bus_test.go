package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus(nil)
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	envs, err := bus.Subscribe(ctx, TopicAppointmentCreated, TopicAppointmentUpdated)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "appointment:appt-1", AppointmentCreatedV1{AppointmentID: "appt-1", Status: "scheduled", Version: 1}))
	require.NoError(t, bus.Publish(ctx, "appointment:appt-1", AppointmentUpdatedV1{AppointmentID: "appt-1", Status: "in-progress", Version: 2}))

	seen := map[string]Envelope{}
	timeout := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case env := <-envs:
			seen[env.EventType] = env
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %d", len(seen))
		}
	}

	var updated AppointmentUpdatedV1
	require.NoError(t, seen[TopicAppointmentUpdated].Decode(&updated))
	assert.Equal(t, "in-progress", updated.Status)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, "appointment:appt-1", seen[TopicAppointmentCreated].Aggregate)
}

func TestBusSubscriptionClosesWithContext(t *testing.T) {
	bus := NewBus(nil)
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	envs, err := bus.Subscribe(ctx, TopicAppointmentCreated)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-envs:
		assert.False(t, ok, "expected channel closed after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not close")
	}
}

func TestBusPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus(nil)
	t.Cleanup(func() { _ = bus.Close() })
	require.NoError(t, bus.Publish(context.Background(), "appointment:x", AppointmentCreatedV1{AppointmentID: "x"}))
}
