package clinic

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wolfman30/healthvoice-triage/internal/appointments"
	"github.com/wolfman30/healthvoice-triage/internal/events"
)

type countingRefresher struct{ n atomic.Int32 }

func (c *countingRefresher) Refresh(ctx context.Context) error {
	c.n.Add(1)
	return nil
}

func TestPollerSchedule(t *testing.T) {
	target := &countingRefresher{}
	p, err := NewPoller(target, time.Second, nil)
	require.NoError(t, err)
	p.Start()
	defer p.Stop()

	require.Eventually(t, func() bool { return target.n.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestPollerWatchRefreshesOnEvents(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()

	store := appointments.NewInMemoryRepository()
	ctrl := NewController(store, appointments.DefaultDoctorID, Options{})
	repo := appointments.WithEvents(store, bus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	envs, err := bus.Subscribe(ctx, events.TopicAppointmentCreated, events.TopicAppointmentUpdated)
	require.NoError(t, err)

	p, err := NewPoller(ctrl, time.Hour, nil)
	require.NoError(t, err)
	go p.Watch(ctx, envs)

	_, err = repo.Create(context.Background(), appointments.CreateRequest{
		PatientID:       "u1",
		PatientName:     "Sarah",
		SymptomsSummary: "Headache",
		IdempotencyKey:  "sess-1",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(ctrl.Queue().Waiting) == 1 }, 2*time.Second, 20*time.Millisecond)
}
