package appointments

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/healthvoice-triage/internal/events"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.CanonicalEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, aggregate string, evt events.CanonicalEvent, opts ...events.EnvelopeOption) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func TestEventedRepositoryPublishesMutations(t *testing.T) {
	pub := &recordingPublisher{}
	repo := WithEvents(NewInMemoryRepository(), pub, nil)
	ctx := context.Background()

	appt, err := repo.Create(ctx, CreateRequest{PatientID: "u1", PatientName: "Sarah", SymptomsSummary: "Headache"})
	require.NoError(t, err)
	started, _ := Transition(*appt, StatusInProgress, nil)
	_, err = repo.Update(ctx, started)
	require.NoError(t, err)

	require.Len(t, pub.events, 2)
	created, ok := pub.events[0].(events.AppointmentCreatedV1)
	require.True(t, ok)
	assert.Equal(t, appt.ID, created.AppointmentID)
	updated, ok := pub.events[1].(events.AppointmentUpdatedV1)
	require.True(t, ok)
	assert.Equal(t, "in-progress", updated.Status)
	assert.Equal(t, int64(2), updated.Version)
}

func TestEventedRepositorySkipsFailedWritesAndToleratesPublishErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("bus closed")}
	repo := WithEvents(NewInMemoryRepository(), pub, nil)
	ctx := context.Background()

	_, err := repo.Update(ctx, Appointment{ID: "missing", Version: 1})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, pub.events)

	_, err = repo.Create(ctx, CreateRequest{PatientID: "u1", PatientName: "Sarah", SymptomsSummary: "Headache"})
	require.NoError(t, err, "publish failures must not fail the write")
	assert.Len(t, pub.events, 1)
}
