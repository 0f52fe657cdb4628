package appointments

import (
	"context"

	"github.com/wolfman30/healthvoice-triage/internal/events"
	"github.com/wolfman30/healthvoice-triage/pkg/logging"
)

// EventedRepository announces every successful mutation on the event bus.
// Publishing failures are logged; the write has already happened.
type EventedRepository struct {
	Repository
	publisher events.Publisher
	logger    *logging.Logger
}

// WithEvents wraps repo so creates and updates are published.
func WithEvents(repo Repository, publisher events.Publisher, logger *logging.Logger) *EventedRepository {
	if logger == nil {
		logger = logging.Default()
	}
	return &EventedRepository{Repository: repo, publisher: publisher, logger: logger}
}

// Create stores the appointment and publishes appointment.created.v1.
// A repeated idempotency key announces the existing record again.
func (r *EventedRepository) Create(ctx context.Context, req CreateRequest) (*Appointment, error) {
	appt, err := r.Repository.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	r.publish(ctx, appt.ID, events.AppointmentCreatedV1{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		PatientName:   appt.PatientName,
		DoctorID:      appt.DoctorID,
		Status:        string(appt.Status),
		TimeSlot:      appt.TimeSlot,
		Version:       appt.Version,
		CreatedAt:     appt.CreatedAt,
	})
	return appt, nil
}

// Update stores the change and publishes appointment.updated.v1.
func (r *EventedRepository) Update(ctx context.Context, a Appointment) (*Appointment, error) {
	appt, err := r.Repository.Update(ctx, a)
	if err != nil {
		return nil, err
	}
	r.publish(ctx, appt.ID, events.AppointmentUpdatedV1{
		AppointmentID: appt.ID,
		DoctorID:      appt.DoctorID,
		Status:        string(appt.Status),
		Version:       appt.Version,
		UpdatedAt:     appt.UpdatedAt,
	})
	return appt, nil
}

func (r *EventedRepository) publish(ctx context.Context, id string, evt events.CanonicalEvent) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, "appointment:"+id, evt); err != nil {
		r.logger.Warn("appointment event publish failed", "appointment_id", id, "event_type", evt.EventType(), "error", err)
	}
}
