package events

import "time"

const (
	TopicAppointmentCreated = "appointment.created.v1"
	TopicAppointmentUpdated = "appointment.updated.v1"
)

// AppointmentCreatedV1 is emitted when a booking or walk-in enters the queue.
type AppointmentCreatedV1 struct {
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	PatientName   string    `json:"patient_name"`
	DoctorID      string    `json:"doctor_id"`
	Status        string    `json:"status"`
	TimeSlot      string    `json:"time_slot"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
}

func (AppointmentCreatedV1) EventType() string {
	return TopicAppointmentCreated
}

// AppointmentUpdatedV1 is emitted after every accepted status or notes change.
type AppointmentUpdatedV1 struct {
	AppointmentID string    `json:"appointment_id"`
	DoctorID      string    `json:"doctor_id"`
	Status        string    `json:"status"`
	Version       int64     `json:"version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (AppointmentUpdatedV1) EventType() string {
	return TopicAppointmentUpdated
}
