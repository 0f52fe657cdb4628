package appointments

import (
	"time"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// DefaultDoctorID receives every appointment when no doctor is configured.
const DefaultDoctorID = "d1"

// TimeSlotLayout is the 24h clock format of TimeSlot, so string order is
// chronological order.
const TimeSlotLayout = "15:04"

// DateLayout is the calendar format of Date.
const DateLayout = "2006-01-02"

// Appointment is one entry of the clinic queue. Only Status and Notes
// change after creation.
type Appointment struct {
	ID              string    `json:"id"`
	PatientID       string    `json:"patient_id"`
	PatientName     string    `json:"patient_name"`
	DoctorID        string    `json:"doctor_id"`
	Date            string    `json:"date"`
	TimeSlot        string    `json:"time_slot"`
	Status          Status    `json:"status"`
	SymptomsSummary string    `json:"symptoms_summary"`
	Notes           string    `json:"notes,omitempty"`
	Version         int64     `json:"version"`
	Sequence        int64     `json:"sequence"`
	IdempotencyKey  string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateRequest describes a new appointment.
type CreateRequest struct {
	PatientID       string `json:"patient_id" validate:"required,max=128"`
	PatientName     string `json:"patient_name" validate:"required,max=256"`
	SymptomsSummary string `json:"symptoms_summary" validate:"required"`
	// IdempotencyKey makes Create return the existing record for a repeated key.
	IdempotencyKey string `json:"idempotency_key,omitempty" validate:"max=128"`
}
