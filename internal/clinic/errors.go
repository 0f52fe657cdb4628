package clinic

import "errors"

var (
	// ErrQueueEmpty is returned by CallNextPatient when nobody is waiting.
	ErrQueueEmpty = errors.New("clinic: queue empty")
	// ErrConsultationInProgress is returned when another consultation is already open.
	ErrConsultationInProgress = errors.New("clinic: consultation already in progress")
	// ErrNoActiveConsultation is returned by CompleteConsultation without an open consultation.
	ErrNoActiveConsultation = errors.New("clinic: no active consultation")
	// ErrPatientNameRequired is returned by AddPatient for a blank name.
	ErrPatientNameRequired = errors.New("clinic: patient name required")
)
