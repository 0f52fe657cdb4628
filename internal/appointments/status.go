package appointments

import (
	"fmt"
)

var statusRank = map[Status]int{
	StatusScheduled:  0,
	StatusInProgress: 1,
	StatusCompleted:  2,
}

// CanTransition permits staying in the same state (notes annotation) and a
// single forward step. Nothing moves backwards.
func CanTransition(from, to Status) bool {
	f, okFrom := statusRank[from]
	t, okTo := statusRank[to]
	if !okFrom || !okTo {
		return false
	}
	return t == f || t == f+1
}

// Transition returns a copy of a moved to status to. A non-nil notes
// replaces the notes verbatim.
func Transition(a Appointment, to Status, notes *string) (Appointment, error) {
	if !CanTransition(a.Status, to) {
		return Appointment{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
	}
	next := a
	next.Status = to
	if notes != nil {
		next.Notes = *notes
	}
	return next, nil
}

// checkUpdate validates next against the stored record. Every store calls
// it before writing.
func checkUpdate(stored, next Appointment) error {
	if next.Version != stored.Version {
		return fmt.Errorf("%w: %s has version %d, update carries %d", ErrConflict, stored.ID, stored.Version, next.Version)
	}
	switch {
	case next.PatientID != stored.PatientID:
		return fmt.Errorf("%w: patient_id", ErrImmutableField)
	case next.PatientName != stored.PatientName:
		return fmt.Errorf("%w: patient_name", ErrImmutableField)
	case next.DoctorID != stored.DoctorID:
		return fmt.Errorf("%w: doctor_id", ErrImmutableField)
	case next.Date != stored.Date:
		return fmt.Errorf("%w: date", ErrImmutableField)
	case next.TimeSlot != stored.TimeSlot:
		return fmt.Errorf("%w: time_slot", ErrImmutableField)
	case next.SymptomsSummary != stored.SymptomsSummary:
		return fmt.Errorf("%w: symptoms_summary", ErrImmutableField)
	}
	if !CanTransition(stored.Status, next.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, stored.Status, next.Status)
	}
	return nil
}
