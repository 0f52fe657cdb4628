package appointments

import (
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusScheduled, StatusScheduled, true},
		{StatusScheduled, StatusInProgress, true},
		{StatusScheduled, StatusCompleted, false},
		{StatusInProgress, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusScheduled, false},
		{StatusCompleted, StatusCompleted, true},
		{StatusCompleted, StatusInProgress, false},
		{StatusCompleted, StatusScheduled, false},
		{Status("cancelled"), StatusScheduled, false},
		{StatusScheduled, Status(""), false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Fatalf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTransitionReturnsCopy(t *testing.T) {
	orig := Appointment{ID: "appt-1", Status: StatusInProgress, Notes: "old", Version: 3}
	notes := ""
	next, err := Transition(orig, StatusCompleted, &notes)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if next.Status != StatusCompleted || next.Notes != "" || next.Version != 3 {
		t.Fatalf("unexpected transitioned copy %#v", next)
	}
	if orig.Status != StatusInProgress || orig.Notes != "old" {
		t.Fatalf("original mutated: %#v", orig)
	}

	kept, err := Transition(orig, StatusInProgress, nil)
	if err != nil || kept.Notes != "old" {
		t.Fatalf("expected nil notes to keep existing notes, got %#v %v", kept, err)
	}

	if _, err := Transition(orig, StatusScheduled, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestCheckUpdateRejectsImmutableChanges(t *testing.T) {
	stored := Appointment{
		ID: "appt-1", PatientID: "u1", PatientName: "Sarah", DoctorID: "d1",
		Date: "2026-03-01", TimeSlot: "09:00", SymptomsSummary: "Headache",
		Status: StatusScheduled, Version: 1,
	}
	mutations := map[string]func(a *Appointment){
		"patient id":   func(a *Appointment) { a.PatientID = "u2" },
		"patient name": func(a *Appointment) { a.PatientName = "Sara" },
		"doctor":       func(a *Appointment) { a.DoctorID = "d2" },
		"date":         func(a *Appointment) { a.Date = "2026-03-02" },
		"time slot":    func(a *Appointment) { a.TimeSlot = "10:00" },
		"symptoms":     func(a *Appointment) { a.SymptomsSummary = "Fever" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			next := stored
			mutate(&next)
			if err := checkUpdate(stored, next); !errors.Is(err, ErrImmutableField) {
				t.Fatalf("expected immutable field error, got %v", err)
			}
		})
	}

	next := stored
	next.Notes = "annotated"
	if err := checkUpdate(stored, next); err != nil {
		t.Fatalf("expected notes change allowed, got %v", err)
	}
}
