package appointments

import (
	"sort"
	"strings"
)

// Queue is the doctor's view of the appointment list.
type Queue struct {
	Waiting        []Appointment `json:"waiting"`
	InConsultation []Appointment `json:"in_consultation"`
	Completed      []Appointment `json:"completed"`
}

// Partition splits list by status, preserving order within each group.
func Partition(list []Appointment) Queue {
	q := Queue{
		Waiting:        []Appointment{},
		InConsultation: []Appointment{},
		Completed:      []Appointment{},
	}
	for _, a := range list {
		switch a.Status {
		case StatusScheduled:
			q.Waiting = append(q.Waiting, a)
		case StatusInProgress:
			q.InConsultation = append(q.InConsultation, a)
		case StatusCompleted:
			q.Completed = append(q.Completed, a)
		}
	}
	return q
}

// SortForDoctor orders in-progress appointments first, then by time slot,
// then by creation order. The input is not modified.
func SortForDoctor(list []Appointment) []Appointment {
	out := append([]Appointment(nil), list...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		aActive, bActive := a.Status == StatusInProgress, b.Status == StatusInProgress
		if aActive != bActive {
			return aActive
		}
		if a.TimeSlot != b.TimeSlot {
			return a.TimeSlot < b.TimeSlot
		}
		return a.Sequence < b.Sequence
	})
	return out
}

// Search returns appointments whose patient name, symptoms or notes contain
// term, ignoring case. An empty term matches everything.
func Search(list []Appointment, term string) []Appointment {
	needle := strings.ToLower(strings.TrimSpace(term))
	out := []Appointment{}
	for _, a := range list {
		if needle == "" ||
			strings.Contains(strings.ToLower(a.PatientName), needle) ||
			strings.Contains(strings.ToLower(a.SymptomsSummary), needle) ||
			strings.Contains(strings.ToLower(a.Notes), needle) {
			out = append(out, a)
		}
	}
	return out
}
