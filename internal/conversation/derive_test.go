package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveBooking(t *testing.T) {
	tests := []struct {
		name     string
		build    func(s *Session)
		fallback string
		want     BookingRequest
	}{
		{
			name: "extracted symptoms and name win",
			build: func(s *Session) {
				s.AppendUser("I am Sarah")
				s.AppendBot("Hello Sarah", &Metadata{PatientName: "Sarah"})
				s.AppendUser("I have a headache and feel hot")
				s.AppendBot("Noted", &Metadata{SymptomsExtracted: []string{"Headache", "Fever"}})
			},
			fallback: "John Doe",
			want:     BookingRequest{PatientName: "Sarah", SymptomsSummary: "Headache, Fever"},
		},
		{
			name: "user text fallback skips short replies",
			build: func(s *Session) {
				s.AppendUser("yes")
				s.AppendBot("ok", &Metadata{})
				s.AppendUser("my stomach hurts")
				s.AppendBot("ok", &Metadata{SymptomsExtracted: []string{}})
				s.AppendUser("since yesterday")
			},
			fallback: "John Doe",
			want:     BookingRequest{PatientName: "John Doe", SymptomsSummary: "my stomach hurts. since yesterday"},
		},
		{
			name: "user text mentioning the known name is excluded",
			build: func(s *Session) {
				s.AppendUser("I am Ravi Kumar")
				s.AppendBot("Hello", &Metadata{PatientName: "Ravi"})
				s.AppendUser("back pain for a week")
			},
			fallback: "John Doe",
			want:     BookingRequest{PatientName: "Ravi", SymptomsSummary: "back pain for a week"},
		},
		{
			name: "without a known name no patient text is excluded",
			build: func(s *Session) {
				s.AppendUser("xyz rash on my arm")
				s.AppendBot("ok", &Metadata{})
			},
			fallback: "Guest",
			want:     BookingRequest{PatientName: "Guest", SymptomsSummary: "xyz rash on my arm"},
		},
		{
			name:     "nothing usable",
			build:    func(s *Session) { s.AppendUser("no") },
			fallback: "John Doe",
			want:     BookingRequest{PatientName: "John Doe", SymptomsSummary: NoSymptomsLogged},
		},
		{
			name: "four rune threshold counts characters not bytes",
			build: func(s *Session) {
				s.AppendUser("हाँ")
				s.AppendUser("बुखार है")
			},
			fallback: "Guest",
			want:     BookingRequest{PatientName: "Guest", SymptomsSummary: "बुखार है"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession("sess-1", "u1", LanguageEnglish, nil)
			tt.build(s)
			got := DeriveBooking(s.Snapshot(), tt.fallback)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveBookingIsPure(t *testing.T) {
	s := NewSession("sess-1", "u1", LanguageEnglish, nil)
	s.AppendUser("I have a rash")
	before := s.Snapshot()

	first := DeriveBooking(s.Snapshot(), "John")
	second := DeriveBooking(s.Snapshot(), "John")

	assert.Equal(t, first, second)
	assert.Equal(t, before.Messages, s.Messages)
}
