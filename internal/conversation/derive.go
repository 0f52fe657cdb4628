package conversation

import (
	"strings"
	"unicode/utf8"
)

// NoSymptomsLogged is the summary used when neither extracted symptoms nor
// usable patient text exist.
const NoSymptomsLogged = "Patient requested consultation (No specific symptoms logged)."

// minSymptomTextRunes filters short replies such as "yes" or "no".
const minSymptomTextRunes = 3

// BookingRequest is what a session contributes to a new appointment.
type BookingRequest struct {
	PatientName     string `json:"patient_name"`
	SymptomsSummary string `json:"symptoms_summary"`
}

// DeriveBooking builds a booking request from the transcript. Extracted
// symptoms win; otherwise the patient's own substantive messages are used,
// skipping any that mention the known patient name. fallbackName is used
// when no name was extracted during the conversation.
func DeriveBooking(s Session, fallbackName string) BookingRequest {
	name := s.ExtractedPatientName
	if strings.TrimSpace(name) == "" {
		name = fallbackName
	}
	return BookingRequest{
		PatientName:     name,
		SymptomsSummary: summarizeSymptoms(s),
	}
}

func summarizeSymptoms(s Session) string {
	var symptoms []string
	for _, msg := range s.Messages {
		if msg.Sender != SenderBot || msg.Metadata == nil {
			continue
		}
		symptoms = append(symptoms, msg.Metadata.SymptomsExtracted...)
	}
	if joined := strings.Join(symptoms, ", "); joined != "" {
		return joined
	}

	knownName := s.ExtractedPatientName
	var texts []string
	for _, msg := range s.Messages {
		if msg.Sender != SenderUser {
			continue
		}
		if utf8.RuneCountInString(msg.Text) <= minSymptomTextRunes {
			continue
		}
		if knownName != "" && strings.Contains(msg.Text, knownName) {
			continue
		}
		texts = append(texts, msg.Text)
	}
	if len(texts) == 0 {
		return NoSymptomsLogged
	}
	return strings.Join(texts, ". ")
}
