package conversation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var stubNamePattern = regexp.MustCompile(`(?i)\b(?:my name is|i am|i'm|this is)\s+([\p{L}][\p{L}'-]*)`)

// stubSymptoms maps lowercase phrases to clinical symptom names.
var stubSymptoms = []struct {
	phrase  string
	symptom string
}{
	{"headache", "Headache"},
	{"migraine", "Headache"},
	{"fever", "Fever"},
	{"feel hot", "Fever"},
	{"nausea", "Nausea"},
	{"vomit", "Vomiting"},
	{"cough", "Cough"},
	{"rash", "Rash"},
	{"itch", "Itching"},
	{"dizzy", "Dizziness"},
	{"sore throat", "Sore throat"},
	{"chest pain", "Chest pain"},
	{"stomach", "Abdominal pain"},
	{"tired", "Fatigue"},
}

// StubInferenceClient is a deterministic keyword-based client for local
// development and tests. It needs no credentials.
type StubInferenceClient struct{}

// NewStubInferenceClient returns a StubInferenceClient.
func NewStubInferenceClient() *StubInferenceClient {
	return &StubInferenceClient{}
}

// Infer extracts a name and known symptom keywords from the text.
func (c *StubInferenceClient) Infer(ctx context.Context, req InferenceRequest) (*InferenceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(req.Text)
	if text == "" && req.HasAudio() {
		text = fmt.Sprintf("Audio input (%d bytes)", len(req.Audio))
	}
	lang := req.Language
	if lang == "" {
		lang = LanguageEnglish
	}

	resp := &InferenceResponse{
		Transcription:     text,
		Diagnosis:         "Pending",
		RecommendedAction: "Continue describing your symptoms.",
		DetectedLanguage:  string(lang),
	}
	if m := stubNamePattern.FindStringSubmatch(text); len(m) == 2 {
		resp.PatientName = m[1]
	} else if askedForName(req.PriorMessages) && isSingleWord(text) {
		resp.PatientName = text
	}

	lower := strings.ToLower(text)
	seen := map[string]bool{}
	for _, entry := range stubSymptoms {
		if strings.Contains(lower, entry.phrase) && !seen[entry.symptom] {
			seen[entry.symptom] = true
			resp.Symptoms = append(resp.Symptoms, entry.symptom)
		}
	}

	switch {
	case len(resp.Symptoms) > 0:
		resp.Diagnosis = "Possible viral infection"
		resp.Confidence = float64(40 + 10*min(len(resp.Symptoms), 4))
		resp.RecommendedAction = "Book a consultation with the doctor."
		resp.ResponseText = fmt.Sprintf("I understand you are experiencing %s. I recommend booking a consultation.",
			strings.ToLower(strings.Join(resp.Symptoms, ", ")))
	case resp.PatientName != "":
		resp.ResponseText = fmt.Sprintf("Thank you, %s. Please describe your symptoms.", resp.PatientName)
	default:
		resp.ResponseText = "Could you tell me more about how you are feeling?"
	}
	return NormalizeResponse(resp)
}

func askedForName(prior []Message) bool {
	for i := len(prior) - 1; i >= 0; i-- {
		if prior[i].Sender == SenderBot {
			return prior[i].ID == GreetingMessageID || strings.Contains(strings.ToLower(prior[i].Text), "name")
		}
	}
	return false
}

func isSingleWord(text string) bool {
	return text != "" && len(strings.Fields(text)) == 1
}
