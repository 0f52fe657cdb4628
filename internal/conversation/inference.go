package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// InferenceRequest is one patient turn sent to the inference service.
type InferenceRequest struct {
	Audio         []byte
	AudioMIMEType string
	Text          string
	Language      Language
	PriorMessages []Message
}

// HasAudio reports whether the turn carries recorded audio.
func (r InferenceRequest) HasAudio() bool {
	return len(r.Audio) > 0
}

// Validate rejects turns with neither audio nor text.
func (r InferenceRequest) Validate() error {
	if !r.HasAudio() && strings.TrimSpace(r.Text) == "" {
		return ErrNoInput
	}
	return nil
}

// InferenceResponse is the combined transcription, extraction and reply.
type InferenceResponse struct {
	Transcription     string   `json:"transcription"`
	ResponseText      string   `json:"responseText"`
	Symptoms          []string `json:"symptoms"`
	Diagnosis         string   `json:"diagnosis"`
	Confidence        float64  `json:"confidence"`
	RecommendedAction string   `json:"recommendedAction"`
	DetectedLanguage  string   `json:"detectedLanguage"`
	PatientName       string   `json:"patientName,omitempty"`
}

// Metadata converts the response into BOT message metadata.
func (r *InferenceResponse) Metadata() *Metadata {
	if r == nil {
		return nil
	}
	return &Metadata{
		SymptomsExtracted: append([]string(nil), r.Symptoms...),
		Diagnosis:         r.Diagnosis,
		Confidence:        r.Confidence,
		RecommendedAction: r.RecommendedAction,
		DetectedLanguage:  r.DetectedLanguage,
		PatientName:       r.PatientName,
	}
}

// InferenceClient transcribes, extracts and answers one patient turn.
type InferenceClient interface {
	Infer(ctx context.Context, req InferenceRequest) (*InferenceResponse, error)
}

// NormalizeResponse trims fields, drops blank symptoms and clamps the
// confidence to [0, 100]. A response without reply text is unusable.
func NormalizeResponse(resp *InferenceResponse) (*InferenceResponse, error) {
	if resp == nil || strings.TrimSpace(resp.ResponseText) == "" {
		return nil, ErrUnusableInference
	}
	out := *resp
	out.Transcription = strings.TrimSpace(out.Transcription)
	out.ResponseText = strings.TrimSpace(out.ResponseText)
	out.Diagnosis = strings.TrimSpace(out.Diagnosis)
	out.RecommendedAction = strings.TrimSpace(out.RecommendedAction)
	out.DetectedLanguage = strings.ToLower(strings.TrimSpace(out.DetectedLanguage))
	out.PatientName = strings.TrimSpace(out.PatientName)
	out.Symptoms = nil
	for _, symptom := range resp.Symptoms {
		if trimmed := strings.TrimSpace(symptom); trimmed != "" {
			out.Symptoms = append(out.Symptoms, trimmed)
		}
	}
	switch {
	case out.Confidence < 0:
		out.Confidence = 0
	case out.Confidence > 100:
		out.Confidence = 100
	}
	return &out, nil
}

// parseInferenceJSON decodes a model reply, tolerating markdown code fences.
func parseInferenceJSON(raw string) (*InferenceResponse, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		text = text[start : end+1]
	}
	var resp InferenceResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("conversation: decode inference json: %w", err)
	}
	return NormalizeResponse(&resp)
}

// systemInstruction is shared by every model-backed client.
func systemInstruction(lang Language) string {
	return fmt.Sprintf(`You are a highly advanced medical AI assistant named "HealthVoice".

Current Language Setting: %[1]s

NAME EXTRACTION:
1. If the user input contains a name (e.g., "I am Sarah", "My name is Raj", "Sarah"), extract it into the 'patientName' field.
2. If the previous BOT message asked for the user's name, treat the user's next input as their name.

SYMPTOM EXTRACTION:
1. Extract specific symptoms (e.g., "headache", "nausea", "rash") into the 'symptoms' array.
2. If the user describes a feeling (e.g., "I feel hot"), map it to a clinical symptom (e.g., "Fever").

Flow: check for a name, then for symptoms, then triage.

Task:
1. Transcribe audio if provided.
2. Extract 'patientName' if detected.
3. Extract the 'symptoms' array.
4. Predict a potential 'diagnosis' ('Pending' while gathering info) and 'confidence' (0-100).
5. 'recommendedAction': suggest next steps (doctor visit vs home care).
6. 'responseText': a polite, empathetic reply in %[1]s.

Output JSON only.`, lang)
}

// historyContext renders prior messages as "SENDER: text" lines.
func historyContext(msgs []Message) string {
	if len(msgs) == 0 {
		return ""
	}
	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		lines = append(lines, fmt.Sprintf("%s: %s", msg.Sender, msg.Text))
	}
	return "Conversation History:\n" + strings.Join(lines, "\n") + "\n---End History---\n"
}
