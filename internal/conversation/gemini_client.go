package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"
)

const (
	defaultGeminiModel  = "gemini-2.5-flash"
	defaultAudioMIME    = "audio/webm"
	geminiTemperature   = 0.1
	audioProcessPrompt  = "Process this audio input."
	textInputPromptPref = "User Input: "
)

var inferenceTracer = otel.Tracer("healthvoice.internal.conversation.inference")

// geminiGenerator is the slice of *genai.GenerativeModel the client uses.
type geminiGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiInferenceClient performs transcription, extraction and reply in a
// single structured Gemini call.
type GeminiInferenceClient struct {
	client   *genai.Client
	modelID  string
	newModel func(lang Language) geminiGenerator
}

// NewGeminiInferenceClient creates a Gemini-backed inference client.
func NewGeminiInferenceClient(ctx context.Context, apiKey, modelID string) (*GeminiInferenceClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to create gemini client: %w", err)
	}

	c := &GeminiInferenceClient{
		client:  client,
		modelID: modelID,
	}
	c.newModel = c.configuredModel
	return c, nil
}

func (c *GeminiInferenceClient) configuredModel(lang Language) geminiGenerator {
	model := c.client.GenerativeModel(c.modelID)
	model.SetTemperature(geminiTemperature)
	model.SystemInstruction = genai.NewUserContent(genai.Text(systemInstruction(lang)))
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = inferenceSchema()
	return model
}

// Infer sends one patient turn to Gemini and decodes the JSON reply.
func (c *GeminiInferenceClient) Infer(ctx context.Context, req InferenceRequest) (*InferenceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ctx, span := inferenceTracer.Start(ctx, "conversation.gemini.infer")
	defer span.End()
	span.SetAttributes(
		attribute.String("healthvoice.model", c.modelID),
		attribute.String("healthvoice.language", string(req.Language)),
		attribute.Bool("healthvoice.audio", req.HasAudio()),
	)

	resp, err := c.newModel(req.Language).GenerateContent(ctx, geminiParts(req)...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: gemini generate failed: %w", err)
	}

	text, err := geminiResponseText(resp)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	out, err := parseInferenceJSON(text)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

// Close releases resources held by the Gemini client.
func (c *GeminiInferenceClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func geminiParts(req InferenceRequest) []genai.Part {
	var parts []genai.Part
	if history := historyContext(req.PriorMessages); history != "" {
		parts = append(parts, genai.Text(history))
	}
	if req.HasAudio() {
		mimeType := strings.TrimSpace(req.AudioMIMEType)
		if mimeType == "" {
			mimeType = defaultAudioMIME
		}
		parts = append(parts, genai.Blob{MIMEType: mimeType, Data: req.Audio})
		parts = append(parts, genai.Text(audioProcessPrompt))
		return parts
	}
	return append(parts, genai.Text(textInputPromptPref+req.Text))
}

func geminiResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("conversation: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("conversation: gemini returned empty content")
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrUnusableInference
	}
	return b.String(), nil
}

func inferenceSchema() *genai.Schema {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"transcription": str("The transcription of the user audio, or the text input provided."),
			"responseText":  str("The response to speak back to the user."),
			"symptoms": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "List of extracted symptoms.",
			},
			"diagnosis":         str("Top predicted condition (or 'Pending' if gathering info)."),
			"confidence":        {Type: genai.TypeNumber, Description: "Confidence score 0-100."},
			"recommendedAction": str("Short advice on what to do next."),
			"detectedLanguage":  str("The language code detected (en, hi, ta)."),
			"patientName":       str("The patient's name if found in the user's input."),
		},
		Required: []string{
			"transcription", "responseText", "symptoms", "diagnosis",
			"confidence", "recommendedAction", "detectedLanguage",
		},
	}
}
