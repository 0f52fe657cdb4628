package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"go.opentelemetry.io/otel/attribute"
)

const bedrockJSONContract = `Respond with a single JSON object and nothing else. Keys: "transcription" (string, the user's text), "responseText" (string), "symptoms" (array of strings), "diagnosis" (string), "confidence" (number 0-100), "recommendedAction" (string), "detectedLanguage" (one of en, hi, ta), "patientName" (string, empty when unknown).`

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockInferenceClient answers text turns through the Bedrock Converse API.
// It cannot transcribe audio.
type BedrockInferenceClient struct {
	api       bedrockConverseAPI
	modelID   string
	maxTokens int32
}

// NewBedrockInferenceClient wraps a Converse client for the given model.
func NewBedrockInferenceClient(api bedrockConverseAPI, modelID string) *BedrockInferenceClient {
	if api == nil {
		panic("conversation: bedrock converse client cannot be nil")
	}
	return &BedrockInferenceClient{api: api, modelID: modelID, maxTokens: 1024}
}

// Infer sends a text turn to Bedrock and decodes the JSON reply.
func (c *BedrockInferenceClient) Infer(ctx context.Context, req InferenceRequest) (*InferenceResponse, error) {
	if req.HasAudio() {
		return nil, ErrAudioUnsupported
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.modelID) == "" {
		return nil, errors.New("conversation: bedrock model id is required")
	}
	ctx, span := inferenceTracer.Start(ctx, "conversation.bedrock.infer")
	defer span.End()
	span.SetAttributes(
		attribute.String("healthvoice.model", c.modelID),
		attribute.String("healthvoice.language", string(req.Language)),
	)

	prompt := historyContext(req.PriorMessages) + textInputPromptPref + req.Text
	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.modelID),
		System: []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: systemInstruction(req.Language)},
			&brtypes.SystemContentBlockMemberText{Value: bedrockJSONContract},
		},
		Messages: []brtypes.Message{{
			Role:    brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: prompt}},
		}},
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.maxTokens),
			Temperature: aws.Float32(geminiTemperature),
		},
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: bedrock converse failed: %w", err)
	}

	text, err := bedrockExtractOutputText(out)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	resp, err := parseInferenceJSON(text)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if resp.Transcription == "" {
		resp.Transcription = strings.TrimSpace(req.Text)
	}
	return resp, nil
}

func bedrockExtractOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", errors.New("conversation: bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("conversation: bedrock response did not include a message output")
	}
	if len(msgOut.Value.Content) == 0 {
		return "", errors.New("conversation: bedrock response message was empty")
	}

	var builder strings.Builder
	for _, block := range msgOut.Value.Content {
		if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
			builder.WriteString(textBlock.Value)
		}
	}
	outText := builder.String()
	if strings.TrimSpace(outText) == "" {
		return "", errors.New("conversation: bedrock response contained no text content blocks")
	}
	return outText, nil
}
