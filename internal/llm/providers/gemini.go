package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/yungbote/courseforge-backend/internal/platform/logger"
)

// GeminiProvider wraps the official genai SDK. Structured output uses the
// native ResponseSchema mode.
type GeminiProvider struct {
	enabledState

	log    *logger.Logger
	client *genai.Client
}

func NewGeminiProvider(log *logger.Logger, apiKey string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing Gemini API key")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{
		log:    log.With("provider", "gemini"),
		client: client,
	}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

// Client exposes the underlying SDK client for callers that need the Files
// API (video ingestion uploads media to the provider file store).
func (p *GeminiProvider) Client() *genai.Client { return p.client }

func (p *GeminiProvider) Complete(ctx context.Context, req ModelRequest) (*Completion, error) {
	return p.generate(ctx, req, nil)
}

func (p *GeminiProvider) CompleteStructured(ctx context.Context, req ModelRequest, schema *Schema) (json.RawMessage, *Completion, error) {
	completion, err := p.generate(ctx, req, schema)
	if err != nil {
		return nil, nil, err
	}
	raw := json.RawMessage(completion.Content)
	if err := schema.Validate(raw); err != nil {
		return nil, nil, &StructuredOutputError{Provider: p.Name(), ModelID: req.ModelID, Err: err}
	}
	return raw, completion, nil
}

func (p *GeminiProvider) generate(ctx context.Context, req ModelRequest, schema *Schema) (*Completion, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}
	if schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = toGenaiSchema(schema.Definition)
	}

	started := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, req.ModelID, genai.Text(req.Prompt), config)
	latency := time.Since(started).Milliseconds()
	if err != nil {
		return nil, fmt.Errorf("gemini generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty gemini response")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("no text parts in gemini response")
	}

	completion := &Completion{
		Content:   text.String(),
		Provider:  p.Name(),
		ModelID:   req.ModelID,
		LatencyMS: latency,
	}
	if resp.UsageMetadata != nil {
		completion.TokensIn = intPtr(int(resp.UsageMetadata.PromptTokenCount))
		completion.TokensOut = intPtr(int(resp.UsageMetadata.CandidatesTokenCount))
	}
	return completion, nil
}

// toGenaiSchema converts a plain JSON Schema map into the SDK's schema type.
// Only the subset the catalog schemas use is mapped.
func toGenaiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if es, ok := e.(string); ok {
				s.Enum = append(s.Enum, es)
			}
		}
	}
	return s
}
