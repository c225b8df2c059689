package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yungbote/courseforge-backend/internal/platform/logger"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
)

// AnthropicProvider uses the Messages API. Structured output is a forced
// tool call whose input schema is the target schema; the tool input comes
// back as the validated JSON payload.
type AnthropicProvider struct {
	enabledState

	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewAnthropicProvider(log *logger.Logger, apiKey, baseURL string, timeout time.Duration) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing Anthropic API key")
	}
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &AnthropicProvider{
		log:        log.With("provider", "anthropic"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	System      string          `json:"system,omitempty"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Tools       []anthropicTool `json:"tools,omitempty"`
	ToolChoice  map[string]any  `json:"tool_choice,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text,omitempty"`
		Name  string          `json:"name,omitempty"`
		Input json.RawMessage `json:"input,omitempty"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *AnthropicProvider) Complete(ctx context.Context, req ModelRequest) (*Completion, error) {
	resp, completion, err := p.dispatch(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in anthropic response")
	}
	completion.Content = text
	return completion, nil
}

func (p *AnthropicProvider) CompleteStructured(ctx context.Context, req ModelRequest, schema *Schema) (json.RawMessage, *Completion, error) {
	resp, completion, err := p.dispatch(ctx, req, schema)
	if err != nil {
		return nil, nil, err
	}
	var payload json.RawMessage
	for _, block := range resp.Content {
		if block.Type == "tool_use" && block.Name == schema.Name {
			payload = block.Input
			break
		}
	}
	if len(payload) == 0 {
		return nil, nil, &StructuredOutputError{
			Provider: p.Name(), ModelID: req.ModelID,
			Err: fmt.Errorf("model did not call the %q tool", schema.Name),
		}
	}
	if err := schema.Validate(payload); err != nil {
		return nil, nil, &StructuredOutputError{Provider: p.Name(), ModelID: req.ModelID, Err: err}
	}
	completion.Content = string(payload)
	return payload, completion, nil
}

func (p *AnthropicProvider) dispatch(ctx context.Context, req ModelRequest, schema *Schema) (*anthropicResponse, *Completion, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	body := anthropicRequest{
		Model:       req.ModelID,
		Messages:    []openAIMessage{{Role: "user", Content: req.Prompt}},
		System:      req.SystemPrompt,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}
	if schema != nil {
		body.Tools = []anthropicTool{{
			Name:        schema.Name,
			Description: "Record the result in the required structure.",
			InputSchema: schema.Definition,
		}}
		body.ToolChoice = map[string]any{"type": "tool", "name": schema.Name}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", &buf)
	if err != nil {
		return nil, nil, err
	}
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	httpResp, err := p.httpClient.Do(httpReq)
	latency := time.Since(started).Milliseconds()
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(httpResp.Body)
	_ = httpResp.Body.Close()
	if readErr != nil {
		return nil, nil, readErr
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, nil, &httpError{Provider: p.Name(), StatusCode: httpResp.StatusCode, Body: string(raw)}
	}

	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, nil, fmt.Errorf("anthropic decode error: %w", err)
	}
	if resp.Error != nil {
		return nil, nil, fmt.Errorf("anthropic error %s: %s", resp.Error.Type, resp.Error.Message)
	}

	completion := &Completion{
		Provider:  p.Name(),
		ModelID:   req.ModelID,
		TokensIn:  intPtr(resp.Usage.InputTokens),
		TokensOut: intPtr(resp.Usage.OutputTokens),
		LatencyMS: latency,
	}
	return &resp, completion, nil
}
