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

const openAIDefaultBaseURL = "https://api.openai.com"

// OpenAIProvider talks to the Responses API directly. Structured output uses
// the json_schema text format with strict mode.
type OpenAIProvider struct {
	enabledState

	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewOpenAIProvider(log *logger.Logger, apiKey, baseURL string, timeout time.Duration) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing OpenAI API key")
	}
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &OpenAIProvider{
		log:        log.With("provider", "openai"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponsesRequest struct {
	Model string          `json:"model"`
	Input []openAIMessage `json:"input"`
	Text  *struct {
		Format map[string]any `json:"format"`
	} `json:"text,omitempty"`
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens,omitempty"`
}

type openAIResponsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
	Refusal string `json:"refusal,omitempty"`
}

func (p *OpenAIProvider) Complete(ctx context.Context, req ModelRequest) (*Completion, error) {
	body := p.buildRequest(req, nil)
	return p.dispatch(ctx, req, body)
}

func (p *OpenAIProvider) CompleteStructured(ctx context.Context, req ModelRequest, schema *Schema) (json.RawMessage, *Completion, error) {
	body := p.buildRequest(req, schema)
	completion, err := p.dispatch(ctx, req, body)
	if err != nil {
		return nil, nil, err
	}
	raw := json.RawMessage(completion.Content)
	if err := schema.Validate(raw); err != nil {
		return nil, nil, &StructuredOutputError{Provider: p.Name(), ModelID: req.ModelID, Err: err}
	}
	return raw, completion, nil
}

func (p *OpenAIProvider) buildRequest(req ModelRequest, schema *Schema) openAIResponsesRequest {
	var input []openAIMessage
	if req.SystemPrompt != "" {
		input = append(input, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	input = append(input, openAIMessage{Role: "user", Content: req.Prompt})

	body := openAIResponsesRequest{
		Model:           req.ModelID,
		Input:           input,
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxTokens,
	}
	if schema != nil {
		body.Text = &struct {
			Format map[string]any `json:"format"`
		}{Format: map[string]any{
			"type":   "json_schema",
			"name":   schema.Name,
			"schema": schema.Definition,
			"strict": true,
		}}
	}
	return body
}

func (p *OpenAIProvider) dispatch(ctx context.Context, req ModelRequest, body openAIResponsesRequest) (*Completion, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/responses", &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	httpResp, err := p.httpClient.Do(httpReq)
	latency := time.Since(started).Milliseconds()
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(httpResp.Body)
	_ = httpResp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &httpError{Provider: p.Name(), StatusCode: httpResp.StatusCode, Body: string(raw)}
	}

	var resp openAIResponsesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("openai decode error: %w", err)
	}
	if resp.Refusal != "" {
		return nil, fmt.Errorf("openai model refused: %s", resp.Refusal)
	}

	var text string
	for _, item := range resp.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" {
				text += c.Text
			}
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no output_text in openai response")
	}

	completion := &Completion{
		Content:   text,
		Provider:  p.Name(),
		ModelID:   req.ModelID,
		LatencyMS: latency,
	}
	if resp.Usage != nil {
		completion.TokensIn = intPtr(resp.Usage.InputTokens)
		completion.TokensOut = intPtr(resp.Usage.OutputTokens)
	}
	return completion, nil
}
