package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/courseforge-backend/internal/platform/logger"
)

const deepseekDefaultBaseURL = "https://api.deepseek.com"

// DeepSeekProvider speaks the OpenAI-compatible chat completions API. The
// vendor has no json_schema response format, so the schema is injected into
// the system prompt and json_object mode is enabled; validation is still
// enforced on the way back.
type DeepSeekProvider struct {
	enabledState

	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewDeepSeekProvider(log *logger.Logger, apiKey, baseURL string, timeout time.Duration) (*DeepSeekProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing DeepSeek API key")
	}
	if baseURL == "" {
		baseURL = deepseekDefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &DeepSeekProvider{
		log:        log.With("provider", "deepseek"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (p *DeepSeekProvider) Name() string { return "deepseek" }

type deepseekRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type deepseekResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
}

func (p *DeepSeekProvider) Complete(ctx context.Context, req ModelRequest) (*Completion, error) {
	return p.dispatch(ctx, req, req.SystemPrompt, false)
}

func (p *DeepSeekProvider) CompleteStructured(ctx context.Context, req ModelRequest, schema *Schema) (json.RawMessage, *Completion, error) {
	system := req.SystemPrompt
	if system != "" {
		system += "\n\n"
	}
	system += schema.PromptInstructions()

	completion, err := p.dispatch(ctx, req, system, true)
	if err != nil {
		return nil, nil, err
	}
	raw := json.RawMessage(stripCodeFence(completion.Content))
	if err := schema.Validate(raw); err != nil {
		return nil, nil, &StructuredOutputError{Provider: p.Name(), ModelID: req.ModelID, Err: err}
	}
	completion.Content = string(raw)
	return raw, completion, nil
}

func (p *DeepSeekProvider) dispatch(ctx context.Context, req ModelRequest, system string, jsonMode bool) (*Completion, error) {
	var messages []openAIMessage
	if system != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: system})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	body := deepseekRequest{
		Model:       req.ModelID,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if jsonMode {
		body.ResponseFormat = &struct {
			Type string `json:"type"`
		}{Type: "json_object"}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", &buf)
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

	var resp deepseekResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("deepseek decode error: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("no content in deepseek response")
	}

	completion := &Completion{
		Content:   resp.Choices[0].Message.Content,
		Provider:  p.Name(),
		ModelID:   req.ModelID,
		LatencyMS: latency,
	}
	if resp.Usage != nil {
		completion.TokensIn = intPtr(resp.Usage.PromptTokens)
		completion.TokensOut = intPtr(resp.Usage.CompletionTokens)
	}
	return completion, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
