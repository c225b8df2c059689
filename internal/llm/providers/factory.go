package providers

import (
	"fmt"
	"time"

	"github.com/yungbote/courseforge-backend/internal/platform/logger"
)

// Config carries vendor credentials. Only providers whose key is present
// are constructed; everything else is simply absent from the registry and
// the router records a skip when a chain references it.
type Config struct {
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicBaseURL string
	GeminiAPIKey     string
	DeepSeekAPIKey   string
	DeepSeekBaseURL  string
	Timeout          time.Duration
}

// Build constructs the provider set from whatever credentials exist.
func Build(cfg Config, log *logger.Logger) (map[string]Provider, error) {
	out := map[string]Provider{}

	if cfg.OpenAIAPIKey != "" {
		p, err := NewOpenAIProvider(log, cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		out[p.Name()] = p
	}
	if cfg.AnthropicAPIKey != "" {
		p, err := NewAnthropicProvider(log, cfg.AnthropicAPIKey, cfg.AnthropicBaseURL, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		out[p.Name()] = p
	}
	if cfg.GeminiAPIKey != "" {
		p, err := NewGeminiProvider(log, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		out[p.Name()] = p
	}
	if cfg.DeepSeekAPIKey != "" {
		p, err := NewDeepSeekProvider(log, cfg.DeepSeekAPIKey, cfg.DeepSeekBaseURL, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		out[p.Name()] = p
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no LLM provider credentials configured")
	}
	return out, nil
}
