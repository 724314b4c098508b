// Package llm adapts generative model APIs to a single text-completion call.
// Providers make exactly one request per call; retry policy belongs to the caller.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

type Config struct {
	Provider string        `yaml:"provider"`
	URL      string        `yaml:"url"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"-"`
}

// New builds the provider named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Provider, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	switch strings.ToLower(cfg.Provider) {
	case "gateway", "openai":
		return NewGateway(cfg.URL, cfg.APIKey, cfg.Model, client)
	case "anthropic":
		return NewAnthropic(cfg.URL, cfg.APIKey, cfg.Model, client)
	case "gemini":
		return NewGemini(ctx, cfg.URL, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

// APIError is a non-2xx answer from a provider endpoint.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, body)
}
