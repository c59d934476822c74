// Package openrouter builds OpenAI-compatible clients pointed at OpenRouter.
package openrouter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openaimodel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const DefaultBaseURL = "https://openrouter.ai/api/v1"

// reasoningExcluded lists models whose reasoning tokens must be switched off,
// otherwise tool-call turns come back with empty content.
var reasoningExcluded = map[string]bool{
	"x-ai/grok-4.1-fast": true,
}

type Config struct {
	BaseURL            string
	APIKey             string
	Model              string
	MaxCompletionToken *int
	Temperature        float32
	Timeout            time.Duration
	SiteURL            string
	SiteName           string
}

func (c Config) baseURL() string {
	if u := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"); u != "" {
		return u
	}
	return DefaultBaseURL
}

// attributionHeaders are the optional OpenRouter app ranking headers.
func (c Config) attributionHeaders() map[string]string {
	h := make(map[string]string, 2)
	if s := strings.TrimSpace(c.SiteURL); s != "" {
		h["HTTP-Referer"] = s
	}
	if s := strings.TrimSpace(c.SiteName); s != "" {
		h["X-Title"] = s
	}
	return h
}

// NewChatModel returns a tool-calling chat model for cfg.Model.
func NewChatModel(ctx context.Context, cfg Config) (model.ToolCallingChatModel, error) {
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		return nil, fmt.Errorf("openrouter: model is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openrouter: api key is required")
	}

	temperature := cfg.Temperature
	conf := &openaimodel.ChatModelConfig{
		BaseURL:     cfg.baseURL(),
		APIKey:      strings.TrimSpace(cfg.APIKey),
		Model:       modelName,
		MaxTokens:   cfg.MaxCompletionToken,
		Temperature: &temperature,
		Timeout:     cfg.Timeout,
	}
	if headers := cfg.attributionHeaders(); len(headers) > 0 {
		conf.HTTPClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: headerTransport{headers: headers, next: http.DefaultTransport},
		}
	}
	if reasoningExcluded[modelName] {
		conf.ExtraFields = map[string]any{
			"reasoning": map[string]any{
				"exclude": true,
				"effort":  "none",
			},
		}
	}

	m, err := openaimodel.NewChatModel(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("openrouter: create chat model: %w", err)
	}
	return m, nil
}

// NewClient returns an openai-go client for OpenRouter, or nil without an api key.
func NewClient(cfg Config) *openaisdk.Client {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil
	}

	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithBaseURL(cfg.baseURL()),
	}
	for k, v := range cfg.attributionHeaders() {
		opts = append(opts, option.WithHeader(k, v))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	client := openaisdk.NewClient(opts...)
	return &client
}

// Ping lists the models visible to the key, which checks reachability and credentials in one call.
func Ping(ctx context.Context, client *openaisdk.Client) (int, error) {
	if client == nil {
		return 0, fmt.Errorf("openrouter: client is nil")
	}
	page, err := client.Models.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("openrouter: list models: %w", err)
	}
	return len(page.Data), nil
}

type headerTransport struct {
	headers map[string]string
	next    http.RoundTripper
}

func (t headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	for k, v := range t.headers {
		r.Header.Set(k, v)
	}
	return t.next.RoundTrip(r)
}
