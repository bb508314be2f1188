// Package ai resolves the AI backend per organization and wraps the chat
// completion calls used by classification and draft generation.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"inboxpilot/config"
	"inboxpilot/internal/model"
	"inboxpilot/pkg/circuitbreaker"
	"inboxpilot/pkg/metrics"
)

// ErrNoAPIKey means neither the organization nor the global default carries a
// usable key. Callers degrade (heuristic fallback, skipped draft) instead of
// failing the pass.
var ErrNoAPIKey = errors.New("no AI api key configured")

type SettingsStore interface {
	FindByOrg(ctx context.Context, orgID int64) (*model.AISettings, error)
}

// Resolver resolves {provider, model, apiKey} for an organization, falling
// back to the global default from config.
type Resolver struct {
	store    SettingsStore
	fallback config.AIConfig
}

func NewResolver(store SettingsStore, fallback config.AIConfig) *Resolver {
	return &Resolver{store: store, fallback: fallback}
}

func (r *Resolver) Resolve(ctx context.Context, orgID int64) (model.AISettings, error) {
	if r.store != nil {
		s, err := r.store.FindByOrg(ctx, orgID)
		if err != nil {
			return model.AISettings{}, err
		}
		if s != nil && s.APIKey != "" {
			return *s, nil
		}
	}

	if r.fallback.APIKey == "" {
		return model.AISettings{}, ErrNoAPIKey
	}
	return model.AISettings{
		OrgID:    orgID,
		Provider: r.fallback.Provider,
		Model:    r.fallback.Model,
		APIKey:   r.fallback.APIKey,
		BaseURL:  r.fallback.BaseURL,
	}, nil
}

// Client issues chat completions through the resolved per-org backend. A
// circuit breaker trips after repeated upstream failures so callers degrade
// immediately instead of waiting out timeouts on a dead backend.
type Client struct {
	resolver *Resolver
	breaker  *circuitbreaker.Breaker
	logger   *zap.Logger
}

func NewClient(resolver *Resolver, log *zap.Logger) *Client {
	return &Client{
		resolver: resolver,
		breaker:  circuitbreaker.New(circuitbreaker.DefaultConfig()),
		logger:   log,
	}
}

// Complete sends one system+user exchange and returns the raw content of the
// first choice. The response is requested as a JSON object; callers parse.
func (c *Client) Complete(ctx context.Context, orgID int64, operation, system, user string) (string, error) {
	settings, err := c.resolver.Resolve(ctx, orgID)
	if err != nil {
		return "", err
	}

	cfg := openai.DefaultConfig(settings.APIKey)
	if settings.BaseURL != "" {
		cfg.BaseURL = settings.BaseURL
	}
	cli := openai.NewClientWithConfig(cfg)

	var content string
	err = c.breaker.Do(func() error {
		start := time.Now()
		resp, err := cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: settings.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			metrics.RecordAICallLatency(operation, "error", time.Since(start))
			return fmt.Errorf("chat completion: %w", err)
		}
		metrics.RecordAICallLatency(operation, "ok", time.Since(start))

		if len(resp.Choices) == 0 {
			return fmt.Errorf("chat completion returned no choices")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return content, nil
}
