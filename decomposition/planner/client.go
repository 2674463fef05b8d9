package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fleettools/squawk/internal/retry"
	"github.com/fleettools/squawk/llm"
	"github.com/fleettools/squawk/model"
)

// Client is the concrete Planner: it resolves the "planning" capability
// through model.Registry to a model + fallback chain, and sends the
// prompt through the matching registered llm.Provider, retrying
// transient failures with internal/retry (cenkalti/backoff) so every
// component shares one retry policy instead of each rolling its own.
type Client struct {
	registry   *model.Registry
	httpClient *http.Client
	retryCfg   retry.Config
	maxTokens  int
}

// NewClient builds a planner Client over registry.
func NewClient(registry *model.Registry) *Client {
	return &Client{
		registry:   registry,
		httpClient: &http.Client{Timeout: 180 * time.Second},
		retryCfg:   retry.DefaultConfig(),
		maxTokens:  4096,
	}
}

// Plan sends prompt to the model resolved for the "planning" capability,
// trying the preferred model then each fallback in order, and returns the
// raw response content for ParseResponse to decode.
func (c *Client) Plan(ctx context.Context, prompt string) (json.RawMessage, error) {
	chain := append([]string{c.registry.Resolve(model.CapabilityPlanning)}, c.registry.GetFallbackChain(model.CapabilityPlanning)...)

	var lastErr error
	for _, modelName := range chain {
		if modelName == "" {
			continue
		}
		if !c.registry.IsEndpointAvailable(modelName) {
			continue // circuit open from recent failures
		}
		endpoint := c.registry.GetEndpoint(modelName)
		if endpoint == nil {
			continue
		}
		provider := llm.GetProvider(endpoint.Provider)
		if provider == nil {
			continue
		}

		content, err := c.callWithRetry(ctx, provider, endpoint, prompt)
		if err == nil {
			c.registry.MarkEndpointSuccess(modelName)
			return json.RawMessage(content), nil
		}
		c.registry.MarkEndpointFailure(modelName)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no endpoint available for capability %q", model.CapabilityPlanning)
	}
	return nil, fmt.Errorf("plan: %w", lastErr)
}

func (c *Client) callWithRetry(ctx context.Context, provider llm.Provider, endpoint *model.EndpointConfig, prompt string) (string, error) {
	var result string
	err := retry.Do(ctx, c.retryCfg, func() error {
		content, err := c.call(ctx, provider, endpoint, prompt)
		if err != nil {
			return err
		}
		result = content
		return nil
	})
	return result, err
}

func (c *Client) call(ctx context.Context, provider llm.Provider, endpoint *model.EndpointConfig, prompt string) (string, error) {
	messages := []llm.Message{{Role: "user", Content: prompt}}
	body, err := provider.BuildRequestBody(endpoint.Model, messages, nil, c.maxTokens, nil, "")
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("build request: %w", err))
	}

	url := provider.BuildURL(endpoint.URL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("build http request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("http call: %w", err) // transient: retried
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("provider %s returned %d: %s", provider.Name(), resp.StatusCode, respBody)
	}
	if resp.StatusCode >= 400 {
		return "", retry.Permanent(fmt.Errorf("provider %s returned %d: %s", provider.Name(), resp.StatusCode, respBody))
	}

	parsed, err := provider.ParseResponse(respBody, endpoint.Model)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("parse response: %w", err))
	}
	return parsed.Content, nil
}
