package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// defaultCallDeadline is the per-call abortable deadline applied to
// embedder calls.
const defaultCallDeadline = 30 * time.Second

// RemoteConfig configures a RemoteEmbedder.
type RemoteConfig struct {
	Endpoint   string
	APIKey     string
	Model      string
	Dimensions int
	// RateLimitPerSecond caps outgoing requests; the embedder manages
	// its own rate-limit state independent of any core retry policy.
	RateLimitPerSecond float64
	HTTPClient         *http.Client
}

// RemoteEmbedder calls an external, OpenAI-compatible embedding
// service over HTTP: POST {input, model, dimensions} -> {data: [{embedding}]}.
type RemoteEmbedder struct {
	cfg     RemoteConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewRemoteEmbedder constructs a RemoteEmbedder. A nil or zero
// RateLimitPerSecond disables client-side rate limiting.
func NewRemoteEmbedder(cfg RemoteConfig) (*RemoteEmbedder, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("remote embedder: endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("remote embedder: model is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultCallDeadline}
	}
	var limiter *rate.Limiter
	if cfg.RateLimitPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), 1)
	}
	return &RemoteEmbedder{cfg: cfg, client: client, limiter: limiter}, nil
}

type embedRequest struct {
	Input      string `json:"input"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (e *RemoteEmbedder) EmbedText(ctx context.Context, s string) ([]float64, error) {
	return e.call(ctx, s)
}

func (e *RemoteEmbedder) EmbedDiff(ctx context.Context, s string) ([]float64, error) {
	return e.call(ctx, preprocessDiff(s))
}

func (e *RemoteEmbedder) call(ctx context.Context, input string) ([]float64, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("remote embedder: rate limiter: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, defaultCallDeadline)
	defer cancel()

	body, err := json.Marshal(embedRequest{
		Input:      input,
		Model:      e.cfg.Model,
		Dimensions: e.cfg.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("remote embedder: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("remote embedder: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote embedder: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("remote embedder: non-2xx response (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("remote embedder: malformed response: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("remote embedder: response contained no embedding")
	}
	return parsed.Data[0].Embedding, nil
}
