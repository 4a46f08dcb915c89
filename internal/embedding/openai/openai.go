package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"opsvoice/internal/domain"
	"opsvoice/internal/logger"
)

// Client is an OpenAI-compatible embeddings client. One call embeds a
// whole batch, order-preserving.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	maxRetries int
	log        *logger.Logger
}

// Config configures the embeddings client. The API key is read from
// the environment variable named by APIKeyEnv.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 5
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     key,
		model:      cfg.Model,
		client:     &http.Client{Timeout: t},
		maxRetries: retries,
		log:        log.With("service", "EmbeddingClient"),
	}, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedBatch returns one vector per input text, in input order. Retries
// on 429/5xx with capped exponential backoff, honoring Retry-After; the
// context deadline is the hard stop and surfaces as a TimeoutError.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	url := c.baseURL + "/embeddings"
	payload, err := json.Marshal(embedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, retryDelay(attempt-1)); err != nil {
				return nil, &domain.TimeoutError{Op: "embed", Err: err}
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &domain.TimeoutError{Op: "embed", Err: ctx.Err()}
			}
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			delay := retryAfter(resp)
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			lastErr = &domain.ProviderError{Status: resp.StatusCode, Msg: "embeddings request failed: " + resp.Status}
			c.log.Warn("embedding request retryable failure", "status", resp.StatusCode, "attempt", attempt)
			if delay > 0 {
				if err := sleepCtx(ctx, delay); err != nil {
					return nil, &domain.TimeoutError{Op: "embed", Err: err}
				}
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 300 {
			return nil, &domain.ProviderError{Status: resp.StatusCode, Msg: "embeddings request failed: " + resp.Status}
		}

		var out embedResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, &domain.ProviderError{Msg: "malformed embeddings response", Err: err}
		}
		if len(out.Data) != len(texts) {
			return nil, &domain.ProviderError{Msg: fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(out.Data))}
		}
		vectors := make([][]float32, len(out.Data))
		for i, d := range out.Data {
			if len(d.Embedding) == 0 {
				return nil, &domain.ProviderError{Msg: fmt.Sprintf("empty embedding at position %d", i)}
			}
			vectors[i] = d.Embedding
		}
		return vectors, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no embedding returned")
	}
	var pe *domain.ProviderError
	if errors.As(lastErr, &pe) {
		return nil, lastErr
	}
	return nil, &domain.ProviderError{Msg: "embeddings request failed", Err: lastErr}
}

func retryAfter(resp *http.Response) time.Duration {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
