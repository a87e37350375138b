package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/user/knowledge-service/pkg/logger"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"

	maxAttempts = 3
)

// OpenAIEmbedder calls an OpenAI compatible /embeddings endpoint and falls
// back to a LocalEmbedder of the same size when the call fails.
type OpenAIEmbedder struct {
	client   *http.Client
	apiKey   string
	baseURL  string
	model    string
	fallback *LocalEmbedder
	logger   *zap.Logger
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Dims    int
	Timeout time.Duration
}

func NewOpenAIEmbedder(cfg OpenAIConfig, log *zap.Logger) *OpenAIEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &OpenAIEmbedder{
		client:   &http.Client{Timeout: cfg.Timeout},
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		model:    cfg.Model,
		fallback: NewLocalEmbedder(cfg.Dims),
		logger:   logger.OrNop(log),
	}
}

func (e *OpenAIEmbedder) Dims() int { return e.fallback.Dims() }

type embeddingRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) []float64 {
	vec, err := backoff.Retry(ctx, func() ([]float64, error) {
		return e.request(ctx, text)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxAttempts),
	)
	if err != nil {
		e.logger.Warn("remote embedding failed, using local embedding", zap.Error(err))
		return e.fallback.Embed(ctx, text)
	}
	return vec
}

func (e *OpenAIEmbedder) request(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embeddingRequest{Model: e.model, Input: text, Dimensions: e.Dims()})
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to encode embedding request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build embedding request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("embedding request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		// Only rate limiting and server errors are worth another attempt.
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	var out embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode embedding response: %w", err))
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) != e.Dims() {
		return nil, backoff.Permanent(fmt.Errorf("embedding response has unexpected shape"))
	}
	return out.Data[0].Embedding, nil
}
