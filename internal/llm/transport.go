package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"chathub/internal/apperr"
	"chathub/internal/config"
	"chathub/internal/logger"

	"github.com/sirupsen/logrus"
)

// Transport opens a streaming completion request and hands back the raw
// framed byte stream. Decoding is the stream package's job; the caller
// owns closing the returned body.
type Transport interface {
	Open(ctx context.Context, model string, messages []Message) (io.ReadCloser, error)
}

// ChatRequest is the wire shape of a completion request.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// HTTPTransport implements Transport against an OpenAI-compatible
// completions endpoint that responds with newline-framed data-stream
// records.
type HTTPTransport struct {
	cfg    *config.LLMConfig
	client *http.Client
}

// NewHTTPTransport creates a transport using the provider settings from
// config. The http.Client carries no timeout of its own; per-turn
// deadlines come in through the context.
func NewHTTPTransport(cfg *config.LLMConfig) *HTTPTransport {
	return &HTTPTransport{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// Open sends the trimmed history to the provider and returns the
// response body for incremental decoding. Any non-200 status is a
// transport error carrying a body excerpt.
func (t *HTTPTransport) Open(ctx context.Context, model string, messages []Message) (io.ReadCloser, error) {
	if t.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: LLM_API_KEY not configured", apperr.ErrTransport)
	}

	reqBody := ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"model":         model,
		"message_count": len(messages),
	}).Info("Opening model stream")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: provider returned status %d: %s", apperr.ErrTransport, resp.StatusCode, string(body))
	}

	return resp.Body, nil
}
