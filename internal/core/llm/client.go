package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	BaseURL        string // e.g. http://localhost:11434
	Model          string
	HealthTimeout  time.Duration
	ExtractTimeout time.Duration
}

// Client talks to a local text-completion server over its JSON API:
// GET /api/tags for health and POST /api/generate for completions.
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 5 * time.Second
	}
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:  cfg,
		http: &http.Client{},
		log:  logger,
	}
}

// HealthCheck reports whether the server answers within HealthTimeout.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HealthTimeout)
	defer cancel()
	start := time.Now()
	_, status, err := SendJSON(ctx, c.http, http.MethodGet, c.cfg.BaseURL+"/api/tags", nil, c.log)
	if err != nil {
		c.log.Info("llm.health.down", "status", status, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return false
	}
	c.log.Debug("llm.health.ok", "elapsed_ms", time.Since(start).Milliseconds())
	return true
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Extract sends prompt and returns the raw completion text, bounded by
// ExtractTimeout. An empty string with nil error means the server replied
// without content.
func (c *Client) Extract(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ExtractTimeout)
	defer cancel()
	start := time.Now()

	c.log.Info("llm.extract.start", "model", c.cfg.Model, "prompt_len", len(prompt))
	raw, _, err := SendJSON(ctx, c.http, http.MethodPost, c.cfg.BaseURL+"/api/generate", generateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
	}, c.log)
	if err != nil {
		c.log.Warn("llm.extract.http_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		c.log.Warn("llm.extract.decode_error", "error", err, "raw_bytes", len(raw))
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	c.log.Info("llm.extract.done",
		"response_len", len(gr.Response),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return strings.TrimSpace(gr.Response), nil
}
