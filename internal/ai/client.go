// Package ai adapts the external Gemini inference service for asset analysis
// and case-study synthesis. Both operations request strict structured JSON
// output and degrade through capability tiers on failure.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ericthayer/devlog/internal/logging"
	"google.golang.org/genai"
)

// Capability-tier budgets. The enhanced tier allocates a thinking budget and
// a paired output-token ceiling; the service rejects one without the other.
const (
	analysisThinkingBudget   = 16384
	analysisMaxOutputTokens  = 20480
	synthesisThinkingBudget  = 24576
	synthesisMaxOutputTokens = 32768
)

// Config holds the inference service settings.
type Config struct {
	APIKey string

	// DefaultModel serves the fast tier, EnhancedModel the reasoning tier.
	DefaultModel  string
	EnhancedModel string

	Timeout time.Duration
}

// generator is the slice of the genai client the adapters call. *genai.Models
// satisfies it; tests substitute a fake.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client issues analysis and synthesis requests against the Gemini API.
type Client struct {
	gen     generator
	logger  logging.Logger
	cfg     Config
	timeout time.Duration
}

// NewClient initializes the genai client for the Gemini API backend.
func NewClient(ctx context.Context, cfg Config, logger logging.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-3-flash-preview"
	}
	if cfg.EnhancedModel == "" {
		cfg.EnhancedModel = "gemini-3-pro-preview"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	logger.Info(ctx, "gemini client initialized",
		"default_model", cfg.DefaultModel,
		"enhanced_model", cfg.EnhancedModel,
		"timeout", cfg.Timeout)

	return &Client{
		gen:     client.Models,
		logger:  logger,
		cfg:     cfg,
		timeout: cfg.Timeout,
	}, nil
}

// generate performs a single GenerateContent call with the client timeout
// applied and returns the concatenated text of the first candidate that has
// any.
func (c *Client) generate(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.gen.GenerateContent(timeoutCtx, model, contents, config)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					text.WriteString(part.Text)
				}
			}
			if text.Len() > 0 {
				break
			}
		}
	}

	if text.Len() == 0 {
		return "", fmt.Errorf("no content returned from model %s", model)
	}
	return text.String(), nil
}
