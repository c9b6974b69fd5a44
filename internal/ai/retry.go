package ai

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Rate-limit handling for the Gemini API. One retry, honoring the
// API-suggested delay when present, capped so a long quota window cannot
// strand the pipeline.
const (
	rateLimitBaseDelay = 10 * time.Second
	rateLimitMaxDelay  = 45 * time.Second
)

// isRateLimitError matches 429 status codes and RESOURCE_EXHAUSTED errors.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(msg, "quota")
}

// retryDelayRegexp matches "Please retry in Xs" or "retryDelay:Xs" patterns
// in Gemini error messages.
var retryDelayRegexp = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// extractRetryDelay parses the API-suggested retry delay from a rate-limit
// error, or 0 when none is present.
func extractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	matches := retryDelayRegexp.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}
	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// generateWithRateLimitRetry wraps generate with a single rate-limit retry.
// Other errors pass through untouched so tier fallback can handle them.
func (c *Client) generateWithRateLimitRetry(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	text, err := c.generate(ctx, model, contents, config)
	if err == nil || !isRateLimitError(err) {
		return text, err
	}

	delay := extractRetryDelay(err)
	if delay <= 0 {
		delay = rateLimitBaseDelay
	}
	if delay > rateLimitMaxDelay {
		delay = rateLimitMaxDelay
	}

	c.logger.Warn(ctx, "rate limited, retrying once", "model", model, "delay", delay)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(delay):
	}

	return c.generate(ctx, model, contents, config)
}
