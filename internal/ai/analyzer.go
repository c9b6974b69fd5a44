package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ericthayer/devlog/internal/models"
	"google.golang.org/genai"
)

const analysisPrompt = `Analyze this file and extract its properties for a professional naming convention: [topic]-[type]-[context]-[variant]-[version].
Return standard text strings for each field. DO NOT use artificial spacing between characters.
Return as JSON with keys: topic, type, context, variant, version.`

// analysisSchema constrains the response to exactly the five semantic fields.
func analysisSchema() *genai.Schema {
	str := func() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"topic":   str(),
			"type":    str(),
			"context": str(),
			"variant": str(),
			"version": str(),
		},
		Required: []string{"topic", "type", "context", "variant", "version"},
	}
}

// AnalyzeAsset sends one file's bytes to the inference service and returns
// the five semantic fields. With enhanced true the reasoning tier is used
// first; if it fails the call is retried once on the default tier before the
// error is surfaced, so a reasoning-tier outage never blocks ingestion on its
// own. Errors carry the originating file name so a per-file failure can be
// reported without discarding the rest of the batch.
//
// The adapter never substitutes values for missing fields; that is the
// assembler's job.
func (c *Client) AnalyzeAsset(ctx context.Context, fileName string, content []byte, mimeType string, enhanced bool) (models.AnalysisResult, error) {
	if mimeType == "" {
		mimeType = "text/plain"
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(content, mimeType),
			genai.NewPartFromText(analysisPrompt),
		}, genai.RoleUser),
	}

	result, err := c.runAnalysis(ctx, contents, enhanced)
	if err != nil && enhanced {
		// Silent capability downgrade: retry on the default tier before
		// giving up. Logged, not surfaced.
		c.logger.Warn(ctx, "enhanced analysis failed, retrying on default tier",
			"file", fileName, "error", err)
		result, err = c.runAnalysis(ctx, contents, false)
	}
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("analyze %s: %w", fileName, err)
	}

	return result, nil
}

func (c *Client) runAnalysis(ctx context.Context, contents []*genai.Content, enhanced bool) (models.AnalysisResult, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema(),
	}

	model := c.cfg.DefaultModel
	if enhanced {
		model = c.cfg.EnhancedModel
		config.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(analysisThinkingBudget)),
		}
		// Budget plus overhead for the response itself.
		config.MaxOutputTokens = analysisMaxOutputTokens
	}

	text, err := c.generateWithRateLimitRetry(ctx, model, contents, config)
	if err != nil {
		return models.AnalysisResult{}, err
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("malformed analysis response: %w", err)
	}
	return result, nil
}
