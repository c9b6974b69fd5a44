package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ericthayer/devlog/internal/models"
	"google.golang.org/genai"
)

// MaxNarrativeAssets caps how many staged assets are summarized for the
// narrative. Older staged assets still ride along as the study's artifacts.
const MaxNarrativeAssets = 3

func synthesisSchema() *genai.Schema {
	str := func() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }
	strArray := func() *genai.Schema {
		return &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":     str(),
			"problem":   str(),
			"approach":  str(),
			"outcome":   str(),
			"nextSteps": str(),
			"tags":      strArray(),
			"seoMetadata": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"title":       str(),
					"description": str(),
					"keywords":    strArray(),
				},
			},
		},
		Required: []string{"title", "problem", "approach", "outcome", "nextSteps", "tags", "seoMetadata"},
	}
}

func synthesisPrompt(assets []models.Asset, contextHint string) string {
	var lines []string
	for _, a := range assets {
		lines = append(lines, fmt.Sprintf("- %s (%s, %s)", a.AIName, a.Topic, a.Context))
	}

	return fmt.Sprintf(`Based on these design artifacts:
%s

And this user context: "%s"

Create a professional UX/FE mini-case study.
IMPORTANT: Return standard, human-readable text. DO NOT add spaces between every letter (e.g., return "User Account" not "U S E R  A C C O U N T").

Format:
- title: Clear, descriptive title.
- problem: Concise challenge statement.
- approach: Technical methodology.
- outcome: Results achieved.
- nextSteps: Future roadmap.
- seoMetadata: { title, description, keywords[] }
- tags: 3 string tags.

Return as a structured JSON object.`, strings.Join(lines, "\n"), contextHint)
}

// fallbackPrompt is the simplified prompt used on the lower-capability tier
// after an enhanced-mode failure.
func fallbackPrompt(assets []models.Asset) string {
	names := make([]string, 0, len(assets))
	for _, a := range assets {
		names = append(names, a.AIName)
	}
	return fmt.Sprintf("Based on these design artifacts:\n%s\n\nCreate a case study JSON with title, problem, approach, outcome, nextSteps, tags, and seoMetadata (title, description, keywords).", strings.Join(names, ", "))
}

// SynthesizeCaseStudy asks the inference service to turn up to the three
// most recent assets plus a free-text hint into a structured narrative. On
// enhanced-mode failure it falls back to the default model with a simplified
// non-strict prompt; if that also fails the error propagates as a synthesis
// failure, distinct from per-file analysis errors. Narrative text is
// sanitized against letter-spaced model output before it is returned.
func (c *Client) SynthesizeCaseStudy(ctx context.Context, assets []models.Asset, contextHint string, enhanced bool) (models.NarrativeResult, error) {
	if len(assets) == 0 {
		return models.NarrativeResult{}, fmt.Errorf("synthesize: no assets to summarize")
	}
	if len(assets) > MaxNarrativeAssets {
		assets = assets[len(assets)-MaxNarrativeAssets:]
	}

	result, err := c.runSynthesis(ctx, assets, contextHint, enhanced)
	if err != nil && enhanced {
		c.logger.Warn(ctx, "enhanced synthesis failed, retrying on default tier",
			"asset_count", len(assets), "error", err)
		result, err = c.runFallbackSynthesis(ctx, assets)
	}
	if err != nil {
		return models.NarrativeResult{}, fmt.Errorf("synthesize case study: %w", err)
	}

	return sanitizeNarrative(result), nil
}

func (c *Client) runSynthesis(ctx context.Context, assets []models.Asset, contextHint string, enhanced bool) (models.NarrativeResult, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   synthesisSchema(),
	}

	// Synthesis always runs on the enhanced model; the enhanced flag only
	// controls whether a thinking budget is allocated.
	model := c.cfg.EnhancedModel
	if enhanced {
		config.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(synthesisThinkingBudget)),
		}
		config.MaxOutputTokens = synthesisMaxOutputTokens
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(synthesisPrompt(assets, contextHint)),
		}, genai.RoleUser),
	}

	return c.decodeNarrative(ctx, model, contents, config)
}

func (c *Client) runFallbackSynthesis(ctx context.Context, assets []models.Asset) (models.NarrativeResult, error) {
	// Best-effort structured response: JSON mime type but no strict schema.
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(fallbackPrompt(assets)),
		}, genai.RoleUser),
	}

	return c.decodeNarrative(ctx, c.cfg.DefaultModel, contents, config)
}

func (c *Client) decodeNarrative(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (models.NarrativeResult, error) {
	text, err := c.generateWithRateLimitRetry(ctx, model, contents, config)
	if err != nil {
		return models.NarrativeResult{}, err
	}

	var result models.NarrativeResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return models.NarrativeResult{}, fmt.Errorf("malformed synthesis response: %w", err)
	}
	return result, nil
}

// sanitizeNarrative applies the letter-spacing defense to every free-text
// field of the result.
func sanitizeNarrative(n models.NarrativeResult) models.NarrativeResult {
	n.Title = CollapseLetterSpacing(n.Title)
	n.Problem = CollapseLetterSpacing(n.Problem)
	n.Approach = CollapseLetterSpacing(n.Approach)
	n.Outcome = CollapseLetterSpacing(n.Outcome)
	n.NextSteps = CollapseLetterSpacing(n.NextSteps)
	n.Seo.Title = CollapseLetterSpacing(n.Seo.Title)
	n.Seo.Description = CollapseLetterSpacing(n.Seo.Description)
	for i, tag := range n.Tags {
		n.Tags[i] = CollapseLetterSpacing(tag)
	}
	for i, kw := range n.Seo.Keywords {
		n.Seo.Keywords[i] = CollapseLetterSpacing(kw)
	}
	return n
}
