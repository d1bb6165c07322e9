package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Toxicity severity levels.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// ToxicityResult is the classifier verdict for one message.
type ToxicityResult struct {
	IsToxic bool   `json:"is_toxic"`
	Level   string `json:"level"`
	Reason  string `json:"reason"`
}

const toxicityInstruction = `You are a strict content moderation classifier for a Discord community.
Classify the user message for toxicity: insults, slurs, harassment, threats, hate speech or sexual harassment.
Respond with ONLY a JSON object, no markdown fences, in this exact shape:
{"is_toxic": true|false, "level": "low"|"medium"|"high", "reason": "<short explanation>"}
Use "low" for mild rudeness, "medium" for direct insults, "high" for slurs, threats or hate speech.
For clean messages respond {"is_toxic": false, "level": "low", "reason": ""}.`

// ClassifyToxicity runs the moderation classifier over one message.
func (ai *AIService) ClassifyToxicity(ctx context.Context, text, modelName, apiKeyOverride string) (ToxicityResult, error) {
	client, err := ai.clientFor(ctx, apiKeyOverride)
	if err != nil {
		return ToxicityResult{}, err
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(toxicityInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}
	resp, err := client.Models.GenerateContent(ctx, modelName, genai.Text(text), cfg)
	if err != nil {
		return ToxicityResult{}, fmt.Errorf("toxicity classification failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ToxicityResult{}, fmt.Errorf("empty classifier response")
	}

	return ParseToxicityVerdict(resp.Text())
}

// ParseToxicityVerdict decodes the classifier's JSON output, tolerating
// stray markdown fences.
func ParseToxicityVerdict(raw string) (ToxicityResult, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var result ToxicityResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return ToxicityResult{}, fmt.Errorf("unparseable classifier verdict %q: %w", raw, err)
	}
	switch result.Level {
	case LevelLow, LevelMedium, LevelHigh:
	case "":
		result.Level = LevelLow
	default:
		return ToxicityResult{}, fmt.Errorf("unknown toxicity level %q", result.Level)
	}
	return result, nil
}
