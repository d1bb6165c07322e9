// Package ai wraps the Gemini API behind the three pure operations the
// platform needs: embedding, generation and toxicity classification. Each
// persona may override the process-wide API key; clients are cached per key.
package ai

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

const DefaultEmbedModel = "gemini-embedding-001"

type AIService struct {
	defaultKey string
	embedModel string

	mu      sync.Mutex
	clients map[string]*genai.Client // keyed by API key
}

func NewAIService(defaultKey string) *AIService {
	return &AIService{
		defaultKey: defaultKey,
		embedModel: DefaultEmbedModel,
		clients:    make(map[string]*genai.Client),
	}
}

func (ai *AIService) clientFor(ctx context.Context, apiKeyOverride string) (*genai.Client, error) {
	key := ai.defaultKey
	if apiKeyOverride != "" {
		key = apiKeyOverride
	}
	if key == "" {
		return nil, fmt.Errorf("no Gemini API key configured")
	}

	ai.mu.Lock()
	defer ai.mu.Unlock()
	if client, ok := ai.clients[key]; ok {
		return client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: key})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	ai.clients[key] = client
	return client, nil
}

// Embed returns the embedding vector for one text chunk.
func (ai *AIService) Embed(ctx context.Context, text string, apiKeyOverride string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("no text provided for embedding")
	}
	client, err := ai.clientFor(ctx, apiKeyOverride)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	res, err := client.Models.EmbedContent(ctx, ai.embedModel, contents, &genai.EmbedContentConfig{
		TaskType: "RETRIEVAL_QUERY",
	})
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(res.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return res.Embeddings[0].Values, nil
}

// Generate produces a reply for the assembled prompt under a persona's system
// instruction and model.
func (ai *AIService) Generate(ctx context.Context, prompt, systemInstruction, modelName, apiKeyOverride string) (string, error) {
	client, err := ai.clientFor(ctx, apiKeyOverride)
	if err != nil {
		return "", err
	}

	var cfg *genai.GenerateContentConfig
	if systemInstruction != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		}
	}

	resp, err := client.Models.GenerateContent(ctx, modelName, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty generation response (possibly blocked by safety filters)")
	}
	return resp.Text(), nil
}
