// Package rag implements the retrieval scoping policy: it translates a
// persona's configured RAG mode into a hard knowledge-store filter and
// produces the context block used for generation.
//
// Scope semantics are the one correctness-critical rule separating personas:
//   - global:   every entry is eligible.
//   - isolated: only entries owned by this persona; global entries are
//     deliberately excluded.
//   - hybrid:   entries owned by this persona plus global entries (union).
//
// An isolated or hybrid persona whose id cannot be resolved fails closed: the
// policy logs a warning and retrieves nothing rather than silently widening
// the scope to global.
package rag

import (
	"context"
	"fmt"
	"strings"

	"discord-persona-bot/internal/knowledge"
	"discord-persona-bot/internal/models"

	"go.uber.org/zap"
)

// NoContext is returned when no knowledge entry matched the query, so prompt
// assembly can state explicitly that no supporting material was found. It is
// distinct from an empty string and from an error.
const NoContext = "No relevant supporting material was found in the server knowledge base."

// DefaultTopK bounds how many entries feed the generation context.
const DefaultTopK = 3

const contextSeparator = "\n---\n"

// Embedder turns the user query into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string, apiKeyOverride string) ([]float32, error)
}

type Retriever struct {
	store    knowledge.Store
	embedder Embedder
	logger   *zap.Logger
	topK     int
}

func NewRetriever(store knowledge.Store, embedder Embedder, logger *zap.Logger) *Retriever {
	return &Retriever{store: store, embedder: embedder, logger: logger, topK: DefaultTopK}
}

// buildFilter maps a persona's RAG mode to a store filter. A nil filter means
// unrestricted (global). ok reports whether retrieval may proceed; a scoped
// mode without a persona id resolves to not-ok (fail closed).
func buildFilter(persona *models.Persona) (filter *knowledge.Filter, ok bool) {
	switch persona.RagMode {
	case models.RagModeIsolated, models.RagModeHybrid:
		if persona.ID == "" {
			return nil, false
		}
		return &knowledge.Filter{Mode: persona.RagMode, BotID: persona.ID}, true
	default:
		return nil, true
	}
}

// Retrieve returns the joined context text for a query under the persona's
// scope, or NoContext when nothing matched.
func (r *Retriever) Retrieve(ctx context.Context, query string, persona *models.Persona) (string, error) {
	results, err := r.search(ctx, query, persona)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return NoContext, nil
	}

	parts := make([]string, 0, len(results))
	for _, res := range results {
		parts = append(parts, res.Payload.Content)
	}
	return strings.Join(parts, contextSeparator), nil
}

// RetrieveDetail returns the full ranked hit list (id, raw cosine score,
// payload) for inspection tooling such as the RAG playground.
func (r *Retriever) RetrieveDetail(ctx context.Context, query string, persona *models.Persona) ([]knowledge.SearchResult, error) {
	return r.search(ctx, query, persona)
}

func (r *Retriever) search(ctx context.Context, query string, persona *models.Persona) ([]knowledge.SearchResult, error) {
	filter, ok := buildFilter(persona)
	if !ok {
		r.logger.Warn("scoped RAG mode without a resolvable persona id, failing closed",
			zap.String("mode", persona.RagMode),
			zap.String("persona", persona.Name))
		return nil, nil
	}

	vector, err := r.embedder.Embed(ctx, query, persona.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := r.store.Search(ctx, vector, r.topK, filter)
	if err != nil {
		return nil, fmt.Errorf("knowledge search failed: %w", err)
	}
	return results, nil
}
