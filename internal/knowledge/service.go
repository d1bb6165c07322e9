package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Embedder turns a text chunk into a vector of the store's dimension.
type Embedder interface {
	Embed(ctx context.Context, text string, apiKeyOverride string) ([]float32, error)
}

// Service is the write boundary for knowledge entries: it validates input,
// embeds content and stores vector + metadata. Entries are immutable; an edit
// is a delete followed by a fresh Create.
type Service struct {
	store    Store
	embedder Embedder
	logger   *zap.Logger
}

func NewService(store Store, embedder Embedder, logger *zap.Logger) *Service {
	return &Service{store: store, embedder: embedder, logger: logger}
}

// Create embeds content and stores a new entry, returning its generated id.
// Empty content is rejected before anything is persisted.
func (s *Service) Create(ctx context.Context, title, content, ownerBotID string, isGlobal bool) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("knowledge content must not be empty")
	}

	vector, err := s.embedder.Embed(ctx, content, "")
	if err != nil {
		return "", fmt.Errorf("failed to embed knowledge content: %w", err)
	}

	id := uuid.NewString()
	payload := Payload{
		Title:      title,
		Content:    content,
		OwnerBotID: ownerBotID,
		IsGlobal:   isGlobal,
	}
	if err := s.store.Upsert(ctx, id, vector, payload); err != nil {
		return "", fmt.Errorf("failed to store knowledge entry: %w", err)
	}

	s.logger.Info("knowledge entry created",
		zap.String("id", id),
		zap.String("title", title),
		zap.String("owner", ownerBotID),
		zap.Bool("global", isGlobal))
	return id, nil
}

// Delete removes an entry. Safe to call twice.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete knowledge entry %s: %w", id, err)
	}
	return nil
}
