// Package knowledge owns the vector-backed knowledge store: durable storage
// of embedded text chunks with ownership metadata, cosine similarity search,
// and hard scope filtering.
package knowledge

import (
	"context"
	"fmt"

	"discord-persona-bot/internal/models"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Payload is the metadata stored alongside each vector.
type Payload struct {
	Title      string
	Content    string
	OwnerBotID string // empty means no exclusive owner
	IsGlobal   bool   // visible under any scoping mode
}

// SearchResult is one ranked hit. Score is the raw cosine similarity as
// computed by the store (1 - cosine distance, range [-1, 1]); it is never
// rescaled.
type SearchResult struct {
	ID      string
	Score   float64
	Payload Payload
}

// Filter is a hard precondition on search: entries failing it are excluded,
// not down-ranked.
type Filter struct {
	Mode  string // models.RagModeIsolated or models.RagModeHybrid
	BotID string
}

// Matches reports whether an entry with the given ownership metadata passes
// the filter. An isolated or hybrid filter with no bot id matches nothing
// owner-wise: scope never silently widens to global.
func (f *Filter) Matches(ownerBotID string, isGlobal bool) bool {
	if f == nil {
		return true
	}
	switch f.Mode {
	case models.RagModeIsolated:
		return f.BotID != "" && ownerBotID == f.BotID
	case models.RagModeHybrid:
		return isGlobal || (f.BotID != "" && ownerBotID == f.BotID)
	default:
		return true
	}
}

// Store is the similarity-search contract the retrieval policy depends on.
type Store interface {
	// Upsert stores or overwrites one entry. The write is all-or-nothing:
	// vector and metadata land together or not at all.
	Upsert(ctx context.Context, id string, vector []float32, payload Payload) error
	// Search returns at most limit entries ranked by cosine similarity,
	// best first, with filter applied as a hard precondition.
	Search(ctx context.Context, vector []float32, limit int, filter *Filter) ([]SearchResult, error)
	// Delete removes an entry. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
}

// PostgresStore keeps vectors and metadata in one pgvector-typed row per
// entry.
type PostgresStore struct {
	db  *gorm.DB
	dim int
}

func NewPostgresStore(db *gorm.DB, dim int) *PostgresStore {
	return &PostgresStore{db: db, dim: dim}
}

func (s *PostgresStore) checkDim(vector []float32) error {
	if len(vector) != s.dim {
		return fmt.Errorf("vector dimension mismatch: got %d, store expects %d", len(vector), s.dim)
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, id string, vector []float32, payload Payload) error {
	if err := s.checkDim(vector); err != nil {
		return err
	}
	entry := models.KnowledgeEntry{
		ID:         id,
		Title:      payload.Title,
		Content:    payload.Content,
		OwnerBotID: payload.OwnerBotID,
		IsGlobal:   payload.IsGlobal,
		Embedding:  pgvector.NewVector(vector),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&entry).Error
}

func (s *PostgresStore) Search(ctx context.Context, vector []float32, limit int, filter *Filter) ([]SearchResult, error) {
	if err := s.checkDim(vector); err != nil {
		return nil, err
	}
	v := pgvector.NewVector(vector)

	q := s.db.WithContext(ctx).Model(&models.KnowledgeEntry{})
	if filter != nil {
		switch filter.Mode {
		case models.RagModeIsolated:
			q = q.Where("owner_bot_id = ? AND owner_bot_id <> ''", filter.BotID)
		case models.RagModeHybrid:
			q = q.Where("(owner_bot_id = ? AND owner_bot_id <> '') OR is_global = ?", filter.BotID, true)
		}
	}

	var rows []struct {
		ID         string
		Title      string
		Content    string
		OwnerBotID string
		IsGlobal   bool
		Score      float64
	}
	err := q.Select("id, title, content, owner_bot_id, is_global, 1 - (embedding <=> ?) AS score", v).
		Clauses(clause.OrderBy{
			Expression: clause.Expr{SQL: "embedding <=> ?", Vars: []interface{}{v}, WithoutParentheses: true},
		}).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("knowledge search failed: %w", err)
	}

	results := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, SearchResult{
			ID:    row.ID,
			Score: row.Score,
			Payload: Payload{
				Title:      row.Title,
				Content:    row.Content,
				OwnerBotID: row.OwnerBotID,
				IsGlobal:   row.IsGlobal,
			},
		})
	}
	return results, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.KnowledgeEntry{}, "id = ?", id).Error
}
