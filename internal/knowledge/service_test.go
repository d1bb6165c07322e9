package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubEmbedder struct{ dim int }

func (e *stubEmbedder) Embed(context.Context, string, string) ([]float32, error) {
	v := make([]float32, e.dim)
	v[0] = 1
	return v, nil
}

func TestServiceCreateStoresEntry(t *testing.T) {
	store := NewMemoryStore(3)
	svc := NewService(store, &stubEmbedder{dim: 3}, zap.NewNop())

	id, err := svc.Create(context.Background(), "rules", "no spoilers", "botA", false)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	results, err := store.Search(context.Background(), []float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
	assert.Equal(t, "no spoilers", results[0].Payload.Content)
	assert.Equal(t, "botA", results[0].Payload.OwnerBotID)
}

func TestServiceCreateRejectsEmptyContent(t *testing.T) {
	store := NewMemoryStore(3)
	svc := NewService(store, &stubEmbedder{dim: 3}, zap.NewNop())

	_, err := svc.Create(context.Background(), "title", "   ", "", true)
	require.Error(t, err)

	results, err := store.Search(context.Background(), []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results, "nothing may be persisted on a rejected write")
}

func TestServiceDeleteIsIdempotent(t *testing.T) {
	store := NewMemoryStore(3)
	svc := NewService(store, &stubEmbedder{dim: 3}, zap.NewNop())

	id, err := svc.Create(context.Background(), "t", "content", "", true)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), id))
	require.NoError(t, svc.Delete(context.Background(), id))
}
