package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/akaclinicalco/jtskb/internal/domain"
	"github.com/akaclinicalco/jtskb/internal/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProvider is a mock embedding.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockProvider) Dimensions() int {
	args := m.Called()
	return args.Int(0)
}

// MockStore is a mock PassageStore
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Search(query []float32, k int) ([]index.Hit, error) {
	args := m.Called(query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]index.Hit), args.Error(1)
}

func (m *MockStore) Lookup(id string) (domain.Passage, error) {
	args := m.Called(id)
	return args.Get(0).(domain.Passage), args.Error(1)
}

func TestRetriever_Retrieve(t *testing.T) {
	ctx := context.Background()
	queryVec := []float32{1, 0}

	t.Run("filters below min score and resolves passages", func(t *testing.T) {
		provider := new(MockProvider)
		store := new(MockStore)
		provider.On("Embed", ctx, []string{"epi dose"}).Return([][]float32{queryVec}, nil)
		store.On("Search", queryVec, 3).Return([]index.Hit{
			{ID: "a#000000", Score: 0.9},
			{ID: "b#000000", Score: 0.6},
			{ID: "c#000000", Score: 0.2},
		}, nil)
		store.On("Lookup", "a#000000").Return(domain.Passage{ID: "a#000000", Text: "epi 1mg"}, nil)
		store.On("Lookup", "b#000000").Return(domain.Passage{ID: "b#000000", Text: "txa"}, nil)

		r := New(provider, store)
		result, err := r.Retrieve(ctx, "epi dose", 3, 0.5)
		require.NoError(t, err)
		require.Len(t, result, 2)
		assert.Equal(t, "a#000000", result[0].Passage.ID)
		assert.Equal(t, float32(0.9), result[0].Score)
		assert.Equal(t, "b#000000", result[1].Passage.ID)
		store.AssertNotCalled(t, "Lookup", "c#000000")
	})

	t.Run("empty result is valid, not an error", func(t *testing.T) {
		provider := new(MockProvider)
		store := new(MockStore)
		provider.On("Embed", ctx, []string{"unrelated"}).Return([][]float32{queryVec}, nil)
		store.On("Search", queryVec, 5).Return([]index.Hit{{ID: "a#000000", Score: 0.1}}, nil)

		r := New(provider, store)
		result, err := r.Retrieve(ctx, "unrelated", 5, 0.5)
		require.NoError(t, err)
		assert.Empty(t, result)
	})

	t.Run("idempotent for identical arguments", func(t *testing.T) {
		provider := new(MockProvider)
		store := new(MockStore)
		provider.On("Embed", ctx, []string{"q"}).Return([][]float32{queryVec}, nil)
		store.On("Search", queryVec, 2).Return([]index.Hit{{ID: "a#000000", Score: 0.8}}, nil)
		store.On("Lookup", "a#000000").Return(domain.Passage{ID: "a#000000"}, nil)

		r := New(provider, store)
		first, err := r.Retrieve(ctx, "q", 2, 0.5)
		require.NoError(t, err)
		second, err := r.Retrieve(ctx, "q", 2, 0.5)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("embedding failure propagates", func(t *testing.T) {
		provider := new(MockProvider)
		store := new(MockStore)
		provider.On("Embed", ctx, []string{"q"}).Return(nil, domain.ErrEmbeddingUnavailable)

		r := New(provider, store)
		_, err := r.Retrieve(ctx, "q", 2, 0.5)
		assert.True(t, errors.Is(err, domain.ErrEmbeddingUnavailable))
	})

	t.Run("unresolvable index entry is CorruptStore", func(t *testing.T) {
		provider := new(MockProvider)
		store := new(MockStore)
		provider.On("Embed", ctx, []string{"q"}).Return([][]float32{queryVec}, nil)
		store.On("Search", queryVec, 1).Return([]index.Hit{{ID: "ghost", Score: 0.9}}, nil)
		store.On("Lookup", "ghost").Return(domain.Passage{}, domain.ErrPassageNotFound)

		r := New(provider, store)
		_, err := r.Retrieve(ctx, "q", 1, 0)
		assert.True(t, errors.Is(err, domain.ErrCorruptStore))
	})

	t.Run("rejects non-positive k", func(t *testing.T) {
		r := New(new(MockProvider), new(MockStore))
		_, err := r.Retrieve(ctx, "q", 0, 0.5)
		assert.Error(t, err)
	})
}
