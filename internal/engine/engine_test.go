package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/akaclinicalco/jtskb/internal/chunker"
	"github.com/akaclinicalco/jtskb/internal/domain"
	"github.com/akaclinicalco/jtskb/internal/index"
	"github.com/akaclinicalco/jtskb/internal/retriever"
	"github.com/akaclinicalco/jtskb/internal/router"
)

// keywordProvider embeds text as a weighted bag of clinical keywords. The
// weights mimic idf: specific terms dominate common ones, which is enough to
// rank passages the way a real sentence embedder would for these fixtures.
type keywordProvider struct {
	fail bool
}

var keywordWeights = []struct {
	word   string
	weight float32
}{
	{"epinephrine", 4},
	{"dose", 4},
	{"1mg", 4},
	{"administer", 1},
	{"cardiac", 1},
	{"arrest", 1},
	{"repeat", 1},
	{"every", 1},
	{"minutes", 1},
	{"iv", 1},
}

func (p *keywordProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if p.fail {
		return nil, domain.ErrEmbeddingUnavailable
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		vec := make([]float32, len(keywordWeights))
		for j, kw := range keywordWeights {
			if strings.Contains(lower, kw.word) {
				vec[j] = kw.weight
			}
		}
		out[i] = vec
	}
	return out, nil
}

func (p *keywordProvider) Dimensions() int { return len(keywordWeights) }

// memStore is an in-memory PassageStore over a flat index.
type memStore struct {
	idx      *index.Flat
	passages map[string]domain.Passage
}

func buildMemStore(t *testing.T, provider *keywordProvider, passages []domain.Passage) *memStore {
	t.Helper()
	idx, err := index.NewFlat(provider.Dimensions())
	require.NoError(t, err)
	s := &memStore{
		idx:      idx,
		passages: make(map[string]domain.Passage),
	}
	for i := range passages {
		texts := []string{passages[i].Text}
		vecs, err := provider.Embed(context.Background(), texts)
		require.NoError(t, err)
		passages[i].Embedding = vecs[0]
		require.NoError(t, s.idx.Add(passages[i].ID, vecs[0]))
		s.passages[passages[i].ID] = passages[i]
	}
	return s
}

func (s *memStore) Search(query []float32, k int) ([]index.Hit, error) {
	return s.idx.Search(query, k), nil
}

func (s *memStore) Lookup(id string) (domain.Passage, error) {
	p, ok := s.passages[id]
	if !ok {
		return domain.Passage{}, domain.ErrPassageNotFound
	}
	return p, nil
}

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) Execute(ctx context.Context, qc domain.QueryContext, req domain.GenerationRequest) (router.Result, error) {
	args := m.Called(ctx, qc, req)
	return args.Get(0).(router.Result), args.Error(1)
}

func (m *mockExecutor) Cached(qc domain.QueryContext) (router.Result, bool) {
	args := m.Called(qc)
	return args.Get(0).(router.Result), args.Bool(1)
}

func TestAnswerEndToEnd(t *testing.T) {
	const doc = "Administer 1mg epinephrine IV for cardiac arrest. Repeat every 3-5 minutes."

	provider := &keywordProvider{}
	passages, err := chunker.Chunk(doc, "protocol", chunker.Config{MaxLen: 40, Overlap: 10})
	require.NoError(t, err)
	require.Greater(t, len(passages), 1)

	store := buildMemStore(t, provider, passages)
	ret := retriever.New(provider, store)

	t.Run("query ranks the dosing passage first", func(t *testing.T) {
		rr, err := ret.Retrieve(context.Background(), "epinephrine dose for cardiac arrest", 1, 0)
		require.NoError(t, err)
		require.Len(t, rr, 1)
		assert.Equal(t, "protocol#000000", rr[0].Passage.ID)
		assert.Contains(t, rr[0].Passage.Text, "Administer 1mg epinephrine")
	})

	t.Run("pipeline carries the passage into the prompt", func(t *testing.T) {
		exec := new(mockExecutor)
		exec.On("Execute", mock.Anything, mock.Anything, mock.MatchedBy(func(req domain.GenerationRequest) bool {
			return strings.Contains(req.Prompt, "Administer 1mg epinephrine") &&
				strings.Contains(req.Prompt, "epinephrine dose for cardiac arrest") &&
				req.MaxTokens == 150
		})).Return(router.Result{Answer: "Give 1mg epinephrine IV, repeat every 3-5 minutes.", Tier: "remote"}, nil)

		eng := New(ret, exec, Config{TopK: 1, TokenBudget: 512, MaxTokens: 150, Temperature: 0.3})
		resp, err := eng.Answer(context.Background(), domain.QueryContext{RawQuery: "epinephrine dose for cardiac arrest"}, "")
		require.NoError(t, err)
		assert.Equal(t, "Give 1mg epinephrine IV, repeat every 3-5 minutes.", resp.Answer)
		assert.Equal(t, "remote", resp.Tier)
		assert.Equal(t, 1, resp.ChunksFound)
		exec.AssertExpectations(t)
	})
}

func TestAnswer(t *testing.T) {
	provider := &keywordProvider{}
	store := buildMemStore(t, provider, []domain.Passage{
		{ID: "jts#000000", SourceDocument: "jts", Text: "Administer 1mg epinephrine IV for cardiac arrest."},
	})
	ret := retriever.New(provider, store)

	t.Run("extracted clinical fields reach the executor", func(t *testing.T) {
		exec := new(mockExecutor)
		exec.On("Execute", mock.Anything, mock.MatchedBy(func(qc domain.QueryContext) bool {
			return qc.StructuredFields["weight"] == "80kg" &&
				qc.StructuredFields["ketamine dose"] == "40mg IV"
		}), mock.MatchedBy(func(req domain.GenerationRequest) bool {
			return strings.Contains(req.Prompt, "weight: 80kg")
		})).Return(router.Result{Answer: "ok", Tier: "remote"}, nil)

		eng := New(ret, exec, Config{TopK: 3})
		_, err := eng.Answer(context.Background(), domain.QueryContext{RawQuery: "ketamine dose for an 80kg patient"}, "")
		require.NoError(t, err)
		exec.AssertExpectations(t)
	})

	t.Run("caller-supplied fields win over extracted ones", func(t *testing.T) {
		exec := new(mockExecutor)
		exec.On("Execute", mock.Anything, mock.MatchedBy(func(qc domain.QueryContext) bool {
			return qc.StructuredFields["weight"] == "95kg"
		}), mock.Anything).Return(router.Result{Answer: "ok", Tier: "remote"}, nil)

		eng := New(ret, exec, Config{})
		_, err := eng.Answer(context.Background(), domain.QueryContext{
			RawQuery:         "ketamine dose for an 80kg patient",
			StructuredFields: map[string]string{"weight": "95kg"},
		}, "")
		require.NoError(t, err)
		exec.AssertExpectations(t)
	})

	t.Run("no relevant context still generates", func(t *testing.T) {
		exec := new(mockExecutor)
		exec.On("Execute", mock.Anything, mock.Anything, mock.MatchedBy(func(req domain.GenerationRequest) bool {
			return !strings.Contains(req.Prompt, "[CONTEXT START]")
		})).Return(router.Result{Answer: "general answer", Tier: "local"}, nil)

		eng := New(ret, exec, Config{TopK: 3, MinScore: 0.99})
		resp, err := eng.Answer(context.Background(), domain.QueryContext{RawQuery: "how do I tie a shoelace"}, "")
		require.NoError(t, err)
		assert.Equal(t, 0, resp.ChunksFound)
		exec.AssertExpectations(t)
	})

	t.Run("embedding failure falls back to a cached answer", func(t *testing.T) {
		failing := retriever.New(&keywordProvider{fail: true}, store)
		exec := new(mockExecutor)
		exec.On("Cached", mock.Anything).Return(router.Result{Answer: "cached", Tier: "cache", Cached: true}, true)

		eng := New(failing, exec, Config{})
		resp, err := eng.Answer(context.Background(), domain.QueryContext{RawQuery: "epinephrine dose"}, "")
		require.NoError(t, err)
		assert.True(t, resp.Cached)
		assert.Equal(t, "cached", resp.Answer)
	})

	t.Run("embedding failure without a cached answer is fatal", func(t *testing.T) {
		failing := retriever.New(&keywordProvider{fail: true}, store)
		exec := new(mockExecutor)
		exec.On("Cached", mock.Anything).Return(router.Result{}, false)

		eng := New(failing, exec, Config{})
		_, err := eng.Answer(context.Background(), domain.QueryContext{RawQuery: "epinephrine dose"}, "")
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})

	t.Run("exhaustion propagates", func(t *testing.T) {
		exec := new(mockExecutor)
		exec.On("Execute", mock.Anything, mock.Anything, mock.Anything).
			Return(router.Result{}, domain.ErrExhausted)

		eng := New(ret, exec, Config{})
		_, err := eng.Answer(context.Background(), domain.QueryContext{RawQuery: "epinephrine dose"}, "")
		assert.ErrorIs(t, err, domain.ErrExhausted)
	})

	t.Run("tier hint is forwarded", func(t *testing.T) {
		exec := new(mockExecutor)
		exec.On("Execute", mock.Anything, mock.Anything, mock.MatchedBy(func(req domain.GenerationRequest) bool {
			return req.TierHint == "local"
		})).Return(router.Result{Answer: "ok", Tier: "local"}, nil)

		eng := New(ret, exec, Config{})
		_, err := eng.Answer(context.Background(), domain.QueryContext{RawQuery: "epinephrine dose"}, "local")
		require.NoError(t, err)
		exec.AssertExpectations(t)
	})
}

func TestSession(t *testing.T) {
	t.Run("evicts oldest beyond the bound", func(t *testing.T) {
		s := NewSession(3)
		for _, q := range []string{"a", "b", "c", "d"} {
			s.Record(q, "answer "+q)
		}
		h := s.History()
		require.Len(t, h, 3)
		assert.Equal(t, "b", h[0].Question)
		assert.Equal(t, "d", h[2].Question)
	})

	t.Run("history is a copy", func(t *testing.T) {
		s := NewSession(5)
		s.Record("q", "a")
		h := s.History()
		h[0].Question = "mutated"
		assert.Equal(t, "q", s.History()[0].Question)
	})

	t.Run("clear empties the window", func(t *testing.T) {
		s := NewSession(5)
		s.Record("q", "a")
		s.Clear()
		assert.Empty(t, s.History())
	})

	t.Run("non-positive bound uses the default", func(t *testing.T) {
		s := NewSession(0)
		for i := 0; i < DefaultMaxHistory+5; i++ {
			s.Record("q", "a")
		}
		assert.Len(t, s.History(), DefaultMaxHistory)
	})
}
