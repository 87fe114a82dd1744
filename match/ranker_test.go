package match

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/termstd/ai/mock"
	"github.com/poiesic/termstd/core"
	"github.com/poiesic/termstd/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubIndex returns a fixed hit list for every query.
type stubIndex struct {
	hits []vector.Hit
	err  error
}

var _ vector.Index = (*stubIndex)(nil)

func (s *stubIndex) QueryTopK(_ context.Context, _ []float32, k int) ([]vector.Hit, error) {
	if s.err != nil {
		return nil, s.err
	}
	hits := s.hits
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *stubIndex) Size() int { return len(s.hits) }

func newTestRanker(t *testing.T, opts ...RankerOption) *Ranker {
	t.Helper()
	cat := testCatalog(t)
	fuzzy, err := NewFuzzy(cat)
	require.NoError(t, err)
	ranker, err := NewRanker(cat, fuzzy, opts...)
	require.NoError(t, err)
	return ranker
}

func TestNewRanker(t *testing.T) {
	cat := testCatalog(t)
	fuzzy, err := NewFuzzy(cat)
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		ranker, err := NewRanker(cat, fuzzy)
		require.NoError(t, err)
		assert.NotNil(t, ranker)
	})

	t.Run("nil catalog", func(t *testing.T) {
		_, err := NewRanker(nil, fuzzy)
		assert.Equal(t, ErrCatalogRequired, err)
	})

	t.Run("nil fuzzy matcher", func(t *testing.T) {
		_, err := NewRanker(cat, nil)
		assert.Equal(t, ErrFuzzyRequired, err)
	})
}

func TestRanker_ExactPrecedence(t *testing.T) {
	ranker := newTestRanker(t, WithSemantic(mock.NewMockEmbedder(), &stubIndex{
		hits: []vector.Hit{{TermId: 1, Similarity: 0.9}},
	}))
	ctx := context.Background()

	result, err := ranker.Rank(ctx, "Stock Market", Options{TopK: 5})
	require.NoError(t, err)
	require.NotEmpty(t, result.Candidates)
	assert.False(t, result.Degraded)

	first := result.Candidates[0]
	assert.Equal(t, uint32(0), first.TermId)
	assert.Equal(t, 1.0, first.Score)
	assert.Equal(t, core.MatchExact, first.Type)
}

func TestRanker_ShortCircuitOnExact(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	ranker := newTestRanker(t, WithSemantic(embedder, &stubIndex{}))
	ctx := context.Background()

	result, err := ranker.Rank(ctx, "gdp", Options{TopK: 5, ShortCircuitOnExact: true})
	require.NoError(t, err)

	require.Len(t, result.Candidates, 1)
	assert.Equal(t, uint32(2), result.Candidates[0].TermId)
	assert.Equal(t, core.MatchExact, result.Candidates[0].Type)
	assert.False(t, result.Degraded)
	// Short circuit means the embedder is never consulted
	assert.Zero(t, embedder.CallCount())
}

func TestRanker_DegradesOnEmbedderFailure(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, errors.New("upstream unavailable")
	}
	ranker := newTestRanker(t, WithSemantic(embedder, &stubIndex{
		hits: []vector.Hit{{TermId: 1, Similarity: 0.95}},
	}))

	result, err := ranker.Rank(context.Background(), "stock mkt", Options{TopK: 5})
	require.NoError(t, err)
	assert.True(t, result.Degraded)

	// Fuzzy candidates still present
	require.NotEmpty(t, result.Candidates)
	for _, cand := range result.Candidates {
		assert.Equal(t, core.MatchFuzzy, cand.Type)
	}
}

func TestRanker_DegradesOnEmbedderTimeout(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, _ string) ([]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	ranker := newTestRanker(t,
		WithSemantic(embedder, &stubIndex{}),
		WithEmbedTimeout(10*time.Millisecond),
	)

	start := time.Now()
	result, err := ranker.Rank(context.Background(), "stock mkt", Options{TopK: 5})
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Less(t, time.Since(start), 2*time.Second, "timeout must bound the call")
}

func TestRanker_DegradesOnIndexFailure(t *testing.T) {
	ranker := newTestRanker(t, WithSemantic(mock.NewMockEmbedder(), &stubIndex{
		err: errors.New("index unavailable"),
	}))

	result, err := ranker.Rank(context.Background(), "stock mkt", Options{TopK: 5})
	require.NoError(t, err)
	assert.True(t, result.Degraded)
}

func TestRanker_DegradedWithoutSemantic(t *testing.T) {
	ranker := newTestRanker(t)

	result, err := ranker.Rank(context.Background(), "stock mkt", Options{TopK: 5})
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.NotEmpty(t, result.Candidates)
}

func TestRanker_MergePrefersHigherScore(t *testing.T) {
	// Semantic reports term 0 with a score above any fuzzy score
	// for this query, so the merged candidate must be semantic.
	ranker := newTestRanker(t, WithSemantic(mock.NewMockEmbedder(), &stubIndex{
		hits: []vector.Hit{{TermId: 0, Similarity: 0.99}},
	}))

	result, err := ranker.Rank(context.Background(), "stok markt", Options{TopK: 5})
	require.NoError(t, err)
	require.NotEmpty(t, result.Candidates)

	assert.Equal(t, uint32(0), result.Candidates[0].TermId)
	assert.Equal(t, core.MatchSemantic, result.Candidates[0].Type)
	assert.Equal(t, 0.99, result.Candidates[0].Score)
}

func TestRanker_NoDuplicateTermIds(t *testing.T) {
	ranker := newTestRanker(t, WithSemantic(mock.NewMockEmbedder(), &stubIndex{
		hits: []vector.Hit{
			{TermId: 0, Similarity: 0.8},
			{TermId: 2, Similarity: 0.7},
			{TermId: 4, Similarity: 0.65},
		},
	}))

	result, err := ranker.Rank(context.Background(), "stock market", Options{TopK: 10})
	require.NoError(t, err)

	seen := make(map[uint32]bool)
	for _, cand := range result.Candidates {
		assert.False(t, seen[cand.TermId], "duplicate term id %d", cand.TermId)
		seen[cand.TermId] = true
	}
}

func TestRanker_ThresholdMonotonicity(t *testing.T) {
	ranker := newTestRanker(t, WithSemantic(mock.NewMockEmbedder(), &stubIndex{
		hits: []vector.Hit{
			{TermId: 1, Similarity: 0.75},
			{TermId: 3, Similarity: 0.55},
		},
	}))
	ctx := context.Background()

	low, err := ranker.Rank(ctx, "stock mkt", Options{TopK: 10, Threshold: 0.3})
	require.NoError(t, err)
	high, err := ranker.Rank(ctx, "stock mkt", Options{TopK: 10, Threshold: 0.7})
	require.NoError(t, err)

	lowIds := make(map[uint32]bool)
	for _, cand := range low.Candidates {
		lowIds[cand.TermId] = true
	}
	for _, cand := range high.Candidates {
		assert.True(t, lowIds[cand.TermId], "high-threshold result %d missing at low threshold", cand.TermId)
		assert.GreaterOrEqual(t, cand.Score, 0.7)
	}
	assert.LessOrEqual(t, len(high.Candidates), len(low.Candidates))
}

func TestRanker_Deterministic(t *testing.T) {
	ranker := newTestRanker(t, WithSemantic(mock.NewMockEmbedder(), &stubIndex{
		hits: []vector.Hit{
			{TermId: 1, Similarity: 0.75},
			{TermId: 2, Similarity: 0.75},
		},
	}))
	ctx := context.Background()

	first, err := ranker.Rank(ctx, "gross domestic", Options{TopK: 5})
	require.NoError(t, err)
	second, err := ranker.Rank(ctx, "gross domestic", Options{TopK: 5})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRanker_EmptyQuery(t *testing.T) {
	ranker := newTestRanker(t)

	result, err := ranker.Rank(context.Background(), "   ", Options{TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
}

func TestRanker_TruncatesToTopK(t *testing.T) {
	ranker := newTestRanker(t)

	result, err := ranker.Rank(context.Background(), "market", Options{TopK: 1})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Candidates), 1)
}

func TestRanker_CancelledContext(t *testing.T) {
	ranker := newTestRanker(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ranker.Rank(ctx, "gdp", Options{TopK: 5})
	assert.ErrorIs(t, err, context.Canceled)
}
