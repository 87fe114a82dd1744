package termstd

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/poiesic/termstd/ai/mock"
	"github.com/poiesic/termstd/catalog"
	"github.com/poiesic/termstd/core"
	"github.com/poiesic/termstd/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Entry{
		{Text: "Stock Market", Label: "Equities"},
		{Text: "Gross Domestic Product", Label: "Macro"},
		{Text: "GDP", Label: "Macro"},
		{Text: "Inflation Rate", Label: "Macro"},
		{Text: "Bond Market", Label: "Fixed Income"},
	})
	require.NoError(t, err)
	return c
}

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	svc, err := NewService(context.Background(), testCatalog(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestNewService(t *testing.T) {
	t.Run("fuzzy only", func(t *testing.T) {
		svc := newTestService(t)
		assert.NotNil(t, svc)
	})

	t.Run("with embedder builds index", func(t *testing.T) {
		svc := newTestService(t, WithEmbedder(mock.NewMockEmbedder()))
		stats, err := svc.Stats(context.Background())
		require.NoError(t, err)
		assert.True(t, stats.SemanticEnabled)
		assert.Equal(t, 5, stats.IndexSize)
	})

	t.Run("nil catalog", func(t *testing.T) {
		_, err := NewService(context.Background(), nil)
		assert.Error(t, err)
	})
}

func TestService_Search(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	t.Run("exact match ranks first", func(t *testing.T) {
		result, err := svc.Search(ctx, "stock market", 1)
		require.NoError(t, err)
		require.Len(t, result.Matches, 1)

		top := result.Matches[0]
		assert.Equal(t, "Stock Market", top.Term.Text)
		assert.Equal(t, 1.0, top.Similarity)
		assert.Equal(t, 0.0, top.Distance)
		assert.Equal(t, core.MatchExact, top.Type)
	})

	t.Run("degraded without embedder", func(t *testing.T) {
		result, err := svc.Search(ctx, "inflation", 3)
		require.NoError(t, err)
		assert.True(t, result.Degraded)
	})

	t.Run("deterministic ordering", func(t *testing.T) {
		a, err := svc.Search(ctx, "market", 5)
		require.NoError(t, err)
		b, err := svc.Search(ctx, "market", 5)
		require.NoError(t, err)
		assert.Equal(t, a.Matches, b.Matches)
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := svc.Search(ctx, "  ", 5)
		assert.Equal(t, core.ErrEmptyQuery, err)
	})

	t.Run("invalid top k", func(t *testing.T) {
		_, err := svc.Search(ctx, "gdp", 0)
		assert.ErrorIs(t, err, core.ErrInvalidTopK)
	})
}

func TestService_SearchWithSemantic(t *testing.T) {
	svc := newTestService(t, WithEmbedder(mock.NewMockEmbedder()))

	result, err := svc.Search(context.Background(), "stock market", 3)
	require.NoError(t, err)
	assert.False(t, result.Degraded)
	require.NotEmpty(t, result.Matches)
	assert.Equal(t, core.MatchExact, result.Matches[0].Type)
}

func TestService_Standardize(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	t.Run("rewrites fuzzy and exact mentions", func(t *testing.T) {
		result, err := svc.Standardize(ctx, "The stock mkt rallied while GDP grew.", 70)
		require.NoError(t, err)
		assert.Equal(t, "The Stock Market rallied while GDP grew.", result.ProcessedText)
		assert.Equal(t, uint32(2), result.TotalReplacements)
	})

	t.Run("empty text", func(t *testing.T) {
		_, err := svc.Standardize(ctx, "", 70)
		assert.Equal(t, core.ErrEmptyText, err)
	})

	t.Run("threshold out of range", func(t *testing.T) {
		_, err := svc.Standardize(ctx, "GDP", 101)
		assert.ErrorIs(t, err, core.ErrInvalidThreshold)
		_, err = svc.Standardize(ctx, "GDP", -1)
		assert.ErrorIs(t, err, core.ErrInvalidThreshold)
	})
}

func TestService_BatchStandardize(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	results, err := svc.BatchStandardize(ctx, []string{"GDP rose.", "stock mkt"}, 70)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "GDP rose.", results[0].ProcessedText)
	assert.Equal(t, "Stock Market", results[1].ProcessedText)
}

func TestService_FuzzyMatch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	t.Run("one edit away", func(t *testing.T) {
		candidates, err := svc.FuzzyMatch(ctx, "GDPP", 70, 5)
		require.NoError(t, err)
		require.NotEmpty(t, candidates)

		gdp, ok := svc.catalog.LookupExact("GDP")
		require.True(t, ok)
		assert.Equal(t, gdp.Id, candidates[0].TermId)
		assert.Equal(t, core.MatchFuzzy, candidates[0].Type)
		assert.GreaterOrEqual(t, candidates[0].Score, 0.7)
	})

	t.Run("threshold filters", func(t *testing.T) {
		candidates, err := svc.FuzzyMatch(ctx, "GDPP", 90, 5)
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("invalid limit", func(t *testing.T) {
		_, err := svc.FuzzyMatch(ctx, "GDPP", 70, 0)
		assert.ErrorIs(t, err, core.ErrInvalidLimit)
	})
}

func TestService_Stats(t *testing.T) {
	svc := newTestService(t)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Catalog.TotalTerms)
	assert.Equal(t, 3, stats.Catalog.UniqueLabels)
	assert.False(t, stats.SemanticEnabled)
	assert.Zero(t, stats.IndexSize)
}

func TestSummarize(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		assert.Equal(t, "GDP rose.", summarize("GDP rose."))
	})

	t.Run("long text truncated with ellipsis", func(t *testing.T) {
		long := strings.Repeat("a", 200)
		got := summarize(long)
		assert.Equal(t, strings.Repeat("a", 120)+"...", got)
	})

	t.Run("multi-byte runes never split", func(t *testing.T) {
		long := strings.Repeat("é", 200)
		got := summarize(long)
		assert.True(t, utf8.ValidString(got))
		assert.Equal(t, strings.Repeat("é", 120)+"...", got)
	})

	t.Run("exactly at the limit unchanged", func(t *testing.T) {
		exact := strings.Repeat("é", 120)
		assert.Equal(t, exact, summarize(exact))
	})
}

func TestService_HistoryReporting(t *testing.T) {
	store, err := history.Open("", true)
	require.NoError(t, err)
	svc := newTestService(t, WithRecorder(store))
	ctx := context.Background()

	_, err = svc.Search(ctx, "gdp", 3)
	require.NoError(t, err)

	// history reports are fire-and-forget
	require.Eventually(t, func() bool {
		entries, err := store.Recent(ctx, 10)
		return err == nil && len(entries) == 1
	}, 2*time.Second, 10*time.Millisecond)

	entries, err := svc.History(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "gdp", entries[0].Query)
	assert.Equal(t, history.OpSearch, entries[0].Type)
	assert.Equal(t, uint32(1), entries[0].ResultsCount)

	byType, err := svc.History(ctx, 10, history.OpStandardize)
	require.NoError(t, err)
	assert.Empty(t, byType)

	require.NoError(t, svc.ClearHistory(ctx))
	entries, err = svc.History(ctx, 10, "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
