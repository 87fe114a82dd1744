package match

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/termstd/ai"
	"github.com/poiesic/termstd/catalog"
	"github.com/poiesic/termstd/core"
	"github.com/poiesic/termstd/vector"
)

const defaultEmbedTimeout = 5 * time.Second

// Ranker merges exact, fuzzy, and semantic candidate sets into one
// ranked, deduplicated, threshold-filtered list. It is the single
// scoring policy for every operation.
type Ranker struct {
	catalog      *catalog.Catalog
	fuzzy        *Fuzzy
	embedder     ai.Embedder  // nil disables semantic matching
	index        vector.Index // nil disables semantic matching
	embedTimeout time.Duration
	logger       *slog.Logger
}

// RankerOption configures a Ranker.
type RankerOption func(*Ranker) error

// WithSemantic enables semantic matching through the given embedder
// and index. Without it the ranker always runs fuzzy-only and marks
// results degraded.
func WithSemantic(embedder ai.Embedder, index vector.Index) RankerOption {
	return func(r *Ranker) error {
		r.embedder = embedder
		r.index = index
		return nil
	}
}

// WithEmbedTimeout bounds a single embedding call.
// Default is 5s.
func WithEmbedTimeout(timeout time.Duration) RankerOption {
	return func(r *Ranker) error {
		if timeout > 0 {
			r.embedTimeout = timeout
		}
		return nil
	}
}

// WithRankerLogger sets a custom logger.
// Default is slog.Default().
func WithRankerLogger(logger *slog.Logger) RankerOption {
	return func(r *Ranker) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRanker creates a ranker over the catalog and fuzzy matcher.
func NewRanker(cat *catalog.Catalog, fuzzy *Fuzzy, opts ...RankerOption) (*Ranker, error) {
	if cat == nil {
		return nil, ErrCatalogRequired
	}
	if fuzzy == nil {
		return nil, ErrFuzzyRequired
	}

	r := &Ranker{
		catalog:      cat,
		fuzzy:        fuzzy,
		embedTimeout: defaultEmbedTimeout,
		logger:       slog.Default().With("component", "ranker"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Options control a single Rank call. Threshold is on the internal
// [0,1] scale; callers working on the documented 0-100 scale divide
// before calling.
type Options struct {
	// TopK caps the number of returned candidates. Required, > 0.
	TopK int

	// Threshold drops candidates scoring below it.
	Threshold float64

	// ShortCircuitOnExact returns immediately on an exact catalog hit
	// without consulting the other signals. On for standardization,
	// off for search.
	ShortCircuitOnExact bool

	// Pool restricts fuzzy scoring to a candidate subset. Exact and
	// semantic matching always consult the full catalog.
	Pool []core.StandardTerm

	// Exhaustive disables the fuzzy prefilter.
	Exhaustive bool
}

// Result is a ranked candidate list. Degraded is true when semantic
// matching was unavailable and only exact/fuzzy signals contributed.
type Result struct {
	Candidates []core.MatchCandidate
	Degraded   bool
}

// Rank scores the query against the catalog.
//
// An exact normalized hit always yields a candidate with score 1.0
// ranked first. Fuzzy scoring and embed-then-query run concurrently;
// a failing or timed-out embedding call degrades the result to
// fuzzy-only instead of failing it. The returned candidate list never
// contains two entries with the same term id.
func (r *Ranker) Rank(ctx context.Context, query string, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if catalog.Normalize(query) == "" {
		return Result{}, nil
	}

	var exact *core.MatchCandidate
	if term, ok := r.catalog.LookupExact(query); ok {
		exact = &core.MatchCandidate{TermId: term.Id, Score: 1.0, Type: core.MatchExact}
		if opts.ShortCircuitOnExact {
			return Result{Candidates: []core.MatchCandidate{*exact}}, nil
		}
	}

	fuzzyOpts := make([]MatchOption, 0, 2)
	if opts.Pool != nil {
		fuzzyOpts = append(fuzzyOpts, WithPool(opts.Pool))
	}
	if opts.Exhaustive {
		fuzzyOpts = append(fuzzyOpts, WithExhaustive())
	}

	var (
		wg       sync.WaitGroup
		fuzzy    []core.MatchCandidate
		semantic []core.MatchCandidate
		degraded bool
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		fuzzy = r.fuzzy.TopK(query, opts.TopK, fuzzyOpts...)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		semantic, degraded = r.semanticTopK(ctx, query, opts.TopK)
	}()

	wg.Wait()

	merged := mergeCandidates(exact, fuzzy, semantic)

	filtered := merged[:0]
	for _, cand := range merged {
		if cand.Score >= opts.Threshold {
			filtered = append(filtered, cand)
		}
	}

	slices.SortFunc(filtered, compareCandidates)
	if len(filtered) > opts.TopK {
		filtered = filtered[:opts.TopK]
	}

	return Result{Candidates: filtered, Degraded: degraded}, nil
}

// semanticTopK embeds the query and asks the index for nearest terms.
// Any failure returns no candidates and degraded=true; semantic
// matching is best-effort and never fails the request.
func (r *Ranker) semanticTopK(ctx context.Context, query string, k int) ([]core.MatchCandidate, bool) {
	if r.embedder == nil || r.index == nil {
		return nil, true
	}

	embedCtx, cancel := context.WithTimeout(ctx, r.embedTimeout)
	defer cancel()

	vec, err := r.embedder.EmbedText(embedCtx, query)
	if err != nil {
		r.logger.Warn("embedding failed, degrading to fuzzy-only", "err", err)
		return nil, true
	}
	if len(vec) == 0 {
		r.logger.Warn("embedder returned empty vector, degrading to fuzzy-only")
		return nil, true
	}

	hits, err := r.index.QueryTopK(ctx, vec, k)
	if err != nil {
		r.logger.Warn("vector index query failed, degrading to fuzzy-only", "err", err)
		return nil, true
	}

	candidates := make([]core.MatchCandidate, len(hits))
	for i, hit := range hits {
		candidates[i] = core.MatchCandidate{
			TermId: hit.TermId,
			Score:  hit.Similarity,
			Type:   core.MatchSemantic,
		}
	}
	return candidates, false
}

// mergeCandidates groups candidates by term id. When a term has both a
// fuzzy and a semantic candidate the higher score wins; on an exact
// score tie the semantic one is kept, reflecting higher trust in the
// denser signal. An exact candidate always wins its term id.
func mergeCandidates(exact *core.MatchCandidate, fuzzy, semantic []core.MatchCandidate) []core.MatchCandidate {
	byTerm := make(map[uint32]core.MatchCandidate, len(fuzzy)+len(semantic)+1)

	for _, cand := range fuzzy {
		byTerm[cand.TermId] = cand
	}
	for _, cand := range semantic {
		existing, ok := byTerm[cand.TermId]
		if !ok || cand.Score >= existing.Score {
			byTerm[cand.TermId] = cand
		}
	}
	if exact != nil {
		byTerm[exact.TermId] = *exact
	}

	merged := make([]core.MatchCandidate, 0, len(byTerm))
	for _, cand := range byTerm {
		merged = append(merged, cand)
	}
	return merged
}
