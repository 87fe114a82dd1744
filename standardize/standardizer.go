package standardize

import (
	"context"
	"log/slog"
	"runtime"
	"slices"
	"strings"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/termstd/catalog"
	"github.com/poiesic/termstd/core"
	"github.com/poiesic/termstd/match"
)

// Standardizer identifies catalog terms inside free text and rewrites
// them to their canonical form. It orchestrates span extraction, per-span
// ranking, and non-overlap resolution.
type Standardizer struct {
	catalog       *catalog.Catalog
	ranker        *match.Ranker
	maxSpanTokens int
	pool          *ants.Pool
	logger        *slog.Logger
}

// Option configures a Standardizer.
type Option func(*Standardizer) error

// WithMaxSpanTokens sets the n-gram window for span extraction.
// Default is DefaultMaxSpanTokens.
func WithMaxSpanTokens(n int) Option {
	return func(s *Standardizer) error {
		if n > 0 {
			s.maxSpanTokens = n
		}
		return nil
	}
}

// WithPoolSize sets the worker pool size for batch standardization.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(s *Standardizer) error {
		if size < 1 {
			size = 1
		}
		if s.pool != nil {
			s.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		s.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Standardizer) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewStandardizer creates a standardizer over the catalog and ranker.
func NewStandardizer(cat *catalog.Catalog, ranker *match.Ranker, opts ...Option) (*Standardizer, error) {
	if cat == nil {
		return nil, ErrCatalogRequired
	}
	if ranker == nil {
		return nil, ErrRankerRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	s := &Standardizer{
		catalog:       cat,
		ranker:        ranker,
		maxSpanTokens: DefaultMaxSpanTokens,
		pool:          pool,
		logger:        slog.Default().With("component", "standardizer"),
	}
	for _, opt := range opts {
		if optErr := opt(s); optErr != nil {
			s.Release()
			return nil, optErr
		}
	}
	return s, nil
}

// Release releases the batch worker pool.
// The standardizer should not be used after calling Release.
func (s *Standardizer) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// scoredSpan pairs a candidate span with its best match.
type scoredSpan struct {
	span core.CandidateSpan
	best core.MatchCandidate
}

// Standardize rewrites catalog terms found in text to their canonical
// form. The threshold is on the internal [0,1] scale.
//
// Accepted replacement spans are pairwise disjoint. Spans whose text
// already equals the canonical form are accepted as no-op replacements
// and reported in the ledger, which makes a second pass over the output
// idempotent.
func (s *Standardizer) Standardize(ctx context.Context, text string, threshold float64) (core.StandardizeResult, error) {
	if err := core.ValidateText(text); err != nil {
		return core.StandardizeResult{}, err
	}

	result := core.StandardizeResult{
		OriginalText:  text,
		ProcessedText: text,
		Replacements:  []core.ReplacementRecord{},
	}

	spans := ExtractSpans(text, s.maxSpanTokens)
	if len(spans) == 0 {
		return result, nil
	}

	scored := make([]scoredSpan, 0, len(spans))
	for _, span := range spans {
		rank, err := s.ranker.Rank(ctx, span.Text, match.Options{
			TopK:                1,
			Threshold:           threshold,
			ShortCircuitOnExact: true,
		})
		if err != nil {
			return core.StandardizeResult{}, err
		}
		if rank.Degraded {
			result.Degraded = true
		}
		if len(rank.Candidates) == 0 {
			continue
		}
		scored = append(scored, scoredSpan{span: span, best: rank.Candidates[0]})
	}

	accepted := selectNonOverlapping(scored)
	s.rewrite(&result, accepted)

	s.logger.Debug("standardized passage",
		"spans", len(spans), "matched", len(scored), "accepted", len(accepted), "degraded", result.Degraded)
	return result, nil
}

// selectNonOverlapping picks a pairwise-disjoint subset of matched
// spans with a greedy interval policy: candidates are visited in
// (score descending, span length descending, start ascending) order
// and accepted only when they do not intersect an earlier acceptance.
// Deterministic and linear after the sort; not globally optimal
// weighted interval scheduling, which the domain does not need.
func selectNonOverlapping(scored []scoredSpan) []scoredSpan {
	slices.SortFunc(scored, func(a, b scoredSpan) int {
		if a.best.Score != b.best.Score {
			if a.best.Score > b.best.Score {
				return -1
			}
			return 1
		}
		aLen, bLen := a.span.End-a.span.Start, b.span.End-b.span.Start
		if aLen != bLen {
			return bLen - aLen
		}
		return a.span.Start - b.span.Start
	})

	accepted := make([]scoredSpan, 0, len(scored))
	for _, cand := range scored {
		overlaps := false
		for _, chosen := range accepted {
			if cand.span.Overlaps(chosen.span) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			accepted = append(accepted, cand)
		}
	}
	return accepted
}

// rewrite replaces accepted spans left to right and fills the
// replacement ledger in first-seen order.
func (s *Standardizer) rewrite(result *core.StandardizeResult, accepted []scoredSpan) {
	if len(accepted) == 0 {
		return
	}

	slices.SortFunc(accepted, func(a, b scoredSpan) int {
		return a.span.Start - b.span.Start
	})

	type ledgerKey struct {
		original string
		termId   uint32
	}
	ledgerIndex := make(map[ledgerKey]int)

	var b strings.Builder
	b.Grow(len(result.OriginalText))
	pos := 0
	for _, item := range accepted {
		term, ok := s.catalog.Get(item.best.TermId)
		if !ok {
			continue
		}

		b.WriteString(result.OriginalText[pos:item.span.Start])
		b.WriteString(term.Text)
		pos = item.span.End

		key := ledgerKey{original: catalog.Normalize(item.span.Text), termId: term.Id}
		if i, seen := ledgerIndex[key]; seen {
			result.Replacements[i].Count++
		} else {
			ledgerIndex[key] = len(result.Replacements)
			result.Replacements = append(result.Replacements, core.ReplacementRecord{
				Original:   item.span.Text,
				Standard:   term.Text,
				Count:      1,
				Similarity: item.best.Score,
				Type:       item.best.Type,
			})
		}
		result.TotalReplacements++
	}
	b.WriteString(result.OriginalText[pos:])
	result.ProcessedText = b.String()
}
