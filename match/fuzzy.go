package match

import (
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/poiesic/termstd/catalog"
	"github.com/poiesic/termstd/core"
)

// Fuzzy scores queries against catalog entries by lexical similarity.
// Scoring is token-order-insensitive: both sides are normalized, their
// tokens sorted, and the Levenshtein similarity of the sorted forms
// taken as the score. Precomputed per-term state makes a full-catalog
// scan cheap; a prefilter skips terms that cannot plausibly score high.
type Fuzzy struct {
	catalog *catalog.Catalog
	sorted  []string            // token-sorted normalized text per term id
	tokens  []map[string]bool   // normalized token set per term id
	logger  *slog.Logger
}

// NewFuzzy creates a fuzzy matcher over the catalog.
func NewFuzzy(cat *catalog.Catalog, opts ...FuzzyOption) (*Fuzzy, error) {
	if cat == nil {
		return nil, ErrCatalogRequired
	}

	f := &Fuzzy{
		catalog: cat,
		sorted:  make([]string, cat.Len()),
		tokens:  make([]map[string]bool, cat.Len()),
		logger:  slog.Default().With("component", "fuzzy-matcher"),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}

	for _, term := range cat.All() {
		tokens := catalog.Tokens(term.Text)
		f.sorted[term.Id] = tokenSort(tokens)
		set := make(map[string]bool, len(tokens))
		for _, token := range tokens {
			set[token] = true
		}
		f.tokens[term.Id] = set
	}

	return f, nil
}

// FuzzyOption configures a Fuzzy matcher.
type FuzzyOption func(*Fuzzy) error

// WithFuzzyLogger sets a custom logger.
// Default is slog.Default().
func WithFuzzyLogger(logger *slog.Logger) FuzzyOption {
	return func(f *Fuzzy) error {
		if logger == nil {
			logger = slog.Default()
		}
		f.logger = logger
		return nil
	}
}

// MatchOption configures a single TopK call.
type MatchOption func(*matchOptions)

type matchOptions struct {
	pool       []core.StandardTerm
	exhaustive bool
}

// WithPool restricts scoring to the given candidate terms instead of
// the whole catalog. Used when scoring passage spans against a reduced
// candidate set.
func WithPool(pool []core.StandardTerm) MatchOption {
	return func(o *matchOptions) {
		o.pool = pool
	}
}

// WithExhaustive disables the candidate prefilter so every term in the
// pool is scored. The prefilter is an optimization only; exhaustive
// mode exists to verify it never drops a true top-K result.
func WithExhaustive() MatchOption {
	return func(o *matchOptions) {
		o.exhaustive = true
	}
}

// TopK returns up to k fuzzy candidates for the query, sorted by score
// descending with term id ascending as the tiebreak. An empty or
// unusable query returns no candidates.
func (f *Fuzzy) TopK(query string, k int, opts ...MatchOption) []core.MatchCandidate {
	if k <= 0 {
		return nil
	}

	options := &matchOptions{}
	for _, opt := range opts {
		opt(options)
	}

	queryTokens := catalog.Tokens(query)
	if len(queryTokens) == 0 {
		return nil
	}
	querySorted := tokenSort(queryTokens)

	pool := options.pool
	if pool == nil {
		pool = f.catalog.All()
	}

	candidates := make([]core.MatchCandidate, 0, min(k, len(pool)))
	for _, term := range pool {
		if !options.exhaustive && !f.plausible(queryTokens, querySorted, term.Id) {
			continue
		}

		score := similarity(querySorted, f.sorted[term.Id])
		if score <= 0 {
			continue
		}
		candidates = append(candidates, core.MatchCandidate{
			TermId: term.Id,
			Score:  score,
			Type:   core.MatchFuzzy,
		})
	}

	slices.SortFunc(candidates, compareCandidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// plausible is the cheap prefilter: a term stays in play if it shares
// a token with the query or its normalized length is within half the
// longer side. Everything it rejects would score far below any
// plausible threshold.
func (f *Fuzzy) plausible(queryTokens []string, querySorted string, id uint32) bool {
	for _, token := range queryTokens {
		if f.tokens[id][token] {
			return true
		}
	}

	termLen := len(f.sorted[id])
	queryLen := len(querySorted)
	longer := max(termLen, queryLen)
	diff := termLen - queryLen
	if diff < 0 {
		diff = -diff
	}
	return diff*2 <= longer
}

// similarity is the Levenshtein similarity of two normalized strings,
// in [0,1]. edlib's StringsSimilarity already returns a similarity
// index, not a distance.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	score, err := edlib.StringsSimilarity(a, b, edlib.Levenshtein)
	if err != nil {
		return 0.0
	}
	return float64(score)
}

// tokenSort joins tokens in sorted order so word order does not affect
// the similarity score.
func tokenSort(tokens []string) string {
	if len(tokens) <= 1 {
		return strings.Join(tokens, " ")
	}
	sorted := make([]string, len(tokens))
	copy(sorted, tokens)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}

// compareCandidates orders by score descending, then match type
// priority, then term id ascending. Shared by the fuzzy matcher and
// the ranker so ordering stays consistent end to end.
func compareCandidates(a, b core.MatchCandidate) int {
	if a.Score > b.Score {
		return -1
	}
	if a.Score < b.Score {
		return 1
	}
	if pa, pb := a.Type.Priority(), b.Type.Priority(); pa != pb {
		return pa - pb
	}
	if a.TermId < b.TermId {
		return -1
	}
	if a.TermId > b.TermId {
		return 1
	}
	return 0
}
