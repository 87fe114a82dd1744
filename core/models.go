package core

import (
	"encoding/hex"
	"fmt"

	"github.com/go-crypt/x/blake2b"
)

// MatchType identifies which signal produced a match candidate.
type MatchType int

const (
	// MatchExact means the normalized query equals the term's normalized text.
	MatchExact MatchType = iota + 1
	// MatchFuzzy means the match came from lexical (edit-distance) similarity.
	MatchFuzzy
	// MatchSemantic means the match came from embedding-vector similarity.
	MatchSemantic
)

// String returns the wire representation of the match type.
func (t MatchType) String() string {
	switch t {
	case MatchExact:
		return "exact"
	case MatchFuzzy:
		return "fuzzy"
	case MatchSemantic:
		return "semantic"
	default:
		return "unknown"
	}
}

// Priority returns the ranking priority of the match type.
// Lower is better: exact beats semantic beats fuzzy on score ties.
func (t MatchType) Priority() int {
	switch t {
	case MatchExact:
		return 0
	case MatchSemantic:
		return 1
	case MatchFuzzy:
		return 2
	default:
		return 3
	}
}

// MarshalJSON encodes the match type as its string form.
func (t MatchType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON decodes the string form of a match type.
func (t *MatchType) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"exact"`:
		*t = MatchExact
	case `"fuzzy"`:
		*t = MatchFuzzy
	case `"semantic"`:
		*t = MatchSemantic
	default:
		return fmt.Errorf("%w: %s", ErrInvalidMatchType, data)
	}
	return nil
}

// StandardTerm is one entry of the canonical term catalog.
// Terms are immutable after the catalog is loaded.
type StandardTerm struct {
	Id    uint32 `json:"id"`
	Text  string `json:"term"`
	Label string `json:"label"`
}

// MatchCandidate is an internal scoring record produced by the matchers.
// Exact candidates always carry a score of 1.0.
type MatchCandidate struct {
	TermId uint32    `json:"term_id"`
	Score  float64   `json:"score"`
	Type   MatchType `json:"match_type"`
}

// RankedMatch is the externally visible form of a candidate joined with
// its standard term. A ranked result holds at most one entry per term id.
type RankedMatch struct {
	Term       StandardTerm `json:"term"`
	Similarity float64      `json:"similarity"`
	Distance   float64      `json:"distance"`
	Type       MatchType    `json:"match_type"`
}

// CandidateSpan is a contiguous substring of a passage considered for
// standardization. Offsets are byte offsets into the source text.
type CandidateSpan struct {
	Start int
	End   int
	Text  string
}

// Overlaps reports whether two spans intersect in the source text.
func (s CandidateSpan) Overlaps(other CandidateSpan) bool {
	return s.Start < other.End && other.Start < s.End
}

// ReplacementRecord aggregates all replacements of the same
// (original, standard) pair within one passage.
type ReplacementRecord struct {
	Original   string    `json:"original"`
	Standard   string    `json:"standard"`
	Count      uint32    `json:"count"`
	Similarity float64   `json:"similarity"`
	Type       MatchType `json:"match_type"`
}

// StandardizeResult is the outcome of standardizing one passage.
// Degraded is true when semantic matching was unavailable and the
// result was produced from exact and fuzzy signals only.
type StandardizeResult struct {
	OriginalText      string              `json:"original_text"`
	ProcessedText     string              `json:"processed_text"`
	Replacements      []ReplacementRecord `json:"replacements"`
	TotalReplacements uint32              `json:"total_replacements"`
	Degraded          bool                `json:"degraded"`
}

// CatalogStats summarizes the loaded catalog.
type CatalogStats struct {
	TotalTerms   int    `json:"total_terms"`
	UniqueLabels int    `json:"unique_labels"`
	Fingerprint  string `json:"fingerprint"`
}

// FingerprintOf computes a deterministic fingerprint over an ordered
// sequence of texts using BLAKE2b. Identical catalogs produce identical
// fingerprints, so the value identifies an index snapshot.
func FingerprintOf(texts []string) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	for _, text := range texts {
		h.Write([]byte(text))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
