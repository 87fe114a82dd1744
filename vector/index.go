package vector

import "context"

// Hit is one result of a top-K similarity query.
type Hit struct {
	TermId     uint32
	Similarity float64
}

// Index answers top-K cosine similarity queries over the catalog's term
// embeddings. Implementations must be safe for concurrent queries; the
// index is built once at startup and never mutated afterwards.
type Index interface {
	// QueryTopK returns up to k hits for the query vector, sorted by
	// similarity descending with term id ascending as the tiebreak.
	QueryTopK(ctx context.Context, vec []float32, k int) ([]Hit, error)

	// Size returns the number of indexed terms.
	Size() int
}
