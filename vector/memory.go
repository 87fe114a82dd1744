package vector

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/poiesic/termstd/ai"
)

const defaultBatchSize = 100

// MemoryIndex is a brute-force in-memory cosine index. Vectors are
// unit-normalized at build time, so cosine similarity reduces to a dot
// product at query time. With a catalog of short strings a linear scan
// is fast enough that no approximate structure is warranted.
type MemoryIndex struct {
	vectors [][]float32
	logger  *slog.Logger
}

var _ Index = (*MemoryIndex)(nil)

// BuildOption configures index construction.
type BuildOption func(*buildOptions)

type buildOptions struct {
	batchSize int
	logger    *slog.Logger
}

// WithBatchSize sets how many terms are embedded per provider call.
// Default is 100.
func WithBatchSize(size int) BuildOption {
	return func(o *buildOptions) {
		if size > 0 {
			o.batchSize = size
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) BuildOption {
	return func(o *buildOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Build embeds every text through the provider and constructs the index.
// Texts are embedded in batches; the term id of texts[i] is uint32(i).
// A failure during the build is fatal: without a complete index the
// process starts degraded-only, which is a deployment mistake rather
// than a runtime condition.
func Build(ctx context.Context, embedder ai.Embedder, texts []string, opts ...BuildOption) (*MemoryIndex, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if len(texts) == 0 {
		return nil, ErrNoTexts
	}

	options := &buildOptions{
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger.With("component", "vector-index")

	logger.Info("building vector index", "terms", len(texts), "batch_size", options.batchSize)

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += options.batchSize {
		end := min(start+options.batchSize, len(texts))

		batch, err := embedder.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding catalog batch at %d: %w", start, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingMismatch, end-start, len(batch))
		}

		for _, vec := range batch {
			vectors = append(vectors, normalize(vec))
		}

		if end%1000 == 0 || end == len(texts) {
			logger.Info("indexed terms", "done", end, "total", len(texts))
		}
	}

	return &MemoryIndex{
		vectors: vectors,
		logger:  logger,
	}, nil
}

// QueryTopK returns up to k hits for the query vector.
func (idx *MemoryIndex) QueryTopK(ctx context.Context, vec []float32, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 || len(vec) == 0 {
		return nil, nil
	}

	query := normalize(vec)

	hits := make([]Hit, 0, len(idx.vectors))
	for id, stored := range idx.vectors {
		// Cosine similarity (dot product for normalized vectors)
		hits = append(hits, Hit{
			TermId:     uint32(id),
			Similarity: dotProduct(query, stored),
		})
	}

	slices.SortFunc(hits, func(a, b Hit) int {
		if a.Similarity > b.Similarity {
			return -1
		}
		if a.Similarity < b.Similarity {
			return 1
		}
		if a.TermId < b.TermId {
			return -1
		}
		if a.TermId > b.TermId {
			return 1
		}
		return 0
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Size returns the number of indexed terms.
func (idx *MemoryIndex) Size() int {
	return len(idx.vectors)
}

// normalize returns the unit-length copy of a vector. Zero vectors are
// returned unchanged.
func normalize(vec []float32) []float32 {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return vec
	}

	norm := float32(1.0 / math.Sqrt(sumSquares))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v * norm
	}
	return out
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float64 {
	var sum float64
	minLen := min(len(a), len(b))
	for i := 0; i < minLen; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
