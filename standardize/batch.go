package standardize

import (
	"context"
	"sync"

	"github.com/poiesic/termstd/core"
)

// BatchStandardize standardizes texts concurrently over the worker
// pool and returns results in input order. Items fail in isolation:
// an empty item yields a zero-replacement result carrying the original
// text rather than failing the batch.
func (s *Standardizer) BatchStandardize(ctx context.Context, texts []string, threshold float64) ([]core.StandardizeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]core.StandardizeResult, len(texts))
	var wg sync.WaitGroup
	for i, text := range texts {
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			res, itemErr := s.Standardize(ctx, text, threshold)
			if itemErr != nil {
				s.logger.Warn("batch item skipped", "index", i, "error", itemErr)
				results[i] = core.StandardizeResult{
					OriginalText:  text,
					ProcessedText: text,
					Replacements:  []core.ReplacementRecord{},
				}
				return
			}
			results[i] = res
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, err
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
