// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package termstd

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/termstd/ai"
	"github.com/poiesic/termstd/catalog"
	"github.com/poiesic/termstd/core"
	"github.com/poiesic/termstd/history"
	"github.com/poiesic/termstd/match"
	"github.com/poiesic/termstd/standardize"
	"github.com/poiesic/termstd/vector"
)

const defaultHistoryTimeout = 3 * time.Second

// Service wires the catalog, matchers, standardizer, and history
// recorder into the five public operations.
type Service struct {
	catalog      *catalog.Catalog
	fuzzy        *match.Fuzzy
	ranker       *match.Ranker
	standardizer *standardize.Standardizer
	index        vector.Index // nil when semantic matching is disabled
	recorder     history.Recorder
	logger       *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	embedder      ai.Embedder
	recorder      history.Recorder
	embedTimeout  time.Duration
	maxSpanTokens int
	poolSize      int
	batchSize     int
	logger        *slog.Logger
}

// WithEmbedder enables semantic matching. The catalog is embedded and
// indexed during service construction.
func WithEmbedder(embedder ai.Embedder) ServiceOption {
	return func(o *serviceOptions) {
		o.embedder = embedder
	}
}

// WithRecorder sets the operation history recorder.
// Default is history.Noop.
func WithRecorder(recorder history.Recorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.recorder = recorder
		}
	}
}

// WithEmbedTimeout bounds a single query embedding call.
func WithEmbedTimeout(timeout time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		o.embedTimeout = timeout
	}
}

// WithMaxSpanTokens sets the standardizer's n-gram window.
func WithMaxSpanTokens(n int) ServiceOption {
	return func(o *serviceOptions) {
		o.maxSpanTokens = n
	}
}

// WithBatchPoolSize sets the batch standardization worker count.
func WithBatchPoolSize(size int) ServiceOption {
	return func(o *serviceOptions) {
		o.poolSize = size
	}
}

// WithIndexBatchSize sets the embedding batch size for the startup
// index build.
func WithIndexBatchSize(size int) ServiceOption {
	return func(o *serviceOptions) {
		o.batchSize = size
	}
}

// WithLogger sets the service logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewService assembles a service over the catalog. With an embedder
// configured, every catalog term is embedded and indexed before the
// service is returned; without one the service runs fuzzy-only and
// marks responses degraded.
func NewService(ctx context.Context, cat *catalog.Catalog, opts ...ServiceOption) (*Service, error) {
	if cat == nil {
		return nil, match.ErrCatalogRequired
	}

	options := &serviceOptions{
		recorder: history.Noop{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger.With("component", "service")

	fuzzy, err := match.NewFuzzy(cat, match.WithFuzzyLogger(options.logger))
	if err != nil {
		return nil, err
	}

	var index vector.Index
	rankerOpts := []match.RankerOption{match.WithRankerLogger(options.logger)}
	if options.embedTimeout > 0 {
		rankerOpts = append(rankerOpts, match.WithEmbedTimeout(options.embedTimeout))
	}
	if options.embedder != nil {
		buildOpts := []vector.BuildOption{vector.WithLogger(options.logger)}
		if options.batchSize > 0 {
			buildOpts = append(buildOpts, vector.WithBatchSize(options.batchSize))
		}
		memIndex, err := vector.Build(ctx, options.embedder, cat.Texts(), buildOpts...)
		if err != nil {
			return nil, err
		}
		index = memIndex
		rankerOpts = append(rankerOpts, match.WithSemantic(options.embedder, index))
		logger.Info("vector index built",
			"terms", memIndex.Size(), "fingerprint", cat.Fingerprint())
	} else {
		logger.Warn("no embedder configured, semantic matching disabled")
	}

	ranker, err := match.NewRanker(cat, fuzzy, rankerOpts...)
	if err != nil {
		return nil, err
	}

	stdOpts := []standardize.Option{standardize.WithLogger(options.logger)}
	if options.maxSpanTokens > 0 {
		stdOpts = append(stdOpts, standardize.WithMaxSpanTokens(options.maxSpanTokens))
	}
	if options.poolSize > 0 {
		stdOpts = append(stdOpts, standardize.WithPoolSize(options.poolSize))
	}
	standardizer, err := standardize.NewStandardizer(cat, ranker, stdOpts...)
	if err != nil {
		return nil, err
	}

	return &Service{
		catalog:      cat,
		fuzzy:        fuzzy,
		ranker:       ranker,
		standardizer: standardizer,
		index:        index,
		recorder:     options.recorder,
		logger:       logger,
	}, nil
}

// Close releases the standardizer's worker pool and the history
// recorder.
func (s *Service) Close() error {
	s.standardizer.Release()
	if err := s.recorder.Close(); err != nil {
		s.logger.Error("error closing history recorder", "err", err)
		return err
	}
	return nil
}

// SearchResult is a ranked match list for one query.
type SearchResult struct {
	Matches  []core.RankedMatch `json:"matches"`
	Degraded bool               `json:"degraded"`
}

// Search returns the topK catalog terms ranked against the query by
// all three signals. An exact hit does not short-circuit, so near
// matches still appear below it.
func (s *Service) Search(ctx context.Context, query string, topK int) (*SearchResult, error) {
	if err := core.ValidateQuery(query); err != nil {
		return nil, err
	}
	if err := core.ValidateTopK(topK); err != nil {
		return nil, err
	}

	result, err := s.ranker.Rank(ctx, query, match.Options{TopK: topK})
	if err != nil {
		return nil, err
	}

	matches := make([]core.RankedMatch, 0, len(result.Candidates))
	for _, cand := range result.Candidates {
		term, ok := s.catalog.Get(cand.TermId)
		if !ok {
			continue
		}
		matches = append(matches, core.RankedMatch{
			Term:       term,
			Similarity: cand.Score,
			Distance:   1 - cand.Score,
			Type:       cand.Type,
		})
	}

	s.report(query, history.OpSearch, len(matches))
	return &SearchResult{Matches: matches, Degraded: result.Degraded}, nil
}

// Standardize rewrites catalog terms in text to canonical form.
// The threshold is on the documented 0-100 scale.
func (s *Service) Standardize(ctx context.Context, text string, threshold int) (core.StandardizeResult, error) {
	if err := core.ValidateText(text); err != nil {
		return core.StandardizeResult{}, err
	}
	if err := core.ValidateThreshold(threshold); err != nil {
		return core.StandardizeResult{}, err
	}

	result, err := s.standardizer.Standardize(ctx, text, float64(threshold)/100)
	if err != nil {
		return core.StandardizeResult{}, err
	}

	s.report(summarize(text), history.OpStandardize, int(result.TotalReplacements))
	return result, nil
}

// BatchStandardize standardizes texts concurrently, preserving input
// order. Invalid items yield zero-replacement results instead of
// failing the batch.
func (s *Service) BatchStandardize(ctx context.Context, texts []string, threshold int) ([]core.StandardizeResult, error) {
	if err := core.ValidateThreshold(threshold); err != nil {
		return nil, err
	}

	results, err := s.standardizer.BatchStandardize(ctx, texts, float64(threshold)/100)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, res := range results {
		total += int(res.TotalReplacements)
	}
	s.report(summarizeBatch(texts), history.OpBatchStandardize, total)
	return results, nil
}

// FuzzyMatch returns up to limit lexical-only candidates scoring at or
// above the threshold. The threshold is on the documented 0-100 scale.
func (s *Service) FuzzyMatch(ctx context.Context, query string, threshold, limit int) ([]core.MatchCandidate, error) {
	if err := core.ValidateQuery(query); err != nil {
		return nil, err
	}
	if err := core.ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	if err := core.ValidateLimit(limit); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	minScore := float64(threshold) / 100
	candidates := s.fuzzy.TopK(query, limit)
	filtered := candidates[:0]
	for _, cand := range candidates {
		if cand.Score >= minScore {
			filtered = append(filtered, cand)
		}
	}

	s.report(query, history.OpFuzzyMatch, len(filtered))
	return filtered, nil
}

// Stats summarizes the catalog and index state.
type Stats struct {
	Catalog         core.CatalogStats `json:"catalog"`
	IndexSize       int               `json:"index_size"`
	SemanticEnabled bool              `json:"semantic_enabled"`
	HistorySize     int               `json:"history_size"`
}

// Stats returns catalog, index, and history counters.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		Catalog:         s.catalog.Stats(),
		SemanticEnabled: s.index != nil,
	}
	if s.index != nil {
		stats.IndexSize = s.index.Size()
	}

	size, err := s.recorder.Size(ctx)
	if err != nil {
		s.logger.Warn("failed to read history size", "err", err)
	} else {
		stats.HistorySize = size
	}
	return stats, nil
}

// History returns recent operation records, optionally filtered by
// operation type.
func (s *Service) History(ctx context.Context, limit int, op history.OpType) ([]history.Entry, error) {
	if op != "" {
		return s.recorder.ByType(ctx, op, limit)
	}
	return s.recorder.Recent(ctx, limit)
}

// ClearHistory removes all recorded operations.
func (s *Service) ClearHistory(ctx context.Context) error {
	return s.recorder.Clear(ctx)
}

// report records the operation asynchronously. History failures never
// reach the caller.
func (s *Service) report(query string, op history.OpType, results int) {
	entry := history.Entry{
		Query:        query,
		Type:         op,
		ResultsCount: uint32(results),
		Timestamp:    time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultHistoryTimeout)
		defer cancel()
		if err := s.recorder.Record(ctx, entry); err != nil {
			s.logger.Warn("failed to record history entry", "op", op, "err", err)
		}
	}()
}

// summarize truncates long passages for history records. The cut is
// by runes, never inside a multi-byte character.
func summarize(text string) string {
	const maxRunes = 120
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "..."
}

func summarizeBatch(texts []string) string {
	if len(texts) == 0 {
		return ""
	}
	return summarize(texts[0])
}
