package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/poiesic/termstd"
	"github.com/poiesic/termstd/core"
	"github.com/poiesic/termstd/history"
)

const (
	defaultTopK      = 5
	defaultThreshold = 70
	defaultAddr      = ":8080"

	shutdownTimeout = 10 * time.Second
)

// Server exposes the service over HTTP.
type Server struct {
	service   *termstd.Service
	addr      string
	topK      int
	threshold int
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address.
// Default is ":8080".
func WithAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// WithDefaults sets the topK and threshold applied when a request
// omits them.
func WithDefaults(topK, threshold int) Option {
	return func(s *Server) {
		if topK > 0 {
			s.topK = topK
		}
		if threshold >= 0 && threshold <= 100 {
			s.threshold = threshold
		}
	}
}

// WithServerLogger sets a custom logger.
// Default is slog.Default().
func WithServerLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger.With("component", "server")
		}
	}
}

// NewServer creates an HTTP server over the service.
func NewServer(service *termstd.Service, opts ...Option) *Server {
	s := &Server{
		service:   service,
		addr:      defaultAddr,
		topK:      defaultTopK,
		threshold: defaultThreshold,
		logger:    slog.Default().With("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.POST("/search", s.handleSearch)
	api.POST("/standardize", s.handleStandardize)
	api.POST("/batch-standardize", s.handleBatchStandardize)
	api.POST("/match", s.handleMatch)
	api.GET("/stats", s.handleStats)
	api.GET("/health", s.handleHealth)
	api.GET("/history", s.handleHistory)
	api.DELETE("/history", s.handleClearHistory)

	return r
}

// Run serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// isValidationError reports whether the error maps to a 400 response.
func isValidationError(err error) bool {
	return errors.Is(err, core.ErrEmptyQuery) ||
		errors.Is(err, core.ErrEmptyText) ||
		errors.Is(err, core.ErrInvalidThreshold) ||
		errors.Is(err, core.ErrInvalidTopK) ||
		errors.Is(err, core.ErrInvalidLimit)
}

func (s *Server) fail(c *gin.Context, err error) {
	if isValidationError(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.logger.Error("request failed", "path", c.FullPath(), "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (s *Server) handleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.TopK == 0 {
		req.TopK = s.topK
	}

	result, err := s.service.Search(c.Request.Context(), req.Query, req.TopK)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type standardizeRequest struct {
	Text      string `json:"text"`
	Threshold *int   `json:"threshold"`
}

func (s *Server) handleStandardize(c *gin.Context) {
	var req standardizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	threshold := s.threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	result, err := s.service.Standardize(c.Request.Context(), req.Text, threshold)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type batchStandardizeRequest struct {
	Terms     []string `json:"terms"`
	Threshold *int     `json:"threshold"`
}

func (s *Server) handleBatchStandardize(c *gin.Context) {
	var req batchStandardizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	threshold := s.threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	results, err := s.service.BatchStandardize(c.Request.Context(), req.Terms, threshold)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

type matchRequest struct {
	Query     string `json:"query"`
	Threshold *int   `json:"threshold"`
	Limit     int    `json:"limit"`
}

func (s *Server) handleMatch(c *gin.Context) {
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	threshold := s.threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if req.Limit == 0 {
		req.Limit = s.topK
	}

	matches, err := s.service.FuzzyMatch(c.Request.Context(), req.Query, threshold, req.Limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches, "count": len(matches)})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.service.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleHealth(c *gin.Context) {
	stats, err := s.service.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"terms":            stats.Catalog.TotalTerms,
		"semantic_enabled": stats.SemanticEnabled,
	})
}

type historyQuery struct {
	Limit int    `form:"limit"`
	Type  string `form:"type"`
}

func (s *Server) handleHistory(c *gin.Context) {
	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}

	entries, err := s.service.History(c.Request.Context(), q.Limit, history.OpType(q.Type))
	if err != nil {
		s.fail(c, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

func (s *Server) handleClearHistory(c *gin.Context) {
	if err := s.service.ClearHistory(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
