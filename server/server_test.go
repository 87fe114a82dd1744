package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/termstd"
	"github.com/poiesic/termstd/catalog"
	"github.com/poiesic/termstd/history"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, opts ...termstd.ServiceOption) *Server {
	t.Helper()
	cat, err := catalog.New([]catalog.Entry{
		{Text: "Stock Market", Label: "Equities"},
		{Text: "Gross Domestic Product", Label: "Macro"},
		{Text: "GDP", Label: "Macro"},
		{Text: "Inflation Rate", Label: "Macro"},
		{Text: "Bond Market", Label: "Fixed Income"},
	})
	require.NoError(t, err)

	svc, err := termstd.NewService(context.Background(), cat, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	return NewServer(svc)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleSearch(t *testing.T) {
	router := newTestServer(t).Router()

	t.Run("exact match", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/search", gin.H{"query": "stock market", "top_k": 1})
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Matches []struct {
				Term struct {
					Text string `json:"term"`
				} `json:"term"`
				Similarity float64 `json:"similarity"`
				MatchType  string  `json:"match_type"`
			} `json:"matches"`
			Degraded bool `json:"degraded"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Matches, 1)
		assert.Equal(t, "Stock Market", resp.Matches[0].Term.Text)
		assert.Equal(t, 1.0, resp.Matches[0].Similarity)
		assert.Equal(t, "exact", resp.Matches[0].MatchType)
		assert.True(t, resp.Degraded)
	})

	t.Run("empty query", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/search", gin.H{"query": "  "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleStandardize(t *testing.T) {
	router := newTestServer(t).Router()

	t.Run("replaces terms", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/standardize",
			gin.H{"text": "The stock mkt rallied while GDP grew.", "threshold": 70})
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			ProcessedText     string `json:"processed_text"`
			TotalReplacements int    `json:"total_replacements"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "The Stock Market rallied while GDP grew.", resp.ProcessedText)
		assert.Equal(t, 2, resp.TotalReplacements)
	})

	t.Run("default threshold applied", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/standardize", gin.H{"text": "GDP rose."})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("threshold out of range", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/standardize", gin.H{"text": "GDP", "threshold": 101})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty text", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/standardize", gin.H{"text": ""})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleBatchStandardize(t *testing.T) {
	router := newTestServer(t).Router()

	w := doJSON(t, router, http.MethodPost, "/api/batch-standardize",
		gin.H{"terms": []string{"GDP rose.", "stock mkt"}, "threshold": 70})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count   int `json:"count"`
		Results []struct {
			ProcessedText string `json:"processed_text"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "Stock Market", resp.Results[1].ProcessedText)
}

func TestHandleMatch(t *testing.T) {
	router := newTestServer(t).Router()

	t.Run("fuzzy only", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/match",
			gin.H{"query": "GDPP", "threshold": 70, "limit": 5})
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Count   int `json:"count"`
			Matches []struct {
				TermId    uint32  `json:"term_id"`
				Score     float64 `json:"score"`
				MatchType string  `json:"match_type"`
			} `json:"matches"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotZero(t, resp.Count)
		assert.Equal(t, "fuzzy", resp.Matches[0].MatchType)
		assert.GreaterOrEqual(t, resp.Matches[0].Score, 0.7)
	})

	t.Run("empty query", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/match", gin.H{"query": ""})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleStatsAndHealth(t *testing.T) {
	router := newTestServer(t).Router()

	w := doJSON(t, router, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats struct {
		Catalog struct {
			TotalTerms   int `json:"total_terms"`
			UniqueLabels int `json:"unique_labels"`
		} `json:"catalog"`
		SemanticEnabled bool `json:"semantic_enabled"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 5, stats.Catalog.TotalTerms)
	assert.Equal(t, 3, stats.Catalog.UniqueLabels)
	assert.False(t, stats.SemanticEnabled)

	w = doJSON(t, router, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestHandleHistory(t *testing.T) {
	store, err := history.Open("", true)
	require.NoError(t, err)
	router := newTestServer(t, termstd.WithRecorder(store)).Router()

	w := doJSON(t, router, http.MethodPost, "/api/search", gin.H{"query": "gdp", "top_k": 3})
	require.Equal(t, http.StatusOK, w.Code)

	// wait for the fire-and-forget report to land
	require.Eventually(t, func() bool {
		entries, err := store.Recent(context.Background(), 10)
		return err == nil && len(entries) == 1
	}, 2*time.Second, 10*time.Millisecond)

	t.Run("list", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/history?limit=10", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Count   int `json:"count"`
			Entries []struct {
				Query string `json:"query"`
				Type  string `json:"type"`
			} `json:"entries"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, 1, resp.Count)
		assert.Equal(t, "gdp", resp.Entries[0].Query)
		assert.Equal(t, "search", resp.Entries[0].Type)
	})

	t.Run("type filter", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/history?type=standardize", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"count":0`)
	})

	t.Run("clear", func(t *testing.T) {
		w := doJSON(t, router, http.MethodDelete, "/api/history", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, router, http.MethodGet, "/api/history", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"count":0`)
	})
}
