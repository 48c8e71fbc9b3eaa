package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsingest/internal/resilience/circuitbreaker"
)

// newOllamaServer serves /api/embeddings with a fixed-dimension fake model
// that encodes the prompt length into the first component, so tests can
// verify order preservation.
func newOllamaServer(t *testing.T, dim int, requests *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			http.NotFound(w, r)
			return
		}
		if requests != nil {
			requests.Add(1)
		}
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		vec := make([]float32, dim)
		vec[0] = float32(len(req.Prompt))
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: vec})
	}))
}

func TestOllamaDimensionProbe(t *testing.T) {
	srv := newOllamaServer(t, 768, nil)
	defer srv.Close()

	e, err := NewOllama(srv.URL, "custom-model", 4)
	require.NoError(t, err)
	assert.Equal(t, 768, e.Dimension())
	assert.Equal(t, "ollama", e.ProviderName())
}

func TestOllamaDimensionFallback(t *testing.T) {
	// Unreachable host forces the fallback table.
	e, err := NewOllama("http://127.0.0.1:1", "nomic-embed-text:latest", 4)
	require.NoError(t, err)
	assert.Equal(t, 768, e.Dimension())

	_, err = NewOllama("http://127.0.0.1:1", "completely-unknown-model", 4)
	require.Error(t, err)
}

func TestOllamaEmbedDocumentsPreservesOrder(t *testing.T) {
	var requests atomic.Int64
	srv := newOllamaServer(t, 8, &requests)
	defer srv.Close()

	e, err := NewOllama(srv.URL, "custom-model", 3)
	require.NoError(t, err)
	requests.Store(0)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := e.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	assert.Equal(t, int64(len(texts)), requests.Load())

	for i, text := range texts {
		assert.Len(t, vectors[i], 8)
		assert.Equal(t, float32(len(text)), vectors[i][0])
	}
}

func TestOllamaEmbedDocumentsEmpty(t *testing.T) {
	srv := newOllamaServer(t, 8, nil)
	defer srv.Close()

	e, err := NewOllama(srv.URL, "custom-model", 3)
	require.NoError(t, err)

	vectors, err := e.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestOllamaRateLimitKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := &Ollama{
		host:       srv.URL,
		model:      "m",
		client:     srv.Client(),
		dim:        8,
		maxWorkers: 2,
		breaker:    circuitbreaker.New(circuitbreaker.EmbeddingAPIConfig("ollama")),
	}
	_, err := e.EmbedDocuments(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
}

func TestVerifyVectors(t *testing.T) {
	good := [][]float32{{1, 2}, {3, 4}}
	assert.NoError(t, verifyVectors(good, 2, 2))
	assert.Error(t, verifyVectors(good, 3, 2))
	assert.Error(t, verifyVectors(good, 2, 5))
}
