package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/fyrsmithlabs/finsight/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

// fakeEmbeddingServer answers OpenAI /embeddings requests with a
// deterministic 3-d vector per input.
func fakeEmbeddingServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type datum struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]datum, len(req.Input))
		for i, in := range req.Input {
			data[i] = datum{Object: "embedding", Embedding: []float32{float32(len(in)), 1, 0}, Index: i}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func TestOpenAIProvider_EmbedQueryAndDocuments(t *testing.T) {
	srv := fakeEmbeddingServer(t, nil)
	defer srv.Close()

	p, err := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL + "/v1", Model: "text-embedding-3-small", Dimension: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, p.Dimension())

	vec, err := p.EmbedQuery(context.Background(), "apple")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 1, 0}, vec)

	vecs, err := p.EmbedDocuments(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, float32(1), vecs[0][0])
	assert.Equal(t, float32(2), vecs[1][0])
}

func TestOpenAIProvider_EmptyInput(t *testing.T) {
	p, err := NewOpenAIProvider(OpenAIConfig{BaseURL: "http://localhost:1", Model: "m"})
	require.NoError(t, err)

	_, err = p.EmbedQuery(context.Background(), "")
	assert.True(t, errors.Is(err, ErrEmptyInput))

	_, err = p.EmbedDocuments(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrEmptyInput))
}

func TestOpenAIProvider_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL, Model: "m", Dimension: 3})
	require.NoError(t, err)

	_, err = p.EmbedQuery(context.Background(), "apple")
	assert.True(t, errors.Is(err, ErrEmbeddingFailed))
}

func TestNewOpenAIProvider_Validation(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIConfig{Model: "m"})
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = NewOpenAIProvider(OpenAIConfig{BaseURL: "http://localhost"})
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestNewProvider_UnknownProvider(t *testing.T) {
	_, err := NewProvider(context.Background(), ProviderConfig{Provider: "word2vec"}, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestNewProvider_OpenAI(t *testing.T) {
	p, err := NewProvider(context.Background(), ProviderConfig{
		Provider: "openai",
		BaseURL:  "http://localhost:1",
		Model:    "text-embedding-3-small",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 1536, p.Dimension())
	_, ok := p.(*instrumented)
	assert.True(t, ok)
}

func TestNewProvider_OpenAIRecordsMetrics(t *testing.T) {
	var calls int32
	srv := fakeEmbeddingServer(t, &calls)
	defer srv.Close()

	inner, err := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL, Model: "mini", Dimension: 3})
	require.NoError(t, err)

	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m := newMetrics(mp.Meter(instrumentationName), zaptest.NewLogger(t))
	p := WithMetrics(inner, "mini", m)

	_, err = p.EmbedQuery(context.Background(), "apple")
	require.NoError(t, err)
	_, err = p.EmbedQuery(context.Background(), "")
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			counts[m.Name] = true
			if m.Name == "finsight.embedding.errors_total" {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				require.Len(t, sum.DataPoints, 1)
				assert.Equal(t, int64(1), sum.DataPoints[0].Value)
			}
		}
	}
	assert.True(t, counts["finsight.embedding.generation_duration_seconds"])
	assert.True(t, counts["finsight.embedding.batch_size"])
	assert.True(t, counts["finsight.embedding.errors_total"])
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestConfigFrom(t *testing.T) {
	c := config.EmbeddingsConfig{
		Provider:  "openai",
		Model:     "text-embedding-3-small",
		Dimension: 1536,
		BaseURL:   "https://api.openai.com/v1",
		APIKey:    config.Secret("sk-test"),
	}
	pc := ConfigFrom(c)
	assert.Equal(t, "openai", pc.Provider)
	assert.Equal(t, "sk-test", pc.APIKey)
	assert.Equal(t, 1536, pc.Dimension)
}

func TestModelDimension(t *testing.T) {
	dim, ok := ModelDimension("sentence-transformers/all-MiniLM-L6-v2")
	assert.True(t, ok)
	assert.Equal(t, 384, dim)

	_, ok = ModelDimension("unknown")
	assert.False(t, ok)

	assert.Equal(t, 1024, detectDimension("acme-large-v2"))
	assert.Equal(t, 768, detectDimension("acme-base"))
	assert.Equal(t, 384, detectDimension("acme"))

	assert.True(t, isSymmetric("sentence-transformers/all-MiniLM-L6-v2"))
	assert.False(t, isSymmetric("BAAI/bge-small-en-v1.5"))
}
