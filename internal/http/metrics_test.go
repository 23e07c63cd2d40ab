package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fyrsmithlabs/finsight/internal/intent"
	"github.com/fyrsmithlabs/finsight/internal/orchestrator"
	"github.com/fyrsmithlabs/finsight/internal/telemetry"
	"github.com/fyrsmithlabs/finsight/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

// counts sums an int64 counter's data points by the given attribute.
func counts(t *testing.T, tel *telemetry.TestTelemetry, name, key string) map[string]int64 {
	t.Helper()
	rm, err := tel.Collect(context.Background())
	require.NoError(t, err)
	m, ok := telemetry.FindMetric(rm, name)
	require.True(t, ok, "metric %s not recorded", name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	out := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key(key))
		out[v.AsString()] += dp.Value
	}
	return out
}

func metricsServer(t *testing.T, tel *telemetry.TestTelemetry, answerer Answerer) *Server {
	t.Helper()
	server, err := NewServer(answerer, nil, zap.NewNop(), &Config{
		Meter: tel.Meter(InstrumentationName),
	})
	require.NoError(t, err)
	return server
}

func TestHTTPMetrics_LabelsQueriesBySource(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	var next orchestrator.Source
	server := metricsServer(t, tel, answerFunc(func(context.Context, string) (*orchestrator.AnswerResult, error) {
		return &orchestrator.AnswerResult{Message: "m", Source: next, ParsedQuery: intent.Default()}, nil
	}))

	for _, src := range []orchestrator.Source{orchestrator.SourceStore, orchestrator.SourceLive, orchestrator.SourceLive} {
		next = src
		rec := postQuery(t, server, `{"query":"q"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	bySource := counts(t, tel, "finsight.http.requests_total", "source")
	assert.Equal(t, map[string]int64{"store": 1, "live": 2, "none": 1}, bySource)

	byEndpoint := counts(t, tel, "finsight.http.requests_total", "endpoint")
	assert.Equal(t, int64(3), byEndpoint["/query"])
	assert.Equal(t, int64(1), byEndpoint["/health"])

	rm, err := tel.Collect(context.Background())
	require.NoError(t, err)
	dur, ok := telemetry.FindMetric(rm, "finsight.http.request_duration_seconds")
	require.True(t, ok)
	var recorded uint64
	for _, dp := range dur.Data.(metricdata.Histogram[float64]).DataPoints {
		recorded += dp.Count
	}
	assert.Equal(t, uint64(4), recorded)
}

func TestHTTPMetrics_StoreFailure(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	server := metricsServer(t, tel, answerFunc(func(context.Context, string) (*orchestrator.AnswerResult, error) {
		return nil, errors.Join(orchestrator.ErrRetrievalFailed, vectorstore.ErrCollectionNotFound)
	}))

	rec := postQuery(t, server, `{"query":"q"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	rec = postQuery(t, server, `{"query":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, map[string]int64{"store_unavailable": 1, "bad_request": 1},
		counts(t, tel, "finsight.http.query_failures_total", "reason"))

	// Handler errors are counted with the status echo writes, not the
	// default 200.
	assert.Equal(t, map[string]int64{"502": 1, "400": 1},
		counts(t, tel, "finsight.http.requests_total", "status"))
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "unmatched", routeLabel(""))
	assert.Equal(t, "/query", routeLabel("/query"))
	assert.Equal(t, "/api/v1/status", routeLabel("/api/v1/status"))
}
