package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// InstrumentationName is the meter scope for HTTP instruments.
const InstrumentationName = "github.com/fyrsmithlabs/finsight/internal/http"

// sourceKey is the echo context key the query handler uses to report where
// an answer came from.
const sourceKey = "finsight.answer_source"

// Failure reasons recorded by query_failures_total.
const (
	failureBadRequest       = "bad_request"
	failureStoreUnavailable = "store_unavailable"
	failureInternal         = "internal"
)

// HTTPMetrics records request counts and latency per route, labelled with
// the answer source for /query, plus query failures by reason.
type HTTPMetrics struct {
	logger        *zap.Logger
	requests      metric.Int64Counter
	duration      metric.Float64Histogram
	queryFailures metric.Int64Counter
}

// NewHTTPMetrics creates the instruments on meter. A nil meter uses the
// global provider.
func NewHTTPMetrics(meter metric.Meter, logger *zap.Logger) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	m := &HTTPMetrics{logger: logger}
	var err error

	m.requests, err = meter.Int64Counter(
		"finsight.http.requests_total",
		metric.WithDescription("HTTP requests by method, endpoint, status and answer source (store, live, none)."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create requests counter", zap.Error(err))
	}

	// Buckets stretch to 30s: a live fallback with grounded search is slow.
	m.duration, err = meter.Float64Histogram(
		"finsight.http.request_duration_seconds",
		metric.WithDescription("HTTP request duration by method, endpoint, status and answer source."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.queryFailures, err = meter.Int64Counter(
		"finsight.http.query_failures_total",
		metric.WithDescription("POST /query requests that produced no answer, by reason."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create query failures counter", zap.Error(err))
	}

	return m
}

// RecordQueryFailure counts a /query request that ended without an answer.
func (m *HTTPMetrics) RecordQueryFailure(ctx context.Context, reason string) {
	if m == nil || m.queryFailures == nil {
		return
	}
	m.queryFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// Middleware records every request once the handler returns.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("endpoint", routeLabel(c.Path())),
				attribute.String("status", strconv.Itoa(statusOf(c, err))),
				attribute.String("source", answerSource(c)),
			)
			ctx := c.Request().Context()
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			return err
		}
	}
}

// statusOf returns the status the client will see. Handler errors are
// written by echo's error handler after the middleware chain unwinds, so the
// response status is not yet set for them.
func statusOf(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func answerSource(c echo.Context) string {
	if s, ok := c.Get(sourceKey).(string); ok && s != "" {
		return s
	}
	return "none"
}

// routeLabel maps unmatched requests to a single label. All finsight routes
// are static, so matched paths are used as-is.
func routeLabel(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}
