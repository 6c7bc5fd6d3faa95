package observe

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/LiaiZenApp/liazen-api/pkg/jwtx"
)

// Metrics holds the API instruments. It is safe for concurrent use.
type Metrics struct {
	authTotal     metric.Int64Counter
	loginTotal    metric.Int64Counter
	keyFetchTotal metric.Int64Counter
	keyCount      metric.Int64Gauge
	httpDuration  metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	authTotal, err := meter.Int64Counter(
		"auth.resolve.total",
		metric.WithDescription("Principal resolutions by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	loginTotal, err := meter.Int64Counter(
		"auth.login.total",
		metric.WithDescription("Login and refresh attempts by outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	keyFetchTotal, err := meter.Int64Counter(
		"jwks.fetch.total",
		metric.WithDescription("JWKS fetches by result"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	keyCount, err := meter.Int64Gauge(
		"jwks.keys",
		metric.WithDescription("Signing keys in the last successful JWKS fetch"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, err
	}

	httpDuration, err := meter.Float64Histogram(
		"http.server.duration_ms",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		authTotal:     authTotal,
		loginTotal:    loginTotal,
		keyFetchTotal: keyFetchTotal,
		keyCount:      keyCount,
		httpDuration:  httpDuration,
	}, nil
}

// RecordAuth counts one principal resolution outcome.
func (m *Metrics) RecordAuth(ctx context.Context, outcome string, issuer jwtx.IssuerKind) {
	attrs := []attribute.KeyValue{attribute.String("outcome", outcome)}
	if issuer != "" {
		attrs = append(attrs, attribute.String("issuer", string(issuer)))
	}
	m.authTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLogin counts one login or refresh attempt.
func (m *Metrics) RecordLogin(ctx context.Context, kind, outcome string) {
	m.loginTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

// RecordKeyFetch matches the KeyCache fetch hook.
func (m *Metrics) RecordKeyFetch(keys int, err error) {
	ctx := context.Background()
	if err != nil {
		m.keyFetchTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "error")))
		return
	}
	m.keyFetchTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	m.keyCount.Record(ctx, int64(keys))
}

// HTTPMiddleware records request durations by route pattern and status.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.httpDuration.Record(r.Context(), float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(
				attribute.String("http.route", route),
				attribute.String("http.method", r.Method),
				attribute.Int("http.status_code", sw.status),
			))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
