package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
)

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector("test")
	b := NewCollector("test")

	a.RecordLookup(record.Goals, "hit")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.CacheLookups.WithLabelValues("goals", "hit")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CacheLookups.WithLabelValues("goals", "hit")))
}

func TestCollector_RecordFetchUsesErrorCode(t *testing.T) {
	c := NewCollector("test")

	c.RecordFetch(record.Goals, nil, 20*time.Millisecond)
	c.RecordFetch(record.Goals, errors.FetchFailure(errors.CodeCircuitOpen, "open").Build(), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheFetches.WithLabelValues("goals", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheFetches.WithLabelValues("goals", errors.CodeCircuitOpen)))
}

func TestCollector_PrefetchAndPool(t *testing.T) {
	c := NewCollector("test")

	c.RecordPrefetch(record.Surgeries, "dispatched")
	c.RecordPrefetch(record.Category(0), "network_degraded")
	c.RecordTaskSubmission("prefetch", false)
	c.RecordQueueDepth("prefetch", 3)
	c.RecordInvalidation(record.SoapDrafts)
	c.RecordEntries(7)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.PrefetchOutcomes.WithLabelValues("surgeries", "dispatched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.PrefetchOutcomes.WithLabelValues("none", "network_degraded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.PoolSubmissions.WithLabelValues("prefetch", "false")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.PoolQueueDepth.WithLabelValues("prefetch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Invalidations.WithLabelValues("soap-drafts")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.CacheEntries))
}

func TestHTTPMiddleware_RecordsRoutePattern(t *testing.T) {
	c := NewCollector("test")
	r := chi.NewRouter()
	r.Use(HTTPMiddleware(c, nil))
	r.Get("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/abc", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/sessions/{id}", "204")))
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("development", "")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger("production", "loud")
	assert.Error(t, err)
}

func TestInitTracing_Disabled(t *testing.T) {
	tp, err := InitTracing(context.Background(), TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NotNil(t, tp.Tracer())
	assert.NoError(t, tp.Shutdown(context.Background()))
}
