package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/application/session"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/infrastructure/cache"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/infrastructure/network"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/infrastructure/observability"
)

type keyEcho struct{}

func (keyEcho) FetchFunc(key record.Key) cache.FetchFunc {
	return func(context.Context) (any, error) {
		if key.Category == record.Attachments {
			return nil, fmt.Errorf("storage offline")
		}
		return map[string]string{"key": key.String()}, nil
	}
}

type testServer struct {
	router    http.Handler
	collector *observability.Collector
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	collector := observability.NewCollector("test")
	manager := session.NewManager(session.ManagerConfig{
		Session:    session.Config{QuietPeriod: time.Hour},
		Thresholds: network.DefaultThresholds(),
	}, session.Deps{Fetches: keyEcho{}, Recorder: collector})
	t.Cleanup(manager.CloseAll)

	h := NewHandler(manager, record.ViewScoped, nil)
	return &testServer{
		router:    NewRouter(h, collector, RouterConfig{MetricsPath: "/metrics"}, nil),
		collector: collector,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) openSession(t *testing.T, subject string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/sessions", `{"subject":"`+subject+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.ID
}

func TestCreateSession(t *testing.T) {
	s := newTestServer(t)

	id := s.openSession(t, "p1")
	assert.NotEmpty(t, id)

	rec := s.do(t, http.MethodPost, "/sessions", `{"subject":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/sessions", `{"patient":"p1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivateView(t *testing.T) {
	s := newTestServer(t)
	id := s.openSession(t, "p1")

	rec := s.do(t, http.MethodPost, "/sessions/"+id+"/views/evolution", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp viewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "evolution", resp.View)
	assert.Equal(t, "view", resp.Strategy)
	assert.False(t, resp.Complete)
	assert.Contains(t, resp.Payloads, "goals")
	require.Contains(t, resp.Errors, "attachments")
	assert.Equal(t, "FETCH_FAILURE", string(resp.Errors["attachments"].Type))

	rec = s.do(t, http.MethodPost, "/sessions/"+id+"/views/evolution?strategy=critical", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var critical viewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &critical))
	assert.True(t, critical.Complete)
	assert.Empty(t, critical.Errors)
	assert.Len(t, critical.Categories, 3)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/sessions/"+id+"/views/billing", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/sessions/"+id+"/views/evolution?strategy=eager", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/sessions/nope/views/evolution", "").Code)
}

func TestInvalidateAndGetEntry(t *testing.T) {
	s := newTestServer(t)
	id := s.openSession(t, "p1")
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/sessions/"+id+"/views/evolution?strategy=critical", "").Code)

	rec := s.do(t, http.MethodPost, "/sessions/"+id+"/invalidate", `{"target":"goals"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var inv invalidateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.Equal(t, 1, inv.Affected)

	rec = s.do(t, http.MethodGet, "/sessions/"+id+"/entries/goals", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entry struct {
		Key   string `json:"key"`
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, "p1/goals", entry.Key)
	assert.Equal(t, "stale", entry.State)

	rec = s.do(t, http.MethodGet, "/sessions/"+id+"/entries/surgeries", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, "empty", entry.State)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/sessions/"+id+"/invalidate", `{"target":"billing"}`).Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.collector.Invalidations.WithLabelValues("goals")))
}

func TestReportNetwork(t *testing.T) {
	s := newTestServer(t)
	id := s.openSession(t, "p1")

	rec := s.do(t, http.MethodPut, "/sessions/"+id+"/network", `{"rtt":900,"effectiveType":"4g"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp networkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Degraded)

	rec = s.do(t, http.MethodPut, "/sessions/"+id+"/network", `{"rtt":50,"downlink":10}`)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Degraded)
}

func TestRefocusAndClose(t *testing.T) {
	s := newTestServer(t)
	id := s.openSession(t, "p1")

	rec := s.do(t, http.MethodPost, "/sessions/"+id+"/refocus", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"revalidated":[]}`, rec.Body.String())

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/sessions/"+id, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/sessions/"+id, "").Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	s.openSession(t, "p1")

	rec := s.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","sessions":1}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_http_requests_total")
}

func TestRouter_CORS(t *testing.T) {
	manager := session.NewManager(session.ManagerConfig{}, session.Deps{Fetches: keyEcho{}})
	t.Cleanup(manager.CloseAll)
	router := NewRouter(NewHandler(manager, record.ViewScoped, nil), nil, RouterConfig{
		AllowedOrigins: []string{"https://app.example.com"},
	}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/sessions", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
