package routes_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/Prekzursil/event-link-sub001/internal/infra/config"
	httproutes "github.com/Prekzursil/event-link-sub001/internal/transport/http/routes"
)

type pingStub struct {
	err error
}

func (p pingStub) Ping(ctx context.Context) error {
	return p.err
}

// newTestEngine registers the full route table with minimal dependencies and
// lets a test tweak them before registration.
func newTestEngine(t *testing.T, mutate func(*httproutes.Dependencies)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	deps := httproutes.Dependencies{
		Config: &config.AppConfig{App: config.AppSettings{Env: "test"}},
		Logger: zaptest.NewLogger(t),
	}
	if mutate != nil {
		mutate(&deps)
	}
	return httproutes.Register(deps)
}

func performRequest(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestEngine(t, nil)

	w := performRequest(r, http.MethodGet, "/healthz")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}

func TestReadyEndpointReportsFailingDependency(t *testing.T) {
	r := newTestEngine(t, func(deps *httproutes.Dependencies) {
		deps.Database = pingStub{err: errors.New("connection refused")}
	})

	w := performRequest(r, http.MethodGet, "/readyz")

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", w.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode readiness body: %v", err)
	}
	if body.Status != "degraded" {
		t.Fatalf("expected degraded status, got %q", body.Status)
	}
	if body.Checks["database"] != "connection refused" {
		t.Fatalf("unexpected database check result %q", body.Checks["database"])
	}
}

func TestMetricsEndpointRegistered(t *testing.T) {
	r := newTestEngine(t, nil)

	w := performRequest(r, http.MethodGet, "/metrics")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	r := newTestEngine(t, nil)

	w := performRequest(r, http.MethodGet, "/api/v1/does-not-exist")

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}
