package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetricsCountsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	metrics, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("NewHTTPMetrics returned error: %v", err)
	}

	router := gin.New()
	router.Use(metrics.Handler())
	router.GET("/users/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, id := range []string{"1", "2", "3"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/"+id, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("request for id %s returned %d", id, rr.Code)
		}
	}

	// All three requests land on the template label, not their raw paths.
	got := testutil.ToFloat64(metrics.Requests.With(prometheus.Labels{
		"method": http.MethodGet,
		"route":  "/users/:id",
		"status": "200",
	}))
	if got != 3 {
		t.Fatalf("request counter = %f, want 3", got)
	}

	if gauge := testutil.ToFloat64(metrics.InFlight); gauge != 0 {
		t.Fatalf("in-flight gauge = %f, want 0 after completion", gauge)
	}
	if samples := testutil.CollectAndCount(metrics.Duration); samples == 0 {
		t.Fatal("duration histogram collected no samples")
	}
}

func TestHTTPMetricsLabelsUnmatchedRoutesByPath(t *testing.T) {
	gin.SetMode(gin.TestMode)

	metrics, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("NewHTTPMetrics returned error: %v", err)
	}

	router := gin.New()
	router.Use(metrics.Handler())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	got := testutil.ToFloat64(metrics.Requests.With(prometheus.Labels{
		"method": http.MethodGet,
		"route":  "/missing",
		"status": "404",
	}))
	if got != 1 {
		t.Fatalf("request counter = %f, want 1", got)
	}
}

func TestHTTPMetricsReregistrationSharesCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()

	first, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("first NewHTTPMetrics returned error: %v", err)
	}
	second, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("second NewHTTPMetrics returned error: %v", err)
	}

	labels := prometheus.Labels{"method": http.MethodGet, "route": "/ping", "status": "200"}
	first.Requests.With(labels).Inc()

	if got := testutil.ToFloat64(second.Requests.With(labels)); got != 1 {
		t.Fatalf("second handle reads %f, want the shared counter value 1", got)
	}
}

func TestHTTPMetricsNilHandlerPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use((*HTTPMetrics)(nil).Handler())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}
