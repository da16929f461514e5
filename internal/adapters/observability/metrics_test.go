package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"coffeemap/internal/adapters/observability"
)

func scrape(t *testing.T) string {
	t.Helper()
	reg := observability.InitRegistry()
	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	return string(body)
}

func TestMetricsRegistryAndHandler(t *testing.T) {
	// record one sample so counters are non-zero
	observability.ObserveHTTP("/coffee/api/all/", "GET", 200, 12*time.Millisecond)
	observability.ObserveQuery("nearest", "ok", 3*time.Millisecond)
	observability.ObserveCache("redis", "hit")

	out := scrape(t)
	for _, want := range []string{
		"coffeemap_http_requests_total",
		`coffeemap_geo_queries_total{outcome="ok",query="nearest"}`,
		"coffeemap_geo_query_duration_seconds_bucket",
		`coffeemap_cache_events_total{cache="redis",event="hit"}`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in output", want)
		}
	}
}

func TestServe_DisabledWithoutAddr(t *testing.T) {
	if srv := observability.Serve("", observability.InitRegistry()); srv != nil {
		t.Fatalf("expected nil server for empty addr")
	}
}
