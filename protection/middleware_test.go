package protection

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"protection-gateway/protection/application"
	"protection-gateway/protection/domain"
	"protection-gateway/protection/infra"
)

func newTestPipeline(t *testing.T, s application.Settings) (*application.Pipeline, domain.BlockRegistry) {
	t.Helper()

	settings, err := application.NewSettingsManager(s)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	registry := infra.NewMemoryBlockRegistry()
	edge := application.NewEdgeCoordinator(nil, zerolog.Nop())
	p := &application.Pipeline{
		Registry: registry,
		Geo:      &application.GeoFilter{Settings: settings, Log: zerolog.Nop()},
		Limiter: &application.RateLimiter{
			Counters: infra.NewMemoryCounterStore(),
			Settings: settings,
			Log:      zerolog.Nop(),
		},
		Recorder: &application.Recorder{
			Violations: infra.NewMemoryViolationLog(50, 0),
			Registry:   registry,
			Settings:   settings,
			Edge:       edge,
			Log:        zerolog.Nop(),
		},
		Edge:     edge,
		Settings: settings,
		Log:      zerolog.Nop(),
	}
	return p, registry
}

func okUpstream() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("upstream"))
	})
}

func TestMiddleware_AllowedRequestReachesUpstream(t *testing.T) {
	p, _ := newTestPipeline(t, application.DefaultSettings())
	h := Middleware(Options{Pipeline: p, AddDecisionHeaders: true})(okUpstream())

	r := httptest.NewRequest("GET", "http://example.com/api", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK || w.Body.String() != "upstream" {
		t.Fatalf("expected upstream response, got %d %q", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Protection-Outcome"); got != "ALLOW" {
		t.Fatalf("expected decision header ALLOW, got %q", got)
	}
}

func TestMiddleware_BlockedClientGets403WithBody(t *testing.T) {
	p, registry := newTestPipeline(t, application.DefaultSettings())
	if _, err := registry.Block(context.Background(), "10.0.0.1", domain.BlockReasonManual, time.Hour, 0, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h := Middleware(Options{Pipeline: p})(okUpstream())
	r := httptest.NewRequest("GET", "http://example.com/api", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code       string `json:"code"`
			RetryAfter int    `json:"retryAfter"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Success {
		t.Fatalf("expected success=false")
	}
	if body.Error.Code != "IP_BLOCKED" || body.Error.RetryAfter <= 0 {
		t.Fatalf("unexpected error body %+v", body.Error)
	}
}

func TestMiddleware_RateLimitGets429(t *testing.T) {
	s := application.DefaultSettings()
	s.Limits.PerClient = application.ScopeLimit{Window: time.Minute, Max: 2}
	s.Limits.PerRoute = application.ScopeLimit{Window: time.Minute, Max: 1000}
	p, _ := newTestPipeline(t, s)

	h := Middleware(Options{Pipeline: p})(okUpstream())
	var w *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest("GET", "http://example.com/api", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		w = httptest.NewRecorder()
		h.ServeHTTP(w, r)
	}

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on the request over quota, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestMiddleware_EdgeHeaderIdentifiesClient(t *testing.T) {
	p, registry := newTestPipeline(t, application.DefaultSettings())
	if _, err := registry.Block(context.Background(), "198.51.100.9", domain.BlockReasonManual, time.Hour, 0, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h := Middleware(Options{Pipeline: p, EdgeIPHeader: "CF-Connecting-IP"})(okUpstream())
	r := httptest.NewRequest("GET", "http://example.com/api", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("CF-Connecting-IP", "198.51.100.9")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected block keyed by edge header, got %d", w.Code)
	}
}
