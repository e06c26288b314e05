package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllowWindow(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 2})
	defer rl.Stop()
	now := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request in the window should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("clients are limited independently")
	}
	if got := rl.RetryAfter("a"); got != 60 {
		t.Fatalf("RetryAfter = %d", got)
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow("a") {
		t.Fatal("a new window should reset the count")
	}
	if m := rl.GetMetrics(); m.TotalHits != 1 || m.ClientCount != 2 {
		t.Fatalf("metrics = %+v", m)
	}

	now = now.Add(time.Hour)
	rl.cleanupStaleEntries()
	if rl.ActiveClients() != 0 {
		t.Fatal("idle clients should be cleaned up")
	}
}

func TestMiddleware(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1})
	defer rl.Stop()
	h := rl.Middleware(func(*http.Request) string { return "1.2.3.4" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("second status = %d, retry-after %q", rec.Code, rec.Header().Get("Retry-After"))
	}
}
