package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"flowbit.dev/internal/audit"
	"flowbit.dev/internal/obs"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	orig := *obs.Logger()
	var buf bytes.Buffer
	obs.SetLogger(zerolog.New(&buf))
	t.Cleanup(func() { obs.SetLogger(orig) })
	return &buf
}

func TestRateLimitExceeded(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	handler := RequestID(limiter.Middleware(http.HandlerFunc(okHandler)))

	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, req.Clone(req.Context()))
	if rr1.Code != http.StatusOK {
		t.Fatalf("expected first call 200, got %d", rr1.Code)
	}

	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req.Clone(req.Context()))
	if rr2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr2.Code)
	}
	secs, err := strconv.Atoi(rr2.Header().Get("Retry-After"))
	if err != nil || secs < 1 || secs > 60 {
		t.Fatalf("unexpected Retry-After %q", rr2.Header().Get("Retry-After"))
	}
	env := decodeEnvelope(t, rr2)
	if env.Success || env.Error == "" || env.RequestID == "" {
		t.Fatalf("expected error envelope with request_id, got %+v", env)
	}

	other := req.Clone(req.Context())
	other.RemoteAddr = "10.0.0.2:1234"
	rr3 := httptest.NewRecorder()
	handler.ServeHTTP(rr3, other)
	if rr3.Code != http.StatusOK {
		t.Fatalf("expected a separate bucket per IP, got %d", rr3.Code)
	}
}

func TestRateLimiterCleanupDropsIdleBuckets(t *testing.T) {
	limiter := NewRateLimiter(1, time.Second)
	now := time.Now()
	limiter.reserve("10.0.0.1", now)
	if ok, _ := limiter.reserve("10.0.0.1", now); ok {
		t.Fatal("expected second request in the window to be limited")
	}
	limiter.Cleanup(now.Add(2 * time.Second))
	if n := len(limiter.buckets); n != 0 {
		t.Fatalf("expected idle bucket to be evicted, have %d", n)
	}
}

func TestAuthRateLimit(t *testing.T) {
	h := RequestID(AuthRateLimit(2, time.Minute)(http.HandlerFunc(okHandler)))
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "192.0.2.7:5555"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected third attempt to be limited, got %d", last.Code)
	}
	if env := decodeEnvelope(t, last); env.Error != "Too many authentication attempts, please try again later." {
		t.Fatalf("unexpected error: %+v", env)
	}
}

func TestLoggingEmitsStructuredEntry(t *testing.T) {
	buf := captureLogs(t)
	handler := RequestID(Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("ok"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/log-test", nil)
	req.Header.Set("User-Agent", "middleware-test")
	req.RemoteAddr = "127.0.0.1:1234"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected log line")
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log is not valid JSON: %v", err)
	}
	for _, key := range []string{"level", "message", "request_id", "method", "path", "status", "duration_ms", "remote_ip", "user_agent"} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("expected key %q in log entry", key)
		}
	}
	if entry["message"] != "request_complete" {
		t.Fatalf("unexpected message: %v", entry["message"])
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Fatalf("unexpected status: %v", entry["status"])
	}
}

func TestRecoverWritesEnvelope(t *testing.T) {
	buf := captureLogs(t)
	h := RequestID(Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	if env.Error != internalErrorMessage || env.RequestID == "" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if strings.Contains(rr.Body.String(), "kaboom") {
		t.Fatal("panic value must not leak to the client")
	}
	if !strings.Contains(buf.String(), "panic_recovered") {
		t.Fatalf("expected panic to be logged, got %q", buf.String())
	}
}

func TestRequestIDPropagation(t *testing.T) {
	var fromCtx, fromAudit string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = RequestIDFromContext(r.Context())
		fromAudit = audit.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get(requestIDHeader) != "req-123" || fromCtx != "req-123" || fromAudit != "req-123" {
		t.Fatalf("inbound id not propagated: header=%q ctx=%q audit=%q", rr.Header().Get(requestIDHeader), fromCtx, fromAudit)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, strings.Repeat("x", 200))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get(requestIDHeader); len(got) != 36 || got != fromCtx {
		t.Fatalf("expected a generated uuid for an oversized id, got %q", got)
	}
}

func TestSecurityHeadersAndBodyLimit(t *testing.T) {
	var decodeErr error
	h := SecurityHeaders(MaxBodyBytes(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var v map[string]any
		decodeErr = decodeJSON(w, r, &v)
	})))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"far too long for the limit"}`)))

	if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("missing security headers: %v", rr.Header())
	}
	if decodeErr == nil {
		t.Fatal("expected oversized body to be rejected")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:9000"
	req.Header.Set("X-Forwarded-For", "203.0.113.1")
	if got := clientIP(req); got != "198.51.100.4" {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestClientIPTrustedProxies(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
	var got string
	h := ClientIP(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = clientIP(r)
	}))

	cases := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"untrusted peer ignores header", "198.51.100.4:9000", "203.0.113.1", "198.51.100.4"},
		{"trusted peer uses forwarded hop", "10.1.2.3:443", "203.0.113.1", "203.0.113.1"},
		{"rightmost untrusted hop wins", "10.1.2.3:443", "6.6.6.6, 203.0.113.1, 10.0.0.7", "203.0.113.1"},
		{"all hops trusted falls back to peer", "10.1.2.3:443", "10.0.0.7", "10.1.2.3"},
		{"garbage stops the walk", "10.1.2.3:443", "203.0.113.1, not-an-ip", "10.1.2.3"},
		{"no header", "10.1.2.3:443", "", "10.1.2.3"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tc.remote
		if tc.xff != "" {
			req.Header.Set("X-Forwarded-For", tc.xff)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
		if got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}
