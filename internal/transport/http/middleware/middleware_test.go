package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"payslips/internal/platform/metrics"
)

func TestRequestIDAndLogger(t *testing.T) {
	collector := metrics.New()
	var seen string
	handler := RequestID(Logger(collector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if seen == "" || rec.Header().Get("X-Request-ID") != seen {
		t.Fatalf("expected generated request id to be propagated, got %q", seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "req-42" {
		t.Fatalf("expected caller request id, got %q", seen)
	}

	if total := collector.Snapshot()["requestsTotal"].(uint64); total != 2 {
		t.Fatalf("expected 2 recorded requests, got %d", total)
	}
}

func TestBodyLimit(t *testing.T) {
	handler := BodyLimit(8, 16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name        string
		contentType string
		body        string
		want        int
	}{
		{name: "small json", contentType: "application/json", body: "small", want: http.StatusNoContent},
		{name: "oversized json", contentType: "application/json", body: "0123456789", want: http.StatusRequestEntityTooLarge},
		{name: "upload gets its own limit", contentType: "multipart/form-data; boundary=x", body: "0123456789", want: http.StatusNoContent},
		{name: "oversized upload", contentType: "multipart/form-data; boundary=x", body: strings.Repeat("x", 16+multipartOverhead+1), want: http.StatusRequestEntityTooLarge},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", tc.contentType)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", strings.NewReader("0123456789")))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected GET bodies to pass untouched, got %d", rec.Code)
	}
}

func TestSecureHeaders(t *testing.T) {
	handler := SecureHeaders(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/workbooks/x", nil))
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatal("expected api responses to be uncacheable")
	}
	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Fatal("expected hsts in production")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	if rec.Header().Get("Cache-Control") != "" {
		t.Fatal("static assets should keep default caching")
	}
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Strict-Transport-Security"} {
		if rec.Header().Get(h) == "" {
			t.Fatalf("expected %s header", h)
		}
	}
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "script-src 'self'") {
		t.Fatal("expected content security policy")
	}
}
