package authhandler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"payslips/internal/auth"
	authdomain "payslips/internal/domain/auth"
	"payslips/internal/transport/http/middleware"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, err := authdomain.NewService("payroll", "secret", "", "test-secret", time.Hour)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	r := chi.NewRouter()
	r.Use(middleware.Auth(svc))
	NewHandler(svc, false).RegisterRoutes(r)
	return r
}

func TestLoginFlow(t *testing.T) {
	router := newRouter(t)

	body, _ := json.Marshal(loginRequest{Username: "payroll", Password: "secret"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			session = c
		}
	}
	if session == nil || !session.HttpOnly || session.Value == "" {
		t.Fatalf("expected http-only session cookie, got %+v", session)
	}

	me := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	me.AddCookie(session)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, me)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"username":"payroll"`)) {
		t.Fatalf("expected operator from cookie, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLoginRejects(t *testing.T) {
	router := newRouter(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "bad password", body: `{"username":"payroll","password":"wrong"}`, status: http.StatusUnauthorized},
		{name: "missing fields", body: `{"username":""}`, status: http.StatusBadRequest},
		{name: "malformed", body: `{`, status: http.StatusBadRequest},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(tc.body)))
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestMeRequiresSession(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
