package authhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"payslips/internal/auth"
	authdomain "payslips/internal/domain/auth"
	"payslips/internal/transport/http/api"
	"payslips/internal/transport/http/middleware"
	"payslips/internal/transport/http/shared"
)

type Handler struct {
	Service      *authdomain.Service
	SecureCookie bool
}

func NewHandler(service *authdomain.Service, secureCookie bool) *Handler {
	return &Handler{Service: service, SecureCookie: secureCookie}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRoutes mounts login publicly and the rest behind RequireAuth.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.HandleLogin)
		r.With(middleware.RequireAuth).Post("/logout", h.HandleLogout)
		r.With(middleware.RequireAuth).Get("/me", h.HandleMe)
	})
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	v.Required("username", payload.Username, "is required")
	v.Required("password", payload.Password, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	session, err := h.Service.Login(payload.Username, payload.Password)
	if errors.Is(err, authdomain.ErrInvalidCredentials) {
		slog.Warn("operator login rejected", "username", payload.Username, "ip", shared.ClientIP(r))
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		slog.Error("issue session token failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "token_error", "failed to issue token", middleware.GetRequestID(r.Context()))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	slog.Info("operator logged in", "username", session.Username, "ip", shared.ClientIP(r))
	api.Success(w, session, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	if user, ok := middleware.GetOperator(r.Context()); ok {
		slog.Info("operator logged out", "username", user)
	}
	api.Success(w, map[string]string{"status": "logged_out"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetOperator(r.Context())
	api.Success(w, map[string]string{"username": user}, middleware.GetRequestID(r.Context()))
}
