// Package server exposes the catalog service over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/darthVad3r/StacksOfChaos-sub000/internal/app"
	"github.com/darthVad3r/StacksOfChaos-sub000/internal/oauth"
	"github.com/darthVad3r/StacksOfChaos-sub000/internal/ratelimit"
	"github.com/darthVad3r/StacksOfChaos-sub000/internal/titles"
	"github.com/darthVad3r/StacksOfChaos-sub000/internal/util"
	"github.com/darthVad3r/StacksOfChaos-sub000/pkg/domain"
)

const (
	maxBodyBytes      = 1 << 20
	maxCoverBytes     = 5 << 20
	oauthStateCookie  = "oauth_state"
	oauthStateMaxAge  = 600
	searchStringParam = "searchString"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App    *app.App
	Titles *titles.Client
	Google *oauth.GoogleProvider

	RegisterLimiter *ratelimit.Limiter
	LoginLimiter    *ratelimit.Limiter
	EmailLimiter    *ratelimit.Limiter
	TrustedProxies  *util.TrustedProxies
}

// Server exposes HTTP endpoints for the catalog service.
type Server struct {
	app    *app.App
	titles *titles.Client
	google *oauth.GoogleProvider

	registerLimiter *ratelimit.Limiter
	loginLimiter    *ratelimit.Limiter
	emailLimiter    *ratelimit.Limiter
	trustedProxies  *util.TrustedProxies

	mux *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:             cfg.App,
		titles:          cfg.Titles,
		google:          cfg.Google,
		registerLimiter: cfg.RegisterLimiter,
		loginLimiter:    cfg.LoginLimiter,
		emailLimiter:    cfg.EmailLimiter,
		trustedProxies:  cfg.TrustedProxies,
		mux:             http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// account
	s.mux.HandleFunc("/api/account/register", s.handleRegister)
	s.mux.HandleFunc("/api/account/confirm-email", s.handleConfirmEmail)

	// auth
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/refresh", s.handleRefresh)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.HandleFunc("/api/auth/google-login", s.handleGoogleLogin)
	s.mux.HandleFunc("/api/auth/google-callback", s.handleGoogleCallback)

	// books
	s.mux.HandleFunc("/api/books", s.handleBooks)
	s.mux.HandleFunc("/api/books/", s.handleBookByID)

	// catalog
	s.mux.Handle("/api/libraries", s.authenticated(s.handleLibraries))
	s.mux.Handle("/api/libraries/", s.authenticated(s.handleLibrarySubtree))

	// email + titles
	s.mux.HandleFunc("/api/email/send", s.handleSendEmail)
	s.mux.HandleFunc("/api/title", s.handleTitleSearch)

	// users
	s.mux.Handle("/api/users", s.adminOnly(s.handleUsers))
	s.mux.Handle("/api/users/", s.authenticated(s.handleUserByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if user.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	return s.app.UserFromToken(token)
}

func (s *Server) allow(limiter *ratelimit.Limiter, r *http.Request) bool {
	if limiter == nil {
		return true
	}
	return limiter.Allow(util.ClientIP(r, s.trustedProxies))
}

// account handlers

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allow(s.registerLimiter, r) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}
	var req registerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := s.app.Register(r.Context(), app.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if userID == "" || token == "" {
		writeError(w, http.StatusBadRequest, "userId and token are required")
		return
	}
	if err := s.app.ConfirmEmail(userID, token); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

// auth handlers

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
	User         domain.User `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allow(s.loginLimiter, r) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, access, refresh, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: access, RefreshToken: refresh, User: user})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req refreshRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, access, refresh, err := s.app.Refresh(req.RefreshToken)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: access, RefreshToken: refresh, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req refreshRequest
	_ = json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req)
	if err := s.app.Logout(token, req.RefreshToken); err != nil {
		slog.Error("logout failed", "error", err, "request_id", util.RequestIDFromRequest(r))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.google == nil {
		writeError(w, http.StatusNotImplemented, "google sign-in not configured")
		return
	}
	state := oauth.NewState()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/auth",
		MaxAge:   oauthStateMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.google.AuthURL(state), http.StatusFound)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.google == nil {
		writeError(w, http.StatusNotImplemented, "google sign-in not configured")
		return
	}
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		writeError(w, http.StatusBadRequest, "state mismatch")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}
	profile, err := s.google.Exchange(r.Context(), code)
	if err != nil {
		slog.Warn("google exchange failed", "error", err, "request_id", util.RequestIDFromRequest(r))
		writeError(w, http.StatusBadRequest, "google sign-in failed")
		return
	}
	user, access, refresh, err := s.app.GoogleSignIn(profile)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: access, RefreshToken: refresh, User: user})
}

// email + titles handlers

type sendEmailRequest struct {
	To       string            `json:"to"`
	ToName   string            `json:"toName"`
	Subject  string            `json:"subject"`
	Body     string            `json:"body"`
	Template string            `json:"template,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}

func (s *Server) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allow(s.emailLimiter, r) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}
	var req sendEmailRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.app.SendEmail(r.Context(), app.SendEmailInput{
		To:       req.To,
		ToName:   req.ToName,
		Subject:  req.Subject,
		HTMLBody: req.Body,
		Template: req.Template,
		Data:     req.Data,
	}); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (s *Server) handleTitleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.titles == nil {
		writeError(w, http.StatusNotImplemented, "title search not configured")
		return
	}
	searchString := strings.TrimSpace(r.URL.Query().Get(searchStringParam))
	if searchString == "" {
		writeError(w, http.StatusBadRequest, "searchString is required")
		return
	}
	results, err := s.titles.Search(r.Context(), searchString)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if len(results) == 0 {
		writeError(w, http.StatusNotFound, "no titles matched")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// response helpers

func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *app.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": vErr.Violations})
	case errors.Is(err, app.ErrNotFound), errors.Is(err, app.ErrIDMismatch):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, app.ErrEmailAlreadyExists):
		writeError(w, http.StatusConflict, app.ErrEmailAlreadyExists.Error())
	case errors.Is(err, app.ErrInvalidCredentials), errors.Is(err, app.ErrUserDisabled):
		// Disabled accounts get the credentials message to avoid enumeration.
		writeError(w, http.StatusUnauthorized, app.ErrInvalidCredentials.Error())
	case errors.Is(err, app.ErrInvalidRefreshToken), errors.Is(err, app.ErrRefreshTokenRequired):
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, app.ErrShelfFull):
		writeError(w, http.StatusUnprocessableEntity, app.ErrShelfFull.Error())
	case errors.Is(err, app.ErrInvalidConfirmToken), errors.Is(err, app.ErrEmailAndPasswordRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, titles.ErrUpstream):
		writeError(w, http.StatusBadGateway, "title catalog unavailable")
	default:
		slog.Error("request failed", "error", err, "path", r.URL.Path, "request_id", util.RequestIDFromRequest(r))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
