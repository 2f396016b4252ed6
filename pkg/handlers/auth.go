package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/sentra-security/sentra-engine/pkg/auth"
	"github.com/sentra-security/sentra-engine/pkg/config"
)

// CreateSessionResponse is returned after the browser session is established.
type CreateSessionResponse struct {
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirect_url"`
}

// LogoutResponse is returned on logout with the post-logout redirect target.
type LogoutResponse struct {
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirect_url"`
}

// GetMeResponse describes the currently authenticated user.
type GetMeResponse struct {
	Email     string   `json:"email"`
	ProjectID string   `json:"projectId"`
	Roles     []string `json:"roles"`
}

// AuthHandler handles the browser session lifecycle. API clients send the
// JWT as a Bearer header on every request; browser clients exchange it once
// for an httpOnly cookie here.
type AuthHandler struct {
	authService auth.AuthService
	config      *config.Config
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService auth.AuthService, cfg *config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		config:      cfg,
		logger:      logger,
	}
}

// RegisterRoutes registers the auth handler's routes on the given mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/auth/session", h.CreateSession)
	mux.HandleFunc("GET /api/auth/me", authMiddleware.RequireAuth(h.GetMe))
	mux.HandleFunc("POST /api/projects/{pid}/auth/logout", h.Logout)
}

// CreateSession handles POST /api/auth/session
// The dashboard calls this after sign-in with the identity provider,
// sending the issued JWT as a Bearer header. The token is validated and
// moved into an httpOnly cookie so later browser requests carry it
// automatically.
func (h *AuthHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	claims, token, err := h.authService.ValidateRequest(r)
	if err != nil {
		h.logger.Warn("Session creation with invalid token", zap.Error(err))
		if err := ErrorResponse(w, http.StatusUnauthorized, "invalid_token", "Token validation failed"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.authService.RequireProjectID(claims); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_project_id", "Missing project ID in token"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	cookieSettings := auth.DeriveCookieSettings(h.config.BaseURL, h.config.CookieDomain)

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   cookieSettings.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   86400, // 24 hours
		Path:     "/",
		Domain:   cookieSettings.Domain,
	})

	// Pick up the URL the user originally asked for and clean up the
	// sign-in session.
	session, _ := auth.GetSession(r)
	originalURL, _ := session.Values[auth.SessionKeyOriginalURL].(string)
	auth.ClearSessionValues(session)
	if err := auth.SaveSession(r, w, session); err != nil {
		h.logger.Error("Failed to save session", zap.Error(err))
	}

	if originalURL == "" {
		originalURL = "/"
	}

	h.logger.Info("Browser session established",
		zap.String("project_id", claims.ProjectID),
		zap.String("original_url", originalURL))

	if err := WriteJSON(w, http.StatusOK, CreateSessionResponse{
		Success:     true,
		RedirectURL: originalURL,
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Logout handles POST /api/projects/{pid}/auth/logout
// Clears the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookieSettings := auth.DeriveCookieSettings(h.config.BaseURL, h.config.CookieDomain)

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   cookieSettings.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
		Path:     "/",
		Domain:   cookieSettings.Domain,
	})

	h.logger.Info("User logged out")

	if err := WriteJSON(w, http.StatusOK, LogoutResponse{
		Success:     true,
		RedirectURL: "/",
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetMe handles GET /api/auth/me
// Returns information about the currently authenticated user.
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok || claims == nil {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Not authenticated"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := GetMeResponse{
		Email:     claims.Email,
		ProjectID: claims.ProjectID,
		Roles:     claims.Roles,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
