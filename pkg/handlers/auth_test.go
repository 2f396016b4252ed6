package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentra-security/sentra-engine/pkg/auth"
	"github.com/sentra-security/sentra-engine/pkg/config"
)

// failingAuthService rejects every request.
type failingAuthService struct{}

func (m *failingAuthService) ValidateRequest(r *http.Request) (*auth.Claims, string, error) {
	return nil, "", errors.New("invalid token")
}

func (m *failingAuthService) RequireProjectID(claims *auth.Claims) error {
	return auth.ErrMissingProjectID
}

func (m *failingAuthService) ValidateProjectIDMatch(claims *auth.Claims, urlProjectID string) error {
	return nil
}

func authTestConfig() *config.Config {
	return &config.Config{BaseURL: "http://localhost:3443"}
}

func TestAuthHandler_CreateSession_Success(t *testing.T) {
	auth.InitSessionStore("test-secret")

	projectID := uuid.New()
	claims := &auth.Claims{
		ProjectID: projectID.String(),
		Email:     "user@example.com",
	}
	claims.Subject = uuid.New().String()

	service := &mockAuthService{claims: claims, token: "jwt-token"}
	handler := NewAuthHandler(service, authTestConfig(), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/session", nil)
	req.Header.Set("Authorization", "Bearer jwt-token")

	rec := httptest.NewRecorder()
	handler.CreateSession(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp CreateSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !resp.Success {
		t.Error("expected success to be true")
	}
	if resp.RedirectURL != "/" {
		t.Errorf("expected default redirect '/', got %q", resp.RedirectURL)
	}

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("expected session cookie to be set")
	}
	if sessionCookie.Value != "jwt-token" {
		t.Errorf("expected cookie to carry the token, got %q", sessionCookie.Value)
	}
	if !sessionCookie.HttpOnly {
		t.Error("expected cookie to be httpOnly")
	}
	if sessionCookie.Secure {
		t.Error("expected insecure cookie for http base URL")
	}
}

func TestAuthHandler_CreateSession_InvalidToken(t *testing.T) {
	auth.InitSessionStore("test-secret")

	handler := NewAuthHandler(&failingAuthService{}, authTestConfig(), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/session", nil)

	rec := httptest.NewRecorder()
	handler.CreateSession(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["error"] != "invalid_token" {
		t.Errorf("expected error 'invalid_token', got %q", resp["error"])
	}
}

func TestAuthHandler_CreateSession_MissingProjectID(t *testing.T) {
	auth.InitSessionStore("test-secret")

	claims := &auth.Claims{Email: "user@example.com"}
	service := &mockAuthService{claims: claims, token: "jwt-token"}
	handler := NewAuthHandler(service, authTestConfig(), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/session", nil)

	rec := httptest.NewRecorder()
	handler.CreateSession(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestAuthHandler_Logout_ClearsCookie(t *testing.T) {
	projectID := uuid.New()
	handler := NewAuthHandler(&mockAuthService{}, authTestConfig(), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/projects/"+projectID.String()+"/auth/logout", nil)
	req.SetPathValue("pid", projectID.String())

	rec := httptest.NewRecorder()
	handler.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName && c.MaxAge < 0 && c.Value == "" {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected session cookie to be cleared")
	}
}

func TestAuthHandler_GetMe(t *testing.T) {
	projectID := uuid.New()
	claims := &auth.Claims{
		ProjectID: projectID.String(),
		Email:     "analyst@example.com",
		Roles:     []string{"analyst"},
	}

	handler := NewAuthHandler(&mockAuthService{}, authTestConfig(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req = req.WithContext(context.WithValue(req.Context(), auth.ClaimsKey, claims))

	rec := httptest.NewRecorder()
	handler.GetMe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp GetMeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Email != "analyst@example.com" {
		t.Errorf("expected email to round-trip, got %q", resp.Email)
	}
	if len(resp.Roles) != 1 || resp.Roles[0] != "analyst" {
		t.Errorf("expected roles [analyst], got %v", resp.Roles)
	}
}

func TestAuthHandler_GetMe_NoClaims(t *testing.T) {
	handler := NewAuthHandler(&mockAuthService{}, authTestConfig(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)

	rec := httptest.NewRecorder()
	handler.GetMe(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestAuthHandler_CreateSession_UsesStoredOriginalURL(t *testing.T) {
	auth.InitSessionStore("test-secret")

	projectID := uuid.New()
	claims := &auth.Claims{ProjectID: projectID.String()}
	service := &mockAuthService{claims: claims, token: "jwt"}
	handler := NewAuthHandler(service, authTestConfig(), zap.NewNop())

	// A request carrying a sign-in session with a stored original URL.
	seed := httptest.NewRequest(http.MethodGet, "/", nil)
	seedRec := httptest.NewRecorder()
	session, err := auth.GetSession(seed)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	session.Values[auth.SessionKeyOriginalURL] = "/findings?page=2"
	if err := auth.SaveSession(seed, seedRec, session); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/session", nil)
	for _, c := range seedRec.Result().Cookies() {
		if strings.HasPrefix(c.Name, "sentra") {
			req.AddCookie(c)
		}
	}

	rec := httptest.NewRecorder()
	handler.CreateSession(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp CreateSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.RedirectURL != "/findings?page=2" {
		t.Errorf("expected stored original URL, got %q", resp.RedirectURL)
	}
}
