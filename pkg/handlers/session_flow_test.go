package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentra-security/sentra-engine/pkg/auth"
	"github.com/sentra-security/sentra-engine/pkg/config"
	"github.com/sentra-security/sentra-engine/pkg/testhelpers"
)

// setupSessionFlowMux builds a mux with the real auth service in
// development mode (no signature verification) so a full browser flow can
// run against it.
func setupSessionFlowMux(t *testing.T) *http.ServeMux {
	t.Helper()

	auth.InitSessionStore("test-secret")

	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{EnableVerification: false})
	if err != nil {
		t.Fatalf("failed to create JWKS client: %v", err)
	}

	logger := zap.NewNop()
	authService := auth.NewAuthService(jwksClient, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)

	cfg := &config.Config{BaseURL: "http://localhost:3443"}

	mux := http.NewServeMux()

	authHandler := NewAuthHandler(authService, cfg, logger)
	authHandler.RegisterRoutes(mux, authMiddleware)

	findingsHandler := NewFindingsHandler(&mockFindingService{}, logger)
	findingsHandler.RegisterRoutes(mux, authMiddleware, noopTenantMiddleware)

	return mux
}

func TestSessionFlow_BearerToCookieToAPI(t *testing.T) {
	mux := setupSessionFlowMux(t)

	projectID := uuid.New()
	token := testhelpers.GenerateTestJWT(uuid.New().String(), projectID.String(), "user@example.com")

	// Step 1: exchange the bearer token for a session cookie.
	req := httptest.NewRequest(http.MethodPost, "/api/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("session creation failed: %d: %s", rec.Code, rec.Body.String())
	}

	var jwtCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			jwtCookie = c
		}
	}
	if jwtCookie == nil {
		t.Fatal("expected session cookie to be set")
	}

	// Step 2: the cookie alone authenticates an API request.
	req = httptest.NewRequest(http.MethodGet, "/api/projects/"+projectID.String()+"/findings", nil)
	req.AddCookie(jwtCookie)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("cookie-authenticated request failed: %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSessionFlow_ProjectMismatchForbidden(t *testing.T) {
	mux := setupSessionFlowMux(t)

	tokenProject := uuid.New()
	otherProject := uuid.New()
	token := testhelpers.GenerateTestJWT(uuid.New().String(), tokenProject.String(), "user@example.com")

	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+otherProject.String()+"/findings", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status 403 for cross-project token, got %d", rec.Code)
	}
}

func TestSessionFlow_NoCredentials(t *testing.T) {
	mux := setupSessionFlowMux(t)

	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+uuid.New().String()+"/findings", nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 without credentials, got %d", rec.Code)
	}
}

func TestSessionFlow_MissingProjectIDInToken(t *testing.T) {
	mux := setupSessionFlowMux(t)

	token := testhelpers.GenerateTestJWT(uuid.New().String(), "", "user@example.com")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for token without project, got %d", rec.Code)
	}
}
