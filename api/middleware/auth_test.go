package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgauth "github.com/billforge/billforge-backend/pkg/auth"
	"github.com/billforge/billforge-backend/pkg/config"
	"github.com/billforge/billforge-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "unit-test-secret-unit-test-secret",
		Issuer:            "billforge-test",
		ExpirationMinutes: 5,
	}
}

func TestAuthSeedsContextFromToken(t *testing.T) {
	cfg := testJWTConfig()
	payload := pkgauth.AccessTokenPayload{
		AdminID:  uuid.New(),
		TenantID: uuid.New(),
		Role:     enums.AdminRoleOwner,
	}
	token, err := pkgauth.MintAccessToken(cfg, time.Now(), payload)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	var gotTenant, gotAdmin, gotRole string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTenant = TenantIDFromContext(r.Context())
		gotAdmin = AdminIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscription", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	Auth(cfg, nil)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if gotTenant != payload.TenantID.String() {
		t.Fatalf("tenant mismatch: %q != %q", gotTenant, payload.TenantID)
	}
	if gotAdmin != payload.AdminID.String() {
		t.Fatalf("admin mismatch: %q != %q", gotAdmin, payload.AdminID)
	}
	if gotRole != string(enums.AdminRoleOwner) {
		t.Fatalf("role mismatch: %q", gotRole)
	}
}

func TestAuthRejectsMissingAndGarbageTokens(t *testing.T) {
	cfg := testJWTConfig()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run without valid credentials")
	})
	handler := Auth(cfg, nil)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscription", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/subscription", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestRequireRoleBlocksOtherRoles(t *testing.T) {
	ran := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { ran = true })
	handler := RequireRole(string(enums.AdminRoleOwner), nil)(next)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/subscription", nil)
	req = req.WithContext(WithTenantID(req.Context(), uuid.NewString()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden || ran {
		t.Fatalf("expected 403 for missing role, got %d (ran=%v)", rec.Code, ran)
	}
}

func TestSchedulerTokenGuardsJobs(t *testing.T) {
	ran := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { ran = true })
	handler := SchedulerToken("sweep-secret", nil)(next)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/sweep", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized || ran {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/jobs/sweep", nil)
	req.Header.Set("Authorization", "Bearer sweep-secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !ran {
		t.Fatalf("expected pass-through with token, got %d (ran=%v)", rec.Code, ran)
	}
}
