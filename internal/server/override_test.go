package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func prodConfig(adminKey string) *Config {
	return &Config{Env: EnvProduction, AdminKey: adminKey}
}

func TestResolveOverrideProduction(t *testing.T) {
	cfg := prodConfig("secret-key")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if ResolveOverride(cfg, req) {
		t.Error("request without a key must not be privileged in production")
	}

	req.Header.Set("X-Admin-Key", "wrong-key")
	if ResolveOverride(cfg, req) {
		t.Error("wrong key must not be privileged")
	}

	req.Header.Set("X-Admin-Key", "secret-key")
	if !ResolveOverride(cfg, req) {
		t.Error("matching X-Admin-Key should be privileged")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	if !ResolveOverride(cfg, req) {
		t.Error("matching bearer token should be privileged")
	}
}

func TestResolveOverrideNoAdminKeyConfigured(t *testing.T) {
	cfg := prodConfig("")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Admin-Key", "")
	if ResolveOverride(cfg, req) {
		t.Error("empty configured key must never match")
	}
}

func TestResolveOverrideNonProduction(t *testing.T) {
	cfg := &Config{Env: "dev", AdminKey: "secret-key"}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if !ResolveOverride(cfg, req) {
		t.Error("every request is privileged outside production")
	}
}

func TestAdminKeyMiddleware(t *testing.T) {
	handler := AdminKeyMiddleware("secret-key", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no key: status = %d, want 401", rec.Code)
	}

	req.Header.Set("X-Admin-Key", "secret-key")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid key: status = %d, want 200", rec.Code)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{
		BindAddress: "0.0.0.0",
		Port:        8080,
		Env:         EnvProduction,
		BaseURL:     "https://textmill.example.com",
	}
	cfg.StripeWebhookSecret = "whsec_x"
	if err := cfg.validate(); err != nil {
		t.Errorf("validate: %v", err)
	}

	bad := *cfg
	bad.BaseURL = ""
	if err := bad.validate(); err == nil {
		t.Error("missing TM_BASE_URL should fail validation")
	}

	bad = *cfg
	bad.Port = 0
	if err := bad.validate(); err == nil {
		t.Error("port 0 should fail validation")
	}

	bad = *cfg
	bad.BaseURL = "ftp://example.com"
	if err := bad.validate(); err == nil {
		t.Error("non-http scheme should fail validation")
	}

	bad = *cfg
	bad.StripeWebhookSecret = ""
	if err := bad.validate(); err == nil {
		t.Error("production without webhook secret should fail validation")
	}
	bad.Env = "dev"
	if err := bad.validate(); err != nil {
		t.Errorf("dev without webhook secret should pass: %v", err)
	}
}
