package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddress != "0.0.0.0:3002" {
		t.Fatalf("unexpected address %s", cfg.HTTPAddress)
	}
	if cfg.DatabaseDriver != "sqlite" || cfg.DatabasePath != "geko.db" {
		t.Fatalf("unexpected database defaults %s %s", cfg.DatabaseDriver, cfg.DatabasePath)
	}
	if cfg.AuthMode != AuthModeHeader || cfg.TokenAuthEnabled() {
		t.Fatalf("expected header auth by default")
	}
	if cfg.AuthTokenTTL != 30*time.Minute || cfg.HealthProbeTimeout != 30*time.Second {
		t.Fatalf("unexpected durations %s %s", cfg.AuthTokenTTL, cfg.HealthProbeTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if len(cfg.HTTPTrustedProxies) != 0 {
		t.Fatalf("expected no trusted proxies by default, got %v", cfg.HTTPTrustedProxies)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("GEKO_HTTP_ADDRESS", "127.0.0.1:9000")
	t.Setenv("GEKO_AUTH_MODE", "TOKEN")
	t.Setenv("GEKO_AUTH_SIGNING_SECRET", "secret")
	t.Setenv("GEKO_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("GEKO_DATABASE_DRIVER", "postgres")
	t.Setenv("GEKO_DATABASE_DSN", "host=localhost user=geko dbname=geko")
	t.Setenv("GEKO_HTTP_TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddress != "127.0.0.1:9000" {
		t.Fatalf("unexpected address %s", cfg.HTTPAddress)
	}
	if !cfg.TokenAuthEnabled() {
		t.Fatalf("expected token auth")
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.DatabaseDriver != "postgres" {
		t.Fatalf("unexpected driver %s", cfg.DatabaseDriver)
	}
	if len(cfg.HTTPTrustedProxies) != 2 || cfg.HTTPTrustedProxies[0] != "10.0.0.0/8" {
		t.Fatalf("unexpected trusted proxies %v", cfg.HTTPTrustedProxies)
	}
}

func TestLoadValidation(t *testing.T) {
	testCases := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "token-without-secret", env: map[string]string{"GEKO_AUTH_MODE": "token"}, wantErr: "auth.signing_secret"},
		{name: "unknown-mode", env: map[string]string{"GEKO_AUTH_MODE": "oauth"}, wantErr: "auth.mode"},
		{name: "postgres-without-dsn", env: map[string]string{"GEKO_DATABASE_DRIVER": "postgres"}, wantErr: "database.dsn"},
		{name: "unknown-driver", env: map[string]string{"GEKO_DATABASE_DRIVER": "mysql"}, wantErr: "database.driver"},
		{name: "bad-trusted-proxy", env: map[string]string{"GEKO_HTTP_TRUSTED_PROXIES": "proxy.internal"}, wantErr: "http.trusted_proxies"},
		{name: "empty-sqlite-path", env: map[string]string{"GEKO_DATABASE_PATH": " "}, wantErr: "database.path"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			for key, value := range testCase.env {
				t.Setenv(key, value)
			}
			_, err := Load(NewViper())
			if err == nil || !strings.Contains(err.Error(), testCase.wantErr) {
				t.Fatalf("expected error mentioning %s, got %v", testCase.wantErr, err)
			}
		})
	}
}
