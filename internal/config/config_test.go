package config

import (
	"flag"
	"io"
	"os"
	"testing"
	"time"
)

func loadWithArgs(t *testing.T, args ...string) *Config {
	t.Helper()

	if len(args) == 0 {
		args = []string{"test"}
	}

	oldCommandLine := flag.CommandLine
	oldArgs := os.Args

	flag.CommandLine = flag.NewFlagSet(args[0], flag.ContinueOnError)
	flag.CommandLine.SetOutput(io.Discard)
	os.Args = args

	t.Cleanup(func() {
		flag.CommandLine = oldCommandLine
		os.Args = oldArgs
	})

	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("CACHE_BACKEND", "")
	t.Setenv("CACHE_TTL", "")
	t.Setenv("CANVAS_BASE_URL", "")
	t.Setenv("PRIORITY_SERVICE_URL", "")
	t.Setenv("PRIORITY_SERVICE_TIMEOUT", "")

	cfg := loadWithArgs(t, "test")

	if cfg.Server.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %s, want :8080", cfg.Server.HTTPAddr)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("Cache.Backend = %s, want memory", cfg.Cache.Backend)
	}
	if cfg.Feed.CacheTTL != 2*time.Minute {
		t.Errorf("Feed.CacheTTL = %v, want 2m", cfg.Feed.CacheTTL)
	}
	if cfg.Providers.CanvasBaseURL != "https://canvas.instructure.com/api/v1" {
		t.Errorf("CanvasBaseURL = %s, want Canvas production API", cfg.Providers.CanvasBaseURL)
	}
	if cfg.Enricher.URL != "http://127.0.0.1:5001/predict-priority" {
		t.Errorf("Enricher.URL = %s, want local predictor default", cfg.Enricher.URL)
	}
	if cfg.Enricher.Timeout != 2*time.Second {
		t.Errorf("Enricher.Timeout = %v, want 2s", cfg.Enricher.Timeout)
	}
}

func TestLoad_HTTPAddr_FromFlag(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	cfg := loadWithArgs(t, "test", "-http", ":9090")
	if cfg.Server.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %s, want :9090", cfg.Server.HTTPAddr)
	}
}

func TestLoad_EnvOverridesFlag(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":7070")
	cfg := loadWithArgs(t, "test", "-http", ":9090")
	if cfg.Server.HTTPAddr != ":7070" {
		t.Errorf("HTTPAddr = %s, want env override :7070", cfg.Server.HTTPAddr)
	}
}

func TestLoad_CacheTTL_FromEnv(t *testing.T) {
	t.Setenv("CACHE_TTL", "45s")
	cfg := loadWithArgs(t, "test")
	if cfg.Cache.TTL != 45*time.Second {
		t.Errorf("Cache.TTL = %v, want 45s", cfg.Cache.TTL)
	}
	if cfg.Feed.CacheTTL != 45*time.Second {
		t.Errorf("Feed.CacheTTL = %v, want 45s", cfg.Feed.CacheTTL)
	}
}

func TestLoad_AuthConfig_FromEnv(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "test-secret")
	t.Setenv("AUTH_JWT_ISSUER", "test-issuer")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL", "5m")
	t.Setenv("AUTH_REFRESH_TOKEN_TTL", "48h")

	cfg := loadWithArgs(t, "test")

	if cfg.Auth.JWTSecret != "test-secret" {
		t.Errorf("JWTSecret = %s, want test-secret", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.JWTIssuer != "test-issuer" {
		t.Errorf("JWTIssuer = %s, want test-issuer", cfg.Auth.JWTIssuer)
	}
	if cfg.Auth.AccessTokenTTL != 5*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want 5m", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Auth.RefreshTokenTTL != 48*time.Hour {
		t.Errorf("RefreshTokenTTL = %v, want 48h", cfg.Auth.RefreshTokenTTL)
	}
}

func TestLoad_AuthTTL_InvalidDurationKeepsDefault(t *testing.T) {
	t.Setenv("AUTH_ACCESS_TOKEN_TTL", "not-a-duration")
	cfg := loadWithArgs(t, "test")
	if cfg.Auth.AccessTokenTTL != 15*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want default 15m", cfg.Auth.AccessTokenTTL)
	}
}

func TestLoad_ProviderTokens_FromEnv(t *testing.T) {
	t.Setenv("CANVAS_API_TOKEN", "canvas-fallback")
	t.Setenv("OUTLOOK_ACCESS_TOKEN", "outlook-fallback")
	t.Setenv("GOOGLE_ACCESS_TOKEN", "google-fallback")

	cfg := loadWithArgs(t, "test")

	if cfg.Providers.CanvasToken != "canvas-fallback" {
		t.Errorf("CanvasToken = %s, want canvas-fallback", cfg.Providers.CanvasToken)
	}
	if cfg.Providers.OutlookToken != "outlook-fallback" {
		t.Errorf("OutlookToken = %s, want outlook-fallback", cfg.Providers.OutlookToken)
	}
	if cfg.Providers.GoogleToken != "google-fallback" {
		t.Errorf("GoogleToken = %s, want google-fallback", cfg.Providers.GoogleToken)
	}
}

func TestLoad_EnricherTimeout_RejectsNonPositive(t *testing.T) {
	t.Setenv("PRIORITY_SERVICE_TIMEOUT", "-1s")
	cfg := loadWithArgs(t, "test")
	if cfg.Enricher.Timeout != 2*time.Second {
		t.Errorf("Enricher.Timeout = %v, want default 2s", cfg.Enricher.Timeout)
	}
}
