package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"900":  900 * time.Second,
		"15m":  15 * time.Minute,
		"7d":   7 * 24 * time.Hour,
		"1.5d": 36 * time.Hour,
		"2h":   2 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		if err != nil || got != want {
			t.Fatalf("ParseDuration(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "soon", "xd"} {
		if _, err := ParseDuration(bad); err == nil {
			t.Fatalf("ParseDuration(%q) should fail", bad)
		}
	}
}

func TestLoadDefaultsInDevelopment(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	chdirTemp(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8000 || cfg.Server.Environment != "development" {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.AccessTTL() != 15*time.Minute || cfg.RefreshTTL() != 7*24*time.Hour {
		t.Fatalf("unexpected ttls: %v %v", cfg.AccessTTL(), cfg.RefreshTTL())
	}
	if cfg.JWT.Secret == "" || cfg.JWT.Secret == cfg.JWT.RefreshSecret {
		t.Fatal("expected distinct development secrets")
	}
	if len(cfg.Warnings) == 0 {
		t.Fatal("expected warnings about development secrets")
	}
	if cfg.RateWindow() != 15*time.Minute {
		t.Fatalf("rate window = %v", cfg.RateWindow())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	chdirTemp(t)
	t.Setenv("PORT", "9000")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("PG_DSN", "postgres://localhost/helpdesk")
	t.Setenv("JWT_SECRET", "a")
	t.Setenv("JWT_REFRESH_SECRET", "b")
	t.Setenv("JWT_EXPIRES_IN", "900")
	t.Setenv("N8N_WEBHOOK_SECRET", "hook")
	t.Setenv("CORS_ORIGIN", "https://a.example, https://b.example")
	t.Setenv("AUTH_RATE_LIMIT_MAX_REQUESTS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.Server.Environment != "production" {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Database.DSN != "postgres://localhost/helpdesk" {
		t.Fatalf("legacy DSN not applied: %q", cfg.Database.DSN)
	}
	if cfg.AccessTTL() != 900*time.Second {
		t.Fatalf("access ttl = %v", cfg.AccessTTL())
	}
	if len(cfg.CORS.Origins) != 2 || cfg.CORS.Origins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.CORS.Origins)
	}
	if cfg.RateLimit.AuthMaxRequests != 5 {
		t.Fatalf("auth limit = %d", cfg.RateLimit.AuthMaxRequests)
	}
}

func TestProductionRequiresSecrets(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	chdirTemp(t)
	t.Setenv("ENVIRONMENT", "production")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"jwt.secret", "jwt.refresh_secret", "workflow.webhook_secret"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flowbit.yaml")
	yaml := "server:\n  port: 8100\naudit:\n  retention_days: 30\n  purge_schedule: \"@hourly\"\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("PORT", "8200")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8200 {
		t.Fatalf("env should override file, port=%d", cfg.Server.Port)
	}
	if cfg.Audit.RetentionDays != 30 || cfg.Audit.PurgeSchedule != "@hourly" {
		t.Fatalf("file values not applied: %+v", cfg.Audit)
	}
	if cfg.AuditRetention() != 30*24*time.Hour {
		t.Fatalf("retention = %v", cfg.AuditRetention())
	}
}

func TestValidateRejectsSharedSecret(t *testing.T) {
	cfg := defaultConfig()
	cfg.JWT.Secret = "same"
	cfg.JWT.RefreshSecret = "same"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("expected shared secret error, got %v", err)
	}
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadTrustedProxies(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	chdirTemp(t)
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Server.TrustedProxies) != 2 {
		t.Fatalf("unexpected proxies: %v", cfg.Server.TrustedProxies)
	}
	p, err := ParseProxy(cfg.Server.TrustedProxies[1])
	if err != nil || p.Bits() != 32 || !p.Contains(netip.MustParseAddr("192.0.2.7")) {
		t.Fatalf("bare address should become a host prefix: %v %v", p, err)
	}
	p, err = ParseProxy("10.1.2.3/8")
	if err != nil || p.String() != "10.0.0.0/8" {
		t.Fatalf("cidr should be masked: %v %v", p, err)
	}
}

func TestLoadRejectsBadTrustedProxy(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	chdirTemp(t)
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,proxy.internal")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "server.trusted_proxies") {
		t.Fatalf("expected trusted_proxies error, got %v", err)
	}
}
