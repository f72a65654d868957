package config

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// Config is the full runtime configuration of the helpdesk API.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	JWT       JWTConfig       `koanf:"jwt"`
	Workflow  WorkflowConfig  `koanf:"workflow"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Security  SecurityConfig  `koanf:"security"`
	Audit     AuditConfig     `koanf:"audit"`
	Logging   LoggingConfig   `koanf:"logging"`
	Bootstrap BootstrapConfig `koanf:"bootstrap"`

	// Warnings collects non-fatal problems found during validation.
	Warnings []string `koanf:"-"`
}

type ServerConfig struct {
	Port            int    `koanf:"port"`
	GRPCPort        int    `koanf:"grpc_port"`
	Environment     string `koanf:"environment"`
	NodeEnv         string `koanf:"node_env"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
	BodyLimitBytes  int64  `koanf:"body_limit_bytes"`
	// TrustedProxies lists addresses or CIDRs whose X-Forwarded-For is honoured.
	TrustedProxies []string `koanf:"trusted_proxies"`
}

type DatabaseConfig struct {
	DSN       string `koanf:"dsn"`
	LegacyDSN string `koanf:"legacy_dsn"`
}

type JWTConfig struct {
	Secret           string `koanf:"secret"`
	RefreshSecret    string `koanf:"refresh_secret"`
	ExpiresIn        string `koanf:"expires_in"`
	RefreshExpiresIn string `koanf:"refresh_expires_in"`
	Issuer           string `koanf:"issuer"`
	Audience         string `koanf:"audience"`
}

type WorkflowConfig struct {
	BaseURL       string `koanf:"base_url"`
	WebhookSecret string `koanf:"webhook_secret"`
}

type RateLimitConfig struct {
	WindowMS        int `koanf:"window_ms"`
	MaxRequests     int `koanf:"max_requests"`
	AuthMaxRequests int `koanf:"auth_max_requests"`
}

type CORSConfig struct {
	Origins []string `koanf:"origins"`
}

type SecurityConfig struct {
	BcryptRounds int `koanf:"bcrypt_rounds"`
}

type AuditConfig struct {
	RetentionDays int    `koanf:"retention_days"`
	PurgeSchedule string `koanf:"purge_schedule"`
	QueueSize     int    `koanf:"queue_size"`
	Workers       int    `koanf:"workers"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// BootstrapConfig seeds one admin account at startup when Email is set.
type BootstrapConfig struct {
	Tenant   string `koanf:"tenant"`
	Email    string `koanf:"email"`
	Password string `koanf:"password"`
	Role     string `koanf:"role"`
}

// Development reports whether the service runs outside production.
func (c *Config) Development() bool {
	return c.Server.Environment == "development" || c.Server.Environment == "test"
}

// ShutdownTimeout parses the configured graceful shutdown window.
func (c *Config) ShutdownTimeout() time.Duration {
	d, err := ParseDuration(c.Server.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// AccessTTL is the parsed access token lifetime.
func (c *Config) AccessTTL() time.Duration {
	d, _ := ParseDuration(c.JWT.ExpiresIn)
	return d
}

// RefreshTTL is the parsed refresh token lifetime.
func (c *Config) RefreshTTL() time.Duration {
	d, _ := ParseDuration(c.JWT.RefreshExpiresIn)
	return d
}

// RateWindow is the rate limit window as a duration.
func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowMS) * time.Millisecond
}

// AuditRetention is the audit retention window as a duration.
func (c *Config) AuditRetention() time.Duration {
	return time.Duration(c.Audit.RetentionDays) * 24 * time.Hour
}

// ParseDuration accepts Go durations ("15m"), a day suffix ("7d") or a bare
// number of seconds ("900").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.ParseFloat(days, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n * float64(24*time.Hour)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// ParseProxy accepts a bare address ("10.0.0.1") or a CIDR ("10.0.0.0/8").
func ParseProxy(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid proxy %q", s)
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid proxy %q", s)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}
