package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
	"golang.org/x/crypto/bcrypt"
)

// Development fallbacks; Validate refuses them outside development.
const (
	devAccessSecret  = "dev-access-secret-change-me"
	devRefreshSecret = "dev-refresh-secret-change-me"
	devWebhookSecret = "dev-webhook-secret-change-me"
)

// Validate resolves legacy aliases, fills development fallbacks and checks
// every setting. All problems are reported together.
func (c *Config) Validate() error {
	c.resolveAliases()

	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		errs = append(errs, fmt.Errorf("server.grpc_port %d out of range", c.Server.GRPCPort))
	}
	for _, p := range c.Server.TrustedProxies {
		if _, err := ParseProxy(p); err != nil {
			errs = append(errs, fmt.Errorf("server.trusted_proxies: %w", err))
		}
	}
	if c.Server.BodyLimitBytes <= 0 {
		errs = append(errs, errors.New("server.body_limit_bytes must be positive"))
	}

	dev := c.Development()
	if c.JWT.Secret == "" {
		if dev {
			c.JWT.Secret = devAccessSecret
			c.Warnings = append(c.Warnings, "JWT_SECRET not set; using development secret")
		} else {
			errs = append(errs, errors.New("jwt.secret is required"))
		}
	}
	if c.JWT.RefreshSecret == "" {
		if dev {
			c.JWT.RefreshSecret = devRefreshSecret
			c.Warnings = append(c.Warnings, "JWT_REFRESH_SECRET not set; using development secret")
		} else {
			errs = append(errs, errors.New("jwt.refresh_secret is required"))
		}
	}
	if c.JWT.Secret != "" && c.JWT.Secret == c.JWT.RefreshSecret {
		errs = append(errs, errors.New("jwt.secret and jwt.refresh_secret must differ"))
	}
	if d, err := ParseDuration(c.JWT.ExpiresIn); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("jwt.expires_in %q is not a positive duration", c.JWT.ExpiresIn))
	}
	if d, err := ParseDuration(c.JWT.RefreshExpiresIn); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("jwt.refresh_expires_in %q is not a positive duration", c.JWT.RefreshExpiresIn))
	}

	if c.Workflow.WebhookSecret == "" {
		if dev {
			c.Workflow.WebhookSecret = devWebhookSecret
			c.Warnings = append(c.Warnings, "N8N_WEBHOOK_SECRET not set; using development secret")
		} else {
			errs = append(errs, errors.New("workflow.webhook_secret is required"))
		}
	}
	if u, err := url.Parse(c.Workflow.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("workflow.base_url %q must be an http(s) URL", c.Workflow.BaseURL))
	}

	if c.RateLimit.WindowMS <= 0 || c.RateLimit.MaxRequests <= 0 || c.RateLimit.AuthMaxRequests <= 0 {
		errs = append(errs, errors.New("rate_limit window and limits must be positive"))
	}
	if len(c.CORS.Origins) == 0 {
		errs = append(errs, errors.New("cors.origins must list at least one origin"))
	}
	if c.Security.BcryptRounds < bcrypt.MinCost || c.Security.BcryptRounds > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("security.bcrypt_rounds must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}

	if c.Audit.RetentionDays <= 0 {
		errs = append(errs, errors.New("audit.retention_days must be positive"))
	}
	if _, err := cron.ParseStandard(c.Audit.PurgeSchedule); err != nil {
		errs = append(errs, fmt.Errorf("audit.purge_schedule: %w", err))
	}
	if c.Audit.QueueSize <= 0 || c.Audit.Workers <= 0 {
		errs = append(errs, errors.New("audit.queue_size and audit.workers must be positive"))
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be json or console", c.Logging.Format))
	}

	if c.Bootstrap.Email != "" && (c.Bootstrap.Tenant == "" || len(c.Bootstrap.Password) < 8) {
		errs = append(errs, errors.New("bootstrap requires tenant and a password of at least 8 characters"))
	}
	return errors.Join(errs...)
}

func (c *Config) resolveAliases() {
	if c.Database.DSN == "" {
		c.Database.DSN = c.Database.LegacyDSN
	}
	if c.Server.Environment == "" {
		c.Server.Environment = c.Server.NodeEnv
	}
	c.Server.Environment = strings.ToLower(strings.TrimSpace(c.Server.Environment))
	if c.Server.Environment == "" {
		c.Server.Environment = "development"
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}
