package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/flowbit/config.yaml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			GRPCPort:        9090,
			Environment:     "",
			ShutdownTimeout: "10s",
			BodyLimitBytes:  10 << 20,
		},
		JWT: JWTConfig{
			ExpiresIn:        "15m",
			RefreshExpiresIn: "7d",
			Issuer:           "flowbit-api",
			Audience:         "flowbit-users",
		},
		Workflow: WorkflowConfig{
			BaseURL: "http://localhost:5678",
		},
		RateLimit: RateLimitConfig{
			WindowMS:        900000,
			MaxRequests:     100,
			AuthMaxRequests: 20,
		},
		CORS: CORSConfig{
			Origins: []string{"http://localhost:3000"},
		},
		Security: SecurityConfig{
			BcryptRounds: 12,
		},
		Audit: AuditConfig{
			RetentionDays: 365,
			PurgeSchedule: "@daily",
			QueueSize:     1024,
			Workers:       2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Bootstrap: BootstrapConfig{
			Role: "SuperAdmin",
		},
	}
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"cors.origins",
	"server.trusted_proxies",
}

// processSliceFields converts comma-separated env values into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"port":                         "server.port",
	"grpc_port":                    "server.grpc_port",
	"environment":                  "server.environment",
	"node_env":                     "server.node_env",
	"shutdown_timeout":             "server.shutdown_timeout",
	"body_limit_bytes":             "server.body_limit_bytes",
	"trusted_proxies":              "server.trusted_proxies",
	"database_url":                 "database.dsn",
	"pg_dsn":                       "database.legacy_dsn",
	"jwt_secret":                   "jwt.secret",
	"jwt_refresh_secret":           "jwt.refresh_secret",
	"jwt_expires_in":               "jwt.expires_in",
	"jwt_refresh_expires_in":       "jwt.refresh_expires_in",
	"jwt_issuer":                   "jwt.issuer",
	"jwt_audience":                 "jwt.audience",
	"n8n_base_url":                 "workflow.base_url",
	"n8n_webhook_secret":           "workflow.webhook_secret",
	"rate_limit_window_ms":         "rate_limit.window_ms",
	"rate_limit_max_requests":      "rate_limit.max_requests",
	"auth_rate_limit_max_requests": "rate_limit.auth_max_requests",
	"cors_origin":                  "cors.origins",
	"bcrypt_rounds":                "security.bcrypt_rounds",
	"audit_retention_days":         "audit.retention_days",
	"audit_purge_schedule":         "audit.purge_schedule",
	"audit_queue_size":             "audit.queue_size",
	"audit_workers":                "audit.workers",
	"log_level":                    "logging.level",
	"log_format":                   "logging.format",
	"bootstrap_admin_tenant":       "bootstrap.tenant",
	"bootstrap_admin_email":        "bootstrap.email",
	"bootstrap_admin_password":     "bootstrap.password",
	"bootstrap_admin_role":         "bootstrap.role",
}

// envTransformFunc maps known environment variables to config paths.
// Unknown variables map to "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
