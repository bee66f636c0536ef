package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries everything perchd needs, loaded from the environment.
// The provider client secret stays server-side only; the client CLI never
// sees it.
type Config struct {
	Profile    string
	ListenAddr string

	DatabaseDriver string
	DatabaseURL    string
	RedisAddr      string

	TokenPepper        string
	SessionTTL         time.Duration
	ValidationCacheTTL time.Duration
	SweepInterval      time.Duration
	DeviceRetention    time.Duration

	ProviderClientID      string
	ProviderClientSecret  string
	ProviderDeviceAuthURL string
	ProviderTokenURL      string
	ProviderProfileURL    string

	AuthRateLimitRPM int

	ShutdownTimeout time.Duration

	OTELMetricsEnabled        bool
	OTELTracesEnabled         bool
	OTELLogsEnabled           bool
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELServiceName           string
	OTELEnvironment           string
	OTELMetricsExportInterval time.Duration
}

func Load() (*Config, error) {
	cfg, err := load()
	profile := ""
	if cfg != nil {
		profile = cfg.Profile
	} else {
		profile = os.Getenv("PERCH_PROFILE")
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	recordConfigValidationEvent(context.Background(), profile, outcome, classifyConfigLoadError(err))
	return cfg, err
}

func load() (*Config, error) {
	cfg := &Config{
		Profile:                  envString("PERCH_PROFILE", "dev"),
		ListenAddr:               envString("PERCH_LISTEN_ADDR", ":8080"),
		DatabaseDriver:           envString("PERCH_DB_DRIVER", "sqlite"),
		DatabaseURL:              envString("PERCH_DB_URL", "file:perch.db"),
		RedisAddr:                envString("PERCH_REDIS_ADDR", ""),
		TokenPepper:              envString("PERCH_TOKEN_PEPPER", ""),
		ProviderClientID:         envString("PERCH_PROVIDER_CLIENT_ID", ""),
		ProviderClientSecret:     envString("PERCH_PROVIDER_CLIENT_SECRET", ""),
		ProviderDeviceAuthURL:    envString("PERCH_PROVIDER_DEVICE_AUTH_URL", "https://github.com/login/device/code"),
		ProviderTokenURL:         envString("PERCH_PROVIDER_TOKEN_URL", "https://github.com/login/oauth/access_token"),
		ProviderProfileURL:       envString("PERCH_PROVIDER_PROFILE_URL", "https://api.github.com/user"),
		OTELExporterOTLPEndpoint: envString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELServiceName:          envString("OTEL_SERVICE_NAME", "perch-authd"),
		OTELEnvironment:          envString("OTEL_ENVIRONMENT", "dev"),
	}

	var err error
	if cfg.SessionTTL, err = envDuration("PERCH_SESSION_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ValidationCacheTTL, err = envDuration("PERCH_VALIDATION_CACHE_TTL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = envDuration("PERCH_SWEEP_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.DeviceRetention, err = envDuration("PERCH_DEVICE_RETENTION", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = envDuration("PERCH_SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsExportInterval, err = envDuration("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimitRPM, err = envInt("PERCH_AUTH_RATE_LIMIT_RPM", 120); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsEnabled, err = envBool("OTEL_METRICS_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELTracesEnabled, err = envBool("OTEL_TRACES_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELLogsEnabled, err = envBool("OTEL_LOGS_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELExporterOTLPInsecure, err = envBool("OTEL_EXPORTER_OTLP_INSECURE", true); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var missing []string
	if c.TokenPepper == "" {
		missing = append(missing, "PERCH_TOKEN_PEPPER")
	}
	if c.ProviderClientID == "" {
		missing = append(missing, "PERCH_PROVIDER_CLIENT_ID")
	}
	if c.ProviderClientSecret == "" {
		missing = append(missing, "PERCH_PROVIDER_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("validate config: %s required", strings.Join(missing, ", "))
	}
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("validate config: unsupported PERCH_DB_DRIVER %q", c.DatabaseDriver)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("validate config: PERCH_SESSION_TTL must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("validate config: PERCH_SWEEP_INTERVAL must be positive")
	}
	if c.DeviceRetention <= 0 {
		return fmt.Errorf("validate config: PERCH_DEVICE_RETENTION must be positive")
	}
	return nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}
