package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Environment string `toml:"-"`

	Host string `toml:"host"`
	Port int    `toml:"port"`
	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	// telemetry
	TracingEnabled        bool   `toml:"tracing_enabled"`
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
	// http
	APIPrefix      string   `toml:"api_prefix"`
	AllowedOrigins []string `toml:"allowed_origins"`

	DB DB `toml:"db"`
}

// DB holds the postgres connection settings. The env tags are applied after
// the TOML file is decoded, so a set DB_* variable always wins.
type DB struct {
	Host     string `toml:"host" env:"DB_HOST, overwrite, default=postgres-svc"`
	Port     string `toml:"port" env:"DB_PORT, overwrite, default=5432"`
	Name     string `toml:"name" env:"DB_NAME, overwrite, default=boarddb"`
	User     string `toml:"user" env:"DB_USER, overwrite, default=admin"`
	Password string `toml:"password" env:"DB_PASS, overwrite, default=admin123"`
	SSLMode  string `toml:"sslmode" env:"DB_SSLMODE, overwrite, default=disable"`

	Pooling        bool `toml:"pooling"`
	TracingEnabled bool `toml:"tracing_enabled"`
}

func Default(env string) *Config {
	return &Config{
		Environment:           env,
		Host:                  "0.0.0.0",
		Port:                  5000,
		LogLevel:              "info",
		PrometheusMetricsHost: "0.0.0.0",
		PrometheusMetricsPort: "9091",
	}
}

// Load reads the section for env from the TOML file at path and then applies
// DB_* environment overrides. A missing file is not an error.
func Load(ctx context.Context, env, path string) (*Config, error) {
	return load(ctx, env, path, envconfig.OsLookuper())
}

func load(ctx context.Context, env, path string, lookuper envconfig.Lookuper) (*Config, error) {
	section, err := sectionName(env)
	if err != nil {
		return nil, err
	}

	cfg := Default(section)

	var sections map[string]toml.Primitive
	md, err := toml.DecodeFile(path, &sections)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warnf("config file [%s] not found, using defaults", path)
	case err != nil:
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	default:
		prim, ok := sections[section]
		if !ok {
			return nil, fmt.Errorf("config file %s has no [%s] section", path, section)
		}
		if err := md.PrimitiveDecode(prim, cfg); err != nil {
			return nil, fmt.Errorf("decode [%s] section: %w", section, err)
		}
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg.DB,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("process db env vars: %w", err)
	}

	return cfg, nil
}

func sectionName(env string) (string, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return "development", nil
	case "prod", "production":
		return "production", nil
	default:
		return "", fmt.Errorf("unknown env: %s", env)
	}
}
