// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const MinSecretBytes = 32

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Auth      AuthConfig      `koanf:"auth"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

// AuthConfig is handed to the token pair manager at construction.
type AuthConfig struct {
	AccessTokenTTL  time.Duration `koanf:"access_token_ttl"`
	RefreshTokenTTL time.Duration `koanf:"refresh_token_ttl"`
	SecretBytes     int           `koanf:"secret_bytes"`
	KeepSessions    int           `koanf:"keep_sessions"`
	LoginAttempts   int           `koanf:"login_attempts"`
	LoginWindow     time.Duration `koanf:"login_window"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// Load builds a Config from defaults, an optional YAML file and the
// environment, in that order of precedence.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Journal Backend",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.auto_migrate":       true,

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"auth.access_token_ttl":  "2h",
		"auth.refresh_token_ttl": "168h",
		"auth.secret_bytes":      MinSecretBytes,
		"auth.keep_sessions":     5,
		"auth.login_attempts":    10,
		"auth.login_window":      "1m",

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "journal-backend",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// sections are the top-level keys, longest first so RATE_LIMIT_BURST
// resolves to rate_limit.burst and not rate.limit_burst.
var sections = []string{
	"rate_limit", "database", "server", "redis", "auth", "cors", "otel", "app", "log",
}

var envAliases = map[string]string{
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"TOKEN_SECRET_BYTES":          "auth.secret_bytes",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
}

// envKey maps SECTION_FIELD onto section.field. Anything else in the
// process environment is dropped.
func envKey(name string) string {
	if key, ok := envAliases[name]; ok {
		return key
	}

	lower := strings.ToLower(name)
	for _, section := range sections {
		field, ok := strings.CutPrefix(lower, section+"_")
		if ok && field != "" {
			return section + "." + field
		}
	}
	return ""
}

func envValue(name, value string) (string, any) {
	key := envKey(name)
	if key == "" {
		return "", nil
	}

	if strings.HasPrefix(key, "cors.allowed_") {
		var items []string
		for item := range strings.SplitSeq(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return key, items
	}
	return key, value
}

// Validate reports every invalid section at once.
func (c *Config) Validate() error {
	return errors.Join(
		c.Database.validate(),
		c.Redis.validate(),
		c.Server.validate(),
		c.Auth.Validate(),
		c.CORS.validate(),
		c.Otel.validate(c.IsProduction()),
	)
}

func (d DatabaseConfig) validate() error {
	if d.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if d.MaxIdleConns > d.MaxOpenConns {
		return fmt.Errorf(
			"database.max_idle_conns (%d) exceeds database.max_open_conns (%d)",
			d.MaxIdleConns, d.MaxOpenConns,
		)
	}
	return nil
}

func (r RedisConfig) validate() error {
	if r.URL == "" {
		return errors.New("REDIS_URL is required")
	}
	return nil
}

func (s ServerConfig) validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", s.Port)
	}
	if s.ReadTimeout <= 0 || s.WriteTimeout <= 0 {
		return errors.New("server read and write timeouts must be positive")
	}
	return nil
}

func (c CORSConfig) validate() error {
	if c.AllowCredentials && slices.Contains(c.AllowedOrigins, "*") {
		return errors.New("cors: wildcard origin cannot be combined with allow_credentials")
	}
	return nil
}

func (o OtelConfig) validate(production bool) error {
	if !o.Enabled {
		return nil
	}
	if o.SampleRate < 0 || o.SampleRate > 1 {
		return fmt.Errorf("otel.sample_rate %v must be within [0, 1]", o.SampleRate)
	}
	if production && o.Insecure {
		return errors.New("OTEL_INSECURE must be false in production")
	}
	return nil
}

func (a AuthConfig) Validate() error {
	if a.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be positive")
	}

	if a.RefreshTokenTTL <= 0 {
		return fmt.Errorf("auth.refresh_token_ttl must be positive")
	}

	if a.RefreshTokenTTL < a.AccessTokenTTL {
		return fmt.Errorf(
			"auth.refresh_token_ttl must not be shorter than auth.access_token_ttl",
		)
	}

	if a.SecretBytes < MinSecretBytes {
		return fmt.Errorf("auth.secret_bytes must be at least %d", MinSecretBytes)
	}

	if a.KeepSessions < 1 {
		return fmt.Errorf("auth.keep_sessions must be at least 1")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
