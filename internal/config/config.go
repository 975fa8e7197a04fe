// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	Tokens    TokensConfig    `koanf:"tokens"`
	SMTP      SMTPConfig      `koanf:"smtp"`
	Storage   StorageConfig   `koanf:"storage"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	// BaseURL is used to build verification and reset links in emails.
	BaseURL string `koanf:"base_url"`
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
}

type RedisConfig struct {
	URL             string        `koanf:"url"`
	PoolSize        int           `koanf:"pool_size"`
	MinIdleConns    int           `koanf:"min_idle_conns"`
	PoolTimeout     time.Duration `koanf:"pool_timeout"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

// JWTConfig carries distinct secrets so a refresh token can never pass
// verification as an access token or vice versa.
type JWTConfig struct {
	AccessSecret       string        `koanf:"access_secret"`
	RefreshSecret      string        `koanf:"refresh_secret"`
	AccessTokenExpire  time.Duration `koanf:"access_token_expire"`
	RefreshTokenExpire time.Duration `koanf:"refresh_token_expire"`
	Issuer             string        `koanf:"issuer"`
	Audience           string        `koanf:"audience"`
}

type TokensConfig struct {
	OneTimeExpire time.Duration `koanf:"one_time_expire"`
}

type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

type StorageConfig struct {
	Dir     string `koanf:"dir"`
	BaseURL string `koanf:"base_url"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
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

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		k := koanf.New(".")

		if err := loadDefaults(k); err != nil {
			loadErr = fmt.Errorf("load defaults: %w", err)
			return
		}

		if configPath != "" {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				loadErr = fmt.Errorf("load config file: %w", err)
				return
			}
		}

		if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
			loadErr = fmt.Errorf("load env vars: %w", err)
			return
		}

		cfg = &Config{}
		if err := k.Unmarshal("", cfg); err != nil {
			loadErr = fmt.Errorf("unmarshal config: %w", err)
			return
		}

		if err := validate(cfg); err != nil {
			loadErr = fmt.Errorf("validate config: %w", err)
			return
		}
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Bookstore API",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.base_url":    "http://localhost:8080",

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

		"redis.pool_size":          10,
		"redis.min_idle_conns":     5,
		"redis.pool_timeout":       "30s",
		"redis.conn_max_idle_time": "5m",

		"jwt.access_token_expire":  "168h",
		"jwt.refresh_token_expire": "720h",
		"jwt.issuer":               "bookstore-api",
		"jwt.audience":             "bookstore-clients",

		"tokens.one_time_expire": "1h",

		"smtp.port": 465,
		"smtp.from": "noreply@bookstore.local",

		"storage.dir":      "uploads",
		"storage.base_url": "http://localhost:8080/uploads",

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "bookstore-api",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":             "database.url",
	"REDIS_URL":                "redis.url",
	"ENVIRONMENT":              "app.environment",
	"BASE_URL":                 "app.base_url",
	"HOST":                     "server.host",
	"PORT":                     "server.port",
	"LOG_LEVEL":                "log.level",
	"LOG_FORMAT":               "log.format",
	"JWT_ACCESS_SECRET":        "jwt.access_secret",
	"JWT_REFRESH_SECRET":       "jwt.refresh_secret",
	"JWT_ACCESS_TOKEN_EXPIRE":  "jwt.access_token_expire",
	"JWT_REFRESH_TOKEN_EXPIRE": "jwt.refresh_token_expire",
	"JWT_ISSUER":               "jwt.issuer",
	"JWT_AUDIENCE":             "jwt.audience",
	"ONE_TIME_TOKEN_EXPIRE":    "tokens.one_time_expire",
	"SMTP_HOST":                "smtp.host",
	"SMTP_PORT":                "smtp.port",
	"SMTP_USERNAME":            "smtp.username",
	"SMTP_PASSWORD":            "smtp.password",
	"SMTP_FROM":                "smtp.from",
	"STORAGE_DIR":              "storage.dir",
	"STORAGE_BASE_URL":         "storage.base_url",
	"RATE_LIMIT_REQUESTS":      "rate_limit.requests",
	"RATE_LIMIT_WINDOW":        "rate_limit.window",
	"RATE_LIMIT_BURST":         "rate_limit.burst",
	"OTEL_ENDPOINT":            "otel.endpoint",
	"OTEL_SERVICE_NAME":        "otel.service_name",
	"OTEL_ENABLED":             "otel.enabled",
	"OTEL_INSECURE":            "otel.insecure",
	"OTEL_SAMPLE_RATE":         "otel.sample_rate",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.JWT.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}

	if c.JWT.RefreshSecret == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET is required")
	}

	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return fmt.Errorf("JWT access and refresh secrets must differ")
	}

	if c.Tokens.OneTimeExpire <= 0 {
		return fmt.Errorf("tokens.one_time_expire must be positive")
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
		if c.SMTP.Host == "" {
			return fmt.Errorf("SMTP_HOST is required in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
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
