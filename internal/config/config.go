// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/joho/godotenv"
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
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
	Storage   StorageConfig   `koanf:"storage"`
	NATS      NATSConfig      `koanf:"nats"`
	Realtime  RealtimeConfig  `koanf:"realtime"`
	Mail      MailConfig      `koanf:"mail"`
	Identity  IdentityConfig  `koanf:"identity"`
	Content   ContentConfig   `koanf:"content"`
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
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

// JWTConfig describes the signing key pair. RetiredPublicKeyPaths lists
// public keys of earlier pairs; tokens they signed stay valid until expiry.
type JWTConfig struct {
	PrivateKeyPath        string        `koanf:"private_key_path"`
	PublicKeyPath         string        `koanf:"public_key_path"`
	RetiredPublicKeyPaths []string      `koanf:"retired_public_key_paths"`
	AccessTokenExpire     time.Duration `koanf:"access_token_expire"`
	RefreshTokenExpire    time.Duration `koanf:"refresh_token_expire"`
	Issuer                string        `koanf:"issuer"`
	Audience              string        `koanf:"audience"`
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

// StorageConfig points at the S3 compatible bucket holding post media and
// profile images.
type StorageConfig struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	UseSSL    bool   `koanf:"use_ssl"`
	PublicURL string `koanf:"public_url"`
}

type NATSConfig struct {
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

type RealtimeConfig struct {
	Broker         string        `koanf:"broker"`
	Channel        string        `koanf:"channel"`
	WriteWait      time.Duration `koanf:"write_wait"`
	PongWait       time.Duration `koanf:"pong_wait"`
	MaxMessageSize int64         `koanf:"max_message_size"`
	SendBuffer     int           `koanf:"send_buffer"`
}

type MailConfig struct {
	Driver   string `koanf:"driver"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

type IdentityConfig struct {
	VerificationCodeTTL time.Duration `koanf:"verification_code_ttl"`
	ResetCodeTTL        time.Duration `koanf:"reset_code_ttl"`
}

type ContentConfig struct {
	MaxMediaBytes     int64 `koanf:"max_media_bytes"`
	MaxMediaPerPost   int   `koanf:"max_media_per_post"`
	MaxImageBytes     int64 `koanf:"max_image_bytes"`
	AnonymousComments int   `koanf:"anonymous_comments"`
	DefaultPageSize   int   `koanf:"default_page_size"`
	MaxPageSize       int   `koanf:"max_page_size"`
}

const (
	BrokerLocal = "local"
	BrokerRedis = "redis"
	BrokerNATS  = "nats"

	MailDriverLog  = "log"
	MailDriverSMTP = "smtp"
)

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "ujikom-app-be",
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

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.access_token_expire":  "15m",
		"jwt.refresh_token_expire": "168h",
		"jwt.issuer":               "ujikom-app-be",
		"jwt.audience":             "ujikom-app-api",
		"jwt.private_key_path":     "keys/private.pem",
		"jwt.public_key_path":      "keys/public.pem",

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
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
		"otel.service_name": "ujikom-app-be",

		"storage.endpoint":   "localhost:9000",
		"storage.bucket":     "ujikom-media",
		"storage.region":     "us-east-1",
		"storage.use_ssl":    false,
		"storage.public_url": "http://localhost:9000/ujikom-media",

		"nats.url":     "nats://localhost:4222",
		"nats.subject": "realtime.signals",

		"realtime.broker":           BrokerLocal,
		"realtime.channel":          "realtime:signals",
		"realtime.write_wait":       "10s",
		"realtime.pong_wait":        "60s",
		"realtime.max_message_size": 4096,
		"realtime.send_buffer":      32,

		"mail.driver": MailDriverLog,
		"mail.port":   465,
		"mail.from":   "no-reply@localhost",

		"identity.verification_code_ttl": "4h",
		"identity.reset_code_ttl":        "30m",

		"content.max_media_bytes":    20 * 1024 * 1024,
		"content.max_media_per_post": 10,
		"content.max_image_bytes":    5 * 1024 * 1024,
		"content.anonymous_comments": 5,
		"content.default_page_size":  20,
		"content.max_page_size":      50,
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_PRIVATE_KEY_PATH":        "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":         "jwt.public_key_path",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"JWT_REFRESH_TOKEN_EXPIRE":    "jwt.refresh_token_expire",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"JWT_RETIRED_PUBLIC_KEYS":     "jwt.retired_public_key_paths",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
	"STORAGE_ENDPOINT":            "storage.endpoint",
	"STORAGE_ACCESS_KEY":          "storage.access_key",
	"STORAGE_SECRET_KEY":          "storage.secret_key",
	"STORAGE_BUCKET":              "storage.bucket",
	"STORAGE_REGION":              "storage.region",
	"STORAGE_USE_SSL":             "storage.use_ssl",
	"STORAGE_PUBLIC_URL":          "storage.public_url",
	"NATS_URL":                    "nats.url",
	"NATS_SUBJECT":                "nats.subject",
	"REALTIME_BROKER":             "realtime.broker",
	"REALTIME_CHANNEL":            "realtime.channel",
	"SMTP_DRIVER":                 "mail.driver",
	"SMTP_SERVER":                 "mail.host",
	"SMTP_PORT":                   "mail.port",
	"SMTP_USER":                   "mail.username",
	"SMTP_PASSWORD":               "mail.password",
	"SMTP_SENDER":                 "mail.from",
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

	if c.JWT.PrivateKeyPath == "" {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH is required")
	}

	if c.JWT.PublicKeyPath == "" {
		return fmt.Errorf("JWT_PUBLIC_KEY_PATH is required")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	switch c.Realtime.Broker {
	case BrokerLocal, BrokerRedis:
	case BrokerNATS:
		if c.NATS.URL == "" {
			return fmt.Errorf("NATS_URL is required when realtime.broker is nats")
		}
	default:
		return fmt.Errorf("realtime.broker must be one of local, redis, nats")
	}

	switch c.Mail.Driver {
	case MailDriverLog:
	case MailDriverSMTP:
		if c.Mail.Host == "" {
			return fmt.Errorf("SMTP_SERVER is required when mail.driver is smtp")
		}
	default:
		return fmt.Errorf("mail.driver must be one of log, smtp")
	}

	if c.Storage.Bucket == "" {
		return fmt.Errorf("STORAGE_BUCKET is required")
	}

	if c.Content.MaxMediaBytes <= 0 || c.Content.MaxImageBytes <= 0 {
		return fmt.Errorf("content upload limits must be positive")
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
