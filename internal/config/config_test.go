// AngelaMos | 2026
// config_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLayersFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
realtime:
  broker: nats
  pong_wait: 30s
content:
  anonymous_comments: 3
nats:
  subject: signals.test
`), 0o600))

	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("NATS_URL", "nats://broker:4222")
	t.Setenv("PORT", "9090")

	c, err := load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/test", c.Database.URL)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, BrokerNATS, c.Realtime.Broker)
	assert.Equal(t, 30*time.Second, c.Realtime.PongWait)
	assert.Equal(t, 10*time.Second, c.Realtime.WriteWait)
	assert.Equal(t, "nats://broker:4222", c.NATS.URL)
	assert.Equal(t, "signals.test", c.NATS.Subject)
	assert.Equal(t, 3, c.Content.AnonymousComments)
	assert.Equal(t, 20, c.Content.DefaultPageSize)
	assert.Equal(t, MailDriverLog, c.Mail.Driver)
}

func validConfig() *Config {
	return &Config{
		App:      AppConfig{Environment: "development"},
		Server:   ServerConfig{ReadTimeout: time.Second, WriteTimeout: time.Second},
		Database: DatabaseConfig{URL: "postgres://localhost/test"},
		Redis:    RedisConfig{URL: "redis://localhost"},
		JWT:      JWTConfig{PrivateKeyPath: "a.pem", PublicKeyPath: "b.pem"},
		CORS:     CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}, AllowCredentials: true},
		Storage:  StorageConfig{Bucket: "media"},
		Realtime: RealtimeConfig{Broker: BrokerLocal},
		Mail:     MailConfig{Driver: MailDriverLog},
		Content:  ContentConfig{MaxMediaBytes: 1, MaxImageBytes: 1},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing database", func(c *Config) { c.Database.URL = "" }, "DATABASE_URL"},
		{"missing redis", func(c *Config) { c.Redis.URL = "" }, "REDIS_URL"},
		{"wildcard with credentials", func(c *Config) { c.CORS.AllowedOrigins = []string{"*"} }, "wildcard"},
		{"unknown broker", func(c *Config) { c.Realtime.Broker = "kafka" }, "realtime.broker"},
		{"nats without url", func(c *Config) { c.Realtime.Broker = BrokerNATS }, "NATS_URL"},
		{"smtp without host", func(c *Config) { c.Mail.Driver = MailDriverSMTP }, "SMTP_SERVER"},
		{"unknown mail driver", func(c *Config) { c.Mail.Driver = "pigeon" }, "mail.driver"},
		{"missing bucket", func(c *Config) { c.Storage.Bucket = "" }, "STORAGE_BUCKET"},
		{"zero upload limit", func(c *Config) { c.Content.MaxImageBytes = 0 }, "upload limits"},
		{
			"insecure otel in production",
			func(c *Config) {
				c.App.Environment = "production"
				c.Otel = OtelConfig{Enabled: true, Insecure: true}
			},
			"OTEL_INSECURE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := validate(c)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
