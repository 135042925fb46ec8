package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "public/uploads", cfg.Chat.StorageRoot)
	assert.Equal(t, "/uploads", cfg.Chat.PublicPrefix)
	assert.Equal(t, int64(10<<20), cfg.Chat.MaxUploadSize)
	assert.Equal(t, "none", cfg.Relay.Driver)
	assert.False(t, cfg.Vault.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("DEFAULT_ADMIN_ID", "A1")
	t.Setenv("CHAT_MAX_UPLOAD_SIZE", "2048")
	t.Setenv("CHAT_LIVE_RATE", "2.5")
	t.Setenv("RELAY_DRIVER", "nats")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("JWT_EXPIRY", "2h")
	t.Setenv("VAULT_ENABLED", "true")

	cfg := Load()

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "A1", cfg.Chat.DefaultAdminID)
	assert.Equal(t, int64(2048), cfg.Chat.MaxUploadSize)
	assert.Equal(t, 2.5, cfg.Chat.LiveRate)
	assert.Equal(t, "nats", cfg.Relay.Driver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, 2*time.Hour, cfg.JWT.ExpiryHours)
	assert.True(t, cfg.Vault.Enabled)
}

func TestDSN(t *testing.T) {
	cfg := Load()
	cfg.Database.Host = "db"
	cfg.Database.Timeout = 5 * time.Second

	assert.Contains(t, cfg.DSN(), "host=db")
	assert.Contains(t, cfg.DSN(), "dbname=victim_support")
	assert.Contains(t, cfg.DSN(), "connect_timeout=5")
}
