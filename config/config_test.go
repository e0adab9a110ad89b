package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("reads values from file", func(t *testing.T) {
		path := writeConfig(t, `
[server]
port = 9000

[broadcast]
driver = "local"
channel = "lobby"

[gateway]
app_key = "secret"
host = "chat.example.com"
port = 443
tls = true
`)
		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "local", cfg.Broadcast.Driver)
		assert.Equal(t, "lobby", cfg.Broadcast.Channel)
		assert.Equal(t, "message.sent", cfg.Broadcast.Event)
		assert.Equal(t, "wss://chat.example.com:443/app/secret", cfg.Gateway.URL())
	})

	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "redis", cfg.Broadcast.Driver)
		assert.Equal(t, "chat-room", cfg.Broadcast.Channel)
		assert.Equal(t, "ws://127.0.0.1:8080/app/livechat", cfg.Gateway.URL())
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := writeConfig(t, "[postgres]\nhost = \"db.internal\"\n")
		t.Setenv("LIVECHAT_POSTGRES_HOST", "db.override")
		t.Setenv("LIVECHAT_BROADCAST_DRIVER", "local")

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "db.override", cfg.Postgres.Host)
		assert.Equal(t, "local", cfg.Broadcast.Driver)
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		path := writeConfig(t, "[broadcast]\ndriver = \"carrier-pigeon\"\n")
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}

func TestPostgresConfig_DSN(t *testing.T) {
	p := PostgresConfig{Host: "h", Port: "5432", User: "u", Password: "p", DBName: "d"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable", p.DSN())
}
