package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_NODE_TOKEN", "secret-node-token")

	path := writeConfig(t, `
app:
  name: jetsflare-test
  environment: test
database:
  path: /tmp/test.db
  backup:
    retention_days: 7
api:
  port: 8181
  auth:
    tokens:
      - token: ${TEST_NODE_TOKEN}
        name: node
      - token: admin-secret
        name: admin
        admin: true
  rate_limit:
    rps: 10
    burst: 20
bot:
  rate_limit_messages: 15
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "jetsflare-test", cfg.App.Name)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, 8181, cfg.API.Port)
	assert.Equal(t, 7, cfg.Database.Backup.RetentionDays)

	require.Len(t, cfg.API.Auth.Tokens, 2)
	assert.Equal(t, "secret-node-token", cfg.API.Auth.Tokens[0].Token, "env placeholders expand")
	assert.False(t, cfg.API.Auth.Tokens[0].Admin)
	assert.True(t, cfg.API.Auth.Tokens[1].Admin)

	assert.Equal(t, 10.0, cfg.API.RateLimit.RPS)
	assert.Equal(t, 15, cfg.Bot.RateLimitMessages)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/test.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "jetsflare", cfg.App.Name)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, 20, cfg.Bot.RateLimitMessages)
	assert.Equal(t, 60, cfg.Bot.RateLimitWindow)
	assert.Equal(t, 5, cfg.Bot.MaxWelcomeLinks)
	assert.Equal(t, "backups", cfg.Database.Backup.StoragePath)
}

func TestLoad_PrometheusPortDefault(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/test.db
monitoring:
  prometheus_enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Monitoring.PrometheusPort)
}

func TestLoad_Failures(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "api: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("missing database path", func(t *testing.T) {
		_, err := Load(writeConfig(t, "app:\n  name: x\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database path")
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
database:
  path: /tmp/test.db
api:
  auth:
    tokens:
      - token: ""
        name: broken
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "token")
	})
}
