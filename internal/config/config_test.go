package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, "app:\n  env: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "8080", c.App.Port)
	assert.Equal(t, ":9100", c.App.MetricsAddr)
	assert.Equal(t, "realtime", c.Mongo.Database)
	assert.Equal(t, 500, c.Poll.MaxQueueSize)
	assert.Equal(t, 25*time.Second, c.PingInterval)
	assert.Equal(t, 60*time.Second, c.ReadDeadline)
	assert.Equal(t, 25*time.Second, c.PollMaxWait)
}

func TestLoad_ExplicitValuesWin(t *testing.T) {
	c, err := Load(writeConfig(t, `
app:
  port: "9000"
  metrics_addr: ":9200"
poll:
  max_wait_seconds: 5
`))
	require.NoError(t, err)

	assert.Equal(t, "9000", c.App.Port)
	assert.Equal(t, ":9200", c.App.MetricsAddr)
	assert.Equal(t, 5*time.Second, c.PollMaxWait)
}
