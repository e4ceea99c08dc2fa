package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("QG_TEST_KEY", "00112233")
	path := write(t, `
version: 1
quest: quests/smith.yaml
symbols: [smith, wolf]
store:
  backend: redis
  encryption_key: ${QG_TEST_KEY}
  pii: [player_name]
  lock_ttl: 5s
  redis:
    addr: redis:6379
    ttl: 1h
mqtt:
  broker: tcp://broker:1883
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "quests/smith.yaml", cfg.Quest)
	assert.Equal(t, []string{"smith", "wolf"}, cfg.Symbols)
	assert.Equal(t, "00112233", cfg.Store.EncryptionKey)
	assert.Equal(t, 5*time.Second, cfg.Store.LockTTL)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, "questgraph:", cfg.Store.Redis.Prefix, "defaults fill unset fields")
	assert.Equal(t, time.Hour, cfg.Store.Redis.TTL)
	assert.Equal(t, "binary", cfg.Store.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, "questgraph/events/#", cfg.MQTT.Topic)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"version", "version: 2\n", "unsupported"},
		{"backend", "version: 1\nstore:\n  backend: tape\n", "unknown store.backend"},
		{"sqlite path", "version: 1\nstore:\n  backend: sqlite\n", "store.path is required"},
		{"cycles", "version: 1\nruntime:\n  cycles: sometimes\n", "unknown runtime.cycles"},
		{"qos", "version: 1\nmqtt:\n  qos: 3\n", "mqtt.qos"},
		{"syntax", "version: [\n", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(write(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestInterpolateEnv(t *testing.T) {
	t.Setenv("QG_HOST", "db")
	assert.Equal(t, "db:${QG_UNSET_VAR}", interpolateEnv("${QG_HOST}:${QG_UNSET_VAR}"))
}

func TestDefaultsAreValid(t *testing.T) {
	assert.NoError(t, Defaults().Validate())
}
