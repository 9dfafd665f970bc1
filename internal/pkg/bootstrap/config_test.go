package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 100*time.Millisecond, cfg.Order.AwaitInterval)
	assert.Equal(t, 50, cfg.Order.AwaitAttempts)
	assert.False(t, cfg.Order.StrictRace)
	assert.Equal(t, "memory", cfg.Order.Store)
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "order.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  port: 9090
infra:
  kafka:
    brokers: kafka-1:9092
order:
  await_interval: 20ms
  await_attempts: 5
  strict_race: true
  lock_backend: redis
`), 0o600))

	t.Setenv("KAFKA_BROKERS", "kafka-2:9092,kafka-3:9092")
	t.Setenv("HTTP_PORT", "8181")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.App.Port)
	assert.Equal(t, "kafka-2:9092,kafka-3:9092", cfg.Infra.Kafka.Brokers)
	assert.Equal(t, 20*time.Millisecond, cfg.Order.AwaitInterval)
	assert.Equal(t, 5, cfg.Order.AwaitAttempts)
	assert.True(t, cfg.Order.StrictRace)
	assert.Equal(t, "redis", cfg.Order.LockBackend)
	// 文件里没有写的字段保留默认值
	assert.Equal(t, 3, cfg.Order.ConflictRetries)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("order:\n  lock_backend: etcd\n"), 0o600))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "lock_backend")

	t.Setenv("HTTP_PORT", "not-a-port")
	_, err = LoadConfig("")
	assert.ErrorContains(t, err, "HTTP_PORT")
}

func TestValidate_LockTimeout(t *testing.T) {
	tests := []struct {
		backend string
		timeout time.Duration
		wantErr bool
	}{
		{backend: "local", timeout: 0, wantErr: true},
		{backend: "redis", timeout: -time.Second, wantErr: true},
		{backend: "zookeeper", timeout: time.Second},
		{backend: "none", timeout: 0},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Order.LockBackend = tt.backend
			cfg.Order.LockTimeout = tt.timeout
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorContains(t, err, "order.lock_timeout")
				return
			}
			assert.NoError(t, err)
		})
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "zero-timeout.yaml")
	require.NoError(t, os.WriteFile(path, []byte("order:\n  lock_backend: local\n  lock_timeout: 0s\n"), 0o600))
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "lock_timeout")
}

func TestLoadConfig_ShippedFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "..", "configs", "order-service.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Order.LockBackend)
	assert.Equal(t, 30*time.Second, cfg.Order.LockTTL)
	assert.Equal(t, time.Hour, cfg.Infra.MySQL.ConnMaxLife)
	assert.Equal(t, DefaultConfig().Simulator, cfg.Simulator)
}
