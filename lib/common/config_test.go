package common_test

import (
	"os"
	"strings"
	"testing"
	"time"

	. "github.com/ValentinKolb/dShard/lib/common"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
log_level: debug
engine:
  pool_size: 4
channel:
  capacity: 64
  poll_interval: 20ms
importer:
  batch_size: 16
  fetch_timeout: 250ms
`

func TestLoadConfig(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		cfg, err := LoadConfig(strings.NewReader(testConfigYAML))
		require.NoError(t, err)
		require.Equal(t, "debug", cfg.LogLevel)
		require.Equal(t, 4, cfg.Engine.PoolSize)
		require.Equal(t, 64, cfg.Channel.Capacity)
		require.Equal(t, 20*time.Millisecond, cfg.Channel.PollInterval)
		require.Equal(t, 16, cfg.Importer.BatchSize)
		require.Equal(t, 250*time.Millisecond, cfg.Importer.FetchTimeout)
	})

	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig(strings.NewReader(""))
		require.NoError(t, err)
		require.Equal(t, DefaultConfig(), cfg)

		cfg, err = LoadConfig(strings.NewReader("engine:\n  pool_size: 2\n"))
		require.NoError(t, err)
		require.Equal(t, 2, cfg.Engine.PoolSize)
		require.Equal(t, DefaultChannelCapacity, cfg.Channel.Capacity)
		require.Equal(t, DefaultPollInterval, cfg.Channel.PollInterval)
	})

	t.Run("error", func(t *testing.T) {
		_, err := LoadConfig(strings.NewReader("invalid: yaml: ["))
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to unmarshal config")

		_, err = LoadConfig(strings.NewReader("channel:\n  capacity: 0\n"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "channel capacity must be positive")

		_, err = LoadConfig(strings.NewReader("log_level: loud\n"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid log level")
	})
}

func TestLoadConfigFile(t *testing.T) {
	tempFile, err := os.CreateTemp("", "dshard_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tempFile.Name())

	_, err = tempFile.WriteString(testConfigYAML)
	require.NoError(t, err)
	require.NoError(t, tempFile.Close())

	cfg, err := LoadConfigFile(tempFile.Name())
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Engine.PoolSize)

	_, err = LoadConfigFile("/non/existent/config.yaml")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to open config file")
}

func TestConfigBuildersCopy(t *testing.T) {
	base := DefaultConfig()
	changed := base.
		WithPoolSize(3).
		WithChannelCapacity(7).
		WithPollInterval(time.Millisecond).
		WithBatchSize(5).
		WithFetchTimeout(time.Minute).
		WithLogLevel("error")

	require.Equal(t, DefaultConfig(), base, "builders must not modify the receiver")
	require.Equal(t, 3, changed.Engine.PoolSize)
	require.Equal(t, 7, changed.Channel.Capacity)
	require.Equal(t, time.Millisecond, changed.Channel.PollInterval)
	require.Equal(t, 5, changed.Importer.BatchSize)
	require.Equal(t, time.Minute, changed.Importer.FetchTimeout)
	require.Equal(t, "error", changed.LogLevel)
	require.NoError(t, changed.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		message string
	}{
		{"pool size", DefaultConfig().WithPoolSize(0), "engine pool size"},
		{"capacity", DefaultConfig().WithChannelCapacity(-1), "channel capacity"},
		{"poll interval", DefaultConfig().WithPollInterval(0), "poll interval"},
		{"batch size", DefaultConfig().WithBatchSize(0), "batch size"},
		{"fetch timeout", DefaultConfig().WithFetchTimeout(0), "fetch timeout"},
		{"log level", DefaultConfig().WithLogLevel("verbose"), "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestConfigString(t *testing.T) {
	s := DefaultConfig().WithPoolSize(9).String()
	require.Contains(t, s, "EXECUTOR ENGINE")
	require.Contains(t, s, "PIPELINE CHANNEL")
	require.Contains(t, s, "Pool Size")
	require.Contains(t, s, "9")
}
