package util

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("line %q longer than %d", line, Wrap)
		}
	}
	if WrapString("") != "" {
		t.Error("WrapString(\"\") should be empty")
	}
}

func TestEnvName(t *testing.T) {
	if got := EnvName("pool-size"); got != "DSHARD_POOL_SIZE" {
		t.Errorf("EnvName() = %s", got)
	}
}

func newTestCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	viper.Reset()
	InitConfig()

	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	SetupConfigFlags(cmd)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	if err := BindCommandFlags(cmd); err != nil {
		t.Fatalf("BindCommandFlags() error = %v", err)
	}
	return cmd
}

func TestGetConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "engine:\n  pool_size: 3\nchannel:\n  capacity: 50\nimporter:\n  batch_size: 7\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DSHARD_BATCH_SIZE", "9")
	cmd := newTestCommand(t, "--config", path, "--pool-size", "5", "--fetch-timeout", "2s")

	conf, err := GetConfig(cmd)
	if err != nil {
		t.Fatalf("GetConfig() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"pool size from flag", conf.Engine.PoolSize, 5},
		{"capacity from file", conf.Channel.Capacity, 50},
		{"batch size from env", conf.Importer.BatchSize, 9},
		{"fetch timeout from flag", conf.Importer.FetchTimeout, 2 * time.Second},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestGetConfigInvalid(t *testing.T) {
	cmd := newTestCommand(t, "--pool-size", "0")
	if _, err := GetConfig(cmd); err == nil {
		t.Error("GetConfig() accepted a pool size of 0")
	}

	cmd = newTestCommand(t, "--log-level", "loud")
	if _, err := GetConfig(cmd); err == nil {
		t.Error("GetConfig() accepted an invalid log level")
	}
}
