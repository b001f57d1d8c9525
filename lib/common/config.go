package common

import (
	"fmt"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"io"
	"os"
	"runtime"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultChannelCapacity = 10000
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultBatchSize       = 1000
	DefaultFetchTimeout    = time.Second
	DefaultLogLevel        = "info"
)

// --------------------------------------------------------------------------
// Configuration structs
// --------------------------------------------------------------------------

// EngineConfig configures the executor engine.
type EngineConfig struct {
	// PoolSize is the maximum number of groups executed concurrently by one Execute call.
	// It is fixed and does not grow with the number of groups.
	PoolSize int `yaml:"pool_size"`
}

// ChannelConfig configures a memory pipeline channel.
type ChannelConfig struct {
	// Capacity is the maximum number of records resident in the channel
	Capacity int `yaml:"capacity"`
	// PollInterval is the interval at which Fetch re-checks the queue
	PollInterval time.Duration `yaml:"poll_interval"`
}

// ImporterConfig configures the importer loop consuming a channel.
type ImporterConfig struct {
	BatchSize    int           `yaml:"batch_size"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// Config is the complete configuration of a dShard process.
//
// Config values are treated as immutable: the With* methods return modified copies.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Engine   EngineConfig   `yaml:"engine"`
	Channel  ChannelConfig  `yaml:"channel"`
	Importer ImporterConfig `yaml:"importer"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Engine: EngineConfig{
			PoolSize: runtime.NumCPU(),
		},
		Channel: ChannelConfig{
			Capacity:     DefaultChannelCapacity,
			PollInterval: DefaultPollInterval,
		},
		Importer: ImporterConfig{
			BatchSize:    DefaultBatchSize,
			FetchTimeout: DefaultFetchTimeout,
		},
	}
}

// --------------------------------------------------------------------------
// Copy-on-change builders
// --------------------------------------------------------------------------

// WithLogLevel returns a copy of the config with the given log level
func (c Config) WithLogLevel(level string) Config {
	c.LogLevel = level
	return c
}

// WithPoolSize returns a copy of the config with the given engine pool size
func (c Config) WithPoolSize(size int) Config {
	c.Engine.PoolSize = size
	return c
}

// WithChannelCapacity returns a copy of the config with the given channel capacity
func (c Config) WithChannelCapacity(capacity int) Config {
	c.Channel.Capacity = capacity
	return c
}

// WithPollInterval returns a copy of the config with the given channel poll interval
func (c Config) WithPollInterval(interval time.Duration) Config {
	c.Channel.PollInterval = interval
	return c
}

// WithBatchSize returns a copy of the config with the given importer batch size
func (c Config) WithBatchSize(size int) Config {
	c.Importer.BatchSize = size
	return c
}

// WithFetchTimeout returns a copy of the config with the given importer fetch timeout
func (c Config) WithFetchTimeout(timeout time.Duration) Config {
	c.Importer.FetchTimeout = timeout
	return c
}

// --------------------------------------------------------------------------
// Validation
// --------------------------------------------------------------------------

// Validate checks that all values are usable
func (c Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if c.Engine.PoolSize <= 0 {
		return errors.Errorf("invalid config: engine pool size must be positive, got %d", c.Engine.PoolSize)
	}
	if c.Channel.Capacity <= 0 {
		return errors.Errorf("invalid config: channel capacity must be positive, got %d", c.Channel.Capacity)
	}
	if c.Channel.PollInterval <= 0 {
		return errors.Errorf("invalid config: channel poll interval must be positive, got %s", c.Channel.PollInterval)
	}
	if c.Importer.BatchSize <= 0 {
		return errors.Errorf("invalid config: importer batch size must be positive, got %d", c.Importer.BatchSize)
	}
	if c.Importer.FetchTimeout <= 0 {
		return errors.Errorf("invalid config: importer fetch timeout must be positive, got %s", c.Importer.FetchTimeout)
	}
	return nil
}

// --------------------------------------------------------------------------
// Loading
// --------------------------------------------------------------------------

// LoadConfig parses a YAML configuration from r. Missing fields keep their default values.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile parses the YAML configuration file at path
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to open config file %s", path)
	}
	defer f.Close()

	return LoadConfig(f)
}

// --------------------------------------------------------------------------
// Printing
// --------------------------------------------------------------------------

// String returns a formatted string representation of the configuration
func (c Config) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	addSection("Executor Engine")
	addField("Pool Size", fmt.Sprintf("%d", c.Engine.PoolSize))

	addSection("Pipeline Channel")
	addField("Capacity", fmt.Sprintf("%d records", c.Channel.Capacity))
	addField("Poll Interval", c.Channel.PollInterval.String())

	addSection("Importer")
	addField("Batch Size", fmt.Sprintf("%d records", c.Importer.BatchSize))
	addField("Fetch Timeout", c.Importer.FetchTimeout.String())

	return sb.String()
}
