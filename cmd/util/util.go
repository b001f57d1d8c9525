package util

import (
	"fmt"
	"github.com/ValentinKolb/dShard/lib/common"
	"github.com/VictoriaMetrics/metrics"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"os"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (e.g. DSHARD_POOL_SIZE)
	EnvPrefix = "dshard"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and configures viper to read DSHARD_* environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// BindFlagsPreRun is a cobra PreRunE binding the command's flags to viper
func BindFlagsPreRun(cmd *cobra.Command, _ []string) error {
	return BindCommandFlags(cmd)
}

// SetupConfigFlags adds the flags overriding the configuration file to a command
func SetupConfigFlags(cmd *cobra.Command) {
	defaults := common.DefaultConfig()

	key := "config"
	cmd.PersistentFlags().String(key, "", WrapString("Path of a YAML configuration file. Flags and environment variables override its values"))

	key = "log-level"
	cmd.PersistentFlags().String(key, defaults.LogLevel, WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "pool-size"
	cmd.PersistentFlags().Int(key, defaults.Engine.PoolSize, WrapString("Maximum number of execution groups running concurrently"))

	key = "channel-capacity"
	cmd.PersistentFlags().Int(key, defaults.Channel.Capacity, WrapString("Maximum number of records buffered in a pipeline channel"))

	key = "poll-interval"
	cmd.PersistentFlags().Duration(key, defaults.Channel.PollInterval, WrapString("Interval at which a fetch re-checks the pipeline channel"))

	key = "batch-size"
	cmd.PersistentFlags().Int(key, defaults.Importer.BatchSize, WrapString("Number of records the importer fetches at once"))

	key = "fetch-timeout"
	cmd.PersistentFlags().Duration(key, defaults.Importer.FetchTimeout, WrapString("Maximum time the importer waits for a full batch"))

	key = "metrics"
	cmd.PersistentFlags().Bool(key, false, WrapString("Print all metrics in Prometheus text format when done"))
}

// GetConfig builds the configuration: defaults, then the config file (if any), then
// flags and environment variables that were set explicitly. The loggers are initialized
// with the resulting log level.
func GetConfig(cmd *cobra.Command) (common.Config, error) {
	conf := common.DefaultConfig()
	if path := viper.GetString("config"); path != "" {
		var err error
		if conf, err = common.LoadConfigFile(path); err != nil {
			return conf, err
		}
	}

	if isSet(cmd, "log-level") {
		conf = conf.WithLogLevel(viper.GetString("log-level"))
	}
	if isSet(cmd, "pool-size") {
		conf = conf.WithPoolSize(viper.GetInt("pool-size"))
	}
	if isSet(cmd, "channel-capacity") {
		conf = conf.WithChannelCapacity(viper.GetInt("channel-capacity"))
	}
	if isSet(cmd, "poll-interval") {
		conf = conf.WithPollInterval(viper.GetDuration("poll-interval"))
	}
	if isSet(cmd, "batch-size") {
		conf = conf.WithBatchSize(viper.GetInt("batch-size"))
	}
	if isSet(cmd, "fetch-timeout") {
		conf = conf.WithFetchTimeout(viper.GetDuration("fetch-timeout"))
	}

	if err := conf.Validate(); err != nil {
		return conf, err
	}
	if err := common.InitLoggers(conf.LogLevel); err != nil {
		return conf, err
	}
	return conf, nil
}

// isSet reports whether a flag was given on the command line or via environment
func isSet(cmd *cobra.Command, key string) bool {
	if f := cmd.Flags().Lookup(key); f != nil && f.Changed {
		return true
	}
	_, ok := os.LookupEnv(EnvName(key))
	return ok
}

// EnvName returns the environment variable of a flag (e.g. pool-size -> DSHARD_POOL_SIZE)
func EnvName(key string) string {
	return strings.ToUpper(EnvPrefix + "_" + strings.ReplaceAll(key, "-", "_"))
}

// WriteMetrics writes all metrics in Prometheus text format if --metrics is set
func WriteMetrics(w io.Writer) {
	if !viper.GetBool("metrics") {
		return
	}
	_, _ = fmt.Fprintln(w, "\n# ---- metrics ----")
	metrics.WritePrometheus(w, true)
}
