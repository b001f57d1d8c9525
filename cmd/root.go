package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dShard/cmd/exec"
	"github.com/ValentinKolb/dShard/cmd/pipeline"
	"github.com/ValentinKolb/dShard/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dshard",
		Short: "execution core of a distributed database middleware",
		Long: fmt.Sprintf(`dShard (v%s)

Runs already planned statement batches in parallel against many
independent connections and moves change records from a reader to
an importer under bounded memory.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dShard",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dShard v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(exec.ExecCmd)
	RootCmd.AddCommand(pipeline.PipelineCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupConfigFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
