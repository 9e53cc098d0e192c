// Package cmd implements the microstack command-line entry points with
// cobra, grounded on the teacher's cmd/nimbus/cmd.rootCmd: a persistent
// --config flag, environment binding through viper, and one subcommand
// per concern.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "microstack",
	Short: "microstack runs a single-process emulator of AWS compute, logs, storage and stack APIs",
	Long: `microstack exposes a Lambda-like function runtime, a CloudWatch
Logs-like log ledger, an S3-like object store and a CloudFormation-like
stack orchestrator over one HTTP port, each speaking its service's native
AWS wire dialect. It is meant to be pointed at by AWS SDK clients with no
real cloud credentials.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file (optional, env vars take precedence)")
}

func initConfig() {
	viper.SetEnvPrefix("MICROSTACK")
	viper.AutomaticEnv()
}
