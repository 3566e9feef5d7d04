package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	configPath string
	verbose    bool
	logFormat  string
}

func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "exoclassify",
		Short: "Exoplanet candidate classification client",
		Long: `Exoclassify collects transit and stellar parameters for exoplanet candidates
and asks a remote classification service whether each one is a confirmed planet,
a candidate or a false positive.

Parameters can be entered one at a time in a guided conversation, loaded in bulk
from CSV or Parquet files, posted to the HTTP API, or dropped into a watched inbox.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config file (default $EXOCLASSIFY_CONFIG)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")

	// Add subcommands
	cmd.AddCommand(newAskCmd(opts))
	cmd.AddCommand(newClassifyCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))

	return cmd
}
