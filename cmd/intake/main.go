package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type options struct {
	dryRun     bool
	configFile string
	envFile    string
	logLevel   string
	logFile    string
}

var opts options

var rootCmd = &cobra.Command{
	Use:   "intake",
	Short: "Turn brainstorm files into GitLab issues",
	Long: `Process every brainstorm file in the drop folder once.

For each file intake will:
1. Ask the model to extract structured issues
2. Parse the issue blocks out of the reply
3. Drop candidates that duplicate open board items
4. Create the rest on the GitLab board
5. Move the file to the processed folder (or the failed folder when nothing parsed)

Files that hit an error stay in the drop folder and are retried on the next run.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Extract and parse but don't create issues or move files")
	rootCmd.Flags().StringVar(&opts.configFile, "config", "", "YAML config file (default: ./intake.yaml if present)")
	rootCmd.Flags().StringVar(&opts.envFile, "env-file", "", ".env file (default: ./.env if present)")
	rootCmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.Flags().StringVar(&opts.logFile, "log-file", "", "Append JSON logs to this file instead of stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
