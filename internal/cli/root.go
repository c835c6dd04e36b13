// Package cli implements the tasktrace command line: add, list, delete,
// run and log. add/list/delete operate directly on the local queue and
// dependency store (no network hop); run starts the worker and the
// submission/observer surface; log is a pure websocket client.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/bobmcallan/tasktrace/internal/common"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tasktrace",
	Short: "A self-hosted shell-command job runner",
	Long: `tasktrace queues shell commands, runs them one at a time, and lets
observers watch their output live or after the fact.

  tasktrace add <command> [-d <src>]   submit a job
  tasktrace list [--prune]             list jobs grouped by status
  tasktrace delete <id>                remove a todo job
  tasktrace run [--freq N]             start the worker and observer surface
  tasktrace log <id> <url>             stream a job's output`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")

	rootCmd.AddCommand(newAddCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newLogCmd())
}

func loadConfig() (*common.Config, error) {
	return common.LoadConfig(configPath)
}
