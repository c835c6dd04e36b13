package cli

import (
	"github.com/spf13/cobra"

	"github.com/bobmcallan/tasktrace/internal/queue"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a todo job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			q, err := queue.Open("file", cfg.Storage.QueueRoot, cfg.Storage.DepRoot)
			if err != nil {
				return err
			}

			return q.Pop(args[0])
		},
	}
}
