package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/tasktrace/internal/jobserr"
	"github.com/bobmcallan/tasktrace/internal/queue"
)

func newAddCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "add <command>",
		Short: "Submit a job",
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

			job, err := q.Enqueue(args[0], source)
			if err != nil {
				if errors.Is(err, jobserr.ErrInvalid) {
					return err
				}
				return fmt.Errorf("add: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), job.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "dep", "d", "", "directory to snapshot as the job's working directory")

	return cmd
}
