package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bobmcallan/tasktrace/internal/logfabric"
	"github.com/bobmcallan/tasktrace/internal/model"
	"github.com/bobmcallan/tasktrace/internal/queue"
)

// statusValue is a pflag.Value that only ever holds a valid model.Status (or
// the zero value, meaning unset), so --status is rejected at parse time
// rather than after the queue has already been opened.
type statusValue struct {
	status model.Status
	set    bool
}

func (v *statusValue) String() string {
	if !v.set {
		return ""
	}
	return string(v.status)
}

func (v *statusValue) Set(raw string) error {
	s := model.Status(strings.ToLower(raw))
	if !s.Valid() {
		return fmt.Errorf("unknown status %q (want one of todo, doing, done, failed)", raw)
	}
	v.status = s
	v.set = true
	return nil
}

func (v *statusValue) Type() string {
	return "status"
}

var _ pflag.Value = (*statusValue)(nil)

func newListCmd() *cobra.Command {
	var prune bool
	var statusFlag statusValue
	var detail bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs grouped by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			q, err := queue.Open("file", cfg.Storage.QueueRoot, cfg.Storage.DepRoot)
			if err != nil {
				return err
			}

			if prune {
				jobs, err := q.List(false, nil)
				if err == nil {
					err = q.Prune()
				}
				archives := logfabric.NewFileHandler(cfg.Storage.LogRoot)
				for _, job := range jobs {
					if err == nil && job.Status.Terminal() {
						err = archives.Delete(job.ID)
					}
				}
				return err
			}

			var status *model.Status
			if statusFlag.set {
				status = &statusFlag.status
			}

			jobs, err := q.List(detail, status)
			if err != nil {
				return err
			}

			printJobs(cmd, jobs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&prune, "prune", false, "remove all terminal jobs and their archives instead of listing")
	cmd.Flags().Var(&statusFlag, "status", "restrict listing to one status (todo, doing, done, failed)")
	cmd.Flags().BoolVar(&detail, "detail", false, "include command and workdir in the listing")

	return cmd
}

func printJobs(cmd *cobra.Command, jobs []model.Job) {
	out := cmd.OutOrStdout()
	current := model.Status("")
	for _, job := range jobs {
		if job.Status != current {
			current = job.Status
			fmt.Fprintf(out, "-- %s --\n", current)
		}
		if job.Command != "" {
			fmt.Fprintf(out, "%d\t%s\t%s\n", job.Order, job.ID, job.Command)
			continue
		}
		fmt.Fprintf(out, "%d\t%s\n", job.Order, job.ID)
	}
}
