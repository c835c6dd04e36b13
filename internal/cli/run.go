package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/tasktrace/internal/common"
	"github.com/bobmcallan/tasktrace/internal/logfabric"
	"github.com/bobmcallan/tasktrace/internal/queue"
	"github.com/bobmcallan/tasktrace/internal/server"
	"github.com/bobmcallan/tasktrace/internal/worker"
)

func newRunCmd() *cobra.Command {
	var freqFlag string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the worker and the submission/observer surface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if freqFlag != "" {
				cfg.Worker.PollFrequency = freqFlag
			}

			common.LoadVersionFromFile()
			logger := common.NewLogger(cfg.Logging.Level)
			common.PrintBanner(cfg, logger)
			defer common.PrintShutdownBanner(logger)

			q, err := queue.Open("file", cfg.Storage.QueueRoot, cfg.Storage.DepRoot)
			if err != nil {
				return err
			}

			sink := logfabric.NewStreamingLogger(cfg.LogFabric.LiveQueueSize)
			queues := logfabric.NewQueueHandler(cfg.LogFabric.ReadQueueSize)
			files := logfabric.NewFileHandler(cfg.Storage.LogRoot)
			streamer := logfabric.NewStreamer(sink, queues, files, logger)

			readStreamer, err := logfabric.Open("local", queues, files, cfg.LogFabric.ReadQueueSize)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go streamer.Run(ctx)

			w := worker.New(q, sink, logger, cfg.Worker.GetPollFrequency())
			workerDone := make(chan struct{})
			go func() {
				w.Run()
				close(workerDone)
			}()

			srv := server.NewServer(cfg, q, readStreamer, files, logger)
			serverErr := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				logger.Info().Str("signal", sig.String()).Msg("shutdown requested")
				w.HandleExit()
			case err := <-serverErr:
				logger.Error().Err(err).Msg("server failed")
				w.HandleExit()
				return err
			}

			// A second signal escalates the worker's cooperative exit flag;
			// it is otherwise ignored once shutdown is already underway.
			go func() {
				for range sigCh {
					w.HandleExit()
				}
			}()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
			}

			select {
			case <-workerDone:
			case <-time.After(cfg.Worker.GetForceExitGrace()):
				logger.Warn().Msg("worker did not drain within the force-exit grace period")
			}

			sink.Close()
			cancel()

			return nil
		},
	}

	cmd.Flags().StringVar(&freqFlag, "freq", "", "worker poll frequency when the queue is empty (e.g. 500ms)")

	return cmd
}
