package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCount int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run pipeline workers",
	Long: `Start workers that drain the task queue, advancing drift candidates
through the pipeline one stage at a time. Also runs the snooze sweeper.`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().IntVar(&workerCount, "concurrency", 4, "number of concurrent workers")
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workerCount; i++ {
		g.Go(func() error {
			return a.worker.Run(gctx)
		})
	}
	g.Go(func() error {
		return a.worker.RunSweeper(gctx)
	})

	logger.WithField("concurrency", workerCount).Info("workers started")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
