package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"bridgeai/internal/app"
	"bridgeai/internal/httputil"
	"bridgeai/internal/queue"
	"bridgeai/internal/shield"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx)
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()
	deps.Log.Info("shield worker starting", "queue", deps.Config.QueueProvider)
	if deps.Config.QueueProvider == "local" || deps.Config.QueueProvider == "" {
		deps.Log.Warn("local queue is per process; point the gateway and this worker at nats or amqp to share tasks")
	}

	if err := run(ctx, deps, deps.Shield(deps.Coach())); err != nil {
		deps.Log.Error("shield service stopped", "err", err)
		return
	}
	deps.Log.Info("shield service stopped")
}

// run consumes shield tasks and serves /healthz until ctx is done or either fails.
func run(ctx context.Context, deps app.Deps, svc *shield.Service) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Queue.Worker(ctx, queue.TaskTypeShield, svc.Process)
	})
	g.Go(func() error {
		return httputil.ServeHealth(ctx, deps, "shield")
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
