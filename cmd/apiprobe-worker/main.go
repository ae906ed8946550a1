// Command apiprobe-worker is the load-test child process. The service
// spawns one per load-test task with the exchange file paths as
// arguments; the worker ramps up its virtual users, keeps the status
// file fresh, and writes per-endpoint statistics on exit.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/probeworks/apiprobe/internal/bootstrap"
	"github.com/probeworks/apiprobe/internal/loadtest"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	if len(os.Args) != 4 {
		return fmt.Errorf("usage: %s <config-file> <status-file> <result-file>", os.Args[0])
	}

	// A termination signal ends the run early; the worker still drains
	// its users and writes results before exiting zero.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker, err := loadtest.NewWorker(os.Args[1], os.Args[2], os.Args[3], logger)
	if err != nil {
		return err
	}
	return worker.Run(ctx)
}
