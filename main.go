package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/pan1c/payload-analyzer/internal/cmd/serve"
	"github.com/pan1c/payload-analyzer/internal/config"
)

func main() {
	// stop is deferred, not called after the first signal: later signals are
	// swallowed for the whole drain instead of killing the process mid-drain.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatal("Failed to load .env", "err", err)
	}

	app := &cli.Command{
		Name:  "payload-analyzer",
		Usage: "Stateless payload analysis service with readiness gating and graceful drain",
		Commands: []*cli.Command{
			serve.Command(),
		},
	}
	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
