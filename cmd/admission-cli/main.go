package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ms-admission/internal/cli"
	"ms-admission/internal/config"
	"ms-admission/internal/logger"
)

func main() {
	cfg := config.Load()

	log := logger.NewWriterLogger(os.Stderr)
	log.SetLevel(logger.ParseLevel(cfg.Log.Level))

	app := cli.NewApp(cfg, log)
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand(app).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		app.Close()
		os.Exit(1)
	}
}
