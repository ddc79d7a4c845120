package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nfrund/supportchat/internal/app"
	"github.com/nfrund/supportchat/internal/config"
	"github.com/nfrund/supportchat/internal/logging"
)

func main() {
	logging.New()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg)
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			slog.Error("Failed to release resources", "error", err)
		}
	}()

	srv, err := a.Server()
	if err != nil {
		slog.Error("Failed to build server", "error", err)
		os.Exit(1)
	}

	if err := srv.Start(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}
