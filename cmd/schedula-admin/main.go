package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"schedula/availability/internal/client"
	"schedula/availability/internal/config"
	"schedula/availability/internal/console"
	"schedula/availability/internal/grid"
	"schedula/availability/internal/logging"
)

func main() {
	cfg, err := config.LoadAdmin()
	if err != nil {
		logging.NewWithWriter(os.Stderr, "schedula-admin", "info").Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	log := logging.NewWithWriter(os.Stderr, "schedula-admin", cfg.LogLevel)

	if cfg.Token == "" {
		log.Warn("admin.token is empty; the server will reject requests")
	}

	var backend grid.Backend
	switch cfg.Transport {
	case "grpc":
		conn, err := grpc.NewClient(cfg.GRPCTarget, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			log.Error("grpc dial failed", slog.Any("err", err), slog.String("target", cfg.GRPCTarget))
			os.Exit(1)
		}
		defer func() { _ = conn.Close() }()
		backend = client.NewGRPCBackend(conn, cfg.Token, cfg.RequestTimeout)
	default:
		backend = client.NewHTTPBackend(cfg.APIURL, cfg.Token, cfg.RequestTimeout)
	}

	ed, err := grid.NewEditor(
		grid.Operator{ID: cfg.OperatorID, Role: cfg.Role},
		backend,
		grid.WithCatalog(cfg.Catalog),
		grid.WithNoticeTTL(cfg.NoticeTTL),
		grid.WithLogger(log),
	)
	if err != nil {
		log.Error("editor setup failed", slog.Any("err", err), slog.String("role", cfg.Role))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	y, m := ed.CurrentMonth()
	if err := ed.ShowMonth(ctx, y, m); err != nil {
		log.Warn("initial load failed", slog.Any("err", err))
	}

	err = console.New(ed, os.Stdout, cfg.RequestTimeout, log).Run(ctx, os.Stdin)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("console stopped", slog.Any("err", err))
		os.Exit(1)
	}
}
