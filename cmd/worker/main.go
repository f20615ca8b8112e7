package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"campus/internal/audit"
	"campus/internal/bootstrap"
	"campus/internal/config"
	"campus/internal/logging"
)

// Worker drains the audit queue into the logins and sessions collections.
func main() {
	cfg := config.Load()
	logger := logging.Must(cfg.Env).Named("worker")
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer infra.Close()

	if infra.QueueLocal {
		logger.Warn("QUEUE_BACKEND=memory: the api consumes its own audit events, nothing to do here")
		return
	}

	logger.Info("worker started, waiting for messages")
	if err := audit.NewConsumer(infra.Queue, infra.Docs, logger).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", zap.Error(err))
	}
	logger.Info("worker exited")
}
