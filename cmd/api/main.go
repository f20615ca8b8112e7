package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campus/internal/analytics"
	"campus/internal/audit"
	"campus/internal/bootstrap"
	"campus/internal/calendar"
	"campus/internal/clubs"
	"campus/internal/complaints"
	"campus/internal/config"
	"campus/internal/discussion"
	"campus/internal/feed"
	"campus/internal/httpapi"
	"campus/internal/logging"
	"campus/internal/mess"
	"campus/internal/session"
	"campus/internal/timetable"
)

func main() {
	cfg := config.Load()
	logger := logging.Must(cfg.Env)
	defer func() { _ = logger.Sync() }()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	loc := cfg.Location()
	if infra.QueueLocal {
		consumer := audit.NewConsumer(infra.Queue, infra.Docs, logger.Named("audit"))
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	}

	feeds := feed.New(cfg.FeedBaseURL)
	cal := calendar.NewSource(feeds)
	infra.Health.Add("feed", func(ctx context.Context) error {
		_, err := cal.Fetch(ctx)
		return err
	})

	registry := timetable.NewRegistry(ctx, infra.Docs, logger.Named("timetable"),
		timetable.WithLocation(loc),
		timetable.WithRefreshWorkers(cfg.RefreshWorkers))
	defer registry.Close()
	go sweep(ctx, registry, cfg.ManagerIdleTTL)

	router := httpapi.NewRouter(httpapi.Deps{
		Sessions:      session.NewService(infra.Sessions, audit.NewRecorder(infra.Queue), cfg.AdminPassword, cfg.SessionTTL, logger.Named("session")),
		Timetables:    registry,
		Calendar:      cal,
		Menu:          mess.NewService(feeds, loc),
		Clubs:         clubs.NewService(feeds, infra.Docs, logger.Named("clubs")),
		Board:         discussion.NewBoard(infra.Docs, loc, logger.Named("discussion")),
		Complaints:    complaints.NewService(infra.Docs),
		Analytics:     analytics.NewService(infra.Docs, loc),
		Health:        infra.Health,
		JWTIssuer:     cfg.JWTIssuer,
		JWTSigningKey: cfg.JWTSigningKey,
		AccessTTL:     cfg.AccessTTL,
		Location:      loc,
		Log:           logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("docstore", cfg.DocstoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}

func sweep(ctx context.Context, registry *timetable.Registry, idle time.Duration) {
	interval := idle / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			registry.Sweep(idle)
		}
	}
}
