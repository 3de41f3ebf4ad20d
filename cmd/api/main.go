package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/issue-escalation/internal/api/http"
	"github.com/spec-kit/issue-escalation/internal/api/http/handlers"
	"github.com/spec-kit/issue-escalation/internal/app"
	"github.com/spec-kit/issue-escalation/internal/auth"
	"github.com/spec-kit/issue-escalation/internal/config"
	"github.com/spec-kit/issue-escalation/internal/escalation"
	"github.com/spec-kit/issue-escalation/internal/observability"
	"github.com/spec-kit/issue-escalation/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build service", zap.Error(err))
	}
	defer container.Close()

	if !cfg.Escalation.TriggerConfigured() {
		logger.Warn("ESCALATION_TRIGGER_SECRET is not set; /internal/escalate/ will reject every request")
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("AUTH_JWT_SECRET is not set; admin API tokens cannot be issued or verified")
	}

	stopNotifications := worker.StartNotificationWorker(container.Notifications, container.MailQueue, logger)

	var wg sync.WaitGroup
	if cfg.Escalation.SchedulerEnabled {
		scheduler := escalation.NewScheduler(container.Runner, cfg.Escalation.SweepInterval(), cfg.Escalation.SweepTimeout(), logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.Run(ctx)
		}()
	} else {
		logger.Info("escalation scheduler disabled; sweeps run only through the trigger endpoint or CLI")
	}

	fiberApp := httptransport.NewApp(cfg.App.Name, logger, container.Metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(fiberApp, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": container.Postgres,
			"redis":    container.Redis,
		}),
		Escalation: handlers.NewEscalationHandler(
			container.Runner,
			auth.NewTriggerVerifier(cfg.Escalation.TriggerSecret, cfg.Escalation.TriggerSecretHash),
			logger,
		),
		Tickets:        handlers.NewTicketsHandler(container.TicketService),
		Directory:      handlers.NewDirectoryHandler(container.DirectoryService),
		AuthMiddleware: auth.NewAuthMiddleware(container.Tokens, container.Directory),
		Gatherer:       container.Registry,
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := fiberApp.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	wg.Wait()
	if err := stopNotifications(shutdownCtx); err != nil {
		logger.Warn("notification queue not drained", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
