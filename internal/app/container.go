// Package app wires configuration, stores and services into a runnable
// process shared by the API server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-escalation/internal/auth"
	"github.com/spec-kit/issue-escalation/internal/config"
	"github.com/spec-kit/issue-escalation/internal/escalation"
	"github.com/spec-kit/issue-escalation/internal/events"
	"github.com/spec-kit/issue-escalation/internal/notification"
	"github.com/spec-kit/issue-escalation/internal/observability"
	"github.com/spec-kit/issue-escalation/internal/persistence"
	"github.com/spec-kit/issue-escalation/internal/repository"
	"github.com/spec-kit/issue-escalation/internal/service"
)

// Container holds the long-lived components of a process.
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	Postgres *persistence.Postgres
	Redis    *persistence.Redis

	Tickets    repository.TicketRepository
	Directory  repository.DirectoryRepository
	Rooms      repository.RoomRepository
	History    repository.TicketHistoryRepository
	Extensions repository.ExtensionRepository

	MailQueue  *notification.Queue
	Dispatcher events.Dispatcher
	Tokens     *auth.TokenManager

	Engine           *escalation.Engine
	Runner           *escalation.Runner
	TicketService    *service.TicketService
	DirectoryService *service.DirectoryService
	Notifications    *service.NotificationService
}

// Build connects to Postgres and Redis, runs migrations when enabled and
// assembles the escalation stack. Call Close when done.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}
	c.Metrics = observability.NewMetrics(c.Registry)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	c.Postgres = pg

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			pg.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	c.Redis = persistence.NewRedis(cfg.Redis, logger)

	pool := pg.PoolHandle()
	c.Tickets = repository.NewTicketRepository(pool)
	c.Directory = repository.NewDirectoryRepository(pool)
	c.Rooms = repository.NewRoomRepository(pool)
	c.History = repository.NewTicketHistoryRepository(pool)
	c.Extensions = repository.NewExtensionRepository(pool)

	var mailer notification.Enqueuer
	if cfg.Mail.Enabled() {
		sender := notification.NewSMTPSender(cfg.Mail, logger)
		c.MailQueue = notification.NewQueue(sender, cfg.Mail.QueueSize, logger, c.Metrics)
		mailer = c.MailQueue
	} else {
		logger.Warn("MAIL_HOST is not set; escalation emails will not be sent")
	}

	esc := cfg.Escalation
	if esc.Scope == config.ScopeGlobal {
		logger.Warn("owner resolution is not scoped to the ticket's organisation",
			zap.String("scope", esc.Scope),
			zap.String("hint", "set ESCALATION_SCOPE=organisation for multi-tenant deployments"),
		)
	}
	resolver := escalation.NewResolver(c.Directory, escalation.ResolverOptions{
		Scope:  esc.Scope,
		Policy: esc.OwnerPolicy,
	})
	c.Engine = escalation.NewEngine(escalation.EngineDependencies{
		Tickets:  c.Tickets,
		Owners:   resolver,
		Notifier: notification.NewEscalationNotifier(mailer, logger, c.Metrics),
		TAT:      esc.TAT(),
		Logger:   logger,
		Metrics:  c.Metrics,
	})

	runnerDeps := escalation.RunnerDependencies{
		Tickets:       c.Tickets,
		Escalator:     c.Engine,
		LockTTL:       esc.LockTTL(),
		TicketTimeout: esc.TicketTimeout(),
		SweepTimeout:  esc.SweepTimeout(),
		BatchLimit:    esc.SweepBatchLimit,
		Logger:        logger,
		Metrics:       c.Metrics,
	}
	if esc.LockEnabled {
		if locker := persistence.NewRedisLocker(c.Redis); locker != nil {
			runnerDeps.Locker = locker
		}
	}
	c.Runner = escalation.NewRunner(runnerDeps)

	c.Dispatcher = events.NewInMemoryDispatcher()
	c.Tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	c.TicketService = service.NewTicketService(service.TicketDependencies{
		TicketRepo:    c.Tickets,
		RoomRepo:      c.Rooms,
		DirectoryRepo: c.Directory,
		HistoryRepo:   c.History,
		ExtensionRepo: c.Extensions,
		Escalator:     c.Engine,
		Dispatcher:    c.Dispatcher,
		TAT:           esc.TAT(),
		Logger:        logger,
	})
	c.DirectoryService = service.NewDirectoryService(service.DirectoryDependencies{
		DirectoryRepo: c.Directory,
		RoomRepo:      c.Rooms,
		Tokens:        c.Tokens,
	})
	c.Notifications = service.NewNotificationService(c.Dispatcher, mailer, logger)

	return c, nil
}

// Close releases store connections.
func (c *Container) Close() {
	if c.Redis != nil {
		c.Redis.Close()
	}
	if c.Postgres != nil {
		c.Postgres.Close()
	}
}
