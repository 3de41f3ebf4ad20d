// Package cli implements the escalatectl operator commands.
package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-escalation/internal/app"
	"github.com/spec-kit/issue-escalation/internal/config"
	"github.com/spec-kit/issue-escalation/internal/observability"
)

// withContainer loads configuration, builds the service container and runs fn.
func withContainer(ctx context.Context, fn func(ctx context.Context, c *app.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	container, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build service", zap.Error(err))
		return err
	}
	defer container.Close()
	return fn(ctx, container)
}
