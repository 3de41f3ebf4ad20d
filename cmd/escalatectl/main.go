package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spec-kit/issue-escalation/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "escalatectl",
		Short: "Operate the issue escalation service",
		Long: `escalatectl runs escalation sweeps on demand and performs the
administrative chores of the issue escalation service.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.SweepCmd())
	rootCmd.AddCommand(cli.HashSecretCmd())
	rootCmd.AddCommand(cli.TokenCmd())
	rootCmd.AddCommand(cli.DirectoryCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
