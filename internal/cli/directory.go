package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/issue-escalation/internal/app"
	"github.com/spec-kit/issue-escalation/internal/domain"
	"github.com/spec-kit/issue-escalation/internal/service"
)

// TokenCmd issues an admin API token for a directory entry.
func TokenCmd() *cobra.Command {
	var (
		entryID string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin API bearer token for a directory entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if entryID == "" {
				return errors.New("--entry is required")
			}
			return withContainer(cmd.Context(), func(ctx context.Context, c *app.Container) error {
				token, exp, err := c.DirectoryService.IssueToken(ctx, entryID, ttl)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.UTC().Format(time.RFC3339))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&entryID, "entry", "", "directory entry id")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to AUTH_ACCESS_TOKEN_TTL_MINUTES)")
	return cmd
}

// DirectoryCmd groups directory administration commands.
func DirectoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Manage directory entries",
	}
	cmd.AddCommand(directoryAddCmd())
	return cmd
}

func directoryAddCmd() *cobra.Command {
	var input service.EntryInput
	var role string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a directory entry (bootstraps the first central admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Role = domain.Role(role)
			if !input.Role.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			return withContainer(cmd.Context(), func(ctx context.Context, c *app.Container) error {
				entry, err := c.DirectoryService.CreateEntry(ctx, nil, input)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", entry.ID, entry.Role, entry.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&input.OrganisationID, "org", "", "organisation id")
	cmd.Flags().StringVar(&input.Name, "name", "", "display name")
	cmd.Flags().StringVar(&input.Email, "email", "", "notification address")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleCentralAdmin), "incharge, sub_admin or central_admin")
	return cmd
}
