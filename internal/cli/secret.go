package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/issue-escalation/internal/auth"
)

// HashSecretCmd prints a bcrypt hash for ESCALATION_TRIGGER_SECRET_HASH.
func HashSecretCmd() *cobra.Command {
	var (
		secret string
		cost   int
	)

	cmd := &cobra.Command{
		Use:   "hash-secret",
		Short: "Hash a trigger secret for ESCALATION_TRIGGER_SECRET_HASH",
		Long:  "Hash the secret given with --secret, or the first line of stdin when the flag is omitted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no secret given on --secret or stdin")
				}
				secret = line
			}
			secret = strings.TrimSpace(secret)
			if secret == "" {
				return errors.New("secret must not be empty")
			}
			hashed, err := auth.HashSecret(secret, cost)
			if err != nil {
				return fmt.Errorf("hash secret: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hashed)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "secret to hash (read from stdin when empty)")
	cmd.Flags().IntVar(&cost, "cost", 12, "bcrypt cost")
	return cmd
}
