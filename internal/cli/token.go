package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newTokenCommand(connect connectFunc) *cobra.Command {
	var (
		candidateID int64
		ttl         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a candidate token for support sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if candidateID <= 0 {
				return errors.New("--candidate must be a positive id")
			}
			return withBackend(cmd, connect, true, func(b *Backend) error {
				token, expires, err := b.Tokens.IssueToken(candidateID, ttl)
				if err != nil {
					return fmt.Errorf("issue token: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"candidate_id": candidateID,
					"token":        token,
					"expires_at":   expires.Format(time.RFC3339),
				})
			})
		},
	}
	cmd.Flags().Int64Var(&candidateID, "candidate", 0, "Candidate ID")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("candidate")
	return cmd
}
