package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/task-scheduler-api/internal/service"
)

func newTokenCmd(root *rootOptions) *cobra.Command {
	var (
		clientID string
		scopes   []string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API access token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if root.cfg.JWT.Secret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			tokens := service.NewTokenService(root.cfg.JWT.Secret, "task-scheduler-api")
			token, expiresAt, err := tokens.IssueToken(clientID, scopes, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client", "", "Client identifier stored in the token")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{service.ScopeScheduleWrite}, "Granted scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("client")

	return cmd
}
