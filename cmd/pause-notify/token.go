// ABOUTME: token subcommand: mints relay bearer tokens for a user

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389/pause-notify/internal/auth"
	"github.com/2389/pause-notify/internal/identity"
)

const defaultTokenTTL = 30 * 24 * time.Hour

func newTokenCmd() *cobra.Command {
	var user string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a relay token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			user = strings.TrimSpace(user)
			if user == "" {
				return errors.New("--user is required")
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}

			cfg, path, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Relay.JWTSecret == "" {
				return fmt.Errorf("relay.jwt_secret not configured in %s", path)
			}

			token, err := auth.NewJWTVerifier([]byte(cfg.Relay.JWTSecret)).Generate(identity.ID(user), ttl)
			if err != nil {
				return fmt.Errorf("generating token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id the token is issued for")
	cmd.Flags().DurationVar(&ttl, "ttl", defaultTokenTTL, "token lifetime")
	return cmd
}
