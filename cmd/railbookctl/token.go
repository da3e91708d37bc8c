package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/railbook/internal/clock"
	"github.com/smallbiznis/railbook/internal/config"
	"github.com/smallbiznis/railbook/internal/identity"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func tokenCmd() *cobra.Command {
	var (
		email   string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a customer bearer token signed with AUTH_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.AuthJWTSecret == "" {
				return errors.New("AUTH_JWT_SECRET is not set")
			}
			if !cfg.IsDevelopment() {
				return fmt.Errorf("refusing to issue tokens in %q", cfg.Environment)
			}
			email = strings.TrimSpace(email)
			if email == "" {
				return errors.New("--email is required")
			}
			if subject == "" {
				subject = email
			}

			token, err := identity.NewJWTValidator(cfg.AuthJWTSecret, clock.SystemClock{}).Issue(subject, email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "customer email claim")
	cmd.Flags().StringVar(&subject, "subject", "", "subject claim (defaults to the email)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")

	return cmd
}

func hashAdminTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-admin-token [token]",
		Short: "Print the bcrypt hash to put in ADMIN_TOKEN_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
}
