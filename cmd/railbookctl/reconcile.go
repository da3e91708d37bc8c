package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/railbook/internal/booking"
	"github.com/smallbiznis/railbook/internal/clock"
	"github.com/smallbiznis/railbook/internal/commerce/square"
	"github.com/smallbiznis/railbook/internal/config"
	"github.com/smallbiznis/railbook/internal/events"
	"github.com/smallbiznis/railbook/internal/jobmetrics"
	"github.com/smallbiznis/railbook/internal/lock"
	"github.com/smallbiznis/railbook/internal/observability"
	"github.com/smallbiznis/railbook/internal/webhook"
	"github.com/smallbiznis/railbook/pkg/db"
	"github.com/smallbiznis/railbook/pkg/redisclient"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func reconcileCmd() *cobra.Command {
	var (
		paymentLinkID string
		paymentID     string
		timeout       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Re-run reconciliation for one payment link",
		Long: `Re-run reconciliation for a booking whose webhook was missed or failed.

The configured strategy from reconciliation.yml applies. Under
payment_status_sync a payment id is required. Nothing is published to
live event subscribers.

Examples:
  railbookctl reconcile --payment-link-id PL123
  railbookctl reconcile --payment-link-id PL123 --payment-id PAY9`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paymentLinkID = strings.TrimSpace(paymentLinkID)
			if paymentLinkID == "" {
				return errors.New("--payment-link-id is required")
			}

			var (
				ingester webhook.Ingester
				cfg      config.Config
				policy   *config.PolicyHolder
				log      *zap.Logger
			)
			app := fx.New(
				fx.NopLogger,
				config.Module,
				observability.Module,
				fx.Provide(func() (*snowflake.Node, error) { return snowflake.NewNode(1) }),
				db.Module,
				clock.Module,
				redisclient.Module,
				square.Module,
				lock.Module,
				events.Module,
				booking.Module,
				webhook.Module,
				fx.Populate(&ingester, &cfg, &policy, &log),
			)
			if err := app.Err(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer func() {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer stopCancel()
				_ = app.Stop(stopCtx)
			}()

			started := time.Now()
			result, err := ingester.Reconcile(ctx, paymentLinkID, strings.TrimSpace(paymentID))

			outcome := string(result.Outcome)
			if err != nil {
				outcome = "failed"
			}
			run := jobmetrics.NewReconcileRun()
			run.Observe(policy.Get().Strategy, outcome, started, time.Now())
			pusher := jobmetrics.NewPusher(cfg.MetricsPush, "railbookctl", cfg.Environment, log)
			if pushErr := run.Push(ctx, pusher); pushErr != nil {
				log.Warn("metrics push failed", zap.Error(pushErr))
			}

			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&paymentLinkID, "payment-link-id", "", "payment link to reconcile")
	cmd.Flags().StringVar(&paymentID, "payment-id", "", "payment to read status from (payment_status_sync)")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall deadline")

	return cmd
}
