package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/smallbiznis/railbook/internal/config"
	"github.com/smallbiznis/railbook/internal/migration"
	"github.com/smallbiznis/railbook/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errPostgresOnly = errors.New("versioned migrations are only tracked on postgres")

func openDB() (*gorm.DB, config.Config, error) {
	cfg := config.Load()
	conn, err := db.New(nil, cfg, zap.NewNop())
	return conn, cfg, err
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the booking record schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, _, err := openDB()
			if err != nil {
				return err
			}
			if err := migration.Run(conn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Revert the last migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("steps: %w", err)
				}
				steps = n
			}
			conn, cfg, err := openDB()
			if err != nil {
				return err
			}
			if !strings.EqualFold(cfg.DBType, "postgres") {
				return errPostgresOnly
			}
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.Down(sqlDB, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reverted %d migration(s)\n", steps)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, cfg, err := openDB()
			if err != nil {
				return err
			}
			if !strings.EqualFold(cfg.DBType, "postgres") {
				return errPostgresOnly
			}
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			version, dirty, err := migration.Version(sqlDB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d dirty=%t\n", version, dirty)
			return nil
		},
	})

	return cmd
}
