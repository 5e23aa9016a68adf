package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/olmmcc/sitedb/internal/store"
)

func newMigrateCmd(a *app) *cobra.Command {
	var down, status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations",
		Long: "Apply pending schema migrations for the configured driver. " +
			"--down rolls back the most recent one; --status lists them.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			switch {
			case status:
				return a.migrationStatus(cmd)
			case down:
				if err := a.db.MigrateDown(ctx); err != nil {
					return fmt.Errorf("rolling back migration: %w", err)
				}
				a.log.Info("migration rolled back")
				_, err := fmt.Fprintln(a.stdout, "rolled back 1 migration")
				return err
			default:
				if err := a.db.Migrate(ctx); err != nil {
					return fmt.Errorf("running migrations: %w", err)
				}
				a.log.Info("database migrations complete")
				_, err := fmt.Fprintln(a.stdout, "migrations complete")
				return err
			}
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recent migration")
	cmd.Flags().BoolVar(&status, "status", false, "list applied and pending migrations")
	cmd.MarkFlagsMutuallyExclusive("down", "status")
	return cmd
}

func (a *app) migrationStatus(cmd *cobra.Command) error {
	applied, pending, err := a.db.GetMigrationStatus(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}

	rs := make(store.ResultSet, 0, len(applied)+len(pending))
	for _, m := range applied {
		rs = append(rs, store.Row{
			store.NewString(m.Version),
			store.NewString("applied"),
			store.NewString(m.AppliedAt.UTC().Format(time.RFC3339)),
		})
	}
	for _, m := range pending {
		rs = append(rs, store.Row{
			store.NewString(m.Version),
			store.NewString("pending"),
			store.Null,
		})
	}
	return a.render([]string{"version", "state", "applied_at"}, rs)
}
