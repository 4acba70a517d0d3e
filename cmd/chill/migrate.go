package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/meetme/progression-engine/config"
	"github.com/meetme/progression-engine/internal/infrastructure/persistence/postgres"
	"github.com/meetme/progression-engine/pkg/retry"
)

// newMigrateCmd manages the PostgreSQL schema without opening the engine.
func newMigrateCmd(load func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, load, func(ctx context.Context, m *postgres.Migrator) error {
				if err := m.Migrate(ctx); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, load, func(ctx context.Context, m *postgres.Migrator) error {
				status, err := m.Status(ctx)
				if err != nil {
					return err
				}
				printMigrations(cmd, status)
				return nil
			})
		},
	})

	var yes bool
	rollback := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the last applied migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("rollback drops tables and their data; pass --yes to confirm")
			}
			return withMigrator(cmd, load, func(ctx context.Context, m *postgres.Migrator) error {
				if err := m.Rollback(ctx); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "rolled back the last migration")
				return nil
			})
		},
	}
	rollback.Flags().BoolVar(&yes, "yes", false, "confirm")
	cmd.AddCommand(rollback)

	return cmd
}

func withMigrator(cmd *cobra.Command, load func() (*config.Config, error), fn func(ctx context.Context, m *postgres.Migrator) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("migrate needs CHILL_DATABASE_URL")
	}

	conn, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnection(ctx, cfg.Database.URL, postgres.PoolConfig{
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		})
	}, retry.WithMaxAttempts(3))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	return fn(ctx, postgres.NewMigrator(conn))
}

func printMigrations(cmd *cobra.Command, migrations []postgres.Migration) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
	for _, m := range migrations {
		applied := "pending"
		if m.IsApplied {
			applied = m.AppliedAt.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", m.Version, m.Name, applied)
	}
	_ = tw.Flush()
}
