package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ehr/searchindex/internal/platform/db"
	"github.com/ehr/searchindex/internal/platform/tokenindex"
	"github.com/ehr/searchindex/migrations"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations and create resource and token tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			typeFlags, _ := cmd.Flags().GetStringSlice("type")

			a, err := newApp(os.Stderr)
			if err != nil {
				return err
			}
			if err := a.cfg.RequireDatabase(); err != nil {
				return err
			}
			types, err := a.resourceTypes(typeFlags)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, a.cfg.DatabaseURL, a.cfg.DBSchema, a.cfg.DBMaxConns, a.cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrations.FS, a.cfg.DBSchema, a.logger)
			fmt.Fprintf(cmd.OutOrStdout(), "Running migrations on schema: %s\n", a.cfg.DBSchema)

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			if err := tokenindex.EnsureTables(ctx, pool, types); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s); token tables ready for %d resource type(s).\n", count, len(types))
			return nil
		},
	}
	upCmd.Flags().StringSlice("type", nil, "Resource types to create tables for (default RESOURCE_TYPES or all)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(os.Stderr)
			if err != nil {
				return err
			}
			if err := a.cfg.RequireDatabase(); err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, a.cfg.DatabaseURL, a.cfg.DBSchema, a.cfg.DBMaxConns, a.cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrations.FS, a.cfg.DBSchema, a.logger)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Migration status for schema: %s\n", a.cfg.DBSchema)
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	// migrate ddl prints the token table statements without connecting.
	ddlCmd := &cobra.Command{
		Use:   "ddl [ResourceType...]",
		Short: "Print resource and token table DDL",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(os.Stderr)
			if err != nil {
				return err
			}
			types, err := a.resourceTypes(args)
			if err != nil {
				return err
			}
			for _, rt := range types {
				fmt.Fprintf(cmd.OutOrStdout(), "%s;\n", tokenindex.ResourceTableDDL(rt))
				for _, stmt := range tokenindex.TableDDL(rt) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s;\n", stmt)
				}
			}
			return nil
		},
	}
	cmd.AddCommand(ddlCmd)

	return cmd
}
