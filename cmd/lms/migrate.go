package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/learnpath/learnpath-lms/internal/infrastructure/persistence/postgres"
	"github.com/learnpath/learnpath-lms/pkg/logger"
)

func newMigrateCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDatabase(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := postgres.NewMigrator(db).Migrate(cmd.Context())
			if err != nil {
				return err
			}
			c.log.Info("migrations applied", logger.Int("count", n))
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := openDatabase(cmd.Context(), c.cfg)
				if err != nil {
					return err
				}
				defer db.Close()

				migrations, err := postgres.NewMigrator(db).Status(cmd.Context())
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
				for _, m := range migrations {
					applied := "pending"
					if m.IsApplied {
						applied = m.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%d\t%s\t%s\n", m.Version, m.Name, applied)
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "rollback",
			Short: "Revert the last applied migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := openDatabase(cmd.Context(), c.cfg)
				if err != nil {
					return err
				}
				defer db.Close()

				if err := postgres.NewMigrator(db).Rollback(cmd.Context()); err != nil {
					return err
				}
				c.log.Info("last migration rolled back")
				return nil
			},
		},
	)
	return cmd
}
