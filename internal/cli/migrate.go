package cli

import (
	"github.com/spf13/cobra"

	"github.com/Susa-Sek/chorechamp-sub001/internal/database"
)

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.OpenNoMigrate(opts.cfg.Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.Migrate(db); err != nil {
				return err
			}
			opts.logger.Info("migrations applied", "path", opts.cfg.Database.Path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.OpenNoMigrate(opts.cfg.Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()
			return database.Status(db)
		},
	})

	return cmd
}
