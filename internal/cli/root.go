// Package cli implements the chorechamp command line.
package cli

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Susa-Sek/chorechamp-sub001/internal/config"
	"github.com/Susa-Sek/chorechamp-sub001/internal/database"
	"github.com/Susa-Sek/chorechamp-sub001/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Database   string // overrides database.path when set

	cfg    config.Config
	logger *slog.Logger
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "chorechamp",
		Short: "ChoreChamp points engine",
		Long:  "Points accounting, rewards and progression for household chores.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			if opts.Database != "" {
				cfg.Database.Path = opts.Database
			}
			opts.cfg = cfg
			opts.logger = logging.Setup(cfg.Log.Level, cfg.Log.Format)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "chorechamp.toml", "path to TOML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewMemberCommand(opts))
	cmd.AddCommand(NewBadgesCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))

	return cmd
}

// openDB opens the configured database and applies migrations.
func (o *RootOptions) openDB() (*sql.DB, error) {
	db, err := database.Open(o.cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", o.cfg.Database.Path, err)
	}
	return db, nil
}
