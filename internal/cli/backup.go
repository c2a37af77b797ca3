package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Susa-Sek/chorechamp-sub001/internal/backup"
)

type BackupOptions struct {
	*RootOptions
	Passphrase    string
	RestoreTo     string
	RetentionDays int
}

func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BackupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Encrypted ledger snapshots in S3-compatible storage",
		Long: `Manage encrypted snapshots of the ledger database.

The bucket is configured in the [backup] section or through
CHORECHAMP_BACKUP_* variables. The passphrase is taken from --passphrase
or CHORECHAMP_BACKUP_PASSPHRASE.`,
	}
	cmd.PersistentFlags().StringVar(&opts.Passphrase, "passphrase", "", "snapshot passphrase (default $CHORECHAMP_BACKUP_PASSPHRASE)")

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Upload a snapshot of the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			pass, err := opts.passphrase()
			if err != nil {
				return err
			}
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			m, err := opts.manager(db)
			if err != nil {
				return err
			}
			snap, err := m.Create(cmd.Context(), pass)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d bytes)\n", snap.Key, snap.Size)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.manager(nil)
			if err != nil {
				return err
			}
			snaps, err := m.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tCREATED\tBYTES")
			for _, s := range snaps {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", s.Key, s.CreatedAt.Format(time.RFC3339), s.Size)
			}
			return tw.Flush()
		},
	})

	restore := &cobra.Command{
		Use:   "restore KEY",
		Short: "Download a snapshot and write it as the database file",
		Long: `Download, decrypt and verify a snapshot, then replace the database file.

Stop the server first. Balances that disagree with the restored ledger are
reported; run "chorechamp reconcile --repair" afterwards to fix them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pass, err := opts.passphrase()
			if err != nil {
				return err
			}
			m, err := opts.manager(nil)
			if err != nil {
				return err
			}
			dst := opts.RestoreTo
			if dst == "" {
				dst = opts.cfg.Database.Path
			}
			v, err := m.Restore(cmd.Context(), args[0], pass, dst)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "restored %s to %s: %d transactions, %d balances\n", args[0], dst, v.Transactions, v.Balances)
			if v.Drifted > 0 {
				fmt.Fprintf(out, "%d balance(s) drift from the ledger; run reconcile --repair\n", v.Drifted)
			}
			return nil
		},
	}
	restore.Flags().StringVar(&opts.RestoreTo, "to", "", "destination file (default: configured database path)")
	cmd.AddCommand(restore)

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete snapshots older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.manager(nil)
			if err != nil {
				return err
			}
			days := opts.cfg.Backup.RetentionDays
			if cmd.Flags().Changed("retention-days") {
				days = opts.RetentionDays
			}
			if days <= 0 {
				return errors.New("retention must be at least one day")
			}
			deleted, err := m.Prune(cmd.Context(), time.Duration(days)*24*time.Hour)
			for _, k := range deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", k)
			}
			return err
		},
	}
	prune.Flags().IntVar(&opts.RetentionDays, "retention-days", 0, "override backup.retention_days")
	cmd.AddCommand(prune)

	return cmd
}

func (o *BackupOptions) passphrase() (string, error) {
	if o.Passphrase != "" {
		return o.Passphrase, nil
	}
	if v := os.Getenv("CHORECHAMP_BACKUP_PASSPHRASE"); v != "" {
		return v, nil
	}
	return "", errors.New("no passphrase: set --passphrase or CHORECHAMP_BACKUP_PASSPHRASE")
}

// manager builds a backup manager. db may be nil for commands that only
// touch the bucket.
func (o *BackupOptions) manager(db *sql.DB) (*backup.Manager, error) {
	bc := o.cfg.Backup
	if bc.Bucket == "" {
		return nil, errors.New("backup.bucket is not configured")
	}
	client := backup.NewS3Client(backup.S3Config{
		Endpoint:  bc.Endpoint,
		Bucket:    bc.Bucket,
		Region:    bc.Region,
		AccessKey: bc.AccessKey,
		SecretKey: bc.SecretKey,
	})
	return backup.NewManager(db, client, bc.Bucket, bc.Prefix, o.logger, nil), nil
}
