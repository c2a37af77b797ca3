package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Susa-Sek/chorechamp-sub001/internal/points"
	"github.com/Susa-Sek/chorechamp-sub001/internal/store"
)

type ReconcileOptions struct {
	*RootOptions
	Repair bool
}

func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare balances with the ledger",
		Long: `Recompute every balance from its ledger and report rows that disagree.

With --repair the drifting rows are rewritten from the ledger and open
reconciliation issues for those users are resolved.

Exit status is non-zero when drift remains.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Repair, "repair", false, "rewrite drifting balances from the ledger")
	return cmd
}

func runReconcile(cmd *cobra.Command, opts *ReconcileOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	db, err := opts.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	writer, err := points.NewLedgerWriter(ctx, opts.cfg.Ledger.Strategy, db, opts.cfg.Ledger.CASRetries, opts.logger)
	if err != nil {
		return err
	}
	issues := store.NewReconciliationStore(db)
	mutator := points.NewMutator(writer, issues, nil, opts.logger, nil)
	rec := points.NewReconciler(mutator, store.NewPointStore(db), issues, opts.logger)

	if opts.Repair {
		repaired, err := rec.RepairAll(ctx)
		if err != nil {
			return err
		}
		for _, id := range repaired {
			fmt.Fprintf(out, "repaired %s\n", id)
		}
		fmt.Fprintf(out, "%d balance(s) repaired\n", len(repaired))
		return nil
	}

	drift, err := rec.Check(ctx)
	if err != nil {
		return err
	}
	for _, d := range drift {
		fmt.Fprintln(out, d.String())
	}

	open, err := issues.ListOpen(ctx, "")
	if err != nil {
		return err
	}
	for _, is := range open {
		fmt.Fprintf(out, "open issue %s: user %s %s %+d (%s)\n", is.ID, is.UserID, is.Operation, is.Points, is.Detail)
	}

	if len(drift) > 0 {
		return fmt.Errorf("%d balance(s) drift from the ledger", len(drift))
	}
	fmt.Fprintln(out, "ledger and balances agree")
	return nil
}
