package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Susa-Sek/chorechamp-sub001/internal/progression"
)

func NewBadgesCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "badges",
		Short: "Inspect the badge catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List built-in badges",
		RunE: func(cmd *cobra.Command, args []string) error {
			badges, err := progression.Catalog()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCRITERIA\tTHRESHOLD")
			for _, b := range badges {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", b.ID, b.Name, b.CriteriaType, b.CriteriaValue)
			}
			return tw.Flush()
		},
	})
	return cmd
}
