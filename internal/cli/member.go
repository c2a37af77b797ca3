package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
	"github.com/Susa-Sek/chorechamp-sub001/internal/store"
)

type MemberAddOptions struct {
	*RootOptions
	Household     string
	HouseholdName string
	User          string
	Name          string
	Role          string
}

func NewMemberCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage household membership",
	}
	cmd.AddCommand(newMemberAddCommand(rootOpts))
	return cmd
}

func newMemberAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MemberAddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user to a household",
		Long: `Add a user to a household. Without --household a new household named
--household-name is created first.

Examples:
  chorechamp member add --user u1 --name Anna --role admin --household-name Home
  chorechamp member add --user u2 --name Ben --household 6f1c...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemberAdd(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Household, "household", "", "existing household id")
	cmd.Flags().StringVar(&opts.HouseholdName, "household-name", "Household", "name for a new household")
	cmd.Flags().StringVar(&opts.User, "user", "", "user id (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Role, "role", string(model.RoleMember), "admin or member")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runMemberAdd(cmd *cobra.Command, opts *MemberAddOptions) error {
	ctx := cmd.Context()

	role := model.Role(opts.Role)
	if role != model.RoleAdmin && role != model.RoleMember {
		return fmt.Errorf("invalid role %q: must be admin or member", opts.Role)
	}

	db, err := opts.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	hs := store.NewHouseholdStore(db)
	householdID := opts.Household
	if householdID == "" {
		h, err := hs.Create(ctx, opts.HouseholdName)
		if err != nil {
			return err
		}
		householdID = h.ID
		fmt.Fprintf(cmd.OutOrStdout(), "created household %s\n", householdID)
	} else {
		h, err := hs.GetByID(ctx, householdID)
		if err != nil {
			return err
		}
		if h == nil {
			return fmt.Errorf("household %s not found", householdID)
		}
	}

	name := opts.Name
	if name == "" {
		name = opts.User
	}
	m, err := hs.AddMember(ctx, householdID, opts.User, name, role)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s) to household %s\n", m.UserID, m.Role, m.HouseholdID)
	return nil
}
