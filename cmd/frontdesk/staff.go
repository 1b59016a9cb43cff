package main

import (
	"fmt"

	"github.com/hyperengineering/frontdesk/internal/gym"
	"github.com/hyperengineering/frontdesk/internal/types"
	"github.com/spf13/cobra"
)

var staffCmd = &cobra.Command{
	Use:   "staff",
	Short: "Manage staff accounts",
}

var (
	newStaffName   string
	newStaffSecret string
	newStaffRole   string
)

var staffAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a staff account",
	Long: "Create a staff account. The first account on an empty device needs no\n" +
		"--user and becomes a super admin; later accounts need a super admin --user.",
	Args: cobra.ExactArgs(1),
	RunE: runStaffAdd,
}

var staffListCmd = &cobra.Command{
	Use:   "list",
	Short: "List staff accounts",
	Args:  cobra.NoArgs,
	RunE:  runStaffList,
}

func init() {
	staffAddCmd.Flags().StringVar(&newStaffName, "name", "", "Display name (required)")
	staffAddCmd.Flags().StringVar(&newStaffSecret, "secret", "", "Login password (required)")
	staffAddCmd.Flags().StringVar(&newStaffRole, "role", "", "super_admin or admin")
	_ = staffAddCmd.MarkFlagRequired("name")
	_ = staffAddCmd.MarkFlagRequired("secret")

	staffCmd.AddCommand(staffAddCmd)
	staffCmd.AddCommand(staffListCmd)
}

func runStaffAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer d.finish(ctx)

	sess, err := login(ctx, d, false)
	if err != nil {
		return err
	}

	st, err := d.service.AddStaff(ctx, sess, gym.NewStaff{
		Name:     newStaffName,
		Username: args[0],
		Secret:   newStaffSecret,
		Role:     types.Role(newStaffRole),
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), st)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s account %q (%s).\n", st.Role, st.Username, st.Key)
	return nil
}

func runStaffList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer d.finish(ctx)

	staff, err := d.service.Staff(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"staff": staff,
			"total": len(staff),
		})
	}
	if len(staff) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No staff accounts. Create the first with: frontdesk staff add <username>")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "USERNAME\tNAME\tROLE\tKEY")
	for _, st := range staff {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", st.Username, st.Name, st.Role, st.Key)
	}
	return w.Flush()
}
