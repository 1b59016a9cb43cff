package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperengineering/frontdesk/internal/gym"
	"github.com/hyperengineering/frontdesk/internal/types"
	"github.com/spf13/cobra"
)

var memberCmd = &cobra.Command{
	Use:   "member",
	Short: "Register, renew and look up members",
}

var (
	memberPhone string
	memberName  string

	planCategory string
	planCatalog  string
	planDays     int
	planPrice    float64
	planPromo    bool
	planNotes    string
	planStart    string
)

var memberRegisterCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Register a new member with their first plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemberRegister,
}

var memberRenewCmd = &cobra.Command{
	Use:   "renew <member-key>",
	Short: "Sell a new plan to an existing member",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemberRenew,
}

var memberEditCmd = &cobra.Command{
	Use:   "edit <member-key>",
	Short: "Change a member's name or phone",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemberEdit,
}

var memberDeleteCmd = &cobra.Command{
	Use:   "delete <member-key>",
	Short: "Remove a member (kept for history)",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemberDelete,
}

var memberListCmd = &cobra.Command{
	Use:   "list",
	Short: "List members with their current plan",
	Args:  cobra.NoArgs,
	RunE:  runMemberList,
}

var memberSearchCmd = &cobra.Command{
	Use:   "search <name or phone>",
	Short: "Find active members to check in",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemberSearch,
}

var memberHistoryCmd = &cobra.Command{
	Use:   "history <member-key>",
	Short: "Show every plan and check-in of a member",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemberHistory,
}

func init() {
	memberRegisterCmd.Flags().StringVar(&memberPhone, "phone", "", "Phone number")
	addPlanFlags(memberRegisterCmd)
	addPlanFlags(memberRenewCmd)

	memberEditCmd.Flags().StringVar(&memberName, "name", "", "New name")
	memberEditCmd.Flags().StringVar(&memberPhone, "phone", "", "New phone number")

	memberCmd.AddCommand(memberRegisterCmd)
	memberCmd.AddCommand(memberRenewCmd)
	memberCmd.AddCommand(memberEditCmd)
	memberCmd.AddCommand(memberDeleteCmd)
	memberCmd.AddCommand(memberListCmd)
	memberCmd.AddCommand(memberSearchCmd)
	memberCmd.AddCommand(memberHistoryCmd)
}

func addPlanFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&planCategory, "category", "", "Plan category: Mensual, Quincenal or Día")
	cmd.Flags().StringVar(&planCatalog, "catalog", "", "System plan id to fill the plan from")
	cmd.Flags().IntVar(&planDays, "days", 0, "Days the plan lasts (default from category)")
	cmd.Flags().Float64Var(&planPrice, "price", 0, "Price charged (default from category)")
	cmd.Flags().BoolVar(&planPromo, "promo", false, "Sold at a promotional price")
	cmd.Flags().StringVar(&planNotes, "notes", "", "Free-form notes")
	cmd.Flags().StringVar(&planStart, "start", "", "Start date YYYY-MM-DD or RFC 3339 (default now)")
}

// planInput reads the plan flags of cmd.
func planInput(cmd *cobra.Command, loc *time.Location) (gym.PlanInput, error) {
	in := gym.PlanInput{
		Category:  types.PlanCategory(planCategory),
		CatalogID: planCatalog,
		Days:      planDays,
		IsPromo:   planPromo,
		Notes:     planNotes,
	}
	if cmd.Flags().Changed("price") {
		p := planPrice
		in.Price = &p
	}
	if planStart != "" {
		t, err := parseWhen(planStart, loc)
		if err != nil {
			return in, err
		}
		in.StartAt = t
	}
	return in, nil
}

// parseWhen accepts a local date or an RFC 3339 instant.
func parseWhen(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}

func runMemberRegister(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer d.finish(ctx)

	sess, err := login(ctx, d, true)
	if err != nil {
		return err
	}
	loc, _ := cfg.Device.Location()
	in, err := planInput(cmd, loc)
	if err != nil {
		return err
	}

	reg, err := d.service.Register(ctx, sess, gym.Registration{Name: args[0], Phone: memberPhone, Plan: in})
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), reg)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s) on %s, expires %s.\n",
		reg.Member.Name, reg.Member.Key, reg.Plan.Category,
		types.ExpirationDate(reg.Plan, loc).Format("2006-01-02"))
	return nil
}

func runMemberRenew(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer d.finish(ctx)

	sess, err := login(ctx, d, true)
	if err != nil {
		return err
	}
	loc, _ := cfg.Device.Location()
	in, err := planInput(cmd, loc)
	if err != nil {
		return err
	}

	p, err := d.service.Renew(ctx, sess, args[0], in)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), p)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Renewed %s with %s (%s), expires %s.\n",
		args[0], p.Category, p.SyncKey, types.ExpirationDate(*p, loc).Format("2006-01-02"))
	return nil
}

func runMemberEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer d.finish(ctx)

	var e gym.MemberEdit
	if cmd.Flags().Changed("name") {
		e.Name = &memberName
	}
	if cmd.Flags().Changed("phone") {
		e.Phone = &memberPhone
	}

	m, err := d.service.EditMember(ctx, args[0], e)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), m)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %s %s\n", m.Key, m.Name, m.Phone)
	return nil
}

func runMemberDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer d.finish(ctx)

	if err := d.service.DeleteMember(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Member %s removed.\n", args[0])
	return nil
}

func runMemberList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer d.finish(ctx)

	members, err := d.service.Members(ctx)
	if err != nil {
		return err
	}
	return printStatuses(cmd.OutOrStdout(), members)
}

func runMemberSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer d.finish(ctx)

	found, err := d.service.Search(ctx, args[0])
	if err != nil {
		return err
	}
	return printStatuses(cmd.OutOrStdout(), found)
}

func printStatuses(out io.Writer, members []gym.MemberStatus) error {
	if jsonOutput {
		return printJSON(out, map[string]any{
			"members": members,
			"total":   len(members),
		})
	}
	if len(members) == 0 {
		fmt.Fprintln(out, "No members found.")
		return nil
	}

	w := newTabWriter(out)
	fmt.Fprintln(w, "KEY\tNAME\tPHONE\tPLAN\tEXPIRES\tSTATUS")
	for _, m := range members {
		plan, expires, status := "-", "-", "-"
		if m.Plan != nil {
			plan = string(m.Plan.Category)
			expires = m.ExpiresAt.Format("2006-01-02")
			status = string(m.Status)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", m.Member.Key, m.Member.Name, m.Member.Phone, plan, expires, status)
	}
	return w.Flush()
}

func runMemberHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer d.finish(ctx)

	h, err := d.service.History(ctx, args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), h)
	}

	out := cmd.OutOrStdout()
	name := h.Member.Name
	if h.Member.Deleted {
		name += " (removed)"
	}
	fmt.Fprintf(out, "%s  %s  %s\n\n", h.Member.Key, name, h.Member.Phone)

	loc, _ := cfg.Device.Location()
	w := newTabWriter(out)
	fmt.Fprintln(w, "PLAN\tCATEGORY\tSTART\tEXPIRES\tPRICE\tSTATUS\tBY")
	for _, e := range h.Plans {
		status := string(e.Status)
		if e.Plan.Deleted {
			status = "removed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
			e.Plan.SyncKey, e.Plan.Category, e.Plan.StartAt.In(loc).Format("2006-01-02"),
			e.ExpiresAt.Format("2006-01-02"), e.Plan.Price, status, e.Plan.RegisteredByName)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d check-ins", len(h.Attendances))
	if len(h.Attendances) > 0 {
		last := h.Attendances[0].CheckedInAt
		for _, a := range h.Attendances[1:] {
			if a.CheckedInAt.After(last) {
				last = a.CheckedInAt
			}
		}
		fmt.Fprintf(out, ", last %s", last.In(loc).Format(time.DateTime))
	}
	fmt.Fprintln(out, ".")
	return nil
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Correct or remove a sold plan",
}

var (
	planEditCategory string
	planEditDays     int
	planEditPrice    float64
	planEditPromo    bool
	planEditNotes    string
	planEditStart    string
)

var planEditCmd = &cobra.Command{
	Use:   "edit <plan-key>",
	Short: "Change a plan's fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanEdit,
}

var planDeleteCmd = &cobra.Command{
	Use:   "delete <plan-key>",
	Short: "Remove a plan (kept for history)",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanDelete,
}

func init() {
	planEditCmd.Flags().StringVar(&planEditCategory, "category", "", "Plan category")
	planEditCmd.Flags().IntVar(&planEditDays, "days", 0, "Days the plan lasts")
	planEditCmd.Flags().Float64Var(&planEditPrice, "price", 0, "Price charged")
	planEditCmd.Flags().BoolVar(&planEditPromo, "promo", false, "Sold at a promotional price")
	planEditCmd.Flags().StringVar(&planEditNotes, "notes", "", "Free-form notes")
	planEditCmd.Flags().StringVar(&planEditStart, "start", "", "Start date YYYY-MM-DD or RFC 3339")

	planCmd.AddCommand(planEditCmd)
	planCmd.AddCommand(planDeleteCmd)
}

func runPlanEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer d.finish(ctx)

	var e gym.PlanEdit
	flags := cmd.Flags()
	if flags.Changed("category") {
		c := types.PlanCategory(strings.TrimSpace(planEditCategory))
		e.Category = &c
	}
	if flags.Changed("days") {
		e.Days = &planEditDays
	}
	if flags.Changed("price") {
		e.Price = &planEditPrice
	}
	if flags.Changed("promo") {
		e.IsPromo = &planEditPromo
	}
	if flags.Changed("notes") {
		e.Notes = &planEditNotes
	}
	if flags.Changed("start") {
		loc, _ := cfg.Device.Location()
		t, err := parseWhen(planEditStart, loc)
		if err != nil {
			return err
		}
		e.StartAt = &t
	}

	p, err := d.service.EditPlan(ctx, args[0], e)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), p)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated plan %s.\n", p.SyncKey)
	return nil
}

func runPlanDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer d.finish(ctx)

	if err := d.service.DeletePlan(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Plan %s removed.\n", args[0])
	return nil
}
