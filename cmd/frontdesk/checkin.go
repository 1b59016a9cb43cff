package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var checkinCmd = &cobra.Command{
	Use:   "checkin <member-key>",
	Short: "Record a member's visit against their current plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckin,
}

func runCheckin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer d.finish(ctx)

	res, err := d.service.CheckIn(ctx, args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), res)
	}
	loc, _ := cfg.Device.Location()
	fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s. %s plan valid until %s (checked in %s).\n",
		res.Member.Name, res.Plan.Category, res.ExpiresAt.Format("2006-01-02"),
		res.Attendance.CheckedInAt.In(loc).Format(time.TimeOnly))
	return nil
}

var (
	reportFrom string
	reportTo   string
	reportName string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "List check-ins over a range of days",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "First day YYYY-MM-DD (default today)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "Last day YYYY-MM-DD (default --from)")
	reportCmd.Flags().StringVar(&reportName, "name", "", "Only members whose name contains this")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer d.finish(ctx)

	loc, _ := cfg.Device.Location()
	from := time.Now().In(loc)
	if reportFrom != "" {
		if from, err = parseWhen(reportFrom, loc); err != nil {
			return err
		}
	}
	to := from
	if reportTo != "" {
		if to, err = parseWhen(reportTo, loc); err != nil {
			return err
		}
	}

	rows, err := d.service.AttendanceReport(ctx, from, to, reportName)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"attendances": rows,
			"total":       len(rows),
		})
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No check-ins in range.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "WHEN\tMEMBER\tPLAN")
	for _, r := range rows {
		category := string(r.Category)
		if category == "" {
			category = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Attendance.CheckedInAt.In(loc).Format(time.DateTime), r.MemberName, category)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d check-ins.\n", len(rows))
	return nil
}
