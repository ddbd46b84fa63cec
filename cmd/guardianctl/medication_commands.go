package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carewatch/guardian/internal/connection"
	"github.com/carewatch/guardian/internal/model"
	"github.com/carewatch/guardian/internal/protocol"
)

var allDays = []int{0, 1, 2, 3, 4, 5, 6}

var dayNames = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func newMedicationsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "medications",
		Aliases: []string{"meds"},
		Short:   "List and manage an elder's medications",
	}
	cmd.AddCommand(newMedicationsListCommand(ctx))
	cmd.AddCommand(newMedicationsAddCommand(ctx))
	cmd.AddCommand(newMedicationsUpdateCommand(ctx))
	cmd.AddCommand(newMedicationsDeleteCommand(ctx))
	return cmd
}

func newMedicationsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <elder-id>",
		Short: "List medications and their schedules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRelay(cmd, func(reqCtx context.Context, mgr *connection.Manager) error {
				meds, err := mgr.GetMedications(reqCtx, args[0])
				if err != nil {
					return fmt.Errorf("get medications: %w", err)
				}
				if ctx.opts.json {
					return writeJSON(cmd, meds)
				}
				if len(meds.Medications) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No medications")
					return nil
				}
				printTable(cmd, []string{"ID", "Name", "Dosage", "Schedule"}, medicationRows(meds), nil)
				return nil
			})
		},
	}
}

func medicationRows(meds protocol.MedicationsPayload) [][]string {
	rows := make([][]string, 0, len(meds.Medications))
	for _, m := range meds.Medications {
		var times []string
		for _, s := range meds.SchedulesFor(m.ID) {
			times = append(times, formatSchedule(s))
		}
		rows = append(rows, []string{m.ID, m.Name, m.Dosage, orDash(strings.Join(times, "; "))})
	}
	return rows
}

func formatSchedule(s model.MedicationSchedule) string {
	out := s.Time
	if !s.Enabled {
		out += " (off)"
	}
	if len(s.DaysOfWeek) == len(allDays) {
		return out + " daily"
	}
	days := append([]int(nil), s.DaysOfWeek...)
	sort.Ints(days)
	names := make([]string, 0, len(days))
	for _, d := range days {
		if d >= 0 && d < len(dayNames) {
			names = append(names, dayNames[d])
		} else {
			names = append(names, strconv.Itoa(d))
		}
	}
	return out + " " + strings.Join(names, ",")
}

func buildSchedules(times []string, days []int) []protocol.MedicationScheduleInput {
	if len(days) == 0 {
		days = allDays
	}
	out := make([]protocol.MedicationScheduleInput, 0, len(times))
	for _, t := range times {
		out = append(out, protocol.MedicationScheduleInput{
			Time:       strings.TrimSpace(t),
			DaysOfWeek: days,
			Enabled:    true,
		})
	}
	return out
}

func newMedicationsAddCommand(ctx *commandContext) *cobra.Command {
	var p protocol.AddMedicationPayload
	var times []string
	var days []int

	cmd := &cobra.Command{
		Use:   "add <elder-id>",
		Short: "Add a medication",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Schedules = buildSchedules(times, days)
			if err := p.Validate(); err != nil {
				return err
			}
			return ctx.withRelay(cmd, func(reqCtx context.Context, mgr *connection.Manager) error {
				res, err := mgr.AddMedication(reqCtx, args[0], p)
				if err != nil {
					return fmt.Errorf("add medication: %w", err)
				}
				return printCommandResult(cmd, ctx, res, "Medication added")
			})
		},
	}

	cmd.Flags().StringVar(&p.Name, "name", "", "Medication name")
	cmd.Flags().StringVar(&p.Dosage, "dosage", "", "Dosage, e.g. 10mg")
	cmd.Flags().StringVar(&p.Instructions, "instructions", "", "Instructions shown with the reminder")
	cmd.Flags().StringSliceVar(&times, "at", nil, "Dose times as HH:mm (repeatable)")
	cmd.Flags().IntSliceVar(&days, "days", nil, "Days of week 0-6, Sunday = 0 (default every day)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("dosage")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func newMedicationsUpdateCommand(ctx *commandContext) *cobra.Command {
	var p protocol.UpdateMedicationPayload
	var times []string
	var days []int

	cmd := &cobra.Command{
		Use:   "update <elder-id> <medication-id>",
		Short: "Update a medication; omitted fields are unchanged",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.MedicationID = args[1]
			if len(times) > 0 {
				p.Schedules = buildSchedules(times, days)
			}
			if err := p.Validate(); err != nil {
				return err
			}
			return ctx.withRelay(cmd, func(reqCtx context.Context, mgr *connection.Manager) error {
				res, err := mgr.UpdateMedication(reqCtx, args[0], p)
				if err != nil {
					return fmt.Errorf("update medication: %w", err)
				}
				return printCommandResult(cmd, ctx, res, "Medication updated")
			})
		},
	}

	cmd.Flags().StringVar(&p.Name, "name", "", "Medication name")
	cmd.Flags().StringVar(&p.Dosage, "dosage", "", "Dosage")
	cmd.Flags().StringVar(&p.Instructions, "instructions", "", "Instructions")
	cmd.Flags().StringSliceVar(&times, "at", nil, "Replacement dose times as HH:mm")
	cmd.Flags().IntSliceVar(&days, "days", nil, "Days of week for --at (default every day)")
	return cmd
}

func newMedicationsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <elder-id> <medication-id>",
		Short: "Delete a medication",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRelay(cmd, func(reqCtx context.Context, mgr *connection.Manager) error {
				res, err := mgr.DeleteMedication(reqCtx, args[0], args[1])
				if err != nil {
					return fmt.Errorf("delete medication: %w", err)
				}
				return printCommandResult(cmd, ctx, res, "Medication deleted")
			})
		},
	}
}
