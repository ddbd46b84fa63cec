package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carewatch/guardian/internal/connection"
	"github.com/carewatch/guardian/internal/model"
	"github.com/carewatch/guardian/internal/protocol"
)

func newStateCommand(ctx *commandContext) *cobra.Command {
	var req protocol.GetStateRequest

	cmd := &cobra.Command{
		Use:   "state <elder-id>",
		Short: "Fetch an elder's current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRelay(cmd, func(reqCtx context.Context, mgr *connection.Manager) error {
				st, err := mgr.GetState(reqCtx, args[0], req)
				if err != nil {
					return fmt.Errorf("get state: %w", err)
				}
				if ctx.opts.json {
					return writeJSON(cmd, st)
				}
				printState(cmd, args[0], st)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&req.IncludeMedications, "medications", false, "Include the medication summary")
	cmd.Flags().BoolVar(&req.IncludeAlertsSummary, "alerts", true, "Include recent alerts")
	cmd.Flags().BoolVar(&req.IncludeHealthSummary, "health", false, "Include the health summary")
	return cmd
}

func printState(cmd *cobra.Command, elderID string, st protocol.StatePayload) {
	age := "-"
	if st.Elder.Age > 0 {
		age = strconv.Itoa(st.Elder.Age)
	}
	printTable(cmd,
		[]string{"Elder", "Name", "Age", "Battery", "Last Heartbeat"},
		[][]string{{elderID, orDash(st.Elder.Name), age, percent(st.Elder.BatteryLevel), orDash(st.Elder.LastHeartbeat)}},
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
	if s := st.MedicationSummary; s != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Medications today: %d/%d taken, %d missed\n", s.TakenToday, s.TodayTotal, s.MissedToday)
	}
	if len(st.RecentAlerts) > 0 {
		printAlerts(cmd, st.RecentAlerts)
	}
}

func printAlerts(cmd *cobra.Command, alerts []model.Alert) {
	rows := make([][]string, 0, len(alerts))
	for _, a := range alerts {
		loc := "-"
		if a.Location != nil {
			loc = fmt.Sprintf("%.5f,%.5f", a.Location.Latitude, a.Location.Longitude)
		}
		rows = append(rows, []string{
			orDash(a.TriggeredAt),
			string(a.Type),
			string(a.Type.Severity()),
			yesNo(a.Resolved),
			loc,
		})
	}
	printTable(cmd, []string{"Triggered", "Type", "Severity", "Resolved", "Location"}, rows, nil)
}

func newAlertsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "alerts <elder-id>",
		Short: "Fetch an elder's alert history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRelay(cmd, func(reqCtx context.Context, mgr *connection.Manager) error {
				h, err := mgr.GetAlertHistory(reqCtx, args[0], limit)
				if err != nil {
					return fmt.Errorf("get alert history: %w", err)
				}
				if ctx.opts.json {
					return writeJSON(cmd, h)
				}
				if len(h.Alerts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No alerts")
					return nil
				}
				printAlerts(cmd, h.Alerts)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum alerts to return")
	return cmd
}

func newHealthHistoryCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "health <elder-id>",
		Short: "Fetch an elder's health check-ins",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRelay(cmd, func(reqCtx context.Context, mgr *connection.Manager) error {
				h, err := mgr.GetHealthHistory(reqCtx, args[0], days)
				if err != nil {
					return fmt.Errorf("get health history: %w", err)
				}
				if ctx.opts.json {
					return writeJSON(cmd, h)
				}
				if len(h.CheckIns) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No check-ins")
					return nil
				}
				rows := make([][]string, 0, len(h.CheckIns))
				for _, c := range h.CheckIns {
					rows = append(rows, []string{
						c.Date,
						scale(c.Mood),
						scale(c.PainLevel),
						scale(c.SleepQuality),
						orDash(strings.Join(c.Symptoms, ", ")),
					})
				}
				printTable(cmd, []string{"Date", "Mood", "Pain", "Sleep", "Symptoms"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft})
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Number of days of history")
	return cmd
}

func scale(n int) string {
	if n == 0 {
		return "-"
	}
	return strconv.Itoa(n)
}

func newRemindCommand(ctx *commandContext) *cobra.Command {
	var p protocol.SendReminderPayload
	var priority string

	cmd := &cobra.Command{
		Use:   "remind <elder-id> <message>",
		Short: "Show a reminder on an elder's device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Message = args[1]
			p.Priority = protocol.Priority(strings.ToLower(priority))
			if p.Title == "" {
				p.Title = "Reminder"
			}
			return ctx.withRelay(cmd, func(reqCtx context.Context, mgr *connection.Manager) error {
				res, err := mgr.SendReminder(reqCtx, args[0], p)
				if err != nil {
					return fmt.Errorf("send reminder: %w", err)
				}
				return printCommandResult(cmd, ctx, res, "Reminder delivered")
			})
		},
	}

	cmd.Flags().StringVar(&p.Title, "title", "", "Reminder title")
	cmd.Flags().StringVar(&priority, "priority", string(protocol.PriorityNormal), "low, normal, high or urgent")
	return cmd
}

func newMessageCommand(ctx *commandContext) *cobra.Command {
	var p protocol.SendMessagePayload

	cmd := &cobra.Command{
		Use:   "message <elder-id> <text>",
		Short: "Send a message to an elder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, g, err := ctx.identity()
			if err != nil {
				return err
			}
			p.Message = args[1]
			if p.GuardianName == "" {
				p.GuardianName = g.Name
			}
			return ctx.withRelay(cmd, func(reqCtx context.Context, mgr *connection.Manager) error {
				res, err := mgr.SendMessageToElder(reqCtx, args[0], p)
				if err != nil {
					return fmt.Errorf("send message: %w", err)
				}
				return printCommandResult(cmd, ctx, res, "Message delivered")
			})
		},
	}

	cmd.Flags().StringVar(&p.GuardianName, "from", "", "Sender name (defaults to the registered name)")
	cmd.Flags().BoolVar(&p.RequiresAcknowledgment, "ack", false, "Ask the elder to acknowledge")
	return cmd
}

func newContactCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Manage an elder's emergency contacts",
	}
	cmd.AddCommand(newContactSetCommand(ctx))
	cmd.AddCommand(newContactDeleteCommand(ctx))
	return cmd
}

func newContactSetCommand(ctx *commandContext) *cobra.Command {
	var p protocol.UpdateEmergencyContactPayload

	cmd := &cobra.Command{
		Use:   "set <elder-id>",
		Short: "Create or update an emergency contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRelay(cmd, func(reqCtx context.Context, mgr *connection.Manager) error {
				res, err := mgr.UpdateEmergencyContact(reqCtx, args[0], p)
				if err != nil {
					return fmt.Errorf("update contact: %w", err)
				}
				return printCommandResult(cmd, ctx, res, "Contact saved")
			})
		},
	}

	cmd.Flags().StringVar(&p.ContactID, "id", "", "Existing contact id (omit to create)")
	cmd.Flags().StringVar(&p.Name, "name", "", "Contact name")
	cmd.Flags().StringVar(&p.PhoneNumber, "phone", "", "Contact phone number")
	cmd.Flags().StringVar(&p.Relationship, "relationship", "", "Relationship to the elder")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

func newContactDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <elder-id> <contact-id>",
		Short: "Delete an emergency contact",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRelay(cmd, func(reqCtx context.Context, mgr *connection.Manager) error {
				res, err := mgr.DeleteEmergencyContact(reqCtx, args[0], args[1])
				if err != nil {
					return fmt.Errorf("delete contact: %w", err)
				}
				return printCommandResult(cmd, ctx, res, "Contact deleted")
			})
		},
	}
}

func printCommandResult(cmd *cobra.Command, ctx *commandContext, res protocol.CommandSuccessPayload, fallback string) error {
	if ctx.opts.json {
		return writeJSON(cmd, res)
	}
	msg := res.Message
	if msg == "" {
		msg = fallback
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}
