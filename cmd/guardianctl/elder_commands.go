package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carewatch/guardian/internal/api"
)

func newPairCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pair <code>",
		Short: "Pair with an elder using the code shown on their device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := strings.TrimSpace(args[0])
			if code == "" {
				return fmt.Errorf("pairing code is required")
			}
			return ctx.withAPI(cmd, func(reqCtx context.Context, client *api.Client) error {
				p, err := client.PairWithElder(reqCtx, code)
				if err != nil {
					return fmt.Errorf("pair: %w", err)
				}
				if ctx.opts.json {
					return writeJSON(cmd, p)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Paired with elder %s\n", p.ElderID)
				return nil
			})
		},
	}
}

func newEldersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "elders",
		Short: "List paired elders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAPI(cmd, func(reqCtx context.Context, client *api.Client) error {
				elders, err := client.PairedElders(reqCtx)
				if err != nil {
					return fmt.Errorf("list elders: %w", err)
				}
				if ctx.opts.json {
					return writeJSON(cmd, elders)
				}
				if len(elders) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No paired elders")
					return nil
				}
				rows := make([][]string, 0, len(elders))
				for _, e := range elders {
					rows = append(rows, []string{e.ElderID, yesNo(e.IsOnline), orDash(e.PairedAt)})
				}
				printTable(cmd, []string{"Elder", "Online", "Paired At"}, rows, nil)
				return nil
			})
		},
	}
}
