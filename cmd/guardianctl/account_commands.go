package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carewatch/guardian/internal/auth"
)

func newRegisterCommand(ctx *commandContext) *cobra.Command {
	var name, phone string
	var force bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register this guardian and store the issued identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			if existing, err := auth.Load(cfg.Identity.Path); err == nil && !force {
				return fmt.Errorf("already registered as %s; pass --force to replace %s", existing.ID, cfg.Identity.Path)
			} else if err != nil && !errors.Is(err, auth.ErrNoIdentity) && !force {
				return err
			}

			client, err := ctx.apiClient(cmd, cfg, auth.Guardian{})
			if err != nil {
				return err
			}

			reqCtx, cancel := context.WithTimeout(cmd.Context(), ctx.opts.timeout)
			defer cancel()

			reg, err := client.Register(reqCtx, name, phone)
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}

			g := auth.Guardian{ID: reg.GuardianID, Token: reg.Token, Name: reg.Name, Phone: reg.Phone}
			if g.Name == "" {
				g.Name = name
			}
			if g.Phone == "" {
				g.Phone = phone
			}
			if err := auth.Save(cfg.Identity.Path, g); err != nil {
				return err
			}

			if ctx.opts.json {
				return writeJSON(cmd, g)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered guardian %s (identity saved to %s)\n", g.ID, cfg.Identity.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Guardian display name")
	cmd.Flags().StringVar(&phone, "phone", "", "Guardian phone number")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing identity")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

func newWhoamiCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored guardian identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, g, err := ctx.identity()
			if err != nil {
				return err
			}
			if ctx.opts.json {
				g.Token = ""
				return writeJSON(cmd, g)
			}
			printTable(cmd,
				[]string{"ID", "Name", "Phone", "Token"},
				[][]string{{g.ID, orDash(g.Name), orDash(g.Phone), yesNo(g.Token != "")}},
				nil,
			)
			return nil
		},
	}
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the stored guardian identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := auth.Clear(cfg.Identity.Path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", cfg.Identity.Path)
			return nil
		},
	}
}
