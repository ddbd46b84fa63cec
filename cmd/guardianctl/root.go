package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/carewatch/guardian/internal/version"
)

func newRootCommand() *cobra.Command {
	var opts globalOptions

	ctx := newCommandContext(&opts)

	rootCmd := &cobra.Command{
		Use:           "guardianctl",
		Short:         "Guardian relay CLI",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "configs/guardian.yaml", "Configuration file path")
	flags.StringVar(&opts.identityPath, "identity", "", "Identity file path (overrides config)")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Deadline for connecting and each request")
	flags.BoolVar(&opts.json, "json", false, "Print results as JSON")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log connection activity to stderr")

	rootCmd.AddCommand(newRegisterCommand(ctx))
	rootCmd.AddCommand(newWhoamiCommand(ctx))
	rootCmd.AddCommand(newLogoutCommand(ctx))
	rootCmd.AddCommand(newPairCommand(ctx))
	rootCmd.AddCommand(newEldersCommand(ctx))
	rootCmd.AddCommand(newStateCommand(ctx))
	rootCmd.AddCommand(newAlertsCommand(ctx))
	rootCmd.AddCommand(newHealthHistoryCommand(ctx))
	rootCmd.AddCommand(newMedicationsCommand(ctx))
	rootCmd.AddCommand(newRemindCommand(ctx))
	rootCmd.AddCommand(newMessageCommand(ctx))
	rootCmd.AddCommand(newContactCommand(ctx))

	return rootCmd
}
