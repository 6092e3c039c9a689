package main

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "./configs/safe-detector.yaml"

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "safe-detector",
		Short:         "Ground-proximity safety monitor",
		Long:          "safe-detector publishes a safety flag at 200 Hz: unsafe whenever the vehicle is armed above 5 m.\nStop a running detector with SIGINT or SIGTERM; SIGHUP reloads parameters.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", defaultConfigPath, "Configuration file path")

	rootCmd.AddCommand(newStartCommand(&configFlag))
	rootCmd.AddCommand(newValidateCommand(&configFlag))
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newJournalCommand())

	return rootCmd
}
