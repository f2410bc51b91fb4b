package main

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "./config.json"

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "postdeck",
		Short:         "Schedule and publish social posts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", defaultConfigPath, "Configuration file path")

	configPath := func() string {
		if configFlag == "" {
			return defaultConfigPath
		}
		return configFlag
	}

	rootCmd.AddCommand(newServeCommand(configPath))
	rootCmd.AddCommand(newEventsCommand(configPath))
	rootCmd.AddCommand(newPostsCommand(configPath))
	rootCmd.AddCommand(newExportICSCommand(configPath))
	rootCmd.AddCommand(newLimitsCommand())

	return rootCmd
}
