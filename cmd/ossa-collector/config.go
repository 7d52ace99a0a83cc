package main

import (
	"fmt"

	"github.com/open-edge-platform/ossa-collector/internal/config"
	"github.com/spf13/cobra"
)

// createConfigCommand creates the config subcommand
func createConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage global configuration for the OSSA Collector.

Available commands:
  init    Write a configuration file with default values
  show    Print the configuration in effect`,
	}

	configCmd.AddCommand(createConfigInitCommand())
	configCmd.AddCommand(createConfigShowCommand())

	return configCmd
}

func createConfigInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init [config-file]",
		Short: "Write a configuration file with default values",
		Long: `Write a configuration file with default values and explanatory comments.

If no path is given the file is created in the current directory as ossa-collector.yml

Examples:
  ossa-collector config init
  ossa-collector config init /etc/ossa-collector/config.yml`,
		Args: cobra.MaximumNArgs(1),
		RunE: executeConfigInit,
	}
}

func executeConfigInit(cmd *cobra.Command, args []string) error {
	configPath := "ossa-collector.yml"
	if len(args) > 0 {
		configPath = args[0]
	}

	defaults := config.DefaultGlobalConfig()
	if err := defaults.SaveGlobalConfigWithComments(configPath); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Configuration file created at: %s\n", configPath)
	fmt.Fprintf(w, "\nDefault configuration settings:\n")
	fmt.Fprintf(w, "  Source Mode: %s\n", defaults.Source.Mode)
	fmt.Fprintf(w, "  Work Directory: %s\n", defaults.WorkDir)
	fmt.Fprintf(w, "  Output Directory: %s\n", defaults.OutputDir)
	fmt.Fprintf(w, "  Extractor: %s\n", defaults.Extractor)
	fmt.Fprintf(w, "  Identifier: %s\n", defaults.Identifier.Mode)
	fmt.Fprintf(w, "  Log Level: %s\n", defaults.Logging.Level)
	fmt.Fprintf(w, "\nEdit the configuration file to customize these settings.\n")
	return nil
}

func createConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the configuration in effect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if actualConfigFile != "" {
				fmt.Fprintf(w, "# loaded from %s\n", actualConfigFile)
			} else {
				fmt.Fprintln(w, "# built-in defaults")
			}
			data, err := config.Global().Marshal()
			if err != nil {
				return err
			}
			_, err = w.Write(data)
			return err
		},
	}
}
