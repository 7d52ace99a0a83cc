package main

import (
	"fmt"
	"os"

	"github.com/open-edge-platform/ossa-collector/internal/config"
	"github.com/open-edge-platform/ossa-collector/internal/utils/logger"
	"github.com/open-edge-platform/ossa-collector/internal/utils/security"
	"github.com/spf13/cobra"
)

// Command-line flags that can override config file settings
var (
	configFile string = "" // Path to config file
	logLevel   string = "" // Empty means use config file value
	logFile    string = "" // Empty means use config file value
)

var (
	actualConfigFile string // config file actually loaded, empty for defaults
	loggerCleanup    func()
)

func main() {
	rootCmd := createRootCommand()
	security.AttachRecursive(rootCmd, security.DefaultLimits())

	err := rootCmd.Execute()
	if loggerCleanup != nil {
		loggerCleanup()
	}
	if err != nil {
		os.Exit(1)
	}
}

// initConfig loads the configuration, applies flag overrides and sets up
// the logger. It runs after flag parsing, before any subcommand.
func initConfig() error {
	actualConfigFile = configFile
	if actualConfigFile == "" {
		actualConfigFile = config.FindConfigFile()
	}

	globalConfig, err := config.LoadGlobalConfig(actualConfigFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	if logLevel != "" {
		globalConfig.Logging.Level = logLevel
	}
	if logFile != "" {
		globalConfig.Logging.File = logFile
	}
	config.SetGlobal(globalConfig)

	if loggerCleanup != nil {
		loggerCleanup()
	}
	_, cleanup, err := logger.InitWithConfig(logger.Config{
		Level:    globalConfig.Logging.Level,
		FilePath: globalConfig.Logging.File,
	})
	if err != nil {
		return err
	}
	loggerCleanup = cleanup

	log := logger.Logger()
	if actualConfigFile != "" {
		log.Infof("Using configuration from: %s", actualConfigFile)
	}
	log.Debugf("Config: source=%s extractor=%s identifier=%s work_dir=%s output_dir=%s",
		globalConfig.Source.Mode, globalConfig.Extractor, globalConfig.Identifier.Mode,
		globalConfig.WorkDir, globalConfig.OutputDir)
	return nil
}

// createRootCommand creates and configures the root cobra command with all subcommands
func createRootCommand() *cobra.Command {
	// run the root's hook even when subcommands install their own
	cobra.EnableTraverseRunHooks = true

	rootCmd := &cobra.Command{
		Use:   "ossa-collector",
		Short: "Generate Open Source Software Advisories for OS source packages",
		Long: `OSSA Collector walks the source packages a distribution publishes and
writes one Open Source Software Advisory (OSSA) per package. Each advisory
carries content identifiers for the package archive and its upstream
tarballs, the normalized license set with a severity derived from it, and
aliases that help match the package across distributions.

Use 'ossa-collector --help' to see available commands.
Use 'ossa-collector <command> --help' for more information about a command.`,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return initConfig() },
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"Log file path to tee logs (overrides configuration file)")

	rootCmd.AddCommand(createGenerateCommand())
	rootCmd.AddCommand(createListCommand())
	rootCmd.AddCommand(createFetchCommand())
	rootCmd.AddCommand(createValidateCommand())
	rootCmd.AddCommand(createLookupCommand())
	rootCmd.AddCommand(createCleanCommand())
	rootCmd.AddCommand(createConfigCommand())
	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createInstallCompletionCommand())

	return rootCmd
}
