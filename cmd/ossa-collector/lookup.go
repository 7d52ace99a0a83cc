package main

import (
	"fmt"
	"strings"

	"github.com/open-edge-platform/ossa-collector/internal/config"
	"github.com/open-edge-platform/ossa-collector/internal/repology"
	"github.com/open-edge-platform/ossa-collector/internal/utils/logger"
	"github.com/spf13/cobra"
)

var lookupBaseURL string = ""

// createLookupCommand creates the lookup subcommand
func createLookupCommand() *cobra.Command {
	lookupCmd := &cobra.Command{
		Use:   "lookup [flags] PACKAGE",
		Short: "Show what the package-metadata service knows about a package",
		Long: `Query the package-metadata lookup service for one package and print the
aliases and licenses 'generate --lookup' would merge into its advisory.`,
		Args: cobra.ExactArgs(1),
		RunE: executeLookup,
	}

	lookupCmd.Flags().StringVar(&lookupBaseURL, "base-url", "",
		"Lookup service base URL (overrides configuration file)")

	return lookupCmd
}

func executeLookup(cmd *cobra.Command, args []string) error {
	cfg := config.Global()
	baseURL := cfg.Lookup.BaseURL
	if lookupBaseURL != "" {
		baseURL = lookupBaseURL
	}
	timeout, err := cfg.LookupTimeout()
	if err != nil {
		return err
	}
	client, err := repology.NewClient(baseURL, timeout)
	if err != nil {
		return err
	}

	// an unreachable or misbehaving service reads as "nothing known"
	pkgs, err := client.Project(cmd.Context(), args[0])
	if err != nil {
		logger.Logger().Warnf("lookup for %s failed: %v", args[0], err)
		pkgs = nil
	}
	info := repology.Summarize(pkgs)

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Package:  %s\n", args[0])
	fmt.Fprintf(w, "Entries:  %d\n", len(pkgs))
	fmt.Fprintf(w, "Aliases:  %s\n", orNone(info.Aliases))
	fmt.Fprintf(w, "Licenses: %s\n", orNone(info.Licenses))
	return nil
}

func orNone(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}
