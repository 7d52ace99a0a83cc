package main

import (
	"fmt"

	"github.com/open-edge-platform/ossa-collector/internal/config"
	"github.com/open-edge-platform/ossa-collector/internal/source"
	"github.com/spf13/cobra"
)

// newSource builds the configured package source; tests swap it.
var newSource = source.New

// createListCommand creates the list subcommand
func createListCommand() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the source packages the configured source offers",
		Long: `List every source package the configured source offers, one
name-version.src entry per line. This is the set 'generate' works through
when no packages are named.`,
		Args: cobra.NoArgs,
		RunE: executeList,
	}

	return listCmd
}

func executeList(cmd *cobra.Command, args []string) error {
	src, err := newSource(config.Global().Source)
	if err != nil {
		return err
	}
	refs, err := src.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing source packages: %w", err)
	}
	w := cmd.OutOrStdout()
	for _, ref := range refs {
		fmt.Fprintln(w, ref.String())
	}
	return nil
}
