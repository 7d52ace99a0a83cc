package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/open-edge-platform/ossa-collector/internal/config"
	"github.com/open-edge-platform/ossa-collector/internal/ospackage"
	"github.com/open-edge-platform/ossa-collector/internal/source"
	"github.com/spf13/cobra"
)

var fetchDest string = "."

// createFetchCommand creates the fetch subcommand
func createFetchCommand() *cobra.Command {
	fetchCmd := &cobra.Command{
		Use:   "fetch [flags] PACKAGE...",
		Short: "Download source package archives without generating advisories",
		Long: `Download the archives of the named source packages into a directory.
Packages are named as for 'generate'. Repository sources download in
parallel using the configured number of workers; signatures are checked
when verification is enabled.`,
		Args: cobra.MinimumNArgs(1),
		RunE: executeFetch,
	}

	fetchCmd.Flags().StringVarP(&fetchDest, "dest", "d", ".",
		"Directory archives are written to")

	return fetchCmd
}

func executeFetch(cmd *cobra.Command, args []string) error {
	src, err := newSource(config.Global().Source)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(fetchDest, 0700); err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	refs, err := src.List(ctx)
	if err != nil {
		return fmt.Errorf("listing source packages: %w", err)
	}
	refs, missing := ospackage.Select(refs, args)

	w := cmd.OutOrStdout()
	var errs []error
	for _, name := range missing {
		fmt.Fprintf(w, "%s %s: not listed by the source\n", color.RedString("✗"), name)
		errs = append(errs, fmt.Errorf("%w: %s", source.ErrNotFound, name))
	}

	paths, err := source.RetrieveAll(ctx, src, refs, fetchDest)
	for i, ref := range refs {
		if i < len(paths) && paths[i] != "" {
			fmt.Fprintf(w, "%s %s -> %s\n", color.GreenString("✓"), ref, paths[i])
		} else {
			fmt.Fprintf(w, "%s %s\n", color.RedString("✗"), ref)
		}
	}
	if err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
