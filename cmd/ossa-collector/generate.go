package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/open-edge-platform/ossa-collector/internal/config"
	"github.com/open-edge-platform/ossa-collector/internal/pipeline"
	"github.com/spf13/cobra"
)

// Generate command flags
var (
	outputDir string = "" // Empty means use config file value
	workDir   string = "" // Empty means use config file value
	lookup    bool   = false
)

// newDriver builds the pipeline; tests swap it for one wired to fakes.
var newDriver = pipeline.New

// createGenerateCommand creates the generate subcommand
func createGenerateCommand() *cobra.Command {
	generateCmd := &cobra.Command{
		Use:   "generate [flags] [PACKAGE...]",
		Short: "Generate advisories for source packages",
		Long: `Generate one advisory per source package. Without arguments every package
the configured source lists is processed; otherwise only the named packages,
given either as a plain name (bash) or in full (bash-5.2.26-3.fc40.src).`,
		RunE: executeGenerate,
	}

	generateCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "",
		"Directory advisories are written to")
	generateCmd.Flags().StringVar(&workDir, "work-dir", "",
		"Transient workspace directory")
	generateCmd.Flags().BoolVar(&lookup, "lookup", false,
		"Enrich aliases from the package-metadata lookup service")

	return generateCmd
}

// executeGenerate handles the generate command execution logic
func executeGenerate(cmd *cobra.Command, args []string) error {
	cfg := *config.Global()
	if cmd.Flags().Changed("output-dir") {
		cfg.OutputDir = outputDir
	}
	if cmd.Flags().Changed("work-dir") {
		cfg.WorkDir = workDir
	}
	if cmd.Flags().Changed("lookup") {
		cfg.Lookup.Enabled = lookup
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	d, err := newDriver(&cfg)
	if err != nil {
		return fmt.Errorf("initializing pipeline: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := d.Run(ctx, args)
	renderSummary(cmd.OutOrStdout(), results)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("generation interrupted: %w", err)
	}
	return err
}

// renderSummary prints one row per package followed by the totals.
func renderSummary(w io.Writer, results []pipeline.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, color.YellowString("No packages processed."))
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Package", "Version", "State", "Advisory", "Detail"})
	for _, r := range results {
		state := r.State.String()
		detail := r.Reason
		advisory := ""
		switch r.State {
		case pipeline.Written:
			state = color.GreenString(state)
			advisory = filepath.Base(r.Output)
		case pipeline.Skipped:
			state = color.RedString(state)
			detail = fmt.Sprintf("%s: %s", r.Step, r.Reason)
		}
		table.Append([]string{r.Package.Name, r.Package.Version, state, advisory, detail})
	}
	table.Render()

	s := pipeline.Summarize(results)
	fmt.Fprintf(w, "%s written, %s skipped\n",
		color.GreenString("%d", s.Written), color.RedString("%d", s.Skipped))
}
