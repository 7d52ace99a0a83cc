package main

import (
	"fmt"

	"github.com/open-edge-platform/ossa-collector/internal/config"
	"github.com/open-edge-platform/ossa-collector/internal/workspace"
	"github.com/spf13/cobra"
)

func createCleanCommand() *cobra.Command {
	var (
		opts workspace.CleanOptions
		all  bool
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove workspace residue or generated advisories",
		Long: `Remove leftover workspace directories or generated advisories.

By default, the command clears the workspace. Use --output to also remove
ossa-*.json files from the output directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			workspaceFlag := cmd.Flags().Changed("workspace")
			outputFlag := cmd.Flags().Changed("output")

			if all {
				opts.CleanWorkspace = true
				opts.CleanOutput = true
			} else if !workspaceFlag && !outputFlag {
				opts.CleanWorkspace = true
			}
			if !opts.CleanWorkspace && !opts.CleanOutput {
				return fmt.Errorf("nothing to clean: specify --workspace, --output, or --all")
			}

			cfg := config.Global()
			opts.WorkDir = cfg.WorkDir
			opts.OutputDir = cfg.OutputDir

			result, err := workspace.Clean(opts)
			if err != nil {
				return err
			}

			output := []string{}
			if opts.DryRun {
				output = append(output, "Dry run: no files were deleted.")
			}
			if len(result.RemovedPaths) > 0 {
				header := "Removed paths:"
				if opts.DryRun {
					header = "Would remove:"
				}
				output = append(output, header)
				output = append(output, indentPaths(result.RemovedPaths)...)
			} else {
				output = append(output, "Nothing to remove.")
			}
			if len(result.SkippedPaths) > 0 {
				output = append(output, "Skipped (not found):")
				output = append(output, indentPaths(result.SkippedPaths)...)
			}

			writer := cmd.OutOrStdout()
			for _, line := range output {
				fmt.Fprintln(writer, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove workspace directories and generated advisories")
	cmd.Flags().BoolVar(&opts.CleanWorkspace, "workspace", false, "Remove workspace directories")
	cmd.Flags().BoolVar(&opts.CleanOutput, "output", false, "Remove generated advisories")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Show what would be removed without deleting anything")

	return cmd
}

func indentPaths(values []string) []string {
	lines := make([]string, len(values))
	for i, v := range values {
		lines[i] = "  " + v
	}
	return lines
}
