package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/open-edge-platform/ossa-collector/internal/config/validate"
	"github.com/open-edge-platform/ossa-collector/internal/utils/security"
	"github.com/spf13/cobra"
)

var schemaFile string = ""

// createValidateCommand creates the validate subcommand
func createValidateCommand() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate [flags] ADVISORY...",
		Short: "Validate advisory files against the OSSA schema",
		Long: `Validate one or more advisory JSON files against the embedded OSSA
schema, or against a schema supplied with --schema-file. Every file is
checked; the command fails if any of them is invalid.`,
		Args: cobra.MinimumNArgs(1),
		RunE: executeValidate,
	}

	validateCmd.Flags().StringVar(&schemaFile, "schema-file", "",
		"Validate against this JSON schema instead of the embedded one")

	return validateCmd
}

func executeValidate(cmd *cobra.Command, args []string) error {
	check := validate.ValidateAdvisoryJSON
	if schemaFile != "" {
		schemaBytes, err := security.SafeReadFile(schemaFile, security.ResolveSymlinks)
		if err != nil {
			return fmt.Errorf("reading schema: %w", err)
		}
		check = func(data []byte) error { return validate.ValidateWithSchema(schemaBytes, data) }
	}

	w := cmd.OutOrStdout()
	failed := 0
	for _, path := range args {
		data, err := security.SafeReadFile(path, security.RejectSymlinks)
		if err == nil {
			err = check(data)
		}
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s %s: %s\n", color.RedString("✗"), path, validate.FirstError(err))
			continue
		}
		fmt.Fprintf(w, "%s %s\n", color.GreenString("✓"), path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d advisories failed validation", failed, len(args))
	}
	return nil
}
