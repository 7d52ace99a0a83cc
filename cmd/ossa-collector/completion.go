package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-edge-platform/ossa-collector/internal/utils/security"
	"github.com/spf13/cobra"
)

// completionTargets maps a shell to the per-user file its completion
// script is installed as, relative to the home directory.
var completionTargets = map[string]string{
	"bash":       filepath.Join(".bash_completion.d", "ossa-collector.bash"),
	"zsh":        filepath.Join(".zsh", "completion", "_ossa-collector"),
	"fish":       filepath.Join(".config", "fish", "completions", "ossa-collector.fish"),
	"powershell": filepath.Join("Documents", "WindowsPowerShell", "ossa-collector-completion.ps1"),
}

// systemBashCompletionDir is used instead of the home directory when
// OSSA_COLLECTOR_COMPLETION_SCOPE=system and it is writable.
var systemBashCompletionDir = "/etc/bash_completion.d"

func createInstallCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install-completion",
		Short: "Install shell completion script",
		Long: `Install a completion script for Bash, Zsh, Fish or PowerShell.
The shell is detected from the environment unless --shell is given. Use
--print to write the script to standard output instead of installing it.`,
		Args: cobra.NoArgs,
		RunE: executeInstallCompletion,
	}

	cmd.Flags().String("shell", "", "Shell type (bash, zsh, fish, powershell)")
	cmd.Flags().Bool("force", false, "Overwrite an existing completion file")
	cmd.Flags().Bool("print", false, "Print the script instead of installing it")

	return cmd
}

func executeInstallCompletion(cmd *cobra.Command, args []string) error {
	shellType, _ := cmd.Flags().GetString("shell")
	force, _ := cmd.Flags().GetBool("force")
	printOnly, _ := cmd.Flags().GetBool("print")

	if shellType == "" {
		detected, err := detectShell()
		if err != nil {
			return err
		}
		shellType = detected
	}

	var buf bytes.Buffer
	if err := generateCompletion(cmd.Root(), shellType, &buf); err != nil {
		return err
	}
	if printOnly {
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}

	targetPath, err := completionPath(shellType)
	if err != nil {
		return err
	}
	if _, err := os.Stat(targetPath); err == nil && !force {
		return fmt.Errorf("completion file already exists at %s. Use --force to overwrite", targetPath)
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), 0700); err != nil {
		return fmt.Errorf("could not create directory %s: %w", filepath.Dir(targetPath), err)
	}
	if err := security.SafeWriteFile(targetPath, buf.Bytes(), 0600, security.RejectSymlinks); err != nil {
		return fmt.Errorf("could not write completion file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Shell completion installed for %s at %s\n", shellType, targetPath)
	return nil
}

func detectShell() (string, error) {
	shellEnv := os.Getenv("SHELL")
	if shellEnv == "" {
		if os.Getenv("PSModulePath") != "" {
			return "powershell", nil
		}
		return "", fmt.Errorf("could not detect shell. Please specify with --shell flag")
	}
	for _, name := range []string{"bash", "zsh", "fish"} {
		if strings.Contains(filepath.Base(shellEnv), name) {
			return name, nil
		}
	}
	return "", fmt.Errorf("unsupported shell: %s. Please specify shell with --shell flag", shellEnv)
}

func generateCompletion(root *cobra.Command, shellType string, buf *bytes.Buffer) error {
	var err error
	switch shellType {
	case "bash":
		err = root.GenBashCompletionV2(buf, true)
	case "zsh":
		err = root.GenZshCompletion(buf)
	case "fish":
		err = root.GenFishCompletion(buf, true)
	case "powershell":
		err = root.GenPowerShellCompletionWithDesc(buf)
	default:
		return fmt.Errorf("unsupported shell type: %s", shellType)
	}
	if err != nil {
		return fmt.Errorf("generating %s completion: %w", shellType, err)
	}
	return nil
}

func completionPath(shellType string) (string, error) {
	rel, ok := completionTargets[shellType]
	if !ok {
		return "", fmt.Errorf("unsupported shell type: %s", shellType)
	}
	if shellType == "bash" && os.Getenv("OSSA_COLLECTOR_COMPLETION_SCOPE") == "system" && dirWritable(systemBashCompletionDir) {
		return filepath.Join(systemBashCompletionDir, filepath.Base(rel)), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, rel), nil
}

// dirWritable reports whether a temporary file can be created in p.
func dirWritable(p string) bool {
	tf, err := os.CreateTemp(p, ".probe-*")
	if err != nil {
		return false
	}
	tf.Close()
	_ = os.Remove(tf.Name())
	return true
}
