package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	fileutil "github.com/open-edge-platform/ossa-collector/internal/utils/file"
)

// CleanOptions defines what the clean command removes.
type CleanOptions struct {
	WorkDir        string // workspace root
	OutputDir      string // advisory output directory
	CleanWorkspace bool   // remove the workspace role directories
	CleanOutput    bool   // remove generated advisories (ossa-*.json) from OutputDir
	DryRun         bool   // report actions without deleting anything
}

// CleanResult contains the outcome of a cleanup run.
type CleanResult struct {
	RemovedPaths []string
	SkippedPaths []string
}

// Clean removes workspace and output artifacts according to opts.
func Clean(opts CleanOptions) (*CleanResult, error) {
	if !opts.CleanWorkspace && !opts.CleanOutput {
		return nil, fmt.Errorf("at least one scope must be specified")
	}

	var targets, skipped []string
	if opts.CleanWorkspace {
		t, s, err := workspaceTargets(opts.WorkDir)
		if err != nil {
			return nil, err
		}
		targets, skipped = append(targets, t...), append(skipped, s...)
	}
	if opts.CleanOutput {
		t, err := outputTargets(opts.OutputDir)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t...)
	}

	removed := make([]string, 0, len(targets))
	for _, target := range targets {
		if opts.DryRun {
			removed = append(removed, target)
			continue
		}
		if err := os.RemoveAll(target); err != nil {
			return nil, fmt.Errorf("removing %s: %w", target, err)
		}
		removed = append(removed, target)
	}

	sort.Strings(removed)
	sort.Strings(skipped)
	return &CleanResult{RemovedPaths: removed, SkippedPaths: skipped}, nil
}

func workspaceTargets(workDir string) ([]string, []string, error) {
	ws, err := New(workDir)
	if err != nil {
		return nil, nil, err
	}

	var targets, missing []string
	for _, role := range Roles {
		target := ws.Dir(role)
		if err := ensureSubPath(ws.Root(), target); err != nil {
			return nil, nil, err
		}
		exists, err := fileutil.PathExists(target)
		if err != nil {
			return nil, nil, fmt.Errorf("checking %s: %w", target, err)
		}
		if exists {
			targets = append(targets, target)
		} else {
			missing = append(missing, target)
		}
	}
	return targets, missing, nil
}

func outputTargets(outputDir string) ([]string, error) {
	if strings.TrimSpace(outputDir) == "" {
		return nil, fmt.Errorf("output directory must not be empty")
	}
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing output directory: %w", err)
	}

	var targets []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "ossa-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		target := filepath.Join(outputDir, name)
		if err := ensureSubPath(outputDir, target); err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, nil
}
