package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/open-edge-platform/ossa-collector/internal/ospackage"
	"github.com/open-edge-platform/ossa-collector/internal/utils/logger"
	"github.com/open-edge-platform/ossa-collector/internal/utils/shell"
	"github.com/open-edge-platform/ossa-collector/internal/utils/slice"
)

// DNFSource asks the host package manager for listings and downloads.
type DNFSource struct {
	Sudo bool
}

// List runs "dnf repoquery --source". Lines that do not parse are logged
// and skipped; duplicates are dropped.
func (d *DNFSource) List(ctx context.Context) ([]ospackage.Ref, error) {
	log := logger.Logger()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := shell.ExecCmdSilent("dnf repoquery --source --quiet", d.Sudo, nil)
	if err != nil {
		return nil, fmt.Errorf("listing source packages: %w", err)
	}

	var refs []ospackage.Ref
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		ref, err := ospackage.ParseSourceLine(line)
		if err != nil {
			log.Warnf("skipping listing line: %v", err)
			continue
		}
		refs = append(refs, ref)
	}
	return slice.Dedupe(refs), nil
}

// Retrieve runs yumdownloader for name-version and picks the downloaded
// .src.rpm out of destDir.
func (d *DNFSource) Retrieve(ctx context.Context, ref ospackage.Ref, destDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(destDir, 0700); err != nil {
		return "", fmt.Errorf("creating %s: %w", destDir, err)
	}

	nv := ref.Name + "-" + ref.Version
	cmd := fmt.Sprintf("yumdownloader --source --destdir %s %s", shell.Quote(destDir), shell.Quote(nv))
	if _, err := shell.ExecCmd(cmd, d.Sudo, nil); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNotFound, ref, err)
	}
	return pickArchive(destDir, ref)
}

// pickArchive prefers the exact name-version.src.rpm and falls back to any
// .src.rpm of the same package name.
func pickArchive(dir string, ref ospackage.Ref) (string, error) {
	exact := filepath.Join(dir, ref.String()+".rpm")
	if fi, err := os.Stat(exact); err == nil && fi.Mode().IsRegular() {
		return exact, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.src.rpm"))
	if err != nil {
		return "", err
	}
	sort.Strings(matches)
	for _, m := range matches {
		got, err := ospackage.ParseSourceLine(filepath.Base(m))
		if err == nil && got.Name == ref.Name {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
}
