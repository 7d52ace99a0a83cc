// Package workspace owns the transient directories used while generating one
// advisory: downloaded archives, extracted specs, extracted payloads and
// unpacked tarball trees.
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
	"github.com/open-edge-platform/ossa-collector/internal/utils/logger"
)

// Workspace roles. Each gets its own directory under the root.
const (
	Packages = "packages"
	Specs    = "specs"
	Sources  = "sources"
	Trees    = "trees"
)

// Roles lists every role directory in creation order.
var Roles = []string{Packages, Specs, Sources, Trees}

// Workspace is a root directory holding one subdirectory per role. All
// removals are confined to the root.
type Workspace struct {
	root string
}

// New returns a workspace rooted at root. The directories are not created
// until Reset.
func New(root string) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("workspace root must not be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root %s: %w", root, err)
	}
	if abs == string(filepath.Separator) {
		return nil, fmt.Errorf("refusing to use / as workspace root")
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

// Dir returns the directory for role.
func (w *Workspace) Dir(role string) string {
	return filepath.Join(w.root, role)
}

// TreeDir returns an empty directory under Trees for unpacking the named
// tarball. The directory keeps the tarball's full name, so archives that
// differ only in compression never share a tree.
func (w *Workspace) TreeDir(tarball string) (string, error) {
	name := filepath.Base(tarball)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid tarball name %q", tarball)
	}
	target := filepath.Join(w.Dir(Trees), name)
	if err := ensureSubPath(w.Dir(Trees), target); err != nil {
		return "", err
	}
	if err := os.RemoveAll(target); err != nil {
		return "", fmt.Errorf("clearing %s: %w", target, err)
	}
	return target, nil
}

// Reset brings the workspace to a pristine state: anything left under the
// root (including residue from a killed run) is removed and every role
// directory is recreated empty. Calling it repeatedly is safe.
func (w *Workspace) Reset() error {
	if err := os.MkdirAll(w.root, 0755); err != nil {
		return fmt.Errorf("creating workspace %s: %w", w.root, err)
	}

	entries, err := os.ReadDir(w.root)
	if err != nil {
		return fmt.Errorf("listing workspace %s: %w", w.root, err)
	}
	for _, entry := range entries {
		target := filepath.Join(w.root, entry.Name())
		if err := ensureSubPath(w.root, target); err != nil {
			return err
		}
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("removing %s: %w", target, err)
		}
	}

	for _, role := range Roles {
		if err := os.MkdirAll(w.Dir(role), 0755); err != nil {
			return fmt.Errorf("creating %s: %w", w.Dir(role), err)
		}
	}
	return nil
}

// Purge empties every role directory, keeping the directories themselves.
// It is best-effort: every entry is attempted and failures are logged and
// returned together.
func (w *Workspace) Purge() error {
	log := logger.Logger()

	var errs []error
	for _, role := range Roles {
		dir := w.Dir(role)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			log.Warnf("cleanup: listing %s failed: %v", dir, err)
			errs = append(errs, err)
			continue
		}
		for _, entry := range entries {
			target := filepath.Join(dir, entry.Name())
			if err := ensureSubPath(dir, target); err != nil {
				errs = append(errs, err)
				continue
			}
			if err := os.RemoveAll(target); err != nil {
				log.Warnf("cleanup: removing %s failed: %v", target, err)
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Residue lists every file or directory left inside the role directories.
func (w *Workspace) Residue() ([]string, error) {
	var left []string
	for _, role := range Roles {
		entries, err := os.ReadDir(w.Dir(role))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("listing %s: %w", w.Dir(role), err)
		}
		for _, entry := range entries {
			left = append(left, filepath.Join(w.Dir(role), entry.Name()))
		}
	}
	sort.Strings(left)
	return left, nil
}

func ensureSubPath(base, target string) error {
	ok, err := fileutil.IsSubPath(base, target)
	if err != nil {
		return err
	}
	if !ok || filepath.Clean(target) == filepath.Clean(base) {
		return fmt.Errorf("refusing to operate on %s because it is outside %s", target, base)
	}
	return nil
}
