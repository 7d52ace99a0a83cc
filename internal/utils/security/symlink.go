package security

import (
	"fmt"
	"os"
	"path/filepath"
)

// SymlinkPolicy defines how to handle symlinks
type SymlinkPolicy int

const (
	// RejectSymlinks - reject any symlinks and return an error
	RejectSymlinks SymlinkPolicy = iota
	// ResolveSymlinks - resolve symlinks and use the target path
	ResolveSymlinks
)

// resolve returns the path to operate on for path under policy.
func resolve(path string, policy SymlinkPolicy) (string, error) {
	if policy != RejectSymlinks && policy != ResolveSymlinks {
		return "", fmt.Errorf("invalid symlink policy: %d", policy)
	}

	info, err := os.Lstat(path)
	if err != nil {
		return "", fmt.Errorf("failed to get file info for %s: %w", path, err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return path, nil
	}
	if policy == RejectSymlinks {
		return "", fmt.Errorf("symlinks are not allowed: %s", path)
	}

	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve symlink %s: %w", path, err)
	}
	return target, nil
}

// SafeReadFile reads a file after performing symlink checks
func SafeReadFile(path string, policy SymlinkPolicy) ([]byte, error) {
	target, err := resolve(path, policy)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(target)
}

// SafeWriteFile writes data to path, refusing (or resolving) symlinks at the
// file itself and at its parent directory.
func SafeWriteFile(path string, data []byte, perm os.FileMode, policy SymlinkPolicy) error {
	if _, err := os.Lstat(path); err == nil {
		target, err := resolve(path, policy)
		if err != nil {
			return fmt.Errorf("existing file symlink check failed: %w", err)
		}
		path = target
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "/" {
		target, err := resolve(dir, policy)
		if err != nil {
			return fmt.Errorf("parent directory symlink check failed: %w", err)
		}
		if target != dir {
			path = filepath.Join(target, filepath.Base(path))
		}
	}

	return os.WriteFile(path, data, perm)
}
