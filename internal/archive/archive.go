package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/open-edge-platform/ossa-collector/internal/utils/compression"
	"github.com/open-edge-platform/ossa-collector/internal/utils/logger"
	"github.com/open-edge-platform/ossa-collector/internal/utils/shell"
	"github.com/sassoftware/go-rpmutils"
)

// ErrExtraction is wrapped by every unpack failure.
var ErrExtraction = errors.New("archive extraction failed")

// NestedSuffixes are the top-level payload entries treated as source tarballs.
var NestedSuffixes = []string{".tar.gz", ".tar.bz2", ".tar.xz", ".tgz"}

// Extractor unpacks a package archive into destDir and returns the nested
// source tarballs found at its top level. It never deletes anything.
type Extractor interface {
	Extract(archivePath, destDir string) ([]string, error)
}

// New returns the extractor registered under kind ("native" or "command").
func New(kind string, sudo bool) (Extractor, error) {
	switch kind {
	case "", "native":
		return &RPMExtractor{}, nil
	case "command":
		return &CommandExtractor{Sudo: sudo}, nil
	default:
		return nil, fmt.Errorf("unknown extractor %q", kind)
	}
}

// RPMExtractor expands SRPM payloads in-process.
type RPMExtractor struct{}

func (e *RPMExtractor) Extract(archivePath, destDir string) ([]string, error) {
	log := logger.Logger()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", ErrExtraction, destDir, err)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrExtraction, archivePath, err)
	}
	defer f.Close()

	rpm, err := rpmutils.ReadRpm(f)
	if err != nil {
		log.Debugf("reading rpm header of %s failed: %v", archivePath, err)
		return nil, fmt.Errorf("%w: reading %s: %v", ErrExtraction, archivePath, err)
	}
	if err := rpm.ExpandPayload(destDir); err != nil {
		return nil, fmt.Errorf("%w: expanding %s: %v", ErrExtraction, archivePath, err)
	}

	return NestedArchives(destDir)
}

// CommandExtractor pipes the archive through rpm2cpio and cpio.
type CommandExtractor struct {
	Sudo bool
}

func (e *CommandExtractor) Extract(archivePath, destDir string) ([]string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", ErrExtraction, destDir, err)
	}

	cmd := fmt.Sprintf("rpm2cpio %s | cpio -idm -D %s", shell.Quote(archivePath), shell.Quote(destDir))
	if _, err := shell.ExecCmd(cmd, e.Sudo, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	return NestedArchives(destDir)
}

// NestedArchives lists the top-level entries of dir whose names carry a
// nested tarball suffix, sorted by name.
func NestedArchives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", ErrExtraction, dir, err)
	}

	var found []string
	for _, entry := range entries {
		if entry.IsDir() || !hasNestedSuffix(entry.Name()) {
			continue
		}
		found = append(found, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(found)
	return found, nil
}

func hasNestedSuffix(name string) bool {
	for _, suffix := range NestedSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// UnpackTarball unpacks one nested tarball into destDir.
func UnpackTarball(tarball, destDir string) error {
	if err := compression.ExtractTarball(tarball, destDir); err != nil {
		return fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return nil
}
