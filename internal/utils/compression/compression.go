package compression

import (
	"archive/tar"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/open-edge-platform/ossa-collector/internal/utils/file"
	"github.com/open-edge-platform/ossa-collector/internal/utils/logger"
	"github.com/ulikunitz/xz"
)

// Compression types understood by NewReader.
const (
	Gzip  = "gz"
	Xz    = "xz"
	Bzip2 = "bz2"
	Zstd  = "zstd"
	None  = ""
)

// ErrUnsafePath is returned when an archive entry would land outside the destination.
var ErrUnsafePath = errors.New("archive entry escapes destination")

var tarballSuffixes = []struct {
	suffix string
	kind   string
}{
	{".tar.gz", Gzip},
	{".tgz", Gzip},
	{".tar.xz", Xz},
	{".txz", Xz},
	{".tar.bz2", Bzip2},
	{".tbz2", Bzip2},
	{".tar.zst", Zstd},
	{".tar", None},
}

// TarballType returns the compression type of a tarball name and whether the
// name looks like a tarball at all.
func TarballType(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, s := range tarballSuffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.kind, true
		}
	}
	return "", false
}

// TypeFromName maps a single-file suffix (primary.xml.gz, .zst, ...) to a compression type.
func TypeFromName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".tgz":
		return Gzip
	case ".xz", ".txz":
		return Xz
	case ".bz2", ".tbz2":
		return Bzip2
	case ".zst", ".zstd":
		return Zstd
	}
	return None
}

type nopCloser struct{ io.Reader }

func (nopCloser) Close() error { return nil }

type zstdCloser struct{ *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// NewReader wraps r with a decompressor for kind. The caller closes the result;
// closing does not close r.
func NewReader(r io.Reader, kind string) (io.ReadCloser, error) {
	switch kind {
	case Gzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		return gz, nil
	case Xz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("creating xz reader: %w", err)
		}
		return nopCloser{xr}, nil
	case Bzip2:
		return nopCloser{bzip2.NewReader(r)}, nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		return zstdCloser{zr}, nil
	case None:
		return nopCloser{r}, nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", kind)
	}
}

// DecompressFile decompresses src into dst using kind.
func DecompressFile(src, dst, kind string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	r, err := NewReader(in, kind)
	if err != nil {
		return err
	}
	defer r.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("decompressing %s: %w", src, err)
	}
	return out.Close()
}

// ExtractTarball unpacks a (possibly compressed) tarball into destDir.
// Entries that would escape destDir, directly or through a symlink created
// earlier in the same archive, are rejected with ErrUnsafePath.
func ExtractTarball(archivePath, destDir string) error {
	log := logger.Logger()

	kind, ok := TarballType(archivePath)
	if !ok {
		return fmt.Errorf("not a recognised tarball: %s", archivePath)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", archivePath, err)
	}
	defer f.Close()

	r, err := NewReader(f, kind)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := file.EnsureDir(destDir, 0755); err != nil {
		return err
	}

	destDir = filepath.Clean(destDir)
	links := map[string]struct{}{}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", archivePath, err)
		}

		target, err := safeJoin(destDir, hdr.Name, links)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("creating %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := refuseSymlink(target, hdr.Name); err != nil {
				return err
			}
			if err := writeEntry(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
			}
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("creating symlink %s: %w", target, err)
			}
			links[target] = struct{}{}
		case tar.TypeLink:
			src, err := safeJoin(destDir, hdr.Linkname, links)
			if err != nil {
				return err
			}
			if err := refuseSymlink(target, hdr.Name); err != nil {
				return err
			}
			_ = os.Remove(target)
			if err := os.Link(src, target); err != nil {
				return fmt.Errorf("creating hard link %s: %w", target, err)
			}
		default:
			// pax headers, devices and fifos carry nothing worth hashing
			log.Debugf("skipping tar entry %s (type %c)", hdr.Name, hdr.Typeflag)
		}
	}
	return nil
}

func writeEntry(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}
	if perm&0600 != 0600 {
		perm |= 0600
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return out.Close()
}

// refuseSymlink fails when target already exists as a symlink, so that a
// regular or hard-linked entry never writes through it.
func refuseSymlink(target, name string) error {
	fi, err := os.Lstat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("checking %s: %w", target, err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("%w: %s overwrites symlink", ErrUnsafePath, name)
	}
	return nil
}

func safeJoin(destDir, name string, links map[string]struct{}) (string, error) {
	target := filepath.Join(destDir, name)
	ok, err := file.IsSubPath(destDir, target)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	for dir := filepath.Dir(target); dir != destDir && len(dir) > len(destDir); dir = filepath.Dir(dir) {
		if _, isLink := links[dir]; isLink {
			return "", fmt.Errorf("%w: %s traverses symlink", ErrUnsafePath, name)
		}
	}
	return target, nil
}
