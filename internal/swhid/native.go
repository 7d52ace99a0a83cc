package swhid

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/open-edge-platform/ossa-collector/internal/utils/logger"
)

const (
	modeFile       = "100644"
	modeExecutable = "100755"
	modeSymlink    = "120000"
	modeDir        = "40000"
)

// NativeResolver computes SWHID v1 directory identifiers in-process, hashing
// the tree the same way git hashes tree objects.
type NativeResolver struct{}

func (NativeResolver) Identify(dir string) (string, bool) {
	sum, err := HashDir(dir)
	if err != nil {
		logger.Logger().Warnf("directory identification of %s failed: %v", dir, err)
		return "", false
	}
	return DirPrefix + hex.EncodeToString(sum), true
}

type treeEntry struct {
	mode string
	name string
	sum  []byte
}

// sortKey orders entries the way git does: directories compare as if their
// name ended in '/'.
func (e treeEntry) sortKey() string {
	if e.mode == modeDir {
		return e.name + "/"
	}
	return e.name
}

// HashDir returns the raw tree hash of dir.
func HashDir(dir string) ([]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	tree := make([]treeEntry, 0, len(entries))
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		info, err := os.Lstat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		var te treeEntry
		switch mode := info.Mode(); {
		case mode.IsDir():
			sum, err := HashDir(path)
			if err != nil {
				return nil, err
			}
			te = treeEntry{mode: modeDir, sum: sum}
		case mode&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return nil, fmt.Errorf("readlink %s: %w", path, err)
			}
			te = treeEntry{mode: modeSymlink, sum: hashBytes("blob", []byte(target))}
		case mode.IsRegular():
			sum, err := hashBlobFile(path, info.Size())
			if err != nil {
				return nil, err
			}
			te = treeEntry{mode: modeFile, sum: sum}
			if mode.Perm()&0111 != 0 {
				te.mode = modeExecutable
			}
		default:
			// sockets, fifos and devices have no place in a source tree
			continue
		}
		te.name = entry.Name()
		tree = append(tree, te)
	}

	sort.Slice(tree, func(i, j int) bool { return tree[i].sortKey() < tree[j].sortKey() })

	var buf bytes.Buffer
	for _, te := range tree {
		buf.WriteString(te.mode)
		buf.WriteByte(' ')
		buf.WriteString(te.name)
		buf.WriteByte(0)
		buf.Write(te.sum)
	}
	return hashBytes("tree", buf.Bytes()), nil
}

func objectHasher(kind string, size int64) hash.Hash {
	h := sha1.New()
	fmt.Fprintf(h, "%s %d\x00", kind, size)
	return h
}

func hashBytes(kind string, data []byte) []byte {
	h := objectHasher(kind, int64(len(data)))
	h.Write(data)
	return h.Sum(nil)
}

func hashBlobFile(path string, size int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := objectHasher("blob", size)
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if n != size {
		return nil, fmt.Errorf("%s changed while hashing", path)
	}
	return h.Sum(nil), nil
}
