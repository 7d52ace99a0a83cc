// Package contentid computes the identifiers attached to every source artifact:
// sha1/sha256 digests, the swh:1:cnt content identifier and an ssdeep fuzzy hash.
package contentid

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/glaslos/ssdeep"
	"github.com/open-edge-platform/ossa-collector/internal/utils/logger"
)

// ErrIO is wrapped by every failure to open or read an artifact.
var ErrIO = errors.New("artifact I/O error")

const (
	blockSize = 4096

	// ContentPrefix marks a flat-file identifier.
	ContentPrefix = "swh:1:cnt:"
	// DirectoryPrefix marks a directory tree identifier.
	DirectoryPrefix = "swh:1:dir:"
)

// Identifiers holds everything derived from one artifact's bytes.
type Identifiers struct {
	SHA1      string
	SHA256    string
	FuzzyHash string // empty when ssdeep cannot summarise the input
	SWHID     string
}

// Compute derives all identifiers for the file at path.
func Compute(path string) (Identifiers, error) {
	sha1Hex, sha256Hex, err := Digest(path)
	if err != nil {
		return Identifiers{}, err
	}
	return Identifiers{
		SHA1:      sha1Hex,
		SHA256:    sha256Hex,
		FuzzyHash: FuzzyHash(path),
		SWHID:     ContentID(sha1Hex),
	}, nil
}

// Digest streams path once in fixed-size blocks through sha1 and sha256.
func Digest(path string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("%w: opening %s: %v", ErrIO, path, err)
	}
	defer f.Close()

	h1 := sha1.New()
	h256 := sha256.New()
	w := io.MultiWriter(h1, h256)

	buf := make([]byte, blockSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			// hash.Hash writes never fail
			_, _ = w.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", "", fmt.Errorf("%w: reading %s: %v", ErrIO, path, err)
		}
	}

	return hex.EncodeToString(h1.Sum(nil)), hex.EncodeToString(h256.Sum(nil)), nil
}

// ContentID formats a sha1 hex digest as a content identifier.
func ContentID(sha1Hex string) string {
	return ContentPrefix + sha1Hex
}

// FuzzyHash returns the ssdeep digest of path, or "" when one cannot be
// produced (ssdeep refuses inputs under 4 KiB).
func FuzzyHash(path string) string {
	h, err := ssdeep.FuzzyFilename(path)
	if err != nil {
		logger.Logger().Debugf("no fuzzy hash for %s: %v", path, err)
		return ""
	}
	return h
}

// Similarity scores two fuzzy hashes from 0 (unrelated) to 100 (identical).
func Similarity(a, b string) (int, error) {
	if a == "" || b == "" {
		return 0, fmt.Errorf("fuzzy hash missing")
	}
	return ssdeep.Distance(a, b)
}
