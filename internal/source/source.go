// Package source lists the source packages a distribution publishes and
// retrieves their archives, either through the host package manager or
// straight from a repository's metadata.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-edge-platform/ossa-collector/internal/config"
	"github.com/open-edge-platform/ossa-collector/internal/ospackage"
)

// ErrNotFound is returned when no archive exists for a package.
var ErrNotFound = errors.New("source package not found")

// Lister enumerates the available source packages.
type Lister interface {
	List(ctx context.Context) ([]ospackage.Ref, error)
}

// Retriever places the archive of one source package in destDir and
// returns its path.
type Retriever interface {
	Retrieve(ctx context.Context, ref ospackage.Ref, destDir string) (string, error)
}

// Source is both halves of a package backend.
type Source interface {
	Lister
	Retriever
}

// New builds the backend selected by cfg. When signature verification is
// enabled every retrieved archive is checked against cfg.GPGKey.
func New(cfg config.SourceConfig) (Source, error) {
	var src Source
	switch cfg.Mode {
	case config.SourceModeDNF, "":
		src = &DNFSource{Sudo: cfg.Sudo}
	case config.SourceModeRepo:
		if cfg.RepoURL == "" {
			return nil, fmt.Errorf("repo source needs a repository URL")
		}
		src = NewRepoSource(cfg.RepoURL, nil, cfg.Workers)
	default:
		return nil, fmt.Errorf("unsupported source mode %q", cfg.Mode)
	}

	if !cfg.VerifySignatures {
		return src, nil
	}
	keyring, err := LoadKeyring(cfg.GPGKey)
	if err != nil {
		return nil, err
	}
	return &verifyingSource{Source: src, keyring: keyring}, nil
}
