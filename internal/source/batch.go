package source

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/open-edge-platform/ossa-collector/internal/ospackage"
)

// BatchRetriever fetches several archives in one go. Paths come back in
// ref order; a failed ref leaves an empty path.
type BatchRetriever interface {
	RetrieveAll(ctx context.Context, refs []ospackage.Ref, destDir string) ([]string, error)
}

// RetrieveAll uses r's batch support when it has any and falls back to
// one Retrieve per ref otherwise. Failures are joined.
func RetrieveAll(ctx context.Context, r Retriever, refs []ospackage.Ref, destDir string) ([]string, error) {
	if b, ok := r.(BatchRetriever); ok {
		return b.RetrieveAll(ctx, refs, destDir)
	}
	paths := make([]string, len(refs))
	var errs []error
	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			return paths, errors.Join(append(errs, err)...)
		}
		p, err := r.Retrieve(ctx, ref, destDir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		paths[i] = p
	}
	return paths, errors.Join(errs...)
}

// RetrieveAll downloads every listed ref concurrently. Refs the repository
// does not list fail with ErrNotFound without stopping the others.
func (r *RepoSource) RetrieveAll(ctx context.Context, refs []ospackage.Ref, destDir string) ([]string, error) {
	paths := make([]string, len(refs))
	var (
		errs    []error
		pkgs    []ospackage.PackageInfo
		indexes []int
	)
	for i, ref := range refs {
		pi, ok, err := r.Info(ctx, ref.Name)
		if err != nil {
			return nil, err
		}
		if !ok || pi.Ref().Version != ref.Version {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNotFound, ref))
			continue
		}
		pkgs = append(pkgs, pi)
		indexes = append(indexes, i)
	}

	if len(pkgs) == 0 {
		return paths, errors.Join(errs...)
	}
	got, err := r.Download(ctx, pkgs, destDir)
	for j, i := range indexes {
		if j < len(got) {
			paths[i] = got[j]
		}
	}
	if err != nil {
		errs = append(errs, err)
	}
	return paths, errors.Join(errs...)
}

// RetrieveAll verifies every archive the wrapped source produced and
// blanks the paths of those that fail.
func (v *verifyingSource) RetrieveAll(ctx context.Context, refs []ospackage.Ref, destDir string) ([]string, error) {
	paths, err := RetrieveAll(ctx, v.Source, refs, destDir)
	errs := []error{err}
	for i, p := range paths {
		if p == "" {
			continue
		}
		if verr := VerifySignature(p, v.keyring); verr != nil {
			_ = os.Remove(p)
			paths[i] = ""
			errs = append(errs, fmt.Errorf("%s: %w", refs[i], verr))
		}
	}
	return paths, errors.Join(errs...)
}
