// Package pipeline turns source packages into advisory records, one
// package at a time, isolating each package's failures from the rest.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/open-edge-platform/ossa-collector/internal/advisory"
	"github.com/open-edge-platform/ossa-collector/internal/alias"
	"github.com/open-edge-platform/ossa-collector/internal/archive"
	"github.com/open-edge-platform/ossa-collector/internal/config/validate"
	"github.com/open-edge-platform/ossa-collector/internal/contentid"
	"github.com/open-edge-platform/ossa-collector/internal/license"
	"github.com/open-edge-platform/ossa-collector/internal/ospackage"
	"github.com/open-edge-platform/ossa-collector/internal/repology"
	"github.com/open-edge-platform/ossa-collector/internal/source"
	"github.com/open-edge-platform/ossa-collector/internal/swhid"
	fileutil "github.com/open-edge-platform/ossa-collector/internal/utils/file"
	"github.com/open-edge-platform/ossa-collector/internal/utils/logger"
	"github.com/open-edge-platform/ossa-collector/internal/workspace"
	"go.uber.org/zap"
)

// Lookup supplies aliases and fallback licenses from an external service.
// Implementations must not fail; an empty Info means nothing was found.
type Lookup interface {
	Lookup(ctx context.Context, name string) repology.Info
}

// Driver wires the pipeline stages together. Lookup may be nil.
type Driver struct {
	Lister     source.Lister
	Retriever  source.Retriever
	Extractor  archive.Extractor
	Resolver   swhid.Resolver
	Classifier *license.Classifier
	Lookup     Lookup
	Workspace  *workspace.Workspace

	OutputDir      string
	Publisher      string
	ValidateOutput bool

	// Now stamps records; tests pin it.
	Now func() time.Time

	runID string
}

// RunID identifies the current run in log lines.
func (d *Driver) RunID() string { return d.runID }

// Run processes the named packages, or every listed package when names is
// empty. A name matches a listed package by plain name or by its full
// name-version-release.src form. Only an unusable output directory or
// workspace aborts the run; cancellation stops it between packages.
func (d *Driver) Run(ctx context.Context, names []string) ([]Result, error) {
	d.runID = uuid.NewString()
	log := logger.With("run", d.runID)

	if err := fileutil.EnsureDir(d.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("output directory %s is not usable: %w", d.OutputDir, err)
	}
	if err := d.Workspace.Reset(); err != nil {
		return nil, fmt.Errorf("resetting workspace: %w", err)
	}

	refs, err := d.Lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing source packages: %w", err)
	}
	refs, missing := ospackage.Select(refs, names)
	log.Infof("processing %d source packages", len(refs))

	results := make([]Result, 0, len(refs)+len(missing))
	for _, name := range missing {
		log.Warnw("package not in listing", "package", name)
		results = append(results, Result{
			Package: ospackage.Ref{Name: name, Arch: ospackage.SourceArch},
			State:   Skipped,
			Step:    Retrieving,
			Reason:  source.ErrNotFound.Error(),
		})
	}

	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			log.Warnf("run cancelled with %d packages left", len(refs)-i)
			return results, err
		}
		results = append(results, d.Process(ctx, ref))
	}

	s := Summarize(results)
	log.Infof("run finished: %d written, %d skipped", s.Written, s.Skipped)
	return results, nil
}

// Process runs one package through every stage. The workspace is purged
// before it returns, whatever the outcome.
func (d *Driver) Process(ctx context.Context, ref ospackage.Ref) Result {
	log := logger.With("package", ref.String(), "run", d.runID)
	res := Result{Package: ref, State: Listed}

	defer func() {
		if err := d.Workspace.Purge(); err != nil {
			log.Warnf("cleanup failed: %v", err)
		}
	}()

	skip := func(step State, err error) Result {
		log.Warnf("skipped at %s: %v", step, err)
		res.State = Skipped
		res.Step = step
		res.Reason = err.Error()
		return res
	}

	res.State = Retrieving
	archivePath, err := d.Retriever.Retrieve(ctx, ref, d.Workspace.Dir(workspace.Packages))
	if err != nil {
		return skip(Retrieving, err)
	}

	res.State = Extracting
	tarballs, err := d.Extractor.Extract(archivePath, d.Workspace.Dir(workspace.Sources))
	if err != nil {
		return skip(Extracting, err)
	}
	md := d.metadata(log, archivePath)

	res.State = Addressing
	artifacts, err := d.address(log, archivePath, tarballs)
	if err != nil {
		return skip(Addressing, err)
	}

	res.State = Classifying
	var info repology.Info
	if d.Lookup != nil {
		info = d.Lookup.Lookup(ctx, ref.Name)
	}
	decls := md.Licenses
	if len(decls) == 0 && len(info.Licenses) > 0 {
		log.Infof("no license declared, using %d from lookup", len(info.Licenses))
		decls = info.Licenses
	}
	lic := d.Classifier.Classify(decls)
	aliases := alias.Merge(alias.Derive(ref.Name), info.Aliases)

	res.State = Assembling
	now := time.Now()
	if d.Now != nil {
		now = d.Now()
	}
	adv := advisory.Build(advisory.Input{
		Package:    ref,
		Artifacts:  artifacts,
		License:    lic,
		Aliases:    aliases,
		References: references(md),
		Publisher:  d.Publisher,
		Now:        now,
	})
	out, err := adv.Write(d.OutputDir)
	if err != nil {
		return skip(Assembling, err)
	}

	res.State = Written
	res.AdvisoryID = adv.ID
	res.Output = out
	log.Infof("wrote %s (severity %s)", filepath.Base(out), adv.Severity)

	if d.ValidateOutput {
		if err := validateRecord(adv); err != nil {
			log.Errorf("advisory fails schema validation: %v", err)
			res.Reason = "schema: " + err.Error()
		}
	}
	return res
}

// metadata collects URL, Source0 and License from the spec file, falling
// back to the archive header for anything the spec leaves empty.
func (d *Driver) metadata(log *zap.SugaredLogger, archivePath string) archive.Metadata {
	var md archive.Metadata

	if spec, ok := archive.FindSpec(d.Workspace.Dir(workspace.Sources)); ok {
		moved := filepath.Join(d.Workspace.Dir(workspace.Specs), filepath.Base(spec))
		if err := os.Rename(spec, moved); err != nil {
			log.Debugf("keeping spec in place: %v", err)
			moved = spec
		}
		parsed, err := archive.ParseSpec(moved)
		if err != nil {
			log.Warnf("reading spec failed: %v", err)
		}
		md = parsed
	} else {
		log.Debugf("no spec file in payload")
	}

	hdr, err := archive.ReadMetadata(archivePath)
	if err != nil {
		log.Debugf("archive header unavailable: %v", err)
		return md
	}
	if len(md.Licenses) > 0 {
		hdr.Licenses = nil
	}
	return md.Merge(hdr)
}

// address identifies the archive and every nested tarball. The archive
// must be readable; a tarball that is not is left out.
func (d *Driver) address(log *zap.SugaredLogger, archivePath string, tarballs []string) ([]advisory.Artifact, error) {
	ids, err := contentid.Compute(archivePath)
	if err != nil {
		return nil, err
	}
	artifacts := []advisory.Artifact{advisory.NewArtifact(archivePath, ids, "")}

	for _, tb := range tarballs {
		ids, err := contentid.Compute(tb)
		if err != nil {
			log.Warnf("addressing %s failed: %v", filepath.Base(tb), err)
			continue
		}
		artifacts = append(artifacts, advisory.NewArtifact(tb, ids, d.identifyTree(log, tb)))
	}
	return artifacts, nil
}

// identifyTree unpacks tb and returns its directory identifier, or "" when
// unpacking or identification fails.
func (d *Driver) identifyTree(log *zap.SugaredLogger, tb string) string {
	if d.Resolver == nil {
		return ""
	}
	dir, err := d.Workspace.TreeDir(tb)
	if err != nil {
		log.Warnf("no tree directory for %s: %v", filepath.Base(tb), err)
		return ""
	}
	if err := archive.UnpackTarball(tb, dir); err != nil {
		log.Warnf("unpacking %s failed: %v", filepath.Base(tb), err)
		return ""
	}
	id, ok := d.Resolver.Identify(dir)
	if !ok {
		log.Debugf("no directory identifier for %s", filepath.Base(tb))
		return ""
	}
	return id
}

func references(md archive.Metadata) []string {
	var refs []string
	if md.URL != "" {
		refs = append(refs, md.URL)
	}
	if isURL(md.Source0) {
		refs = append(refs, md.Source0)
	}
	return refs
}

func isURL(s string) bool {
	for _, scheme := range []string{"https://", "http://", "ftp://"} {
		if strings.HasPrefix(s, scheme) {
			return true
		}
	}
	return false
}

func validateRecord(adv *advisory.Advisory) error {
	data, err := adv.Marshal()
	if err != nil {
		return err
	}
	if err := validate.ValidateAdvisoryJSON(data); err != nil {
		if msg := validate.FirstError(err); msg != "" {
			return errors.New(msg)
		}
		return err
	}
	return nil
}
