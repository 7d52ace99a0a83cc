// Package advisory assembles and persists OSSA advisory records.
package advisory

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/open-edge-platform/ossa-collector/internal/contentid"
	"github.com/open-edge-platform/ossa-collector/internal/license"
	"github.com/open-edge-platform/ossa-collector/internal/ospackage"
	"github.com/open-edge-platform/ossa-collector/internal/utils/security"
	"github.com/open-edge-platform/ossa-collector/internal/utils/slice"
	"github.com/package-url/packageurl-go"
)

// FuzzyAlgorithm names the similarity digest recorded in fuzzy_hashes.
const FuzzyAlgorithm = "ssdeep"

// Advisory is the persisted record. Field order is the serialized key order.
type Advisory struct {
	ID               string      `json:"id"`
	Version          string      `json:"version"`
	Severity         string      `json:"severity"`
	Title            string      `json:"title"`
	PackageName      string      `json:"package_name"`
	Publisher        string      `json:"publisher"`
	LastUpdated      string      `json:"last_updated"`
	Approvals        []Approval  `json:"approvals"`
	Description      string      `json:"description"`
	Reason           string      `json:"reason"`
	Purls            []string    `json:"purls"`
	Regex            []string    `json:"regex"`
	AffectedVersions []string    `json:"affected_versions"`
	SWHIDs           []string    `json:"swhids"`
	FuzzyHashes      []FuzzyHash `json:"fuzzy_hashes"`
	Artifacts        []Artifact  `json:"artifacts"`
	Licenses         []string    `json:"licenses"`
	Aliases          []string    `json:"aliases"`
	References       []string    `json:"references"`
}

type Approval struct {
	Consumption     bool `json:"consumption"`
	Externalization bool `json:"externalization"`
}

type FuzzyHash struct {
	Algorithm string `json:"algorithm"`
	Hash      string `json:"hash"`
}

// Artifact is one content-addressed source file. Optional identifiers are
// omitted rather than null.
type Artifact struct {
	URL       string `json:"url"`
	Hashes    Hashes `json:"hashes"`
	SWHID     string `json:"swhid"`
	SWHIDDir  string `json:"swhid_dir,omitempty"`
	FuzzyHash string `json:"fuzzy_hash,omitempty"`
}

type Hashes struct {
	SHA256 string `json:"sha256"`
}

// NewArtifact describes the file at path. dirID is empty unless the file is
// a container whose tree was identified.
func NewArtifact(path string, ids contentid.Identifiers, dirID string) Artifact {
	return Artifact{
		URL:       "file://" + filepath.Base(path),
		Hashes:    Hashes{SHA256: ids.SHA256},
		SWHID:     ids.SWHID,
		SWHIDDir:  dirID,
		FuzzyHash: ids.FuzzyHash,
	}
}

// Input is everything the assembler consumes for one package.
type Input struct {
	Package    ospackage.Ref
	Artifacts  []Artifact
	License    license.Result
	Aliases    []string
	References []string
	Publisher  string
	Now        time.Time
}

// ID builds OSSA-<YYYYMMDD>-<NNNN>-<name>. NNNN is the first four bytes of
// sha256(name-version-arch) modulo 10000, so it is stable across processes.
func ID(ref ospackage.Ref, date time.Time) string {
	sum := sha256.Sum256([]byte(ref.Key()))
	disambiguator := binary.BigEndian.Uint32(sum[:4]) % 10000
	return fmt.Sprintf("OSSA-%s-%04d-%s", date.Format("20060102"), disambiguator, ref.Name)
}

// Filename is the lower-cased identifier plus .json.
func Filename(id string) string {
	return strings.ToLower(id) + ".json"
}

// Purl returns the package URL of ref.
func Purl(ref ospackage.Ref) string {
	qualifiers := packageurl.Qualifiers{{Key: "arch", Value: ref.Arch}}
	if ref.Epoch != "" {
		qualifiers = append(qualifiers, packageurl.Qualifier{Key: "epoch", Value: ref.Epoch})
	}
	return packageurl.NewPackageURL(packageurl.TypeRPM, "", ref.Name, ref.Version, qualifiers, "").ToString()
}

// PurlRegex matches every package URL of the named package.
func PurlRegex(name string) string {
	return "^pkg:" + packageurl.TypeRPM + "/" + regexp.QuoteMeta(name) + ".*"
}

// Build assembles the record for in.
func Build(in Input) *Advisory {
	ref := in.Package
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	publisher := in.Publisher
	if publisher == "" {
		publisher = "Generated by OSSA Collector"
	}

	a := &Advisory{
		ID:               ID(ref, now),
		Version:          ref.Version,
		Severity:         in.License.Severity.String(),
		Title:            "Advisory for " + ref.Name,
		PackageName:      ref.Name,
		Publisher:        publisher,
		LastUpdated:      now.UTC().Format(time.RFC3339),
		Approvals:        []Approval{{Consumption: true, Externalization: true}},
		Description:      fmt.Sprintf("Automatically generated OSSA for %s.", ref.Name),
		Reason:           in.License.Reason,
		Purls:            []string{Purl(ref)},
		Regex:            []string{PurlRegex(ref.Name)},
		AffectedVersions: []string{"*.*", ref.Version},
		SWHIDs:           []string{},
		FuzzyHashes:      []FuzzyHash{},
		Artifacts:        append([]Artifact{}, in.Artifacts...),
		Licenses:         append([]string{}, in.License.Licenses...),
		Aliases:          append([]string{}, in.Aliases...),
		References:       []string{},
	}

	for _, art := range a.Artifacts {
		a.SWHIDs = append(a.SWHIDs, art.SWHID)
		if art.SWHIDDir != "" {
			a.SWHIDs = append(a.SWHIDs, art.SWHIDDir)
		}
		if art.FuzzyHash != "" {
			a.FuzzyHashes = append(a.FuzzyHashes, FuzzyHash{Algorithm: FuzzyAlgorithm, Hash: art.FuzzyHash})
		}
	}
	a.SWHIDs = slice.Dedupe(a.SWHIDs)

	for _, r := range in.References {
		if r = strings.TrimSpace(r); r != "" {
			a.References = append(a.References, r)
		}
	}
	a.References = slice.Dedupe(a.References)

	return a
}

// Filename returns the output file name of a.
func (a *Advisory) Filename() string {
	return Filename(a.ID)
}

// Marshal serializes a with four-space indentation and no HTML escaping.
func (a *Advisory) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(a); err != nil {
		return nil, fmt.Errorf("encoding advisory %s: %w", a.ID, err)
	}
	return buf.Bytes(), nil
}

// Write stores a under outputDir and returns the file path.
func (a *Advisory) Write(outputDir string) (string, error) {
	data, err := a.Marshal()
	if err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, a.Filename())
	if err := security.SafeWriteFile(path, data, 0644, security.RejectSymlinks); err != nil {
		return "", fmt.Errorf("writing advisory %s: %w", path, err)
	}
	return path, nil
}
