package ospackage

import (
	"fmt"
	"strings"
)

// SourceArch is the architecture of every package the pipeline handles.
const SourceArch = "src"

// Ref identifies one source package. It is immutable once parsed.
type Ref struct {
	Name    string // e.g. "bash"
	Epoch   string // e.g. "1"; empty when the listing carries none or 0
	Version string // version-release, e.g. "5.2.26-3.fc40"
	Arch    string // always "src"
}

// Key returns "name-version-arch", the string advisory identifiers derive from.
func (r Ref) Key() string {
	return r.Name + "-" + r.Version + "-" + r.Arch
}

func (r Ref) String() string {
	return r.Name + "-" + r.Version + "." + r.Arch
}

// ParseSourceLine parses one package-manager listing line of the form
// name-[epoch:]version-release.src, splitting from the right so that
// hyphenated names survive. A trailing ".rpm" is accepted.
func ParseSourceLine(line string) (Ref, error) {
	line = strings.TrimSpace(line)
	trimmed := strings.TrimSuffix(strings.TrimSuffix(line, ".rpm"), "."+SourceArch)
	if trimmed == line || trimmed == strings.TrimSuffix(line, ".rpm") {
		return Ref{}, fmt.Errorf("not a source package line: %q", line)
	}

	relIdx := strings.LastIndex(trimmed, "-")
	if relIdx <= 0 {
		return Ref{}, fmt.Errorf("malformed package line: %q", line)
	}
	verIdx := strings.LastIndex(trimmed[:relIdx], "-")
	if verIdx <= 0 {
		return Ref{}, fmt.Errorf("malformed package line: %q", line)
	}

	name := trimmed[:verIdx]
	version := trimmed[verIdx+1 : relIdx]
	release := trimmed[relIdx+1:]
	if version == "" || release == "" {
		return Ref{}, fmt.Errorf("malformed package line: %q", line)
	}

	var epoch string
	if e, v, found := strings.Cut(version, ":"); found {
		if v == "" {
			return Ref{}, fmt.Errorf("malformed package line: %q", line)
		}
		version = v
		if e != "0" {
			epoch = e
		}
	}

	return Ref{Name: name, Epoch: epoch, Version: version + "-" + release, Arch: SourceArch}, nil
}

// PackageInfo describes a source package as published in repository metadata.
type PackageInfo struct {
	Name        string // e.g. "abseil-cpp"
	Epoch       string
	Version     string // upstream version, e.g. "20240116.2"
	Release     string // e.g. "2.fc41"
	Arch        string // "src" for source packages
	Description string
	License     string // raw declaration, e.g. "ASL 2.0"
	ProjectURL  string // upstream home page
	URL         string // download URL of the .src.rpm
	Checksums   []Checksum
}

// Checksum holds the algorithm and value of a checksum.
type Checksum struct {
	Algorithm string
	Value     string
}

// Ref converts repository metadata into a pipeline package reference.
func (p PackageInfo) Ref() Ref {
	epoch := p.Epoch
	if epoch == "0" {
		epoch = ""
	}
	return Ref{Name: p.Name, Epoch: epoch, Version: p.Version + "-" + p.Release, Arch: SourceArch}
}

// Select keeps the refs named in names, in listing order, and
// reports the names nothing matched. An empty names keeps everything.
func Select(refs []Ref, names []string) ([]Ref, []string) {
	if len(names) == 0 {
		return refs, nil
	}
	matched := make(map[string]bool, len(names))
	var out []Ref
	for _, ref := range refs {
		hit := false
		for _, n := range names {
			if n == ref.Name || n == ref.String() {
				matched[n] = true
				hit = true
			}
		}
		if hit {
			out = append(out, ref)
		}
	}
	var missing []string
	for _, n := range names {
		if !matched[n] {
			missing = append(missing, n)
		}
	}
	return out, missing
}
