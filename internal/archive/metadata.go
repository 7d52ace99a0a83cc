package archive

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sassoftware/go-rpmutils"
)

// RPMTAG_SOURCE; go-rpmutils has no constant for it.
const tagSource = 1018

// Metadata is what the pipeline needs from a package's descriptor.
type Metadata struct {
	URL      string
	Source0  string
	Licenses []string
}

// Merge fills empty fields of m from other and appends other's licenses.
func (m Metadata) Merge(other Metadata) Metadata {
	if m.URL == "" {
		m.URL = other.URL
	}
	if m.Source0 == "" {
		m.Source0 = other.Source0
	}
	m.Licenses = append(append([]string(nil), m.Licenses...), other.Licenses...)
	return m
}

// ReadMetadata reads License, URL and the first Source entry from an RPM header.
func ReadMetadata(archivePath string) (Metadata, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return Metadata{}, fmt.Errorf("opening %s: %w", archivePath, err)
	}
	defer f.Close()

	hdr, err := rpmutils.ReadHeader(f)
	if err != nil {
		return Metadata{}, fmt.Errorf("reading header of %s: %w", archivePath, err)
	}

	var md Metadata
	if lic, err := hdr.GetString(rpmutils.LICENSE); err == nil && lic != "" {
		md.Licenses = []string{lic}
	}
	if url, err := hdr.GetString(rpmutils.URL); err == nil {
		md.URL = url
	}
	if sources, err := hdr.GetStrings(tagSource); err == nil && len(sources) > 0 {
		md.Source0 = sources[0]
	}
	return md, nil
}

// FindSpec returns the first .spec file at the top level of dir.
func FindSpec(dir string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.spec"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[0], true
}

// ParseSpec reads the URL:, Source0: and License: tags of a spec file. Tag
// names match case-insensitively; a bare Source: stands in for Source0:.
// Every License: line is kept since subpackages may declare their own.
func ParseSpec(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("opening spec %s: %w", path, err)
	}
	defer f.Close()

	var md Metadata
	var bareSource string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		key, value, ok := specTag(scanner.Text())
		if !ok {
			continue
		}
		switch key {
		case "url":
			if md.URL == "" {
				md.URL = value
			}
		case "source0":
			if md.Source0 == "" {
				md.Source0 = value
			}
		case "source":
			if bareSource == "" {
				bareSource = value
			}
		case "license":
			md.Licenses = append(md.Licenses, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return Metadata{}, fmt.Errorf("reading spec %s: %w", path, err)
	}
	if md.Source0 == "" {
		md.Source0 = bareSource
	}
	return md, nil
}

func specTag(line string) (string, string, bool) {
	key, value, found := strings.Cut(line, ":")
	if !found || key == "" || strings.ContainsAny(key, " \t%#") {
		return "", "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", "", false
	}
	return strings.ToLower(key), value, true
}
