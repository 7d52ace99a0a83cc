package source

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	rpmversion "github.com/knqyf263/go-rpm-version"
	"github.com/open-edge-platform/ossa-collector/internal/ospackage"
	"github.com/open-edge-platform/ossa-collector/internal/ospackage/pkgfetcher"
	"github.com/open-edge-platform/ossa-collector/internal/utils/compression"
	"github.com/open-edge-platform/ossa-collector/internal/utils/logger"
	"github.com/open-edge-platform/ossa-collector/internal/utils/network"
)

const repomdPath = "repodata/repomd.xml"

// RepoSource reads a yum/dnf source repository over HTTP. Only the newest
// build of each package name is listed.
type RepoSource struct {
	BaseURL string
	Client  *http.Client
	Workers int

	mu    sync.Mutex
	index map[string]ospackage.PackageInfo
}

// NewRepoSource returns a source for the repository at baseURL. A nil
// client gets a secure default.
func NewRepoSource(baseURL string, client *http.Client, workers int) *RepoSource {
	if client == nil {
		client = network.NewSecureHTTPClient()
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &RepoSource{BaseURL: baseURL, Client: client, Workers: workers}
}

// List downloads repomd.xml and the primary metadata it points at.
func (r *RepoSource) List(ctx context.Context) ([]ospackage.Ref, error) {
	infos, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	refs := make([]ospackage.Ref, 0, len(infos))
	for _, pi := range infos {
		refs = append(refs, pi.Ref())
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

// Info returns the repository metadata for a listed package name.
func (r *RepoSource) Info(ctx context.Context, name string) (ospackage.PackageInfo, bool, error) {
	infos, err := r.load(ctx)
	if err != nil {
		return ospackage.PackageInfo{}, false, err
	}
	pi, ok := infos[name]
	return pi, ok, nil
}

// Retrieve downloads the archive of ref into destDir, verifying the
// sha256 published in the metadata when there is one.
func (r *RepoSource) Retrieve(ctx context.Context, ref ospackage.Ref, destDir string) (string, error) {
	pi, ok, err := r.Info(ctx, ref.Name)
	if err != nil {
		return "", err
	}
	if !ok || pi.Ref().Version != ref.Version {
		return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	paths, err := r.Download(ctx, []ospackage.PackageInfo{pi}, destDir)
	if err != nil {
		return "", err
	}
	return paths[0], nil
}

// Download fetches several archives concurrently with the configured
// worker count. A 404 surfaces as ErrNotFound.
func (r *RepoSource) Download(ctx context.Context, pkgs []ospackage.PackageInfo, destDir string) ([]string, error) {
	jobs := make([]pkgfetcher.Job, 0, len(pkgs))
	for _, pi := range pkgs {
		job := pkgfetcher.Job{URL: pi.URL}
		for _, c := range pi.Checksums {
			if strings.EqualFold(c.Algorithm, "sha256") {
				job.SHA256 = c.Value
			}
		}
		jobs = append(jobs, job)
	}

	paths, err := pkgfetcher.FetchPackages(ctx, r.Client, jobs, destDir, r.Workers)
	var se *pkgfetcher.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return paths, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return paths, err
}

func (r *RepoSource) load(ctx context.Context) (map[string]ospackage.PackageInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index != nil {
		return r.index, nil
	}

	href, err := r.primaryHref(ctx)
	if err != nil {
		return nil, err
	}
	body, err := r.get(ctx, href)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	rc, err := compression.NewReader(body, compression.TypeFromName(href))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", href, err)
	}
	defer rc.Close()

	infos, err := ParsePrimary(rc, r.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", href, err)
	}
	r.index = Newest(infos)
	logger.Logger().Infof("repository %s lists %d source packages", r.BaseURL, len(r.index))
	return r.index, nil
}

func (r *RepoSource) get(ctx context.Context, rel string) (io.ReadCloser, error) {
	u, err := resolve(r.BaseURL, rel)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &pkgfetcher.StatusError{URL: u, Code: resp.StatusCode}
	}
	return resp.Body, nil
}

// primaryHref reads repomd.xml and returns the location of the primary data.
func (r *RepoSource) primaryHref(ctx context.Context) (string, error) {
	body, err := r.get(ctx, repomdPath)
	if err != nil {
		return "", err
	}
	defer body.Close()

	dec := xml.NewDecoder(body)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing %s: %w", repomdPath, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "data" {
			continue
		}
		if attr(se, "type") != "primary" {
			if err := dec.Skip(); err != nil {
				return "", err
			}
			continue
		}
		var data struct {
			Location struct {
				Href string `xml:"href,attr"`
			} `xml:"location"`
		}
		if err := dec.DecodeElement(&data, &se); err != nil {
			return "", fmt.Errorf("parsing %s: %w", repomdPath, err)
		}
		if data.Location.Href != "" {
			return data.Location.Href, nil
		}
	}
	return "", fmt.Errorf("primary location not found in %s", repomdPath)
}

type primaryPackage struct {
	Type    string `xml:"type,attr"`
	Name    string `xml:"name"`
	Arch    string `xml:"arch"`
	Version struct {
		Epoch string `xml:"epoch,attr"`
		Ver   string `xml:"ver,attr"`
		Rel   string `xml:"rel,attr"`
	} `xml:"version"`
	Checksum struct {
		Type  string `xml:"type,attr"`
		Value string `xml:",chardata"`
	} `xml:"checksum"`
	Description string `xml:"description"`
	URL         string `xml:"url"`
	Location    struct {
		Href string `xml:"href,attr"`
	} `xml:"location"`
	Format struct {
		License string `xml:"license"`
	} `xml:"format"`
}

// ParsePrimary streams primary.xml and returns its source packages. Binary
// entries are ignored. Locations are resolved against baseURL.
func ParsePrimary(r io.Reader, baseURL string) ([]ospackage.PackageInfo, error) {
	dec := xml.NewDecoder(r)
	var infos []ospackage.PackageInfo
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return infos, nil
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "package" {
			continue
		}
		var p primaryPackage
		if err := dec.DecodeElement(&p, &se); err != nil {
			return nil, err
		}
		if p.Arch != ospackage.SourceArch || p.Name == "" || p.Location.Href == "" {
			continue
		}
		loc, err := resolve(baseURL, p.Location.Href)
		if err != nil {
			return nil, err
		}
		pi := ospackage.PackageInfo{
			Name:        p.Name,
			Epoch:       p.Version.Epoch,
			Version:     p.Version.Ver,
			Release:     p.Version.Rel,
			Arch:        p.Arch,
			Description: strings.TrimSpace(p.Description),
			License:     strings.TrimSpace(p.Format.License),
			ProjectURL:  strings.TrimSpace(p.URL),
			URL:         loc,
		}
		if p.Checksum.Value != "" {
			pi.Checksums = []ospackage.Checksum{{Algorithm: p.Checksum.Type, Value: strings.TrimSpace(p.Checksum.Value)}}
		}
		infos = append(infos, pi)
	}
}

// Newest keeps the highest epoch:version-release per package name.
func Newest(infos []ospackage.PackageInfo) map[string]ospackage.PackageInfo {
	out := make(map[string]ospackage.PackageInfo, len(infos))
	for _, pi := range infos {
		cur, ok := out[pi.Name]
		v := evr(pi)
		if !ok || v.GreaterThan(evr(cur)) {
			out[pi.Name] = pi
		}
	}
	return out
}

func evr(pi ospackage.PackageInfo) rpmversion.Version {
	s := pi.Version + "-" + pi.Release
	if pi.Epoch != "" {
		s = pi.Epoch + ":" + s
	}
	return rpmversion.NewVersion(s)
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid repository URL %q: %w", base, err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid location %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
