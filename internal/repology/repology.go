// Package repology queries the Repology project API for the names other
// distributions publish a package under.
package repology

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/open-edge-platform/ossa-collector/internal/config/version"
	"github.com/open-edge-platform/ossa-collector/internal/utils/logger"
	"github.com/open-edge-platform/ossa-collector/internal/utils/network"
	"github.com/sony/gobreaker"
)

// TargetDistros are the repository families whose names count as aliases.
var TargetDistros = []string{"debian", "ubuntu", "raspbian", "alpine", "fedora", "epel", "openwrt", "amazonlinux"}

// maxBody caps how much of a response is decoded.
const maxBody = 16 << 20

// Package is one entry of a project listing.
type Package struct {
	Repo        string   `json:"repo"`
	SrcName     string   `json:"srcname,omitempty"`
	BinName     string   `json:"binname,omitempty"`
	VisibleName string   `json:"visiblename"`
	Version     string   `json:"version"`
	Licenses    []string `json:"licenses,omitempty"`
}

// Info is what the pipeline takes from a lookup.
type Info struct {
	Aliases  []string `json:"aliases"`
	Licenses []string `json:"licenses"`
}

// Client talks to a Repology instance behind a circuit breaker.
type Client struct {
	baseURL *url.URL
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
}

// NewClient returns a client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid lookup base URL %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "repology",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Logger().Warnf("%s lookup circuit %s -> %s", name, from, to)
		},
	})

	return &Client{
		baseURL: u,
		client:  network.NewSecureHTTPClientWithTimeout(timeout),
		cb:      cb,
	}, nil
}

// Lookup returns aliases and licenses for name. Any failure yields an empty
// Info; the cause is only logged.
func (c *Client) Lookup(ctx context.Context, name string) Info {
	pkgs, err := c.Project(ctx, name)
	if err != nil {
		logger.Logger().Warnf("lookup of %s failed: %v", name, err)
		return Info{Aliases: []string{}, Licenses: []string{}}
	}
	return Summarize(pkgs)
}

// Project fetches the raw listing for a project. An unknown project is an
// empty listing, not an error.
func (c *Client) Project(ctx context.Context, name string) ([]Package, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("empty project name")
	}
	endpoint := c.baseURL.JoinPath("api", "v1", "project", name).String()

	res, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", version.Toolname+"/"+version.Version)

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return []Package{}, nil
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("GET %s: unexpected status %d", endpoint, resp.StatusCode)
		}

		var pkgs []Package
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&pkgs); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", endpoint, err)
		}
		return pkgs, nil
	})
	if err != nil {
		return nil, err
	}
	pkgs, ok := res.([]Package)
	if !ok {
		return nil, fmt.Errorf("unexpected response type %T", res)
	}
	return pkgs, nil
}

// Summarize keeps the visible names of entries from target distributions
// and the licenses of every entry, both sorted and de-duplicated.
func Summarize(pkgs []Package) Info {
	aliases := map[string]struct{}{}
	licenses := map[string]struct{}{}
	for _, p := range pkgs {
		for _, l := range p.Licenses {
			if l = strings.TrimSpace(l); l != "" {
				licenses[l] = struct{}{}
			}
		}
		if p.VisibleName == "" || !isTarget(p.Repo) {
			continue
		}
		aliases[p.VisibleName] = struct{}{}
	}
	return Info{Aliases: sortedKeys(aliases), Licenses: sortedKeys(licenses)}
}

func isTarget(repo string) bool {
	repo = strings.ToLower(repo)
	for _, d := range TargetDistros {
		if strings.Contains(repo, d) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
