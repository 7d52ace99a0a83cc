package repology

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const gccListing = `[
  {"repo": "debian_12", "srcname": "gcc-12", "visiblename": "gcc-12", "version": "12.2.0", "licenses": ["GPL-3.0-or-later"]},
  {"repo": "ubuntu_24_04", "visiblename": "gcc-13", "version": "13.2.0"},
  {"repo": "fedora_40", "visiblename": "gcc", "version": "14.1.1", "licenses": ["GPL-3.0-or-later", "LGPL-2.1-or-later"]},
  {"repo": "Alpine_Edge", "visiblename": "gcc", "version": "14.2.0"},
  {"repo": "freebsd", "visiblename": "gcc14", "version": "14.2.0", "licenses": ["GPLv3"]},
  {"repo": "arch", "visiblename": "gcc", "version": "14.2.1"}
]`

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	c.client = srv.Client()
	return c
}

func TestLookup(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/project/gcc" {
			http.NotFound(w, r)
			return
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "ossa-collector") {
			t.Errorf("unexpected User-Agent %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(gccListing))
	})

	got := c.Lookup(context.Background(), "gcc")
	want := Info{
		Aliases:  []string{"gcc", "gcc-12", "gcc-13"},
		Licenses: []string{"GPL-3.0-or-later", "GPLv3", "LGPL-2.1-or-later"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Lookup() mismatch (-want +got):\n%s", diff)
	}
}

func TestLookupDegradesToEmpty(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"forbidden", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusForbidden) }},
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"not found", func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) }},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"repo":`)) }},
		{"wrong shape", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"repo":"debian"}`)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newServer(t, tt.handler).Lookup(context.Background(), "zlib")
			if len(got.Aliases) != 0 || len(got.Licenses) != 0 {
				t.Errorf("expected empty info, got %+v", got)
			}
			if got.Aliases == nil || got.Licenses == nil {
				t.Error("empty info should carry empty, non-nil slices")
			}
		})
	}
}

func TestCircuitOpensAfterFailures(t *testing.T) {
	var hits int32
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 6; i++ {
		c.Lookup(context.Background(), "zlib")
	}
	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Errorf("expected the breaker to stop after 3 failures, server saw %d requests", n)
	}
}

func TestProjectRejectsEmptyName(t *testing.T) {
	c, err := NewClient("https://repology.org", 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Project(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "repology.org", "://bad"} {
		if _, err := NewClient(u, time.Second); err == nil {
			t.Errorf("NewClient(%q) should fail", u)
		}
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize([]Package{
		{Repo: "EPEL_9", VisibleName: "python3-requests"},
		{Repo: "openwrt_23_05", VisibleName: ""},
		{Repo: "gentoo", VisibleName: "requests", Licenses: []string{" Apache-2.0 ", ""}},
	})
	if diff := cmp.Diff([]string{"python3-requests"}, got.Aliases); diff != "" {
		t.Errorf("aliases (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Apache-2.0"}, got.Licenses); diff != "" {
		t.Errorf("licenses (-want +got):\n%s", diff)
	}
}
