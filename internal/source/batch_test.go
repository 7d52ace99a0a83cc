package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/open-edge-platform/ossa-collector/internal/ospackage"
)

type loopRetriever struct {
	missing string
	calls   int
}

func (l *loopRetriever) Retrieve(_ context.Context, ref ospackage.Ref, destDir string) (string, error) {
	l.calls++
	if ref.Name == l.missing {
		return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	path := filepath.Join(destDir, ref.String()+".rpm")
	return path, os.WriteFile(path, []byte("x"), 0600)
}

func TestRetrieveAllFallsBackToLoop(t *testing.T) {
	refs := []ospackage.Ref{
		{Name: "a", Version: "1-1", Arch: "src"},
		{Name: "b", Version: "1-1", Arch: "src"},
		{Name: "c", Version: "1-1", Arch: "src"},
	}
	r := &loopRetriever{missing: "b"}
	dest := t.TempDir()

	paths, err := RetrieveAll(context.Background(), r, refs, dest)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if r.calls != 3 {
		t.Errorf("calls = %d, want 3", r.calls)
	}
	if paths[0] == "" || paths[1] != "" || paths[2] == "" {
		t.Errorf("paths = %q", paths)
	}
}

func TestRetrieveAllStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &loopRetriever{}
	_, err := RetrieveAll(ctx, r, []ospackage.Ref{{Name: "a", Version: "1-1", Arch: "src"}}, t.TempDir())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if r.calls != 0 {
		t.Errorf("no retrieval should start after cancellation, got %d", r.calls)
	}
}

func TestRepoSourceRetrieveAll(t *testing.T) {
	srv := newRepo(t)
	src := NewRepoSource(srv.URL+"/fedora", srv.Client(), 2)
	dest := t.TempDir()

	refs := []ospackage.Ref{
		{Name: "ghost", Version: "1-1", Arch: "src"},
		{Name: "zlib", Version: "1.3.1-1.fc41", Arch: "src"},
		{Name: "zlib", Version: "1.3-1.fc41", Arch: "src"},
	}
	paths, err := RetrieveAll(context.Background(), src, refs, dest)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown refs, got %v", err)
	}
	if paths[0] != "" || paths[2] != "" {
		t.Errorf("unknown refs should have no path: %q", paths)
	}
	want := filepath.Join(dest, "zlib-1.3.1-1.fc41.src.rpm")
	if paths[1] != want {
		t.Errorf("paths[1] = %q, want %q", paths[1], want)
	}
	data, err := os.ReadFile(want)
	if err != nil || string(data) != zlibPayload {
		t.Errorf("downloaded content = %q, %v", data, err)
	}
}
