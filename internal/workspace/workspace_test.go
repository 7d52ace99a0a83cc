package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func populate(t *testing.T, ws *Workspace) {
	t.Helper()
	files := map[string]string{
		filepath.Join(ws.Dir(Packages), "bash-5.2-1.src.rpm"):           "rpm",
		filepath.Join(ws.Dir(Specs), "bash.spec"):                       "spec",
		filepath.Join(ws.Dir(Sources), "bash-5.2.tar.gz"):               "tar",
		filepath.Join(ws.Dir(Trees), "bash-5.2", "bash-5.2", "shell.c"): "c",
	}
	for path, content := range files {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestNew(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty root")
	}
	if _, err := New("/"); err == nil {
		t.Error("expected error for filesystem root")
	}
	ws, err := New("relative/work")
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(ws.Root()) {
		t.Errorf("Root() = %q, want absolute", ws.Root())
	}
}

func TestResetIsIdempotentAndClearsResidue(t *testing.T) {
	root := t.TempDir()
	ws, err := New(root)
	if err != nil {
		t.Fatal(err)
	}

	// residue from a killed run, including a stray file at the root
	populate(t, ws)
	if err := os.WriteFile(filepath.Join(root, "stray.lock"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := ws.Reset(); err != nil {
			t.Fatalf("Reset() #%d error = %v", i+1, err)
		}
		left, err := ws.Residue()
		if err != nil {
			t.Fatal(err)
		}
		if len(left) != 0 {
			t.Errorf("Reset() #%d left %v", i+1, left)
		}
		for _, role := range Roles {
			if info, err := os.Stat(ws.Dir(role)); err != nil || !info.IsDir() {
				t.Errorf("role directory %s missing after reset", role)
			}
		}
	}
	if _, err := os.Stat(filepath.Join(root, "stray.lock")); !os.IsNotExist(err) {
		t.Error("stray file survived reset")
	}
}

func TestPurge(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.Reset(); err != nil {
		t.Fatal(err)
	}
	populate(t, ws)

	before, _ := ws.Residue()
	if len(before) != 4 {
		t.Fatalf("expected 4 entries before purge, got %v", before)
	}

	if err := ws.Purge(); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if left, _ := ws.Residue(); len(left) != 0 {
		t.Errorf("Purge() left %v", left)
	}
	// second purge on an empty workspace is a no-op
	if err := ws.Purge(); err != nil {
		t.Fatalf("second Purge() error = %v", err)
	}
}

func TestPurgeWithoutReset(t *testing.T) {
	ws, err := New(filepath.Join(t.TempDir(), "never-created"))
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.Purge(); err != nil {
		t.Fatalf("Purge() on missing workspace should succeed: %v", err)
	}
}

func TestTreeDir(t *testing.T) {
	root := t.TempDir()
	ws, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	trees := filepath.Join(root, Trees)
	tests := map[string]string{
		"/work/sources/zlib-1.3.1.tar.xz": filepath.Join(trees, "zlib-1.3.1.tar.xz"),
		"zlib-1.3.1.tar.gz":               filepath.Join(trees, "zlib-1.3.1.tar.gz"),
		"pkg.tgz":                         filepath.Join(trees, "pkg.tgz"),
	}
	for in, want := range tests {
		got, err := ws.TreeDir(in)
		if err != nil || got != want {
			t.Errorf("TreeDir(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"..", "/"} {
		if _, err := ws.TreeDir(bad); err == nil {
			t.Errorf("TreeDir(%q): expected error", bad)
		}
	}
}

func TestTreeDirStartsEmpty(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.Reset(); err != nil {
		t.Fatal(err)
	}
	dir, err := ws.TreeDir("foo-1.0.tar.gz")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stale"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	again, err := ws.TreeDir("foo-1.0.tar.gz")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(again, "stale")); !os.IsNotExist(err) {
		t.Error("TreeDir should hand back an empty directory")
	}
	other, err := ws.TreeDir("foo-1.0.tar.xz")
	if err != nil {
		t.Fatal(err)
	}
	if other == again {
		t.Errorf("tarballs differing in compression share %s", other)
	}
}

func TestClean(t *testing.T) {
	root := t.TempDir()
	work := filepath.Join(root, "work")
	out := filepath.Join(root, "out")
	ws, _ := New(work)
	if err := ws.Reset(); err != nil {
		t.Fatal(err)
	}
	populate(t, ws)
	if err := os.RemoveAll(ws.Dir(Trees)); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(out, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"ossa-20261015-1840-zlib.json", "notes.txt", "ossa-readme.md"} {
		if err := os.WriteFile(filepath.Join(out, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	opts := CleanOptions{WorkDir: work, OutputDir: out, CleanWorkspace: true, CleanOutput: true, DryRun: true}
	dry, err := Clean(opts)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	wantRemoved := []string{
		filepath.Join(out, "ossa-20261015-1840-zlib.json"),
		ws.Dir(Packages),
		ws.Dir(Sources),
		ws.Dir(Specs),
	}
	if diff := cmp.Diff(wantRemoved, dry.RemovedPaths); diff != "" {
		t.Errorf("RemovedPaths mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{ws.Dir(Trees)}, dry.SkippedPaths); diff != "" {
		t.Errorf("SkippedPaths mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(ws.Dir(Packages)); err != nil {
		t.Fatal("dry run must not delete anything")
	}

	opts.DryRun = false
	if _, err := Clean(opts); err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	for _, path := range wantRemoved {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s still exists", path)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "notes.txt")); err != nil {
		t.Error("unrelated output file was removed")
	}

	if _, err := Clean(CleanOptions{WorkDir: work}); err == nil {
		t.Error("expected error when no scope is selected")
	}
}
