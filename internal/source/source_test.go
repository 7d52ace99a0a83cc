package source

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/open-edge-platform/ossa-collector/internal/config"
)

func writeKey(t *testing.T) string {
	t.Helper()
	e, err := openpgp.NewEntity("ossa test", "", "ossa@example.org", nil)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Serialize(w); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "RPM-GPG-KEY-test")
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNew(t *testing.T) {
	key := writeKey(t)

	tests := []struct {
		name    string
		cfg     config.SourceConfig
		wantErr bool
		check   func(t *testing.T, s Source)
	}{
		{
			name: "dnf",
			cfg:  config.SourceConfig{Mode: config.SourceModeDNF, Sudo: true},
			check: func(t *testing.T, s Source) {
				if d, ok := s.(*DNFSource); !ok || !d.Sudo {
					t.Errorf("got %T %+v", s, s)
				}
			},
		},
		{
			name: "repo",
			cfg:  config.SourceConfig{Mode: config.SourceModeRepo, RepoURL: "https://mirror.example.org/src", Workers: 3},
			check: func(t *testing.T, s Source) {
				r, ok := s.(*RepoSource)
				if !ok || r.BaseURL != "https://mirror.example.org/src/" || r.Workers != 3 {
					t.Errorf("got %T %+v", s, s)
				}
			},
		},
		{
			name: "verified",
			cfg:  config.SourceConfig{Mode: config.SourceModeDNF, VerifySignatures: true, GPGKey: key},
			check: func(t *testing.T, s Source) {
				v, ok := s.(*verifyingSource)
				if !ok || len(v.keyring) != 1 {
					t.Errorf("got %T", s)
				}
			},
		},
		{name: "repo without url", cfg: config.SourceConfig{Mode: config.SourceModeRepo}, wantErr: true},
		{name: "unknown mode", cfg: config.SourceConfig{Mode: "apt"}, wantErr: true},
		{name: "verification without key", cfg: config.SourceConfig{VerifySignatures: true}, wantErr: true},
		{name: "missing key file", cfg: config.SourceConfig{VerifySignatures: true, GPGKey: "/nonexistent/key"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			tt.check(t, s)
		})
	}
}

func TestLoadKeyringRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.asc")
	if err := os.WriteFile(path, []byte("not a key"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadKeyring(path); err == nil {
		t.Fatal("expected error for non-armored key")
	}
}

func TestVerifySignatureRejectsNonRPM(t *testing.T) {
	keyring, err := LoadKeyring(writeKey(t))
	if err != nil {
		t.Fatal(err)
	}
	bogus := filepath.Join(t.TempDir(), "bogus-1.0-1.src.rpm")
	if err := os.WriteFile(bogus, []byte("plain text"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := VerifySignature(bogus, keyring); err == nil {
		t.Fatal("expected verification to fail")
	}
	if err := VerifySignature(filepath.Join(t.TempDir(), "missing.rpm"), keyring); err == nil {
		t.Fatal("expected error for missing file")
	}
}

var _ Source = (*verifyingSource)(nil)
var _ Source = (*RepoSource)(nil)
var _ Source = (*DNFSource)(nil)
