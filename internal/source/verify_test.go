package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/open-edge-platform/ossa-collector/internal/ospackage"
	"github.com/open-edge-platform/ossa-collector/internal/ospackage/srpmtest"
)

func newSigner(t *testing.T, name string) *openpgp.Entity {
	t.Helper()
	e, err := openpgp.NewEntity(name, "", name+"@example.org", nil)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestVerifySignature(t *testing.T) {
	trusted := newSigner(t, "packager")
	stranger := newSigner(t, "stranger")
	keyring := openpgp.EntityList{trusted}

	signedBy := func(e *openpgp.Entity) []byte {
		p := srpmtest.Demo(t)
		p.Signer = e
		return srpmtest.Build(t, p)
	}

	tests := []struct {
		name    string
		rpm     func() []byte
		wantErr bool
	}{
		{
			name: "trusted signer",
			rpm:  func() []byte { return signedBy(trusted) },
		},
		{
			name:    "unknown signer",
			rpm:     func() []byte { return signedBy(stranger) },
			wantErr: true,
		},
		{
			name:    "unsigned",
			rpm:     func() []byte { return srpmtest.Build(t, srpmtest.Demo(t)) },
			wantErr: true,
		},
		{
			name: "payload altered after signing",
			rpm: func() []byte {
				data := signedBy(trusted)
				data[len(data)-1] ^= 0xff
				return data
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "demo-1.0-1.src.rpm")
			if err := os.WriteFile(path, tt.rpm(), 0600); err != nil {
				t.Fatal(err)
			}
			err := VerifySignature(path, keyring)
			if (err != nil) != tt.wantErr {
				t.Fatalf("VerifySignature() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// fileSource serves prebuilt archives by package name.
type fileSource struct {
	archives map[string][]byte
}

func (f fileSource) List(context.Context) ([]ospackage.Ref, error) { return nil, nil }

func (f fileSource) Retrieve(_ context.Context, ref ospackage.Ref, destDir string) (string, error) {
	path := filepath.Join(destDir, ref.String()+".rpm")
	return path, os.WriteFile(path, f.archives[ref.Name], 0600)
}

func TestVerifyingSourceRetrieve(t *testing.T) {
	trusted := newSigner(t, "packager")
	signed := srpmtest.Demo(t)
	signed.Signer = trusted

	v := &verifyingSource{
		Source: fileSource{archives: map[string][]byte{
			"good": srpmtest.Build(t, signed),
			"bad":  srpmtest.Build(t, srpmtest.Demo(t)),
		}},
		keyring: openpgp.EntityList{trusted},
	}
	dest := t.TempDir()

	path, err := v.Retrieve(context.Background(), ospackage.Ref{Name: "good", Version: "1.0-1", Arch: "src"}, dest)
	if err != nil {
		t.Fatalf("Retrieve(good) error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("verified archive should stay on disk: %v", err)
	}

	bad := ospackage.Ref{Name: "bad", Version: "1.0-1", Arch: "src"}
	if _, err := v.Retrieve(context.Background(), bad, dest); err == nil {
		t.Fatal("expected unsigned archive to be rejected")
	}
	if _, err := os.Stat(filepath.Join(dest, bad.String()+".rpm")); !os.IsNotExist(err) {
		t.Errorf("rejected archive should be removed, stat error = %v", err)
	}
}
