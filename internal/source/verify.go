package source

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/open-edge-platform/ossa-collector/internal/ospackage"
	"github.com/open-edge-platform/ossa-collector/internal/utils/logger"
	"github.com/open-edge-platform/ossa-collector/internal/utils/security"
	"github.com/sassoftware/go-rpmutils"
)

// LoadKeyring reads an armored public keyring from a local file.
func LoadKeyring(path string) (openpgp.EntityList, error) {
	if path == "" {
		return nil, fmt.Errorf("signature verification needs a public key file")
	}
	data, err := security.SafeReadFile(path, security.ResolveSymlinks)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("loading keyring %s: %w", path, err)
	}
	return keyring, nil
}

// VerifySignature checks the header signature and payload digest of an RPM
// against keyring. Unsigned packages fail.
func VerifySignature(rpmPath string, keyring openpgp.EntityList) error {
	f, err := os.Open(rpmPath)
	if err != nil {
		return fmt.Errorf("opening rpm: %w", err)
	}
	defer f.Close()

	_, sigs, err := rpmutils.Verify(f, keyring)
	if err != nil {
		return fmt.Errorf("verify failed: %w", err)
	}
	if len(sigs) == 0 {
		return fmt.Errorf("no GPG signatures found")
	}
	return nil
}

// verifyingSource rejects retrieved archives whose signature does not check
// out and removes them from disk.
type verifyingSource struct {
	Source
	keyring openpgp.EntityList
}

func (v *verifyingSource) Retrieve(ctx context.Context, ref ospackage.Ref, destDir string) (string, error) {
	path, err := v.Source.Retrieve(ctx, ref, destDir)
	if err != nil {
		return "", err
	}
	if err := VerifySignature(path, v.keyring); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			logger.Logger().Warnf("removing unverified %s: %v", path, rmErr)
		}
		return "", fmt.Errorf("%s: %w", ref, err)
	}
	return path, nil
}
