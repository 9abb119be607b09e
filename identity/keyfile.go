package identity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// KeyFileLoader returns a loader that reads the secret key stored at path, creating and
// persisting a fresh one when the file does not exist yet.
func KeyFileLoader(path string) func() (*LocalSigner, error) {
	return func() (*LocalSigner, error) {
		return LoadOrCreateKeyFile(path)
	}
}

func LoadOrCreateKeyFile(path string) (*LocalSigner, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		return NewLocalSigner(string(b))
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read key file %s %w", path, err)
	}

	signer, err := GenerateLocalSigner()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key dir %w", err)
	}
	if err := os.WriteFile(path, []byte(signer.SecretKeyHex()+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("write key file %s %w", path, err)
	}

	return signer, nil
}
