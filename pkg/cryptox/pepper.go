package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const pepperLength = 32

// LoadOrCreatePepper reads the pepper stored at path, creating the file with
// a new random pepper when it does not exist yet. The pepper must survive
// restarts: losing it invalidates every stored password hash.
func LoadOrCreatePepper(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("cryptox: pepper path is empty")
	}
	path = filepath.Clean(path)

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		pepper := strings.TrimSpace(string(raw))
		if pepper == "" {
			return nil, fmt.Errorf("cryptox: pepper file %s is empty", path)
		}
		return []byte(pepper), nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("cryptox: read pepper: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("cryptox: create pepper dir: %w", err)
	}

	buf := make([]byte, pepperLength)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("cryptox: generate pepper: %w", err)
	}
	pepper := base64.RawURLEncoding.EncodeToString(buf)

	// Write the full pepper to a private temp file and publish it with a
	// hard link, which fails when path already exists. Readers never see a
	// partially written pepper, and concurrent starters agree on one value.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pepper-*")
	if err != nil {
		return nil, fmt.Errorf("cryptox: create pepper: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(pepper); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("cryptox: write pepper: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("cryptox: sync pepper: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("cryptox: close pepper: %w", err)
	}

	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return LoadOrCreatePepper(path)
		}
		return nil, fmt.Errorf("cryptox: publish pepper: %w", err)
	}
	return []byte(pepper), nil
}
