package secrets

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
)

// KeySize is the secretbox key length.
const KeySize = 32

// Key file names under the data directory.
const (
	keyFile  = "secrets.key"
	saltFile = "secrets.salt"
)

// DeriveKey stretches a passphrase into a secretbox key with Argon2id.
func DeriveKey(passphrase string, salt []byte) [KeySize]byte {
	var key [KeySize]byte
	copy(key[:], argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, KeySize))
	return key
}

// LoadKey returns the sealing key for dataDir. With a passphrase the key
// is derived from it and a per-installation salt; without one a random
// key is generated once and kept in dataDir.
func LoadKey(dataDir, passphrase string) ([KeySize]byte, error) {
	if passphrase != "" {
		salt, err := readOrCreate(filepath.Join(dataDir, saltFile), 16)
		if err != nil {
			return [KeySize]byte{}, err
		}
		return DeriveKey(passphrase, salt), nil
	}

	raw, err := readOrCreate(filepath.Join(dataDir, keyFile), KeySize)
	if err != nil {
		return [KeySize]byte{}, err
	}
	if len(raw) != KeySize {
		return [KeySize]byte{}, fmt.Errorf("%s: want %d bytes, have %d", keyFile, KeySize, len(raw))
	}
	var key [KeySize]byte
	copy(key[:], raw)
	return key, nil
}

func readOrCreate(path string, size int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	data = make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		return nil, fmt.Errorf("generate %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return data, nil
}
