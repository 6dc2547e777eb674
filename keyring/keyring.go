// Package keyring loads the server's HMAC keys. Keys are persisted sealed
// with an externally supplied wrapping key and held in memory inside
// memguard enclaves.
package keyring

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/runthings/termgate/internal/util"
	"github.com/runthings/termgate/storage"
)

const (
	namespace     = "keyring"
	recordType    = "KEY"
	keySize       = 32
	wrappingAADv1 = "termgate:keyring:v1:"
)

// Key is a 32-byte secret used for HMAC signing.
type Key struct {
	name    string
	enclave *memguard.Enclave
}

// Name returns the key's name in the ring.
func (k *Key) Name() string {
	return k.name
}

// MAC returns HMAC-SHA256 over the concatenation of parts.
func (k *Key) MAC(parts ...[]byte) ([]byte, error) {
	buf, err := k.enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("opening key %s: %w", k.name, err)
	}
	defer buf.Destroy()
	mac := hmac.New(sha256.New, buf.Bytes())
	for _, p := range parts {
		mac.Write(p)
	}
	return mac.Sum(nil), nil
}

// Ephemeral returns a random key that is never persisted. Everything
// signed with it becomes invalid when the process exits.
func Ephemeral(name string) *Key {
	return &Key{name: name, enclave: memguard.NewEnclaveRandom(keySize)}
}

// LoadOrCreate loads the named key from repo, unsealing it with
// wrappingKey. If no key exists, a new random key is generated, sealed and
// persisted.
//
// If the wrapping key has changed (the stored envelope no longer opens), a
// new key replaces the old one. Tokens signed with the old key stop
// verifying, which is the expected outcome of rotating the wrapping key.
func LoadOrCreate(repo storage.Repository, name string, wrappingKey []byte) (*Key, error) {
	if len(wrappingKey) != keySize {
		return nil, fmt.Errorf("wrapping key must be exactly %d bytes, got %d", keySize, len(wrappingKey))
	}
	aad := []byte(wrappingAADv1 + name)

	env, err := repo.Get(namespace, recordType, name)
	if err != nil && !storage.IsNotFound(err) {
		return nil, fmt.Errorf("loading key %s: %w", name, err)
	}
	if err == nil {
		raw, openErr := storage.OpenRecord(wrappingKey, env, aad)
		if openErr == nil && len(raw) == keySize {
			return &Key{name: name, enclave: memguard.NewEnclave(raw)}, nil
		}
		util.WipeBytes(raw)
		// Wrong wrapping key or corrupt record: fall through and replace.
	}

	raw, err := util.RandomBytes(keySize)
	if err != nil {
		return nil, err
	}
	sealed, err := storage.SealRecord(wrappingKey, raw, aad)
	if err != nil {
		util.WipeBytes(raw)
		return nil, fmt.Errorf("sealing key %s: %w", name, err)
	}
	if err := repo.Put(namespace, recordType, name, sealed); err != nil {
		util.WipeBytes(raw)
		return nil, fmt.Errorf("persisting key %s: %w", name, err)
	}
	// NewEnclave wipes raw.
	return &Key{name: name, enclave: memguard.NewEnclave(raw)}, nil
}
