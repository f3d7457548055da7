package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// keystoreFile is the on-disk JSON format for persisted signing keys.
type keystoreFile struct {
	ActiveKeyID string            `json:"active_key_id"`
	Keys        map[string]string `json:"keys"` // key id -> base64 Ed25519 seed
}

// Keystore is a file-backed store of versioned Ed25519 signing keys.
//
// The active key survives process restarts, so signatures written before a
// restart remain verifiable. Rotation generates a new active key while old
// public keys stay available for verifying historical blocks.
type Keystore struct {
	mu    sync.RWMutex
	file  keystoreFile
	path  string
	seeds map[string]ed25519.PrivateKey
}

// OpenKeystore loads the keystore at path, creating it with an initial key
// ("key-1") if it does not exist. The file is written with 0600.
func OpenKeystore(path string) (*Keystore, error) {
	ks := &Keystore{
		path:  path,
		seeds: make(map[string]ed25519.PrivateKey),
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("keystore: create dir: %w", err)
		}

		seed := make([]byte, ed25519.SeedSize)
		if _, err := io.ReadFull(rand.Reader, seed); err != nil {
			return nil, fmt.Errorf("keystore: generate key: %w", err)
		}

		ks.file = keystoreFile{
			ActiveKeyID: "key-1",
			Keys:        map[string]string{"key-1": base64.StdEncoding.EncodeToString(seed)},
		}
		ks.seeds["key-1"] = ed25519.NewKeyFromSeed(seed)

		if err := ks.persist(); err != nil {
			return nil, err
		}
		return ks, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keystore: read: %w", err)
	}
	if err := json.Unmarshal(data, &ks.file); err != nil {
		return nil, fmt.Errorf("keystore: parse: %w", err)
	}

	for id, encoded := range ks.file.Keys {
		seed, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("keystore: decode key %q: %w", id, err)
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("keystore: key %q invalid length %d (need %d)", id, len(seed), ed25519.SeedSize)
		}
		ks.seeds[id] = ed25519.NewKeyFromSeed(seed)
	}

	if _, ok := ks.seeds[ks.file.ActiveKeyID]; !ok {
		return nil, fmt.Errorf("keystore: active key %q not in keystore", ks.file.ActiveKeyID)
	}

	return ks, nil
}

// ActiveSigner returns a Signer for the current active key.
func (k *Keystore) ActiveSigner() *Ed25519Signer {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return NewEd25519SignerFromKey(k.seeds[k.file.ActiveKeyID], k.file.ActiveKeyID)
}

// ActiveKeyID returns the id of the current active key.
func (k *Keystore) ActiveKeyID() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.file.ActiveKeyID
}

// Rotate generates a new active key and persists the updated keystore.
// Old keys remain for verification. Returns the new key id and its public
// key; callers record the rotation as a ledger event.
func (k *Keystore) Rotate() (keyID, publicKey string, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return "", "", fmt.Errorf("keystore: generate key: %w", err)
	}

	keyID = fmt.Sprintf("key-%d", len(k.file.Keys)+1)
	k.file.Keys[keyID] = base64.StdEncoding.EncodeToString(seed)
	k.file.ActiveKeyID = keyID
	k.seeds[keyID] = ed25519.NewKeyFromSeed(seed)

	if err := k.persist(); err != nil {
		return "", "", err
	}

	pub := k.seeds[keyID].Public().(ed25519.PublicKey)
	return keyID, fmt.Sprintf("%x", []byte(pub)), nil
}

// KeyRing returns a keyring holding the public keys of every key in the
// store, for verifying signatures across rotations.
func (k *Keystore) KeyRing() *KeyRing {
	k.mu.RLock()
	defer k.mu.RUnlock()

	ring := NewKeyRing()
	for id, priv := range k.seeds {
		ring.AddKey(id, priv.Public().(ed25519.PublicKey))
	}
	return ring
}

func (k *Keystore) persist() error {
	data, err := json.MarshalIndent(k.file, "", "  ")
	if err != nil {
		return fmt.Errorf("keystore: marshal: %w", err)
	}
	if err := os.WriteFile(k.path, data, 0600); err != nil {
		return fmt.Errorf("keystore: write: %w", err)
	}
	return nil
}
