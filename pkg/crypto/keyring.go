package crypto

import (
	"crypto/ed25519"
	"fmt"
	"strings"
	"sync"
)

// KeyRing verifies signatures against multiple public keys, keyed by key
// id. It lets an auditor verify blocks signed before a key rotation.
type KeyRing struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PublicKey
}

func NewKeyRing() *KeyRing {
	return &KeyRing{keys: make(map[string]ed25519.PublicKey)}
}

// AddKey registers a public key under the given id.
func (k *KeyRing) AddKey(keyID string, pub ed25519.PublicKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[keyID] = pub
}

// RemoveKey drops a key from the ring.
func (k *KeyRing) RemoveKey(keyID string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, keyID)
}

// VerifyTagged verifies a hex signature over message, where signatureType
// is the "<scheme>:<key id>" tag stored on the block.
func (k *KeyRing) VerifyTagged(signatureType, sigHex string, message []byte) (bool, error) {
	parts := strings.SplitN(signatureType, SigSeparator, 2)
	if len(parts) != 2 || parts[0] != SigPrefixEd25519 {
		return false, fmt.Errorf("unsupported signature type %q", signatureType)
	}

	k.mu.RLock()
	pub, ok := k.keys[parts[1]]
	k.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("unknown signing key %q", parts[1])
	}

	return Verify(fmt.Sprintf("%x", []byte(pub)), sigHex, message)
}

// Len returns the number of keys in the ring.
func (k *KeyRing) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys)
}
