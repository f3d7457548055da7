package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	SigPrefixEd25519 = "ed25519"
	SigSeparator     = ":"
)

// Signer produces signatures over block digests.
type Signer interface {
	// Sign signs data and returns the hex-encoded signature.
	Sign(data []byte) (string, error)
	// KeyID identifies the signing key, recorded alongside the signature
	// so verification survives key rotation.
	KeyID() string
	// SignatureType returns the "<scheme>:<key id>" tag stored on blocks.
	SignatureType() string
	PublicKey() string
	PublicKeyBytes() []byte
}

// Ed25519Signer implements Signer over an Ed25519 key pair.
type Ed25519Signer struct {
	privKey ed25519.PrivateKey
	pubKey  ed25519.PublicKey
	keyID   string
}

// NewEd25519Signer generates a fresh key pair. Production deployments load
// a persisted key through Keystore instead; a key generated at process
// start makes earlier signatures unverifiable.
func NewEd25519Signer(keyID string) (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	return &Ed25519Signer{privKey: priv, pubKey: pub, keyID: keyID}, nil
}

// NewEd25519SignerFromKey wraps an existing private key.
func NewEd25519SignerFromKey(priv ed25519.PrivateKey, keyID string) *Ed25519Signer {
	return &Ed25519Signer{
		privKey: priv,
		pubKey:  priv.Public().(ed25519.PublicKey),
		keyID:   keyID,
	}
}

func (s *Ed25519Signer) Sign(data []byte) (string, error) {
	sig := ed25519.Sign(s.privKey, data)
	return hex.EncodeToString(sig), nil
}

func (s *Ed25519Signer) KeyID() string { return s.keyID }

func (s *Ed25519Signer) SignatureType() string {
	return SigPrefixEd25519 + SigSeparator + s.keyID
}

func (s *Ed25519Signer) PublicKey() string {
	return hex.EncodeToString(s.pubKey)
}

func (s *Ed25519Signer) PublicKeyBytes() []byte {
	return s.pubKey
}

// Verify checks signature directly against this signer's public key.
func (s *Ed25519Signer) Verify(message, signature []byte) bool {
	return ed25519.Verify(s.pubKey, message, signature)
}

// Verify verifies a hex signature over data against a hex public key.
func Verify(pubKeyHex, sigHex string, data []byte) (bool, error) {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return false, fmt.Errorf("invalid public key hex: %w", err)
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid public key size: %d", len(pubKey))
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), data, sig), nil
}
