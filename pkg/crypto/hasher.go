// Package crypto provides the hashing and signing primitives for the
// audit ledger: deterministic block digests, Ed25519 signatures, and a
// file-backed keystore so signatures stay verifiable across restarts.
package crypto

import (
	"fmt"
	"time"

	"github.com/proctorhq/examledger/pkg/canonicalize"
	"github.com/proctorhq/examledger/pkg/chain"
)

// BlockHasher computes deterministic digests over block content.
//
// Pure and stateless: same inputs produce the same digest forever. All
// later verification depends on this.
type BlockHasher struct{}

func NewBlockHasher() *BlockHasher {
	return &BlockHasher{}
}

// hashContent is the canonical hashable representation of a block.
// Field set and key names are frozen; changing either invalidates every
// existing digest.
type hashContent struct {
	PreviousDigest string         `json:"previous_digest"`
	EventType      string         `json:"event_type"`
	EntityType     string         `json:"entity_type"`
	EntityID       string         `json:"entity_id"`
	Payload        map[string]any `json:"payload"`
	CreatedAt      string         `json:"created_at"`
}

// Digest computes the lowercase hex SHA-256 digest of the given block
// content. The timestamp is normalized to UTC RFC 3339 with nanoseconds so
// the serialization does not depend on the zone of the caller's clock.
func (h *BlockHasher) Digest(previousDigest string, eventType chain.EventType, entityType chain.EntityType, entityID string, payload map[string]any, createdAt time.Time) (string, error) {
	if payload == nil {
		payload = map[string]any{}
	}

	content := hashContent{
		PreviousDigest: previousDigest,
		EventType:      string(eventType),
		EntityType:     string(entityType),
		EntityID:       entityID,
		Payload:        payload,
		CreatedAt:      createdAt.UTC().Format(time.RFC3339Nano),
	}

	digest, err := canonicalize.CanonicalHash(content)
	if err != nil {
		return "", fmt.Errorf("block digest: %w", err)
	}
	return digest, nil
}

// DigestBlock recomputes the digest of b from its stored content,
// excluding the stored digest itself. Used by verification.
func (h *BlockHasher) DigestBlock(b *chain.Block) (string, error) {
	return h.Digest(b.PreviousDigest, b.EventType, b.EntityType, b.EntityID, b.Payload, b.CreatedAt)
}
