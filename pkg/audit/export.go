package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/proctorhq/examledger/pkg/canonicalize"
	"github.com/proctorhq/examledger/pkg/chain"
	"github.com/proctorhq/examledger/pkg/crypto"
)

// EvidenceBundle is an exportable, self-verifying slice of the ledger for
// handing to an external auditor.
type EvidenceBundle struct {
	BundleID      string         `json:"bundle_id"`
	Version       string         `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	StartSequence uint64         `json:"start_sequence"`
	EndSequence   uint64         `json:"end_sequence"`
	BlockCount    int            `json:"block_count"`
	Blocks        []*chain.Block `json:"blocks"`
	ChainHead     string         `json:"chain_head"`
	BundleDigest  string         `json:"bundle_digest"`
	Signature     string         `json:"signature,omitempty"`
	SignatureType string         `json:"signature_type,omitempty"`
}

const bundleVersion = "1.0.0"

// Export builds an evidence bundle from the most recent limit blocks
// (limit <= 0 exports everything), in chronological order. If signer is
// non-nil the bundle digest is signed.
func (q *Query) Export(ctx context.Context, limit int, signer crypto.Signer) (*EvidenceBundle, error) {
	total, err := q.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, fmt.Errorf("export: ledger is empty")
	}

	fetch := limit
	if fetch <= 0 {
		fetch = int(total)
	}
	blocks, err := q.store.ListRecent(ctx, fetch, 0)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(blocks)-1; i < j; i, j = i+1, j-1 {
		blocks[i], blocks[j] = blocks[j], blocks[i]
	}

	bundle := &EvidenceBundle{
		BundleID:      uuid.New().String(),
		Version:       bundleVersion,
		CreatedAt:     time.Now().UTC(),
		StartSequence: blocks[0].Sequence,
		EndSequence:   blocks[len(blocks)-1].Sequence,
		BlockCount:    len(blocks),
		Blocks:        blocks,
		ChainHead:     blocks[len(blocks)-1].Digest,
	}

	digest, err := canonicalize.CanonicalHash(bundle.Blocks)
	if err != nil {
		return nil, fmt.Errorf("export: bundle digest: %w", err)
	}
	bundle.BundleDigest = digest

	if signer != nil {
		sig, err := signer.Sign([]byte(digest))
		if err != nil {
			return nil, fmt.Errorf("export: sign bundle: %w", err)
		}
		bundle.Signature = sig
		bundle.SignatureType = signer.SignatureType()
	}
	return bundle, nil
}

// VerifyBundle checks a bundle's digest, internal chain links, and
// signature (when ring is non-nil and a signature is present).
func VerifyBundle(bundle *EvidenceBundle, ring *crypto.KeyRing) error {
	if len(bundle.Blocks) == 0 {
		return fmt.Errorf("bundle is empty")
	}

	digest, err := canonicalize.CanonicalHash(bundle.Blocks)
	if err != nil {
		return fmt.Errorf("bundle digest: %w", err)
	}
	if digest != bundle.BundleDigest {
		return fmt.Errorf("bundle digest mismatch: %w", chain.ErrTamperDetected)
	}

	for i := 1; i < len(bundle.Blocks); i++ {
		if bundle.Blocks[i].PreviousDigest != bundle.Blocks[i-1].Digest {
			return fmt.Errorf("bundle chain broken at block %d: %w", bundle.Blocks[i].Sequence, chain.ErrBrokenLink)
		}
	}

	if ring != nil && bundle.Signature != "" {
		ok, err := ring.VerifyTagged(bundle.SignatureType, bundle.Signature, []byte(bundle.BundleDigest))
		if err != nil {
			return fmt.Errorf("bundle signature: %w", err)
		}
		if !ok {
			return fmt.Errorf("bundle signature: %w", chain.ErrSignatureInvalid)
		}
	}
	return nil
}
