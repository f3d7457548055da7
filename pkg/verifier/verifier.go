// Package verifier walks ordered block sequences and reports every
// integrity anomaly: tampered content, broken chain links, and invalid
// signatures. Findings are collected, never short-circuited, so a single
// report explains everything an auditor needs to see.
package verifier

import (
	"context"
	"fmt"

	"github.com/proctorhq/examledger/pkg/chain"
	"github.com/proctorhq/examledger/pkg/crypto"
	"github.com/proctorhq/examledger/pkg/store"
)

// Finding describes one failed check on one block, with enough detail to
// drive a security alert.
type Finding struct {
	Sequence uint64 `json:"sequence_index"`
	BlockID  string `json:"block_id,omitempty"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Reason   string `json:"reason"`
}

// Result is the outcome of verifying a block sequence.
//
// Valid reflects the hash and link checks. Signature failures are
// reported separately: they indicate authority compromise or key
// rotation, not data corruption, and are surfaced on their own channel.
type Result struct {
	Valid             bool      `json:"valid"`
	Message           string    `json:"message"`
	TotalBlocks       uint64    `json:"total_blocks"`
	CheckedBlocks     int       `json:"checked_blocks"`
	VerifiedCount     int       `json:"verified_count"`
	TamperedBlocks    []Finding `json:"tampered_blocks"`
	BrokenLinks       []Finding `json:"broken_links"`
	InvalidSignatures []Finding `json:"invalid_signatures"`
}

// Verifier checks chains read from a BlockStore or supplied directly.
// The keyring is optional; without one, signatures are not checked.
type Verifier struct {
	hasher  *crypto.BlockHasher
	keyring *crypto.KeyRing
}

func New(hasher *crypto.BlockHasher) *Verifier {
	return &Verifier{hasher: hasher}
}

// WithKeyRing enables signature verification against the given ring.
func (v *Verifier) WithKeyRing(ring *crypto.KeyRing) *Verifier {
	v.keyring = ring
	return v
}

// VerifyBlocks checks a sequence ordered by ascending sequence index.
//
// For each block the stored digest is recomputed from stored content; a
// mismatch marks the block tampered. For each block whose sequence index
// immediately follows its predecessor's, its previous_digest must equal
// that predecessor's *stored* digest — stored, not recomputed, so a
// single tampered block does not cascade into spurious broken-link
// findings on its neighbors.
//
// A filtered sub-chain (an entity trail) is non-contiguous in the global
// ledger: a block after a sequence gap links to a global predecessor that
// is not in the slice, so its link cannot be checked here. Verifying a
// sub-chain therefore proves internal consistency only; it cannot prove
// the sub-chain is gap-free against the global ledger.
func (v *Verifier) VerifyBlocks(blocks []*chain.Block) *Result {
	res := &Result{
		TamperedBlocks:    []Finding{},
		BrokenLinks:       []Finding{},
		InvalidSignatures: []Finding{},
		CheckedBlocks:     len(blocks),
		TotalBlocks:       uint64(len(blocks)),
	}

	if len(blocks) == 0 {
		res.Valid = true
		res.Message = "empty chain"
		return res
	}

	for i, b := range blocks {
		recomputed, err := v.hasher.DigestBlock(b)
		if err != nil || recomputed != b.Digest {
			actual := recomputed
			if err != nil {
				actual = fmt.Sprintf("unhashable: %v", err)
			}
			res.TamperedBlocks = append(res.TamperedBlocks, Finding{
				Sequence: b.Sequence,
				BlockID:  b.ID,
				Expected: b.Digest,
				Actual:   actual,
				Reason:   "stored digest does not match recomputed content",
			})
			continue
		}

		if i == 0 {
			// Only a genesis block has a provable previous_digest.
			if b.Sequence == 1 && b.PreviousDigest != chain.GenesisDigest {
				res.BrokenLinks = append(res.BrokenLinks, Finding{
					Sequence: b.Sequence,
					BlockID:  b.ID,
					Expected: chain.GenesisDigest,
					Actual:   b.PreviousDigest,
					Reason:   "genesis block must carry the genesis sentinel",
				})
				continue
			}
		} else if b.Sequence == blocks[i-1].Sequence+1 && b.PreviousDigest != blocks[i-1].Digest {
			res.BrokenLinks = append(res.BrokenLinks, Finding{
				Sequence: b.Sequence,
				BlockID:  b.ID,
				Expected: blocks[i-1].Digest,
				Actual:   b.PreviousDigest,
				Reason:   "previous_digest does not match predecessor's stored digest",
			})
			continue
		}

		v.checkSignature(b, res)
		res.VerifiedCount++
	}

	res.Valid = res.VerifiedCount == len(blocks)
	if res.Valid {
		res.Message = "chain valid"
	} else {
		res.Message = "chain compromised"
	}
	return res
}

// checkSignature verifies b's signature if one is present and a keyring is
// configured. Failures are recorded but do not affect Valid.
func (v *Verifier) checkSignature(b *chain.Block, res *Result) {
	if v.keyring == nil || b.Signature == "" {
		return
	}
	ok, err := v.keyring.VerifyTagged(b.SignatureType, b.Signature, []byte(b.Digest))
	if err != nil || !ok {
		reason := "signature does not verify against the recorded key"
		if err != nil {
			reason = err.Error()
		}
		res.InvalidSignatures = append(res.InvalidSignatures, Finding{
			Sequence: b.Sequence,
			BlockID:  b.ID,
			Expected: b.SignatureType,
			Actual:   b.Signature,
			Reason:   reason,
		})
	}
}

// VerifyChain verifies the most recent limit blocks of the full ledger,
// reversed to chronological order first. A limit <= 0 verifies everything.
// The result reports how many blocks were checked versus how many exist.
func (v *Verifier) VerifyChain(ctx context.Context, s store.BlockStore, limit int) (*Result, error) {
	total, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}

	fetch := limit
	if fetch <= 0 {
		fetch = int(total)
	}
	recent, err := s.ListRecent(ctx, fetch, 0)
	if err != nil {
		return nil, err
	}

	// ListRecent is most-recent-first; verification runs chronologically.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}

	res := v.VerifyBlocks(recent)
	res.TotalBlocks = total
	res.CheckedBlocks = len(recent)
	return res, nil
}
