package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proctorhq/examledger/pkg/canonicalize"
	"github.com/proctorhq/examledger/pkg/chain"
	"github.com/proctorhq/examledger/pkg/crypto"
	"github.com/proctorhq/examledger/pkg/store"
)

func TestExportFullLedger(t *testing.T) {
	ctx := context.Background()
	s := seedLedger(t)
	q := NewQuery(s)

	bundle, err := q.Export(ctx, 0, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, bundle.BundleID)
	assert.Equal(t, 5, bundle.BlockCount)
	assert.Equal(t, uint64(1), bundle.StartSequence)
	assert.Equal(t, uint64(5), bundle.EndSequence)
	assert.Equal(t, bundle.Blocks[4].Digest, bundle.ChainHead)
	assert.Empty(t, bundle.Signature)

	require.NoError(t, VerifyBundle(bundle, nil))
}

func TestExportWindow(t *testing.T) {
	ctx := context.Background()
	q := NewQuery(seedLedger(t))

	bundle, err := q.Export(ctx, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, bundle.BlockCount)
	assert.Equal(t, uint64(3), bundle.StartSequence)
	assert.Equal(t, uint64(5), bundle.EndSequence)

	require.NoError(t, VerifyBundle(bundle, nil))
}

func TestExportEmptyLedgerFails(t *testing.T) {
	q := NewQuery(store.NewMemoryStore())
	_, err := q.Export(context.Background(), 0, nil)
	assert.Error(t, err)
}

func TestExportSignedBundle(t *testing.T) {
	ctx := context.Background()
	ks, err := crypto.OpenKeystore(filepath.Join(t.TempDir(), "keystore.json"))
	require.NoError(t, err)

	q := NewQuery(seedLedger(t))
	bundle, err := q.Export(ctx, 0, ks.ActiveSigner())
	require.NoError(t, err)
	assert.Equal(t, "ed25519:key-1", bundle.SignatureType)
	assert.NotEmpty(t, bundle.Signature)

	require.NoError(t, VerifyBundle(bundle, ks.KeyRing()))

	// A ring without the signing key rejects the bundle.
	err = VerifyBundle(bundle, crypto.NewKeyRing())
	assert.Error(t, err)
}

func TestVerifyBundleDetectsTampering(t *testing.T) {
	ctx := context.Background()
	q := NewQuery(seedLedger(t))

	bundle, err := q.Export(ctx, 0, nil)
	require.NoError(t, err)

	bundle.Blocks[2].Payload["edited"] = true
	err = VerifyBundle(bundle, nil)
	assert.ErrorIs(t, err, chain.ErrTamperDetected)
}

func TestVerifyBundleDetectsBrokenLink(t *testing.T) {
	ctx := context.Background()
	q := NewQuery(seedLedger(t))

	bundle, err := q.Export(ctx, 0, nil)
	require.NoError(t, err)

	bundle.Blocks[3].PreviousDigest = chain.GenesisDigest
	// Recompute the bundle digest so only the link check can fail.
	digest, err := canonicalize.CanonicalHash(bundle.Blocks)
	require.NoError(t, err)
	bundle.BundleDigest = digest

	err = VerifyBundle(bundle, nil)
	assert.ErrorIs(t, err, chain.ErrBrokenLink)
}
