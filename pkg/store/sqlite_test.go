package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proctorhq/examledger/pkg/chain"
)

func TestSQLiteStoreContract(t *testing.T) {
	testBlockStoreContract(t, func(t *testing.T) BlockStore {
		s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	s, err := OpenSQLiteStore(path)
	require.NoError(t, err)

	b := testBlock(1, chain.EventSystemInit, chain.EntitySystem, "")
	b.Signature = "deadbeef"
	b.SignatureType = "ed25519:key-1"
	require.NoError(t, s.Append(ctx, b))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	latest, err := reopened.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.Digest, latest.Digest)
	assert.Equal(t, b.Signature, latest.Signature)
	assert.Equal(t, b.Payload, latest.Payload)
	assert.True(t, b.CreatedAt.Equal(latest.CreatedAt), "timestamps must round-trip exactly")
}

func TestSQLiteStoreMigrateIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	s, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening runs the migration again against the existing schema.
	s, err = OpenSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
