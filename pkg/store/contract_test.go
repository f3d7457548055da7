package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proctorhq/examledger/pkg/chain"
)

// testBlock builds a block with a synthetic but well-formed digest. Store
// tests exercise persistence and ordering, not hash correctness.
func testBlock(seq uint64, eventType chain.EventType, entityType chain.EntityType, entityID string) *chain.Block {
	prev := chain.GenesisDigest
	if seq > 1 {
		prev = fmt.Sprintf("%064d", seq-1)
	}
	return &chain.Block{
		ID:             fmt.Sprintf("00000000-0000-0000-0000-%012d", seq),
		Sequence:       seq,
		PreviousDigest: prev,
		Digest:         fmt.Sprintf("%064d", seq),
		EventType:      eventType,
		EntityType:     entityType,
		EntityID:       entityID,
		Payload:        map[string]any{"seq": float64(seq)},
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Second),
		RecordedBy:     "node-test",
	}
}

// testBlockStoreContract runs the behavior every BlockStore must share.
func testBlockStoreContract(t *testing.T, newStore func(t *testing.T) BlockStore) {
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Latest(ctx)
		assert.ErrorIs(t, err, chain.ErrNotFound)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		blocks, err := s.ListRecent(ctx, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, blocks)
	})

	t.Run("append and read back", func(t *testing.T) {
		s := newStore(t)

		b := testBlock(1, chain.EventSystemInit, chain.EntitySystem, "")
		b.Signature = "aa"
		b.SignatureType = "ed25519:key-1"
		require.NoError(t, s.Append(ctx, b))

		latest, err := s.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, b.ID, latest.ID)
		assert.Equal(t, b.Digest, latest.Digest)
		assert.Equal(t, b.EventType, latest.EventType)
		assert.Equal(t, b.Payload, latest.Payload)
		assert.Equal(t, b.Signature, latest.Signature)
		assert.Equal(t, b.SignatureType, latest.SignatureType)
		assert.Equal(t, b.RecordedBy, latest.RecordedBy)
		assert.True(t, b.CreatedAt.Equal(latest.CreatedAt))

		got, err := s.ByDigest(ctx, b.Digest)
		require.NoError(t, err)
		assert.Equal(t, b.Sequence, got.Sequence)

		_, err = s.ByDigest(ctx, fmt.Sprintf("%064d", 999))
		assert.ErrorIs(t, err, chain.ErrNotFound)
	})

	t.Run("duplicate sequence conflicts", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Append(ctx, testBlock(1, chain.EventSystemInit, chain.EntitySystem, "")))

		dup := testBlock(1, chain.EventAttemptStart, chain.EntityExamAttempt, "A1")
		dup.ID = "00000000-0000-0000-0000-000000000099"
		dup.Digest = fmt.Sprintf("%063d9", 0)
		err := s.Append(ctx, dup)
		assert.ErrorIs(t, err, chain.ErrAppendConflict)

		// The losing append persisted nothing.
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), n)
	})

	t.Run("ordering and pagination", func(t *testing.T) {
		s := newStore(t)

		for seq := uint64(1); seq <= 5; seq++ {
			et := chain.EventAttemptStart
			if seq == 1 {
				et = chain.EventSystemInit
			}
			require.NoError(t, s.Append(ctx, testBlock(seq, et, chain.EntityExamAttempt, "A1")))
		}

		recent, err := s.ListRecent(ctx, 2, 0)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, uint64(5), recent[0].Sequence)
		assert.Equal(t, uint64(4), recent[1].Sequence)

		paged, err := s.ListRecent(ctx, 2, 2)
		require.NoError(t, err)
		require.Len(t, paged, 2)
		assert.Equal(t, uint64(3), paged[0].Sequence)

		oldest, err := s.ListRecent(ctx, 1, 4)
		require.NoError(t, err)
		require.Len(t, oldest, 1)
		assert.Equal(t, uint64(1), oldest[0].Sequence)
	})

	t.Run("entity and event type filters", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Append(ctx, testBlock(1, chain.EventSystemInit, chain.EntitySystem, "")))
		require.NoError(t, s.Append(ctx, testBlock(2, chain.EventAttemptStart, chain.EntityExamAttempt, "A1")))
		require.NoError(t, s.Append(ctx, testBlock(3, chain.EventAttemptStart, chain.EntityExamAttempt, "A2")))
		require.NoError(t, s.Append(ctx, testBlock(4, chain.EventAttemptSubmit, chain.EntityExamAttempt, "A1")))

		trail, err := s.ListByEntity(ctx, chain.EntityExamAttempt, "A1")
		require.NoError(t, err)
		require.Len(t, trail, 2)
		assert.Equal(t, uint64(2), trail[0].Sequence)
		assert.Equal(t, uint64(4), trail[1].Sequence)

		none, err := s.ListByEntity(ctx, chain.EntityExamAttempt, "missing")
		require.NoError(t, err)
		assert.Empty(t, none)

		starts, err := s.ListByEventType(ctx, chain.EventAttemptStart, 10)
		require.NoError(t, err)
		require.Len(t, starts, 2)
		assert.Equal(t, uint64(3), starts[0].Sequence)

		counts, err := s.CountByEventType(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), counts[chain.EventAttemptStart])
		assert.Equal(t, uint64(1), counts[chain.EventSystemInit])
		assert.Equal(t, uint64(1), counts[chain.EventAttemptSubmit])
	})
}
