package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proctorhq/examledger/pkg/chain"
)

func TestMemoryStoreContract(t *testing.T) {
	testBlockStoreContract(t, func(t *testing.T) BlockStore {
		return NewMemoryStore()
	})
}

func TestMemoryStoreDuplicateDigestConflicts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Append(ctx, testBlock(1, chain.EventSystemInit, chain.EntitySystem, "")))

	dup := testBlock(2, chain.EventAttemptStart, chain.EntityExamAttempt, "A1")
	dup.Digest = fmt.Sprintf("%064d", 1)
	assert.ErrorIs(t, s.Append(ctx, dup), chain.ErrAppendConflict)
}

func TestMemoryStoreConcurrentAppendsOneWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	const writers = 16
	var wg sync.WaitGroup
	errs := make([]error, writers)

	// All writers race for sequence 1; exactly one insert may land.
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := testBlock(1, chain.EventAttemptStart, chain.EntityExamAttempt, "A1")
			b.ID = fmt.Sprintf("00000000-0000-0000-0001-%012d", i)
			b.Digest = fmt.Sprintf("%060d%04d", 0, i)
			errs[i] = s.Append(ctx, b)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, chain.ErrAppendConflict)
		}
	}
	assert.Equal(t, 1, winners)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}
