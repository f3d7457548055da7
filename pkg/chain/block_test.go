package chain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidDigestFormat(t *testing.T) {
	assert.True(t, ValidDigestFormat(GenesisDigest))
	assert.True(t, ValidDigestFormat(strings.Repeat("a1", 32)))

	assert.False(t, ValidDigestFormat(""))
	assert.False(t, ValidDigestFormat(strings.Repeat("0", 63)))
	assert.False(t, ValidDigestFormat(strings.Repeat("0", 65)))
	assert.False(t, ValidDigestFormat(strings.Repeat("G", 64)))
	assert.False(t, ValidDigestFormat(strings.ToUpper(strings.Repeat("ab", 32))))
}

func TestIsGenesis(t *testing.T) {
	genesis := &Block{Sequence: 1, PreviousDigest: GenesisDigest}
	assert.True(t, genesis.IsGenesis())

	second := &Block{Sequence: 2, PreviousDigest: strings.Repeat("ab", 32)}
	assert.False(t, second.IsGenesis())

	// A non-first block claiming the sentinel is not genesis.
	forged := &Block{Sequence: 5, PreviousDigest: GenesisDigest}
	assert.False(t, forged.IsGenesis())
}

func TestAppendConflictErrorUnwrap(t *testing.T) {
	err := &AppendConflictError{Sequence: 7, Cause: errors.New("duplicate key")}
	assert.ErrorIs(t, err, ErrAppendConflict)
	assert.Contains(t, err.Error(), "sequence 7")
}

func TestStoreErrorUnwrap(t *testing.T) {
	err := &StoreError{Op: "append", Cause: errors.New("connection refused")}
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "append")
}
