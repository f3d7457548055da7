// Package store persists ledger blocks. All implementations are
// append-only; none exposes an update or delete entry point.
package store

import (
	"context"

	"github.com/proctorhq/examledger/pkg/chain"
)

// BlockStore is the persistence contract for the ledger.
//
// Append must be atomic and must fail with an AppendConflictError when a
// concurrent writer already used the same sequence index or digest; the
// losing writer retries from a fresh read of the tail. Blocks are
// immutable once written, so all read methods may run concurrently with
// appends without locking.
type BlockStore interface {
	// Append persists a fully formed block. Returns
	// *chain.AppendConflictError if the sequence index or digest is taken.
	Append(ctx context.Context, b *chain.Block) error

	// Latest returns the block with the highest sequence index, or
	// chain.ErrNotFound if the ledger is empty.
	Latest(ctx context.Context) (*chain.Block, error)

	// ByDigest returns the block with the given digest, or chain.ErrNotFound.
	ByDigest(ctx context.Context, digest string) (*chain.Block, error)

	// ListRecent returns up to limit blocks ordered most-recent-first,
	// skipping offset blocks.
	ListRecent(ctx context.Context, limit, offset int) ([]*chain.Block, error)

	// ListByEntity returns all blocks for one entity in chronological
	// order. An entity with no blocks yields an empty slice, not an error.
	ListByEntity(ctx context.Context, entityType chain.EntityType, entityID string) ([]*chain.Block, error)

	// ListByEventType returns up to limit blocks of one event type,
	// most-recent-first.
	ListByEventType(ctx context.Context, eventType chain.EventType, limit int) ([]*chain.Block, error)

	// Count returns the total number of blocks.
	Count(ctx context.Context) (uint64, error)

	// CountByEventType returns per-event-type block counts.
	CountByEventType(ctx context.Context) (map[chain.EventType]uint64, error)
}
