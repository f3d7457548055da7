// Package audit provides the read-only views over the ledger: paginated
// chain, per-entity trails, event-type filters, summary statistics, and
// exportable evidence bundles. Nothing here mutates the chain.
package audit

import (
	"context"
	"sort"

	"github.com/proctorhq/examledger/pkg/chain"
	"github.com/proctorhq/examledger/pkg/crypto"
	"github.com/proctorhq/examledger/pkg/store"
	"github.com/proctorhq/examledger/pkg/verifier"
)

// Query is the audit read façade. Reads run fully in parallel with each
// other and with appends; blocks are immutable once written.
type Query struct {
	store  store.BlockStore
	hasher *crypto.BlockHasher
}

func NewQuery(s store.BlockStore) *Query {
	return &Query{store: s, hasher: crypto.NewBlockHasher()}
}

// Chain returns blocks paginated most-recent-first for display.
// Verification always runs chronologically; this ordering is for readers.
func (q *Query) Chain(ctx context.Context, limit, offset int) ([]*chain.Block, error) {
	return q.store.ListRecent(ctx, limit, offset)
}

// BlockByDigest looks up a single block by its digest.
func (q *Query) BlockByDigest(ctx context.Context, digest string) (*chain.Block, error) {
	return q.store.ByDigest(ctx, digest)
}

// ByEventType returns up to limit blocks of one event type,
// most-recent-first.
func (q *Query) ByEventType(ctx context.Context, eventType chain.EventType, limit int) ([]*chain.Block, error) {
	return q.store.ListByEventType(ctx, eventType, limit)
}

// EntityTrail is the complete audit trail for one entity, with an inline
// consistency check of the sub-chain.
type EntityTrail struct {
	EntityType   chain.EntityType `json:"entity_type"`
	EntityID     string           `json:"entity_id"`
	TotalEvents  int              `json:"total_events"`
	Blocks       []*chain.Block   `json:"blocks"`
	Verification *verifier.Result `json:"verification"`
}

// Trail returns all blocks for one entity in chronological order plus a
// verification of the sub-chain's internal consistency. An entity with no
// blocks yields an empty, valid trail: absence of audit events is a
// reportable state, not an error.
//
// Sub-chain verification does not prove the entity's events are gap-free
// against the global ledger; that requires verifying the full chain.
func (q *Query) Trail(ctx context.Context, entityType chain.EntityType, entityID string) (*EntityTrail, error) {
	blocks, err := q.store.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return &EntityTrail{
		EntityType:   entityType,
		EntityID:     entityID,
		TotalEvents:  len(blocks),
		Blocks:       blocks,
		Verification: verifier.New(q.hasher).VerifyBlocks(blocks),
	}, nil
}

// EventTypeCount pairs an event type with its block count. Summaries use
// a sorted slice rather than a map so output ordering is deterministic.
type EventTypeCount struct {
	EventType chain.EventType `json:"event_type"`
	Count     uint64          `json:"count"`
}

// Summary is the ledger's aggregate view.
type Summary struct {
	TotalBlocks       uint64           `json:"total_blocks"`
	Initialized       bool             `json:"initialized"`
	LatestBlock       *chain.Block     `json:"latest_block,omitempty"`
	CountsByEventType []EventTypeCount `json:"counts_by_event_type"`
}

// Summarize computes ledger statistics.
func (q *Query) Summarize(ctx context.Context) (*Summary, error) {
	total, err := q.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		TotalBlocks:       total,
		Initialized:       total > 0,
		CountsByEventType: []EventTypeCount{},
	}
	if total == 0 {
		return s, nil
	}

	latest, err := q.store.Latest(ctx)
	if err != nil {
		return nil, err
	}
	s.LatestBlock = latest

	counts, err := q.store.CountByEventType(ctx)
	if err != nil {
		return nil, err
	}
	for et, n := range counts {
		s.CountsByEventType = append(s.CountsByEventType, EventTypeCount{EventType: et, Count: n})
	}
	sort.Slice(s.CountsByEventType, func(i, j int) bool {
		return s.CountsByEventType[i].EventType < s.CountsByEventType[j].EventType
	})
	return s, nil
}
