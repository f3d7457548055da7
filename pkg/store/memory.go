package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/proctorhq/examledger/pkg/chain"
)

// MemoryStore is an in-memory BlockStore for tests and single-process
// deployments without durability requirements.
type MemoryStore struct {
	mu       sync.RWMutex
	blocks   []*chain.Block
	bySeq    map[uint64]*chain.Block
	byDigest map[string]*chain.Block
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bySeq:    make(map[uint64]*chain.Block),
		byDigest: make(map[string]*chain.Block),
	}
}

func (s *MemoryStore) Append(_ context.Context, b *chain.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.bySeq[b.Sequence]; taken {
		return &chain.AppendConflictError{Sequence: b.Sequence, Cause: errors.New("sequence index already written")}
	}
	if _, taken := s.byDigest[b.Digest]; taken {
		return &chain.AppendConflictError{Sequence: b.Sequence, Cause: errors.New("duplicate digest")}
	}

	s.blocks = append(s.blocks, b)
	s.bySeq[b.Sequence] = b
	s.byDigest[b.Digest] = b
	return nil
}

func (s *MemoryStore) Latest(_ context.Context) (*chain.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.blocks) == 0 {
		return nil, chain.ErrNotFound
	}
	latest := s.blocks[0]
	for _, b := range s.blocks[1:] {
		if b.Sequence > latest.Sequence {
			latest = b
		}
	}
	return latest, nil
}

func (s *MemoryStore) ByDigest(_ context.Context, digest string) (*chain.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.byDigest[digest]
	if !ok {
		return nil, chain.ErrNotFound
	}
	return b, nil
}

func (s *MemoryStore) ListRecent(_ context.Context, limit, offset int) ([]*chain.Block, error) {
	s.mu.RLock()
	ordered := s.sortedDesc()
	s.mu.RUnlock()

	if offset >= len(ordered) {
		return []*chain.Block{}, nil
	}
	ordered = ordered[offset:]
	if limit > 0 && limit < len(ordered) {
		ordered = ordered[:limit]
	}
	return ordered, nil
}

func (s *MemoryStore) ListByEntity(_ context.Context, entityType chain.EntityType, entityID string) ([]*chain.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*chain.Block, 0)
	for _, b := range s.blocks {
		if b.EntityType == entityType && b.EntityID == entityID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (s *MemoryStore) ListByEventType(_ context.Context, eventType chain.EventType, limit int) ([]*chain.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*chain.Block, 0)
	for _, b := range s.blocks {
		if b.EventType == eventType {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence > out[j].Sequence })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.blocks)), nil
}

func (s *MemoryStore) CountByEventType(_ context.Context) (map[chain.EventType]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[chain.EventType]uint64)
	for _, b := range s.blocks {
		counts[b.EventType]++
	}
	return counts, nil
}

// sortedDesc returns blocks ordered by descending sequence. Caller holds
// at least a read lock.
func (s *MemoryStore) sortedDesc() []*chain.Block {
	out := make([]*chain.Block, len(s.blocks))
	copy(out, s.blocks)
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence > out[j].Sequence })
	return out
}
