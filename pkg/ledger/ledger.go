// Package ledger implements the append path of the exam audit ledger.
//
// Append is the only mutating operation in the subsystem. There is no
// update or delete entry point; the audit guarantee depends on this
// absence. Corrections are appended as compensating events.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/proctorhq/examledger/pkg/chain"
	"github.com/proctorhq/examledger/pkg/crypto"
	"github.com/proctorhq/examledger/pkg/events"
	"github.com/proctorhq/examledger/pkg/observability"
	"github.com/proctorhq/examledger/pkg/store"
	"github.com/proctorhq/examledger/pkg/verifier"
)

// defaultMaxRetries bounds how often a losing appender re-reads the tail
// after a conflict before giving up.
const defaultMaxRetries = 5

// Ledger orchestrates appends: read the tail, hash, optionally sign,
// persist atomically. Serialization across writers is delegated to the
// store's uniqueness constraint on the sequence index, so correctness
// holds across multiple processes, not just goroutines.
type Ledger struct {
	store      store.BlockStore
	hasher     *crypto.BlockHasher
	signer     crypto.Signer
	validator  *events.Validator
	nodeName   string
	maxRetries int
	clock      func() time.Time
	logger     *slog.Logger
	obs        *observability.Provider
}

// New creates a ledger over the given store.
func New(s store.BlockStore) *Ledger {
	return &Ledger{
		store:      s,
		hasher:     crypto.NewBlockHasher(),
		maxRetries: defaultMaxRetries,
		clock:      time.Now,
		logger:     slog.Default().With("component", "ledger"),
	}
}

// WithSigner enables signing of new blocks.
func (l *Ledger) WithSigner(s crypto.Signer) *Ledger {
	l.signer = s
	return l
}

// WithValidator enables payload schema validation on append.
func (l *Ledger) WithValidator(v *events.Validator) *Ledger {
	l.validator = v
	return l
}

// WithNodeName stamps new blocks with the recording node's name.
func (l *Ledger) WithNodeName(name string) *Ledger {
	l.nodeName = name
	return l
}

// WithObservability wires RED metrics and tracing for ledger operations.
func (l *Ledger) WithObservability(p *observability.Provider) *Ledger {
	l.obs = p
	return l
}

// WithClock overrides the clock for testing.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// Append records an event as a new block at the head of the chain.
//
// On an append conflict (a concurrent writer extended the chain first)
// the whole computation is retried from a fresh read of the tail, up to
// the retry bound. A conflicted insert persists nothing, so retrying is
// always safe.
func (l *Ledger) Append(ctx context.Context, eventType chain.EventType, entityType chain.EntityType, entityID string, payload map[string]any) (b *chain.Block, err error) {
	if l.obs != nil {
		var done func(error)
		ctx, done = l.obs.TrackOperation(ctx, "ledger.append",
			attribute.String("event.type", string(eventType)))
		defer func() { done(err) }()
	}

	if l.validator != nil {
		if err := l.validator.Validate(eventType, payload); err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := 0; attempt < l.maxRetries; attempt++ {
		b, err := l.appendOnce(ctx, eventType, entityType, entityID, payload)
		if err == nil {
			l.logger.InfoContext(ctx, "block appended",
				"event_type", eventType,
				"entity", fmt.Sprintf("%s:%s", entityType, entityID),
				"sequence", b.Sequence,
				"digest", fmt.Sprintf("%.16s", b.Digest))
			return b, nil
		}
		if !errors.Is(err, chain.ErrAppendConflict) {
			return nil, err
		}
		lastErr = err
		l.logger.WarnContext(ctx, "append conflict, retrying from fresh tail",
			"event_type", eventType, "attempt", attempt+1)
	}
	return nil, fmt.Errorf("append retries exhausted: %w", lastErr)
}

// appendOnce runs one attempt of the append algorithm. Conflicts are
// returned to the caller, not retried here.
func (l *Ledger) appendOnce(ctx context.Context, eventType chain.EventType, entityType chain.EntityType, entityID string, payload map[string]any) (*chain.Block, error) {
	previousDigest := chain.GenesisDigest
	var sequence uint64 = 1
	var tailTime time.Time

	tail, err := l.store.Latest(ctx)
	switch {
	case err == nil:
		previousDigest = tail.Digest
		sequence = tail.Sequence + 1
		tailTime = tail.CreatedAt
	case errors.Is(err, chain.ErrNotFound):
		// Empty ledger; this block becomes genesis.
	default:
		return nil, err
	}

	createdAt := l.clock().UTC()
	if createdAt.Before(tailTime) {
		// Clocks may regress; created_at stays monotonic with the
		// sequence index, which breaks the tie.
		createdAt = tailTime
	}

	if payload == nil {
		payload = map[string]any{}
	}

	digest, err := l.hasher.Digest(previousDigest, eventType, entityType, entityID, payload, createdAt)
	if err != nil {
		return nil, err
	}

	b := &chain.Block{
		ID:             uuid.New().String(),
		Sequence:       sequence,
		PreviousDigest: previousDigest,
		Digest:         digest,
		EventType:      eventType,
		EntityType:     entityType,
		EntityID:       entityID,
		Payload:        payload,
		CreatedAt:      createdAt,
		RecordedBy:     l.nodeName,
	}

	if l.signer != nil {
		sig, err := l.signer.Sign([]byte(digest))
		if err != nil {
			return nil, fmt.Errorf("sign block: %w", err)
		}
		b.Signature = sig
		b.SignatureType = l.signer.SignatureType()
	}

	if err := l.store.Append(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// InitializeGenesis creates the genesis block if the store is empty.
// Idempotent and safe to call on every startup: if any block exists the
// call is a no-op returning the existing first block. A concurrent
// initializer losing the race also resolves to the existing first block.
func (l *Ledger) InitializeGenesis(ctx context.Context, systemName string) (*chain.Block, error) {
	if first, err := l.firstBlock(ctx); err == nil {
		return first, nil
	} else if !errors.Is(err, chain.ErrNotFound) {
		return nil, err
	}

	payload := map[string]any{
		"system":      systemName,
		"version":     "1.0",
		"description": "audit ledger initialized",
	}
	b, err := l.appendOnce(ctx, chain.EventSystemInit, chain.EntitySystem, "", payload)
	if err == nil {
		l.logger.InfoContext(ctx, "genesis block created", "digest", fmt.Sprintf("%.16s", b.Digest))
		return b, nil
	}
	if errors.Is(err, chain.ErrAppendConflict) {
		// Another process initialized first; its genesis wins.
		return l.firstBlock(ctx)
	}
	return nil, err
}

// RecordKeyRotation rotates the signing keystore and appends the rotation
// as a first-class ledger event, so the authority change is itself part
// of the tamper-evident history.
func (l *Ledger) RecordKeyRotation(ctx context.Context, ks *crypto.Keystore) (*chain.Block, error) {
	oldKeyID := ks.ActiveKeyID()
	newKeyID, publicKey, err := ks.Rotate()
	if err != nil {
		return nil, err
	}
	l.signer = ks.ActiveSigner()

	return l.Append(ctx, chain.EventSignerKeyRotated, chain.EntitySystem, "", map[string]any{
		"old_key_id": oldKeyID,
		"new_key_id": newKeyID,
		"public_key": publicKey,
	})
}

// LatestBlock returns the chain tail, or chain.ErrNotFound when empty.
func (l *Ledger) LatestBlock(ctx context.Context) (*chain.Block, error) {
	return l.store.Latest(ctx)
}

// ChainForEntity returns all blocks for one entity in chronological order.
func (l *Ledger) ChainForEntity(ctx context.Context, entityType chain.EntityType, entityID string) ([]*chain.Block, error) {
	return l.store.ListByEntity(ctx, entityType, entityID)
}

// BlocksByEventType returns up to limit blocks of one event type,
// most-recent-first.
func (l *Ledger) BlocksByEventType(ctx context.Context, eventType chain.EventType, limit int) ([]*chain.Block, error) {
	return l.store.ListByEventType(ctx, eventType, limit)
}

// VerifyChain verifies the most recent limit blocks (limit <= 0 means
// all), using the ledger's keyring-less verifier. Callers wanting
// signature verification use pkg/verifier directly with a keyring.
func (l *Ledger) VerifyChain(ctx context.Context, limit int) (res *verifier.Result, err error) {
	if l.obs != nil {
		var done func(error)
		ctx, done = l.obs.TrackOperation(ctx, "ledger.verify")
		defer func() { done(err) }()
	}
	return verifier.New(l.hasher).VerifyChain(ctx, l.store, limit)
}

// Store exposes the underlying block store to the read-only query façade.
func (l *Ledger) Store() store.BlockStore {
	return l.store
}

// firstBlock fetches the oldest block in the ledger.
func (l *Ledger) firstBlock(ctx context.Context) (*chain.Block, error) {
	count, err := l.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, chain.ErrNotFound
	}
	blocks, err := l.store.ListRecent(ctx, 1, int(count-1))
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, chain.ErrNotFound
	}
	return blocks[0], nil
}
