package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/proctorhq/examledger/pkg/chain"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint breach.
const uniqueViolation = "23505"

// PostgresStore is a durable BlockStore backed by Postgres.
//
// Like the SQLite store, the UNIQUE constraints on sequence_index and
// digest serialize concurrent appenders across processes: whichever
// writer commits second gets an AppendConflictError and retries from a
// fresh tail. This holds even with multiple service instances sharing
// the database.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// created_at is RFC3339Nano text, not TIMESTAMPTZ: Postgres timestamps
// keep microseconds only, and a truncated read-back would recompute to a
// different digest.
const pgSchema = `
CREATE TABLE IF NOT EXISTS audit_blocks (
	id UUID PRIMARY KEY,
	sequence_index BIGINT NOT NULL UNIQUE,
	previous_digest TEXT NOT NULL,
	digest TEXT NOT NULL UNIQUE,
	event_type TEXT NOT NULL,
	entity_type TEXT NOT NULL DEFAULT '',
	entity_id TEXT NOT NULL DEFAULT '',
	payload JSONB NOT NULL,
	created_at TEXT NOT NULL,
	signature TEXT,
	signature_type TEXT,
	recorded_by TEXT
);
CREATE INDEX IF NOT EXISTS idx_audit_blocks_entity ON audit_blocks(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_audit_blocks_event_type ON audit_blocks(event_type);
`

// Init creates the schema if it does not exist. Safe to call on every
// startup.
func (s *PostgresStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, pgSchema); err != nil {
		return &chain.StoreError{Op: "migrate", Cause: err}
	}
	return nil
}

const pgBlockColumns = `id, sequence_index, previous_digest, digest, event_type, entity_type, entity_id, payload, created_at, signature, signature_type, recorded_by`

func (s *PostgresStore) Append(ctx context.Context, b *chain.Block) error {
	payloadJSON, err := json.Marshal(b.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `INSERT INTO audit_blocks (` + pgBlockColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = s.db.ExecContext(ctx, query,
		b.ID, b.Sequence, b.PreviousDigest, b.Digest, string(b.EventType), string(b.EntityType), b.EntityID,
		string(payloadJSON), b.CreatedAt.UTC().Format(time.RFC3339Nano), nullable(b.Signature), nullable(b.SignatureType), nullable(b.RecordedBy),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return &chain.AppendConflictError{Sequence: b.Sequence, Cause: err}
		}
		return &chain.StoreError{Op: "append", Cause: err}
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context) (*chain.Block, error) {
	query := `SELECT ` + pgBlockColumns + ` FROM audit_blocks ORDER BY sequence_index DESC LIMIT 1`
	return s.queryOne(ctx, query)
}

func (s *PostgresStore) ByDigest(ctx context.Context, digest string) (*chain.Block, error) {
	query := `SELECT ` + pgBlockColumns + ` FROM audit_blocks WHERE digest = $1`
	return s.queryOne(ctx, query, digest)
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit, offset int) ([]*chain.Block, error) {
	query := `SELECT ` + pgBlockColumns + ` FROM audit_blocks ORDER BY sequence_index DESC LIMIT $1 OFFSET $2`
	return s.queryMany(ctx, query, limit, offset)
}

func (s *PostgresStore) ListByEntity(ctx context.Context, entityType chain.EntityType, entityID string) ([]*chain.Block, error) {
	query := `SELECT ` + pgBlockColumns + ` FROM audit_blocks WHERE entity_type = $1 AND entity_id = $2 ORDER BY sequence_index ASC`
	return s.queryMany(ctx, query, string(entityType), entityID)
}

func (s *PostgresStore) ListByEventType(ctx context.Context, eventType chain.EventType, limit int) ([]*chain.Block, error) {
	query := `SELECT ` + pgBlockColumns + ` FROM audit_blocks WHERE event_type = $1 ORDER BY sequence_index DESC LIMIT $2`
	return s.queryMany(ctx, query, string(eventType), limit)
}

func (s *PostgresStore) Count(ctx context.Context) (uint64, error) {
	var n uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_blocks`).Scan(&n); err != nil {
		return 0, &chain.StoreError{Op: "count", Cause: err}
	}
	return n, nil
}

func (s *PostgresStore) CountByEventType(ctx context.Context) (map[chain.EventType]uint64, error) {
	// Explicit ORDER BY: aggregation without it produced non-deterministic
	// output in an earlier iteration of this system.
	rows, err := s.db.QueryContext(ctx, `SELECT event_type, COUNT(*) FROM audit_blocks GROUP BY event_type ORDER BY event_type`)
	if err != nil {
		return nil, &chain.StoreError{Op: "count by event type", Cause: err}
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[chain.EventType]uint64)
	for rows.Next() {
		var et string
		var n uint64
		if err := rows.Scan(&et, &n); err != nil {
			return nil, err
		}
		counts[chain.EventType(et)] = n
	}
	return counts, rows.Err()
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, args ...any) (*chain.Block, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	b, err := scanPgBlock(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, chain.ErrNotFound
		}
		return nil, &chain.StoreError{Op: "query", Cause: err}
	}
	return b, nil
}

func (s *PostgresStore) queryMany(ctx context.Context, query string, args ...any) ([]*chain.Block, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &chain.StoreError{Op: "query", Cause: err}
	}
	defer func() { _ = rows.Close() }()

	blocks := make([]*chain.Block, 0)
	for rows.Next() {
		b, err := scanPgBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, &chain.StoreError{Op: "query", Cause: err}
	}
	return blocks, nil
}

func scanPgBlock(row rowScanner) (*chain.Block, error) {
	var (
		b           chain.Block
		eventType   string
		entityType  string
		payloadJSON []byte
		createdAt   string
		signature   sql.NullString
		sigType     sql.NullString
		recordedBy  sql.NullString
	)
	err := row.Scan(&b.ID, &b.Sequence, &b.PreviousDigest, &b.Digest, &eventType, &entityType, &b.EntityID,
		&payloadJSON, &createdAt, &signature, &sigType, &recordedBy)
	if err != nil {
		return nil, err
	}

	b.EventType = chain.EventType(eventType)
	b.EntityType = chain.EntityType(entityType)
	b.Signature = signature.String
	b.SignatureType = sigType.String
	b.RecordedBy = recordedBy.String
	b.CreatedAt = parseTime(createdAt)

	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &b.Payload); err != nil {
			return nil, fmt.Errorf("corrupt payload for block %d: %w", b.Sequence, err)
		}
	}
	return &b, nil
}
