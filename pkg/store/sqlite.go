package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/proctorhq/examledger/pkg/chain"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a durable BlockStore backed by SQLite.
//
// The UNIQUE constraints on sequence_index and digest are the
// serialization point for concurrent appenders: the losing writer's
// INSERT fails and surfaces as an AppendConflictError.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &chain.StoreError{Op: "open", Cause: err}
	}
	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY on concurrent appends.
	db.SetMaxOpenConns(1)
	return NewSQLiteStore(db)
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_blocks (
		id TEXT PRIMARY KEY,
		sequence_index INTEGER NOT NULL UNIQUE,
		previous_digest TEXT NOT NULL,
		digest TEXT NOT NULL UNIQUE,
		event_type TEXT NOT NULL,
		entity_type TEXT NOT NULL DEFAULT '',
		entity_id TEXT NOT NULL DEFAULT '',
		payload JSON NOT NULL,
		created_at TEXT NOT NULL,
		signature TEXT,
		signature_type TEXT,
		recorded_by TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_audit_blocks_entity ON audit_blocks(entity_type, entity_id);
	CREATE INDEX IF NOT EXISTS idx_audit_blocks_event_type ON audit_blocks(event_type);`
	if _, err := s.db.ExecContext(context.Background(), query); err != nil {
		return &chain.StoreError{Op: "migrate", Cause: err}
	}
	return nil
}

const sqliteBlockColumns = `id, sequence_index, previous_digest, digest, event_type, entity_type, entity_id, payload, created_at, signature, signature_type, recorded_by`

func (s *SQLiteStore) Append(ctx context.Context, b *chain.Block) error {
	payloadJSON, err := json.Marshal(b.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `INSERT INTO audit_blocks (` + sqliteBlockColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		b.ID, b.Sequence, b.PreviousDigest, b.Digest, string(b.EventType), string(b.EntityType), b.EntityID,
		string(payloadJSON), b.CreatedAt.UTC().Format(time.RFC3339Nano), nullable(b.Signature), nullable(b.SignatureType), nullable(b.RecordedBy),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return &chain.AppendConflictError{Sequence: b.Sequence, Cause: err}
		}
		return &chain.StoreError{Op: "append", Cause: err}
	}
	return nil
}

func (s *SQLiteStore) Latest(ctx context.Context) (*chain.Block, error) {
	query := `SELECT ` + sqliteBlockColumns + ` FROM audit_blocks ORDER BY sequence_index DESC LIMIT 1`
	return s.queryOne(ctx, query)
}

func (s *SQLiteStore) ByDigest(ctx context.Context, digest string) (*chain.Block, error) {
	query := `SELECT ` + sqliteBlockColumns + ` FROM audit_blocks WHERE digest = ?`
	return s.queryOne(ctx, query, digest)
}

func (s *SQLiteStore) ListRecent(ctx context.Context, limit, offset int) ([]*chain.Block, error) {
	query := `SELECT ` + sqliteBlockColumns + ` FROM audit_blocks ORDER BY sequence_index DESC LIMIT ? OFFSET ?`
	return s.queryMany(ctx, query, limit, offset)
}

func (s *SQLiteStore) ListByEntity(ctx context.Context, entityType chain.EntityType, entityID string) ([]*chain.Block, error) {
	query := `SELECT ` + sqliteBlockColumns + ` FROM audit_blocks WHERE entity_type = ? AND entity_id = ? ORDER BY sequence_index ASC`
	return s.queryMany(ctx, query, string(entityType), entityID)
}

func (s *SQLiteStore) ListByEventType(ctx context.Context, eventType chain.EventType, limit int) ([]*chain.Block, error) {
	query := `SELECT ` + sqliteBlockColumns + ` FROM audit_blocks WHERE event_type = ? ORDER BY sequence_index DESC LIMIT ?`
	return s.queryMany(ctx, query, string(eventType), limit)
}

func (s *SQLiteStore) Count(ctx context.Context) (uint64, error) {
	var n uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_blocks`).Scan(&n); err != nil {
		return 0, &chain.StoreError{Op: "count", Cause: err}
	}
	return n, nil
}

func (s *SQLiteStore) CountByEventType(ctx context.Context) (map[chain.EventType]uint64, error) {
	// ORDER BY keeps the aggregate deterministic.
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

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryOne(ctx context.Context, query string, args ...any) (*chain.Block, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	b, err := scanBlock(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, chain.ErrNotFound
		}
		return nil, &chain.StoreError{Op: "query", Cause: err}
	}
	return b, nil
}

func (s *SQLiteStore) queryMany(ctx context.Context, query string, args ...any) ([]*chain.Block, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &chain.StoreError{Op: "query", Cause: err}
	}
	defer func() { _ = rows.Close() }()

	blocks := make([]*chain.Block, 0)
	for rows.Next() {
		b, err := scanBlock(rows)
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

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(row rowScanner) (*chain.Block, error) {
	var (
		b           chain.Block
		eventType   string
		entityType  string
		payloadJSON string
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

	if payloadJSON != "" {
		if err := json.Unmarshal([]byte(payloadJSON), &b.Payload); err != nil {
			// Fail loud: a payload that does not round-trip is evidence of
			// corruption, not something to skip.
			return nil, fmt.Errorf("corrupt payload for block %d: %w", b.Sequence, err)
		}
	}
	return &b, nil
}

func parseTime(value string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
