package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proctorhq/examledger/pkg/chain"
	"github.com/proctorhq/examledger/pkg/crypto"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db), mock
}

func pgRows(blocks ...*chain.Block) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "sequence_index", "previous_digest", "digest", "event_type", "entity_type",
		"entity_id", "payload", "created_at", "signature", "signature_type", "recorded_by",
	})
	for _, b := range blocks {
		rows.AddRow(b.ID, b.Sequence, b.PreviousDigest, b.Digest, string(b.EventType), string(b.EntityType),
			b.EntityID, []byte(fmt.Sprintf(`{"seq":%d}`, b.Sequence)), b.CreatedAt.UTC().Format(time.RFC3339Nano),
			b.Signature, b.SignatureType, b.RecordedBy)
	}
	return rows
}

func TestPostgresAppend(t *testing.T) {
	s, mock := newMockStore(t)
	b := testBlock(2, chain.EventAttemptStart, chain.EntityExamAttempt, "A1")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_blocks")).
		WithArgs(b.ID, b.Sequence, b.PreviousDigest, b.Digest, string(b.EventType), string(b.EntityType),
			b.EntityID, sqlmock.AnyArg(), b.CreatedAt.UTC().Format(time.RFC3339Nano),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Append(context.Background(), b))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendUniqueViolationIsConflict(t *testing.T) {
	s, mock := newMockStore(t)
	b := testBlock(2, chain.EventAttemptStart, chain.EntityExamAttempt, "A1")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_blocks")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "audit_blocks_sequence_index_key"})

	err := s.Append(context.Background(), b)
	assert.ErrorIs(t, err, chain.ErrAppendConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendOtherErrorIsStoreError(t *testing.T) {
	s, mock := newMockStore(t)
	b := testBlock(2, chain.EventAttemptStart, chain.EntityExamAttempt, "A1")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_blocks")).
		WillReturnError(sql.ErrConnDone)

	err := s.Append(context.Background(), b)
	assert.ErrorIs(t, err, chain.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, chain.ErrAppendConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLatest(t *testing.T) {
	s, mock := newMockStore(t)
	b := testBlock(3, chain.EventAttemptSubmit, chain.EntityExamAttempt, "A1")
	b.Signature = "aa"
	b.SignatureType = "ed25519:key-1"

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY sequence_index DESC LIMIT 1")).
		WillReturnRows(pgRows(b))

	got, err := s.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.Sequence)
	assert.Equal(t, b.Digest, got.Digest)
	assert.Equal(t, chain.EventAttemptSubmit, got.EventType)
	assert.Equal(t, "ed25519:key-1", got.SignatureType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreatedAtKeepsDigest(t *testing.T) {
	s, mock := newMockStore(t)

	// Nanosecond-precision created_at must survive the round trip exactly;
	// pgRows carries the same RFC3339Nano text Append writes.
	b := testBlock(2, chain.EventAttemptStart, chain.EntityExamAttempt, "A1")
	b.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

	h := crypto.NewBlockHasher()
	digest, err := h.Digest(b.PreviousDigest, b.EventType, b.EntityType, b.EntityID, b.Payload, b.CreatedAt)
	require.NoError(t, err)
	b.Digest = digest

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY sequence_index DESC LIMIT 1")).
		WillReturnRows(pgRows(b))

	got, err := s.Latest(context.Background())
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(b.CreatedAt))

	recomputed, err := h.DigestBlock(got)
	require.NoError(t, err)
	assert.Equal(t, b.Digest, recomputed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLatestEmpty(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY sequence_index DESC LIMIT 1")).
		WillReturnRows(pgRows())

	_, err := s.Latest(context.Background())
	assert.ErrorIs(t, err, chain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListByEntity(t *testing.T) {
	s, mock := newMockStore(t)
	b2 := testBlock(2, chain.EventAttemptStart, chain.EntityExamAttempt, "A1")
	b4 := testBlock(4, chain.EventAttemptSubmit, chain.EntityExamAttempt, "A1")

	mock.ExpectQuery(regexp.QuoteMeta("WHERE entity_type = $1 AND entity_id = $2 ORDER BY sequence_index ASC")).
		WithArgs("exam_attempt", "A1").
		WillReturnRows(pgRows(b2, b4))

	blocks, err := s.ListByEntity(context.Background(), chain.EntityExamAttempt, "A1")
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, uint64(2), blocks[0].Sequence)
	assert.Equal(t, uint64(4), blocks[1].Sequence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCountByEventType(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY event_type ORDER BY event_type")).
		WillReturnRows(sqlmock.NewRows([]string{"event_type", "count"}).
			AddRow("exam_attempt_start", 3).
			AddRow("system_init", 1))

	counts, err := s.CountByEventType(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), counts[chain.EventAttemptStart])
	assert.Equal(t, uint64(1), counts[chain.EventSystemInit])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInit(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_blocks").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Init(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
