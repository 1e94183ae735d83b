package tlog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/immuva/pkg/canonicalize"
	"github.com/Mindburn-Labs/immuva/pkg/merkle"
)

func exerciseLog(t *testing.T, log *Log) {
	t.Helper()
	ctx := context.Background()

	empty, err := log.Root(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TreeSize)
	assert.Equal(t, canonicalize.SHA256Hex(""), empty.Root)

	events := []string{`{"a":1}`, `{"b":2}`, `{"c":3}`}
	for i, ev := range events {
		leaf, err := log.Append(ctx, ev)
		require.NoError(t, err)
		assert.Equal(t, i, leaf.LeafIndex)
		assert.Equal(t, canonicalize.SHA256Hex(ev), leaf.PayloadHash)
	}

	root, err := log.Root(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, root.TreeSize)
	assert.NotEmpty(t, root.GeneratedAt)

	for i := range events {
		p, err := log.Prove(ctx, i)
		require.NoError(t, err)
		assert.Equal(t, root.Root, p.Root)
		assert.True(t, merkle.VerifyInclusion(p), "leaf %d", i)
	}

	_, err = log.Prove(ctx, 3)
	assert.ErrorIs(t, err, merkle.ErrLeafIndexOutOfRange)

	leaves, err := log.Leaves(ctx)
	require.NoError(t, err)
	require.Len(t, leaves, 3)
	assert.Equal(t, 2, leaves[2].LeafIndex)
}

func TestLog_Memory(t *testing.T) {
	exerciseLog(t, New(NewMemoryStore()))
}

func TestLog_SQLite(t *testing.T) {
	s, err := OpenSQL(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseLog(t, New(s))

	n, err := s.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestLog_SingleEntryRoot(t *testing.T) {
	ctx := context.Background()
	log := New(NewMemoryStore())
	_, err := log.Append(ctx, `{"x":true}`)
	require.NoError(t, err)

	root, err := log.Root(ctx)
	require.NoError(t, err)
	inner := sha256.Sum256([]byte(`{"x":true}`))
	outer := sha256.Sum256(inner[:])
	assert.Equal(t, hex.EncodeToString(outer[:]), root.Root)
}

func TestOpenSQL_UnknownDriver(t *testing.T) {
	_, err := OpenSQL(context.Background(), "mysql", "")
	assert.Error(t, err)
}

func TestMemoryStore_RejectsEmpty(t *testing.T) {
	_, err := NewMemoryStore().Append(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyPayloadHash)
}

func TestSQLStore_PostgresDialect(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS tlog_entries").WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := NewSQLStore(context.Background(), db, DialectPostgres)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("VALUES ($1, $2, $3, $4)")).
		WithArgs(sqlmock.AnyArg(), 2, "abcd", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	e, err := s.Append(context.Background(), "abcd")
	require.NoError(t, err)
	assert.Equal(t, 2, e.LeafIndex)
	assert.NotEmpty(t, e.EntryID)

	mock.ExpectQuery("SELECT entry_id, leaf_index, payload_hash, created_at").
		WillReturnRows(sqlmock.NewRows([]string{"entry_id", "leaf_index", "payload_hash", "created_at"}).
			AddRow("e0", 0, "00", "2026-01-01T00:00:00Z").
			AddRow("e1", 1, "01", "2026-01-01T00:00:01Z"))
	entries, err := s.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "01", entries[1].PayloadHash)
	assert.Equal(t, 2026, entries[0].CreatedAt.Year())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_InsertFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := NewSQLStore(context.Background(), db, DialectSQLite)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("VALUES (?, ?, ?, ?)")).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err = s.Append(context.Background(), "ff")
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLog_CorruptPayloadHash(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := NewSQLStore(context.Background(), db, DialectSQLite)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT entry_id").
		WillReturnRows(sqlmock.NewRows([]string{"entry_id", "leaf_index", "payload_hash", "created_at"}).
			AddRow("e0", 0, "not-hex", "2026-01-01T00:00:00Z"))
	_, err = New(s).Root(context.Background())
	assert.ErrorContains(t, err, "bad payload hash")
}
