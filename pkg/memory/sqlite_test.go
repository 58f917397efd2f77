package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "sophia.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreUpsertSelect(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, TableSessions, Record{"id": "a", "transcript": "one", "created_at": 1}))
	require.NoError(t, s.Upsert(ctx, TableSessions, Record{"id": "b", "transcript": "two", "created_at": 2}))
	require.NoError(t, s.Upsert(ctx, TableSessions, Record{"id": "a", "transcript": "three", "created_at": 3}))

	recs, err := s.Select(ctx, TableSessions, Filter{Equals: map[string]any{"id": "a"}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "three", recs[0].String("transcript"))
	assert.Equal(t, float64(3), recs[0].Float("created_at"))

	recs, err = s.Select(ctx, TableSessions, Filter{OrderBy: "created_at", Desc: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a", recs[0].String("id"))
}

func TestSQLiteStoreAssignsID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := Record{"session_id": "s1", "role": "user", "confidence": 0.7}
	require.NoError(t, s.Upsert(ctx, TableEmotionScores, rec))
	assert.NotEmpty(t, rec.String("id"))

	require.NoError(t, s.Upsert(ctx, TableEmotionScores, Record{"session_id": "s1", "role": "assistant", "confidence": 0.9}))
	require.NoError(t, s.Upsert(ctx, TableEmotionScores, Record{"session_id": "s2", "role": "user", "confidence": 0.5}))

	recs, err := s.Select(ctx, TableEmotionScores, Filter{Equals: map[string]any{"session_id": "s1"}})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "user", recs[0].String("role"))
	assert.Equal(t, "assistant", recs[1].String("role"))
}

func TestSQLiteStoreCreatesTablesOnDemand(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	recs, err := s.Select(ctx, "audio_refs", Filter{})
	require.NoError(t, err)
	assert.Empty(t, recs)

	require.NoError(t, s.Upsert(ctx, "audio_refs", Record{"id": "k", "flag": true}))
	recs, err = s.Select(ctx, "audio_refs", Filter{Equals: map[string]any{"flag": true}})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestSQLiteStoreRejectsBadNames(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.Upsert(ctx, `x"; DROP TABLE y; --`, Record{"id": "1"})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = s.Select(ctx, TableSessions, Filter{Equals: map[string]any{"a') OR 1=1 --": 1}})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = s.Select(ctx, TableSessions, Filter{OrderBy: "created_at desc"})
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestSQLiteStoreClosed(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Upsert(context.Background(), "late_table", Record{"id": "1"})
	assert.ErrorIs(t, err, ErrStoreClosed)
}
