package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thesisharness/internal/confidence"
	"thesisharness/internal/scratchpad"
)

func TestStore_InsertGetDelete(t *testing.T) {
	s := New()
	pad := scratchpad.New("sess-1", "Thesis", confidence.ModeForward, scratchpad.DefaultConfig())

	require.NoError(t, s.Insert("sess-1", pad))
	got, ok := s.Get("sess-1")
	require.True(t, ok)
	assert.Same(t, pad, got)

	s.Delete("sess-1")
	_, ok = s.Get("sess-1")
	assert.False(t, ok)
}

func TestStore_InsertRejectsDuplicate(t *testing.T) {
	s := New()
	pad := scratchpad.New("sess-1", "Thesis", confidence.ModeForward, scratchpad.DefaultConfig())
	require.NoError(t, s.Insert("sess-1", pad))
	assert.Error(t, s.Insert("sess-1", pad))
}

func TestStore_ListSorted(t *testing.T) {
	s := New()
	_ = s.Insert("b", scratchpad.New("b", "B", confidence.ModeForward, scratchpad.DefaultConfig()))
	_ = s.Insert("a", scratchpad.New("a", "A", confidence.ModeForward, scratchpad.DefaultConfig()))
	assert.Equal(t, []string{"a", "b"}, s.List())
	assert.Equal(t, 2, s.Len())
}

func TestStore_CloseOnInMemoryStoreIsNoOp(t *testing.T) {
	s := New()
	assert.NoError(t, s.Close())
}

func TestNewSQLite_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")

	s1, err := NewSQLite(dbPath)
	require.NoError(t, err)

	pad := scratchpad.New("sess-1", "Persisted thesis", confidence.ModeForward, scratchpad.DefaultConfig())
	pad.AddKeyEvidence("Revenue grew 12% YoY", "10-K filing", 0.8, scratchpad.DirectionSupports)
	require.NoError(t, s1.Insert("sess-1", pad))
	require.NoError(t, s1.Close())

	s2, err := NewSQLite(dbPath)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	got, ok := s2.Get("sess-1")
	require.True(t, ok)
	assert.Equal(t, "Persisted thesis", got.Title)
	require.Len(t, got.KeyEvidence, 1)
	assert.Equal(t, "Revenue grew 12% YoY", got.KeyEvidence[0].Content)
}

func TestNewSQLite_DeleteRemovesFromDiskToo(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")

	s1, err := NewSQLite(dbPath)
	require.NoError(t, err)
	pad := scratchpad.New("sess-1", "Thesis", confidence.ModeForward, scratchpad.DefaultConfig())
	require.NoError(t, s1.Insert("sess-1", pad))
	s1.Delete("sess-1")
	require.NoError(t, s1.Close())

	s2, err := NewSQLite(dbPath)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	_, ok := s2.Get("sess-1")
	assert.False(t, ok)
}

func TestNewSQLite_PutOverwritesPersistedCopy(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")

	s1, err := NewSQLite(dbPath)
	require.NoError(t, err)
	pad := scratchpad.New("sess-1", "Original", confidence.ModeForward, scratchpad.DefaultConfig())
	require.NoError(t, s1.Insert("sess-1", pad))

	updated := scratchpad.New("sess-1", "Updated", confidence.ModeForward, scratchpad.DefaultConfig())
	s1.Put("sess-1", updated)
	require.NoError(t, s1.Close())

	s2, err := NewSQLite(dbPath)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	got, ok := s2.Get("sess-1")
	require.True(t, ok)
	assert.Equal(t, "Updated", got.Title)
}

func TestNewSQLite_EmptyPathIsRejected(t *testing.T) {
	_, err := NewSQLite("")
	assert.Error(t, err)
}
