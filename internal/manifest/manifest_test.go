package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "manifest.db"))
	require.NoError(t, err)
	defer s.Close()

	rec := BuildRecord{
		CorpusHash: "abc123",
		VocabHash:  "def456",
		LabelKind:  "name",
		Size:       3,
		TopK:       5,
		OutputPath: "out.db",
		BuiltAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Record(rec))

	got, ok, err := s.Get("out.db")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.CorpusHash, got.CorpusHash)
	assert.Equal(t, rec.Size, got.Size)
	assert.True(t, rec.BuiltAt.Equal(got.BuiltAt))
}

func TestGetMissingReturnsNotOK(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "manifest.db"))
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Get("nonexistent.db")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllListsEveryRecord(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "manifest.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Record(BuildRecord{OutputPath: "a.db", Size: 3}))
	require.NoError(t, s.Record(BuildRecord{OutputPath: "b.db", Size: 1}))

	all, err := s.All()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 3, all["a.db"].Size)
	assert.Equal(t, 1, all["b.db"].Size)
}

func TestHashFileIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.tsv")
	require.NoError(t, os.WriteFile(path, []byte("count\t5\n"), 0o644))

	h1, err := HashFile(path)
	require.NoError(t, err)
	h2, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64) // hex-encoded SHA-256
}
