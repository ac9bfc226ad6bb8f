package artifact

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/governor/internal/store"
)

func newTestStore(t *testing.T) (*Store, *store.DB) {
	t.Helper()
	db, err := store.Open(t.TempDir() + "/governor.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(t.TempDir(), db), db
}

func TestPutGetRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)

	content := []byte("package main\n\nfunc main() {}\n")
	a, err := s.Put(content, store.ArtifactSpec, Metadata{ProjectID: "p1"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.Hash)
	assert.Equal(t, int64(len(content)), a.Size)

	got, err := s.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Hash, got.Hash)

	rc, err := s.Open(a.ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestPutDeduplicatesIdenticalContent(t *testing.T) {
	s, _ := newTestStore(t)

	content := []byte("identical content")
	a1, err := s.Put(content, store.ArtifactLog, Metadata{ProjectID: "p1"})
	require.NoError(t, err)
	a2, err := s.Put(content, store.ArtifactLog, Metadata{ProjectID: "p1"})
	require.NoError(t, err)

	assert.Equal(t, a1.ID, a2.ID)
}

func TestPathIsPrefixPreserving(t *testing.T) {
	s, _ := newTestStore(t)
	a, err := s.Put([]byte("x"), store.ArtifactDiff, Metadata{ProjectID: "p1"})
	require.NoError(t, err)
	assert.Contains(t, a.Path, a.Hash[:2])
	assert.Contains(t, a.Path, a.Hash)
}
