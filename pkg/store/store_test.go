package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	keys, err := s.ListKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, s.Put(ctx, "us-core/.index.json", []byte(`{"files":[]}`)))
	require.NoError(t, s.Put(ctx, "us-core/StructureDefinition-a.json", []byte(`{"a":1}`)))
	require.NoError(t, s.Put(ctx, "us-core/StructureDefinition-a.json", []byte(`{"a":2}`)))

	keys, err = s.ListKeys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"us-core/.index.json", "us-core/StructureDefinition-a.json"}, keys)

	data, err := s.Get(ctx, "us-core/StructureDefinition-a.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(data))

	_, err = s.Get(ctx, "missing.json")
	assert.True(t, errors.Is(err, ErrNotFound), "expected ErrNotFound, got %v", err)

	require.NoError(t, s.Delete(ctx, "us-core/.index.json"))
	require.NoError(t, s.Delete(ctx, "us-core/.index.json"), "deleting a missing key is not an error")

	keys, err = s.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"us-core/StructureDefinition-a.json"}, keys)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStore_ListsTmpSuffixedKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "ig/notes.tmp", []byte("draft")))
	require.NoError(t, s.Put(ctx, "ig/a.json", []byte("{}")))

	keys, err := s.ListKeys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ig/a.json", "ig/notes.tmp"}, keys)

	data, err := s.Get(ctx, "ig/notes.tmp")
	require.NoError(t, err)
	assert.Equal(t, "draft", string(data))

	require.NoError(t, s.Delete(ctx, "ig/notes.tmp"))
	require.NoError(t, s.Delete(ctx, "ig/a.json"))
	keys, err = s.ListKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys, "staging area is not part of the key space")
}

func TestFileStore_RejectsStagingKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{StagingDir, StagingDir + "/put-1", "./" + StagingDir + "/x"} {
		err := s.Put(context.Background(), key, []byte("{}"))
		require.Error(t, err, key)
		assert.Contains(t, err.Error(), "reserved")
	}
}

func TestFileStore_RejectsEscapingKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	err = s.Put(context.Background(), "../outside.json", []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid key")
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "k", []byte("abc")))

	data, err := s.Get(ctx, "k")
	require.NoError(t, err)
	data[0] = 'x'

	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestSnapshot_SortsAndDownloads(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "b.json", []byte("B")))
	require.NoError(t, s.Put(ctx, "a.json", []byte("A")))

	objects, err := Snapshot(ctx, s)
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, Object{Key: "a.json", Content: []byte("A")}, objects[0])
	assert.Equal(t, Object{Key: "b.json", Content: []byte("B")}, objects[1])
}

type failingLister struct{ *MemoryStore }

func (failingLister) ListKeys(context.Context) ([]string, error) {
	return nil, errors.New("access denied")
}

func TestSnapshot_ListFailure(t *testing.T) {
	_, err := Snapshot(context.Background(), failingLister{NewMemoryStore()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}
