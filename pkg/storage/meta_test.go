package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/sketchlab/streamsketch/pkg/sketches"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// An in-memory database exists per connection; keep the pool at one.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, EnsureMetaTables(context.Background(), db))
	store, err := NewStore(db)
	require.NoError(t, err)
	return store
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	hll, err := sketches.NewHyperLogLog(256, sketches.HashSHA256)
	require.NoError(t, err)
	for i := 0; i < 500; i++ {
		hll = hll.Update([]byte{byte(i), byte(i >> 8)})
	}

	require.NoError(t, store.Save(ctx, Snapshot{
		Name:       "uniques",
		Type:       string(sketches.HyperLogLogType),
		Data:       hll.Serialize(),
		Parameters: `{"registers":256}`,
	}))

	snap, err := store.Load(ctx, "uniques")
	require.NoError(t, err)
	assert.Equal(t, string(sketches.HyperLogLogType), snap.Type)

	restored, err := sketches.Deserialize(sketches.SketchType(snap.Type), snap.Data)
	require.NoError(t, err)
	assert.Equal(t, hll.Count(), restored.(*sketches.HyperLogLog).Count())
}

func TestStoreSaveOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Snapshot{Name: "s", Type: "bloom", Data: []byte{1}}))
	require.NoError(t, store.Save(ctx, Snapshot{Name: "s", Type: "bloom", Data: []byte{2}}))

	snap, err := store.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, snap.Data)
}

func TestStoreLoadMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestStoreList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Snapshot{Name: "a", Type: "bloom", Data: []byte{1}}))
	require.NoError(t, store.Save(ctx, Snapshot{Name: "b", Type: "countmin", Data: []byte{2}}))

	snaps, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	names := []string{snaps[0].Name, snaps[1].Name}
	assert.ElementsMatch(t, []string{"a", "b"}, names)
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Snapshot{Name: "gone", Type: "bloom", Data: []byte{1}}))
	require.NoError(t, store.Delete(ctx, "gone"))

	_, err := store.Load(ctx, "gone")
	assert.Error(t, err, "delete must also evict the cache entry")
}
