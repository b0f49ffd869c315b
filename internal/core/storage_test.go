package core

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackcore/internal/blob"
	"trackcore/internal/infra/persistence/badger"
	blobrecords "trackcore/internal/infra/persistence/blob"
	"trackcore/internal/infra/persistence/memory"
	"trackcore/internal/infra/persistence/sqlite"
	"trackcore/pkg/domain"
)

func TestOpenPersistentStoreDrivers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cases := []struct {
		name  string
		cfg   StorageConfig
		check func(t *testing.T, store domain.PersistentStore)
	}{
		{"memory", StorageConfig{Driver: StorageMemory, GeneratedIDs: true}, func(t *testing.T, store domain.PersistentStore) {
			ms, ok := store.(*memory.Store)
			require.True(t, ok)
			assert.True(t, ms.GeneratesIDs())
		}},
		{"sqlite default", StorageConfig{SQLitePath: filepath.Join(dir, "records.db")}, func(t *testing.T, store domain.PersistentStore) {
			_, ok := store.(*sqlite.Store)
			assert.True(t, ok)
		}},
		{"badger", StorageConfig{Driver: StorageBadger, BadgerPath: filepath.Join(dir, "kv")}, func(t *testing.T, store domain.PersistentStore) {
			_, ok := store.(*badger.Store)
			assert.True(t, ok)
		}},
		{"blob", StorageConfig{Driver: StorageBlob, Blob: blob.Config{Driver: blob.DriverMemory}}, func(t *testing.T, store domain.PersistentStore) {
			_, ok := store.(*blobrecords.Store)
			assert.True(t, ok)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := OpenPersistentStore(ctx, tc.cfg, nil)
			require.NoError(t, err)
			defer func() { require.NoError(t, store.Close()) }()
			tc.check(t, store)

			s := NewSession(store, newTestRegistry())
			sc := begin(t, s, "smoke")
			domain.Save(newBox(t, s, "b"))
			commitAndClose(t, sc)
			recs, err := store.LoadRecords(ctx, "box")
			require.NoError(t, err)
			assert.Len(t, recs, 1)
		})
	}
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	_, err := OpenPersistentStore(context.Background(), StorageConfig{Driver: "tape"}, nil)
	assert.ErrorContains(t, err, "unknown storage driver tape")
}
