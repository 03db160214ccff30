package asyncdb_test

import (
	"testing"

	"github.com/cockroachdb/pebble/v2/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sxwebdev/asyncdb"
)

func TestDestroy_WhileOpenIsRefused(t *testing.T) {
	forEachDriver(t, func(t *testing.T, path string, opts []asyncdb.Option) {
		db := openDB(t, newDispatcher(t), path, opts...)
		require.NoError(t, await(t, put(db, "key", "value")))

		err := asyncdb.Destroy(path, opts...)
		require.Error(t, err)
		assert.ErrorIs(t, err, asyncdb.ErrStoreLocked)
		assert.True(t, asyncdb.IsEngineError(err))

		// The store is intact.
		r := awaitGet(t, db, []byte("key"))
		require.NoError(t, r.err)
		assert.Equal(t, []byte("value"), r.value)
	})
}

func TestDestroy_MissingStore(t *testing.T) {
	forEachDriver(t, func(t *testing.T, path string, opts []asyncdb.Option) {
		require.NoError(t, asyncdb.Destroy(path+"-never-created", opts...))
	})
}

func TestRepair_MissingStore(t *testing.T) {
	forEachDriver(t, func(t *testing.T, path string, opts []asyncdb.Option) {
		err := asyncdb.Repair(path+"-never-created", opts...)
		require.Error(t, err)
		assert.True(t, asyncdb.IsEngineError(err))
	})
}

func TestDB_OpenLockedStoreFails(t *testing.T) {
	forEachDriver(t, func(t *testing.T, path string, opts []asyncdb.Option) {
		d := newDispatcher(t)
		openDB(t, d, path, opts...)

		other := asyncdb.NewDB(d)
		err := await(t, func(cb asyncdb.Callback) error {
			return other.Open(path, cb, opts...)
		})
		require.Error(t, err)
		assert.True(t, asyncdb.IsEngineError(err))
		assert.Equal(t, asyncdb.StateClosed, other.State())
	})
}

func TestDB_Readonly(t *testing.T) {
	forEachDriver(t, func(t *testing.T, path string, opts []asyncdb.Option) {
		d := newDispatcher(t)
		db := asyncdb.NewDB(d)
		require.NoError(t, await(t, func(cb asyncdb.Callback) error {
			return db.Open(path, cb, opts...)
		}))
		require.NoError(t, await(t, put(db, "key", "value")))
		require.NoError(t, await(t, db.Close))

		ro := openDB(t, d, path, append(opts, asyncdb.WithReadonly(true))...)

		r := awaitGet(t, ro, []byte("key"))
		require.NoError(t, r.err)
		assert.Equal(t, []byte("value"), r.value)

		err := await(t, put(ro, "key", "other"))
		require.Error(t, err)
		assert.True(t, asyncdb.IsEngineError(err))
	})
}

func TestDB_WriteOptions(t *testing.T) {
	forEachDriver(t, func(t *testing.T, path string, opts []asyncdb.Option) {
		db := openDB(t, newDispatcher(t), path, opts...)

		for i, wo := range []*asyncdb.WriteOptions{nil, asyncdb.Sync(), asyncdb.NoSync(), {}} {
			key := []byte{'k', byte('0' + i)}
			require.NoError(t, await(t, func(cb asyncdb.Callback) error {
				return db.Put(key, []byte("v"), wo, cb)
			}))
			r := awaitGet(t, db, key)
			require.NoError(t, r.err)
			assert.True(t, r.found)
		}
	})
}

func TestMemoryDriver_IteratorIsSnapshot(t *testing.T) {
	db := newMemoryDB(t)
	require.NoError(t, await(t, put(db, "a", "1")))

	iter, err := db.NewIterator(nil)
	require.NoError(t, err)
	defer iter.Release()

	require.NoError(t, await(t, put(db, "b", "2")))

	var keys []string
	for valid := iter.First(); valid; valid = iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	assert.Equal(t, []string{"a"}, keys)
	assert.False(t, iter.Next())
	assert.Nil(t, iter.Key())
}

func TestMemoryDriver_PrivateNamespaces(t *testing.T) {
	d := newDispatcher(t)
	first := openDB(t, d, "db", asyncdb.WithDriver(asyncdb.NewMemoryDriver()))
	second := openDB(t, d, "db", asyncdb.WithDriver(asyncdb.NewMemoryDriver()))

	require.NoError(t, await(t, put(first, "key", "value")))

	r := awaitGet(t, second, []byte("key"))
	require.NoError(t, r.err)
	assert.False(t, r.found)
}

func TestPebbleDriver_SharedMemFS(t *testing.T) {
	fs := vfs.NewMem()
	d := newDispatcher(t)

	db := asyncdb.NewDB(d)
	require.NoError(t, await(t, func(cb asyncdb.Callback) error {
		return db.Open("store", cb, asyncdb.WithFS(fs), asyncdb.WithCache(8), asyncdb.WithHandles(8))
	}))
	require.NoError(t, await(t, put(db, "key", "value")))
	require.NoError(t, await(t, db.Close))

	// A different filesystem does not see the store.
	err := await(t, func(cb asyncdb.Callback) error {
		return db.Open("store", cb, asyncdb.WithFS(vfs.NewMem()), asyncdb.WithCreateIfMissing(false))
	})
	require.Error(t, err)

	require.NoError(t, await(t, func(cb asyncdb.Callback) error {
		return db.Open("store", cb, asyncdb.WithFS(fs), asyncdb.WithIdealWALBytesPerSync())
	}))
	r := awaitGet(t, db, []byte("key"))
	require.NoError(t, r.err)
	assert.Equal(t, []byte("value"), r.value)
	require.NoError(t, await(t, db.Close))
}
