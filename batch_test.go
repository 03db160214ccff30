package asyncdb_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sxwebdev/asyncdb"
	"golang.org/x/sync/errgroup"
)

// recordingWriter captures replayed records.
type recordingWriter struct {
	ops []string
}

func (w *recordingWriter) Put(key, value []byte) error {
	w.ops = append(w.ops, fmt.Sprintf("put %s=%s", key, value))
	return nil
}

func (w *recordingWriter) Delete(key []byte) error {
	w.ops = append(w.ops, fmt.Sprintf("del %s", key))
	return nil
}

func TestWriteBatch_ReplayOrder(t *testing.T) {
	b := asyncdb.NewWriteBatch()
	require.NoError(t, b.Put([]byte("a"), []byte("1")))
	require.NoError(t, b.Delete([]byte("a")))
	require.NoError(t, b.Put([]byte("b"), []byte("")))
	require.NoError(t, b.Put([]byte("a"), []byte("2")))

	w := &recordingWriter{}
	require.NoError(t, b.Replay(w))
	assert.Equal(t, []string{"put a=1", "del a", "put b=", "put a=2"}, w.ops)

	// Replay does not consume the batch.
	w2 := &recordingWriter{}
	require.NoError(t, b.Replay(w2))
	assert.Equal(t, w.ops, w2.ops)
}

func TestWriteBatch_CopiesInput(t *testing.T) {
	b := asyncdb.NewWriteBatchWithSize(16)
	key := []byte("key")
	value := []byte("value")
	require.NoError(t, b.Put(key, value))

	key[0] = 'X'
	value[0] = 'X'

	w := &recordingWriter{}
	require.NoError(t, b.Replay(w))
	assert.Equal(t, []string{"put key=value"}, w.ops)
}

func TestWriteBatch_EmptyKey(t *testing.T) {
	b := asyncdb.NewWriteBatch()
	assert.ErrorIs(t, b.Put(nil, []byte("v")), asyncdb.ErrEmptyKey)
	assert.ErrorIs(t, b.Delete([]byte{}), asyncdb.ErrInvalidArgument)
	assert.Zero(t, b.Len())
}

func TestWriteBatch_SizeAndReset(t *testing.T) {
	b := asyncdb.NewWriteBatch()
	require.NoError(t, b.Put([]byte("key"), []byte("value")))
	require.NoError(t, b.Delete([]byte("gone")))

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, len("key")+len("value")+len("gone"), b.ValueSize())

	b.Reset()
	assert.Zero(t, b.Len())
	assert.Zero(t, b.ValueSize())

	w := &recordingWriter{}
	require.NoError(t, b.Replay(w))
	assert.Empty(t, w.ops)
}

type failingWriter struct{}

func (failingWriter) Put([]byte, []byte) error { return errors.New("boom") }
func (failingWriter) Delete([]byte) error      { return nil }

func TestWriteBatch_ReplayError(t *testing.T) {
	b := asyncdb.NewWriteBatch()
	require.NoError(t, b.Delete([]byte("a")))
	require.NoError(t, b.Put([]byte("b"), []byte("1")))

	err := b.Replay(failingWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay record 1")
	assert.Contains(t, err.Error(), "boom")
}

func TestWriteBatch_ConcurrentPut(t *testing.T) {
	const (
		numWorkers     = 8
		itemsPerWorker = 250
	)

	b := asyncdb.NewWriteBatch()
	g, ctx := errgroup.WithContext(context.Background())
	for workerID := 0; workerID < numWorkers; workerID++ {
		g.Go(func() error {
			for i := 0; i < itemsPerWorker; i++ {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				key := []byte(fmt.Sprintf("w%d_key_%d", workerID, i))
				if err := b.Put(key, []byte(fmt.Sprintf("value_%d", i))); err != nil {
					return fmt.Errorf("worker %d failed to put item %d: %v", workerID, i, err)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, numWorkers*itemsPerWorker, b.Len())

	d := newDispatcher(t)
	db := openDB(t, d, "db", asyncdb.WithDriver(asyncdb.NewMemoryDriver()))
	require.NoError(t, await(t, func(cb asyncdb.Callback) error {
		return db.Write(b, nil, cb)
	}))

	iter, err := db.NewIterator(nil)
	require.NoError(t, err)
	defer iter.Release()

	count := 0
	for valid := iter.First(); valid && iter.Error() == nil; valid = iter.Next() {
		count++
	}
	require.NoError(t, iter.Error())
	assert.Equal(t, numWorkers*itemsPerWorker, count)
}

func TestRecordKind_String(t *testing.T) {
	assert.Equal(t, "put", asyncdb.RecordPut.String())
	assert.Equal(t, "delete", asyncdb.RecordDelete.String())
}
