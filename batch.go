package asyncdb

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// RecordKind identifies a WriteBatch record.
type RecordKind uint8

const (
	RecordPut RecordKind = iota + 1
	RecordDelete
)

func (k RecordKind) String() string {
	switch k {
	case RecordPut:
		return "put"
	case RecordDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// record references its key and value by offset into the batch arena, so
// growing the arena never invalidates earlier records.
type record struct {
	kind   RecordKind
	keyOff int
	keyLen int
	valOff int
	valLen int
}

// WriteBatch is an ordered sequence of Put and Delete records applied to the
// engine atomically by one Write call. The batch owns copies of every key and
// value it is given, so callers may reuse their buffers immediately.
//
// A WriteBatch is safe for concurrent use.
type WriteBatch struct {
	lock    sync.RWMutex
	records []record
	arena   []byte
	size    int

	// pooled batches are synthesized for single Put/Delete calls and recycled
	// once their task completes.
	pooled bool
}

// NewWriteBatch creates an empty batch.
func NewWriteBatch() *WriteBatch {
	return &WriteBatch{}
}

// NewWriteBatchWithSize creates an empty batch with a pre-allocated arena.
func NewWriteBatchWithSize(size int) *WriteBatch {
	return &WriteBatch{arena: make([]byte, 0, size)}
}

var batchPool = sync.Pool{
	New: func() any { return &WriteBatch{pooled: true} },
}

func getPooledBatch() *WriteBatch {
	return batchPool.Get().(*WriteBatch)
}

// dispose resets a pooled batch and returns it to the pool. Consumer batches
// are never disposed.
func (b *WriteBatch) dispose() {
	if b == nil || !b.pooled {
		return
	}
	b.Reset()
	batchPool.Put(b)
}

func (b *WriteBatch) appendBytes(p []byte) (off, n int) {
	off = len(b.arena)
	b.arena = append(b.arena, p...)
	return off, len(p)
}

// Put appends a key/value insertion to the batch.
func (b *WriteBatch) Put(key, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	r := record{kind: RecordPut}
	r.keyOff, r.keyLen = b.appendBytes(key)
	r.valOff, r.valLen = b.appendBytes(value)
	b.records = append(b.records, r)
	b.size += len(key) + len(value)
	return nil
}

// Delete appends a key removal to the batch.
func (b *WriteBatch) Delete(key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	r := record{kind: RecordDelete}
	r.keyOff, r.keyLen = b.appendBytes(key)
	b.records = append(b.records, r)
	b.size += len(key)
	return nil
}

// Len returns the number of records in the batch.
func (b *WriteBatch) Len() int {
	b.lock.RLock()
	defer b.lock.RUnlock()

	return len(b.records)
}

// ValueSize retrieves the amount of data queued up for writing.
func (b *WriteBatch) ValueSize() int {
	b.lock.RLock()
	defer b.lock.RUnlock()

	return b.size
}

// Reset empties the batch for reuse, keeping the arena's capacity.
func (b *WriteBatch) Reset() {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.records = b.records[:0]
	b.arena = b.arena[:0]
	b.size = 0
}

// Replay feeds the batch records to w in insertion order. The key and value
// slices alias the batch arena and are only valid during the call.
func (b *WriteBatch) Replay(w KeyValueWriter) error {
	b.lock.RLock()
	defer b.lock.RUnlock()

	for i, r := range b.records {
		key := b.arena[r.keyOff : r.keyOff+r.keyLen : r.keyOff+r.keyLen]
		var err error
		switch r.kind {
		case RecordPut:
			err = w.Put(key, b.arena[r.valOff:r.valOff+r.valLen:r.valOff+r.valLen])
		case RecordDelete:
			err = w.Delete(key)
		default:
			err = errors.Newf("unhandled operation, record kind: %v", r.kind)
		}
		if err != nil {
			return errors.Wrapf(err, "replay record %d", i)
		}
	}
	return nil
}
