package asyncdb

import (
	"bytes"
	"slices"
)

// Table is a view of a DB that prefixes each key access with a pre-configured
// byte string. Keys read back through a table have the prefix stripped.
type Table struct {
	db     *DB
	prefix []byte
}

// NewTable returns a view of db that prefixes all keys with prefix.
func NewTable(db *DB, prefix []byte) *Table {
	return &Table{
		db:     db,
		prefix: slices.Clone(prefix),
	}
}

// Prefix returns the prefix of the table.
func (t *Table) Prefix() []byte {
	return slices.Clone(t.prefix)
}

// DB returns the underlying handle.
func (t *Table) DB() *DB {
	return t.db
}

func (t *Table) key(key []byte) []byte {
	k := make([]byte, 0, len(t.prefix)+len(key))
	k = append(k, t.prefix...)
	return append(k, key...)
}

// Get reads the prefixed key.
func (t *Table) Get(key []byte, ro *ReadOptions, cb GetCallback) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return t.db.Get(t.key(key), ro, cb)
}

// Put stores value at the prefixed key.
func (t *Table) Put(key, value []byte, wo *WriteOptions, cb Callback) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return t.db.Put(t.key(key), value, wo, cb)
}

// Delete removes the prefixed key.
func (t *Table) Delete(key []byte, wo *WriteOptions, cb Callback) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return t.db.Delete(t.key(key), wo, cb)
}

// Write commits a table batch. Batches built with NewBatchFrom share their
// underlying WriteBatch; write that one through the DB instead to commit all
// tables at once.
func (t *Table) Write(b *TableBatch, wo *WriteOptions, cb Callback) error {
	if b == nil {
		return invalidArgument("write expects a batch")
	}
	return t.db.Write(b.batch, wo, cb)
}

// NewIterator creates an iterator over the table's keys. Bounds in ro are
// relative to the table.
func (t *Table) NewIterator(ro *ReadOptions) (Iterator, error) {
	tro := &ReadOptions{}
	switch {
	case ro == nil:
		tro.Prefix = t.prefix
	case ro.Prefix != nil:
		tro.Prefix = t.key(ro.Prefix)
	default:
		tro.LowerBound = t.key(ro.LowerBound)
		if ro.UpperBound != nil {
			tro.UpperBound = t.key(ro.UpperBound)
		} else {
			tro.UpperBound = UpperBound(t.prefix)
		}
	}

	iter, err := t.db.NewIterator(tro)
	if err != nil {
		return nil, err
	}
	return &tableIterator{iter: iter, prefix: t.prefix}, nil
}

// NewBatch creates a batch whose keys are prefixed for this table.
func (t *Table) NewBatch() *TableBatch {
	return &TableBatch{batch: NewWriteBatch(), prefix: t.prefix}
}

// NewBatchFrom creates a table view over a shared batch. Writing the shared
// batch commits the records of every table using it atomically.
func (t *Table) NewBatchFrom(b *WriteBatch) *TableBatch {
	return &TableBatch{batch: b, prefix: t.prefix}
}

// TableBatch is a WriteBatch view that prefixes every key. It is safe for
// concurrent use.
type TableBatch struct {
	batch  *WriteBatch
	prefix []byte
}

func (b *TableBatch) key(key []byte) []byte {
	k := make([]byte, 0, len(b.prefix)+len(key))
	k = append(k, b.prefix...)
	return append(k, key...)
}

// Put inserts the given value into the batch for key.
func (b *TableBatch) Put(key, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return b.batch.Put(b.key(key), value)
}

// Delete removes the key from the batch.
func (b *TableBatch) Delete(key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return b.batch.Delete(b.key(key))
}

// Batch returns the underlying batch.
func (b *TableBatch) Batch() *WriteBatch { return b.batch }

// Len returns the number of records in the underlying batch.
func (b *TableBatch) Len() int { return b.batch.Len() }

// ValueSize retrieves the amount of data queued up for writing.
func (b *TableBatch) ValueSize() int { return b.batch.ValueSize() }

// Reset resets the underlying batch for reuse.
func (b *TableBatch) Reset() { b.batch.Reset() }

// Replay replays the batch contents with the table prefix stripped. Records of
// other tables sharing the batch are skipped.
func (b *TableBatch) Replay(w KeyValueWriter) error {
	return b.batch.Replay(&tableReplayer{w: w, prefix: b.prefix})
}

// tableReplayer is a wrapper around a batch replayer which truncates
// the added prefix.
type tableReplayer struct {
	w      KeyValueWriter
	prefix []byte
}

func (r *tableReplayer) trim(key []byte) ([]byte, bool) {
	if !bytes.HasPrefix(key, r.prefix) {
		return nil, false
	}
	return key[len(r.prefix):], true
}

// Put implements the interface KeyValueWriter.
func (r *tableReplayer) Put(key []byte, value []byte) error {
	trimmed, ok := r.trim(key)
	if !ok {
		return nil
	}
	return r.w.Put(trimmed, value)
}

// Delete implements the interface KeyValueWriter.
func (r *tableReplayer) Delete(key []byte) error {
	trimmed, ok := r.trim(key)
	if !ok {
		return nil
	}
	return r.w.Delete(trimmed)
}

// tableIterator is a wrapper around a database iterator that strips the table
// prefix from every key.
type tableIterator struct {
	iter   Iterator
	prefix []byte
}

func (iter *tableIterator) First() bool  { return iter.iter.First() }
func (iter *tableIterator) Last() bool   { return iter.iter.Last() }
func (iter *tableIterator) Next() bool   { return iter.iter.Next() }
func (iter *tableIterator) Prev() bool   { return iter.iter.Prev() }
func (iter *tableIterator) Error() error { return iter.iter.Error() }

// SeekGE seeks relative to the table.
func (iter *tableIterator) SeekGE(key []byte) bool {
	k := make([]byte, 0, len(iter.prefix)+len(key))
	k = append(k, iter.prefix...)
	return iter.iter.SeekGE(append(k, key...))
}

// Key returns the key of the current pair without the table prefix, or nil if
// done.
func (iter *tableIterator) Key() []byte {
	key := iter.iter.Key()
	if key == nil || len(key) < len(iter.prefix) {
		return nil
	}
	// The bounds already limit iteration to the prefix.
	return key[len(iter.prefix):]
}

func (iter *tableIterator) Value() []byte {
	return iter.iter.Value()
}

// Release releases associated resources. Release should always succeed and can
// be called multiple times without causing error.
func (iter *tableIterator) Release() error {
	return iter.iter.Release()
}
