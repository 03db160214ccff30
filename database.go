package asyncdb

import (
	"io"
)

// KeyValueWriter wraps the Put and Delete methods of a mutation sink. Batch
// replay and engine batch application are expressed in terms of it.
type KeyValueWriter interface {
	// Put inserts the given value into the sink.
	Put(key []byte, value []byte) error

	// Delete removes the key from the sink.
	Delete(key []byte) error
}

// Iterator is a live cursor over an engine's key space. Iterators are not
// safe for concurrent use; multiple iterators may run concurrently.
type Iterator interface {
	// First moves the iterator to the first key/value pair. It returns whether
	// the iterator is positioned on a pair.
	First() bool

	// Last moves the iterator to the last key/value pair.
	Last() bool

	// Next moves the iterator to the next key/value pair.
	Next() bool

	// Prev moves the iterator to the previous key/value pair.
	Prev() bool

	// SeekGE moves the iterator to the first key greater than or equal to key.
	SeekGE(key []byte) bool

	// Error returns any accumulated error. Exhausting all the key/value pairs
	// is not considered to be an error.
	Error() error

	// Key returns the key of the current pair, or nil if done. The caller
	// should not modify the contents of the returned slice, and its contents
	// may change on the next call to Next.
	Key() []byte

	// Value returns the value of the current pair, or nil if done.
	Value() []byte

	// Release releases associated resources. Release should always succeed
	// and can be called multiple times without causing error.
	Release() error
}

// Engine is one open instance of a blocking key-value storage engine. Every
// method may block. Implementations must be safe for concurrent use by the
// worker pool, except that Close is never called concurrently with any other
// method.
type Engine interface {
	// Get returns a copy of the value stored at key, or ErrNotFound.
	Get(key []byte, ro *ReadOptions) ([]byte, error)

	// Put stores a single value.
	Put(key, value []byte, wo *WriteOptions) error

	// Delete removes a single key.
	Delete(key []byte, wo *WriteOptions) error

	// Write applies every record of the batch atomically, in insertion order.
	Write(b *WriteBatch, wo *WriteOptions) error

	// NewIterator creates a cursor over the engine's current contents.
	NewIterator(ro *ReadOptions) (Iterator, error)

	io.Closer
}

// Driver opens engines and performs the static store operations that do not
// need a live engine.
type Driver interface {
	// Name identifies the driver in logs and metrics.
	Name() string

	// Open opens or creates the store at path.
	Open(path string, o *options) (Engine, error)

	// Destroy removes the store at path and all of its contents.
	Destroy(path string, o *options) error

	// Repair attempts to recover a store that cannot be opened cleanly.
	Repair(path string, o *options) error
}

// Destroy removes the store at path. It runs synchronously on the calling
// goroutine and does not need an open handle.
func Destroy(path string, opts ...Option) error {
	if path == "" {
		return invalidArgument("destroy expects a path")
	}
	o := newOptions(opts...)
	return engineError("destroy", o.driver.Destroy(path, o))
}

// Repair attempts to recover the store at path. It runs synchronously on the
// calling goroutine and does not need an open handle.
func Repair(path string, opts ...Option) error {
	if path == "" {
		return invalidArgument("repair expects a path")
	}
	o := newOptions(opts...)
	return engineError("repair", o.driver.Repair(path, o))
}
