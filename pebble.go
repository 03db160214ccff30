package asyncdb

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	cerrors "github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/v2"
)

// PebbleDriver opens stores with the pebble storage engine. It is the default
// driver.
var PebbleDriver Driver = pebbleDriver{}

type pebbleDriver struct{}

func (pebbleDriver) Name() string { return "pebble" }

// engineEvents receives engine-level events. The dispatcher metrics implement
// it.
type engineEvents interface {
	compactionBegin(level0 bool)
	compactionEnd(d time.Duration)
	writeStallBegin(reason string)
	writeStallEnd(d time.Duration)
}

// pebbleDB is one open pebble instance.
type pebbleDB struct {
	db    *pebble.DB    // Underlying pebble storage engine
	cache *pebble.Cache // Block cache, released after db is closed

	events   engineEvents
	readonly bool

	// Event listeners run on pebble's background goroutines.
	mu                  sync.Mutex
	activeComp          int       // Current number of active compactions
	compStartTime       time.Time // The start time of the earliest currently-active compaction
	writeDelayStartTime time.Time // The start time of the latest write stall

	writeOptions *pebble.WriteOptions
}

func (d *pebbleDB) onCompactionBegin(info pebble.CompactionInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.activeComp == 0 {
		d.compStartTime = time.Now()
	}
	d.activeComp++
	if d.events != nil {
		d.events.compactionBegin(len(info.Input) > 0 && info.Input[0].Level == 0)
	}
}

func (d *pebbleDB) onCompactionEnd(pebble.CompactionInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.activeComp {
	case 1:
		if d.events != nil {
			d.events.compactionEnd(time.Since(d.compStartTime))
		}
	case 0:
		panic("should not happen")
	}
	d.activeComp--
}

func (d *pebbleDB) onWriteStallBegin(b pebble.WriteStallBeginInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.writeDelayStartTime = time.Now()

	// Take just the first word of the reason. These are two potential
	// reasons for the write stall:
	// - memtable count limit reached
	// - L0 file count limit exceeded
	reason := b.Reason
	if i := strings.IndexByte(reason, ' '); i != -1 {
		reason = reason[:i]
	}
	if d.events != nil {
		d.events.writeStallBegin(reason)
	}
}

func (d *pebbleDB) onWriteStallEnd() {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := time.Since(d.writeDelayStartTime)
	d.writeDelayStartTime = time.Time{}
	if d.events != nil {
		d.events.writeStallEnd(elapsed)
	}
}

// newPebbleCache creates the block cache for one pebble instance. The caller
// unrefs it once the instance is closed.
func newPebbleCache(o *options) *pebble.Cache {
	return pebble.NewCache(int64(o.cache * 1024 * 1024))
}

// pebbleOptions translates open options into pebble options. db may be nil
// when no event listener is needed.
func pebbleOptions(o *options, cache *pebble.Cache, db *pebbleDB) *pebble.Options {
	// The max memtable size is limited by the uint32 offsets stored in
	// internal/arenaskl.node, DeferredBatchOp, and flushableBatchEntry.
	//
	// - MaxUint32 on 64-bit platforms;
	// - MaxInt on 32-bit platforms.
	maxMemTableSize := (1<<31)<<(^uint(0)>>63) - 1

	// Two memory tables is configured which is identical to leveldb,
	// including a frozen memory table and another live one.
	memTableLimit := 2
	memTableSize := o.cache * 1024 * 1024 / 2 / memTableLimit

	// The memory table size is currently capped at maxMemTableSize-1 due to a
	// known bug in the pebble where maxMemTableSize is not recognized as a
	// valid size.
	if memTableSize >= maxMemTableSize {
		memTableSize = maxMemTableSize - 1
	}

	opt := &pebble.Options{
		// Pebble has a single combined cache area and the write
		// buffers are taken from this too. Assign all available
		// memory allowance for cache.
		Cache:        cache,
		MaxOpenFiles: o.handles,

		// The size of memory table(as well as the write buffer).
		MemTableSize: uint64(memTableSize),

		// MemTableStopWritesThreshold places a hard limit on the number of
		// existent MemTables (including the frozen one).
		MemTableStopWritesThreshold: memTableLimit,

		Levels:           o.pebbleLevels,
		ReadOnly:         o.readonly,
		ErrorIfExists:    o.errorIfExists,
		ErrorIfNotExists: !o.createIfMissing,
		Logger:           o.pebbleLogger,
		FS:               o.fs,

		WALBytesPerSync: o.walBytesPerSync,
	}
	if db != nil {
		opt.EventListener = &pebble.EventListener{
			CompactionBegin: db.onCompactionBegin,
			CompactionEnd:   db.onCompactionEnd,
			WriteStallBegin: db.onWriteStallBegin,
			WriteStallEnd:   db.onWriteStallEnd,
		}
	}
	// Disable seek compaction explicitly. Check https://github.com/ethereum/go-ethereum/pull/20130
	// for more details.
	opt.Experimental.ReadSamplingMultiplier = -1
	return opt
}

// Open opens the pebble store at path.
func (pebbleDriver) Open(path string, o *options) (Engine, error) {
	db := &pebbleDB{
		events:   o.events,
		readonly: o.readonly,
	}

	if o.noSync {
		// Writes without an explicit sync flag return once the data reaches
		// the memtable and the WAL buffer.
		db.writeOptions = pebble.NoSync
	} else {
		db.writeOptions = pebble.Sync
	}

	db.cache = newPebbleCache(o)
	innerDB, err := pebble.Open(path, pebbleOptions(o, db.cache, db))
	if err != nil {
		db.cache.Unref()
		return nil, err
	}
	db.db = innerDB

	return db, nil
}

// Destroy removes every file of the store at path. It refuses to touch a store
// whose lock is held.
func (pebbleDriver) Destroy(path string, o *options) error {
	fs := o.fs
	if _, err := fs.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	lock, err := fs.Lock(fs.PathJoin(path, "LOCK"))
	if err != nil {
		return cerrors.WithSecondaryError(cerrors.Wrapf(ErrStoreLocked, "destroy %s", path), err)
	}
	if err := lock.Close(); err != nil {
		return err
	}
	return fs.RemoveAll(path)
}

// Repair replays the write-ahead log of the store at path into sstables and
// rewrites the whole key space with a full compaction.
func (pebbleDriver) Repair(path string, o *options) error {
	ro := *o
	ro.createIfMissing = false
	ro.errorIfExists = false
	ro.readonly = false

	cache := newPebbleCache(&ro)
	defer cache.Unref()

	db, err := pebble.Open(path, pebbleOptions(&ro, cache, nil))
	if err != nil {
		return err
	}
	if err := db.Flush(); err != nil {
		return cerrors.CombineErrors(err, db.Close())
	}
	if err := db.Compact(nil, compactionLimit, true); err != nil {
		return cerrors.CombineErrors(err, db.Close())
	}
	return db.Close()
}

// There is no special flag to represent the end of key range in pebble.
// 32 bytes of 0xff is larger than any key a caller is expected to store.
// https://github.com/cockroachdb/pebble/issues/2359#issuecomment-1443995833
var compactionLimit = bytes.Repeat([]byte{0xff}, 32)

func (d *pebbleDB) writeOpts(wo *WriteOptions) *pebble.WriteOptions {
	if wo == nil || wo.Sync == nil {
		return d.writeOptions
	}
	if *wo.Sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

// Close flushes any pending data to disk and closes all io accesses to the
// underlying key-value store.
func (d *pebbleDB) Close() error {
	defer d.cache.Unref()

	// Read-only stores have nothing to flush.
	if !d.readonly {
		if err := d.db.Flush(); err != nil {
			return cerrors.CombineErrors(err, d.db.Close())
		}
	}
	return d.db.Close()
}

// Get retrieves the given key if it's present in the key-value store.
func (d *pebbleDB) Get(key []byte, _ *ReadOptions) ([]byte, error) {
	dat, closer, err := d.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ret := make([]byte, len(dat))
	copy(ret, dat)
	if err = closer.Close(); err != nil {
		return nil, err
	}
	return ret, nil
}

// Put inserts the given value into the key-value store.
func (d *pebbleDB) Put(key []byte, value []byte, wo *WriteOptions) error {
	return d.db.Set(key, value, d.writeOpts(wo))
}

// Delete removes the key from the key-value store.
func (d *pebbleDB) Delete(key []byte, wo *WriteOptions) error {
	return d.db.Delete(key, d.writeOpts(wo))
}

// Write copies the batch records into one pebble batch and commits it.
func (d *pebbleDB) Write(b *WriteBatch, wo *WriteOptions) error {
	pb := d.db.NewBatchWithSize(b.ValueSize())
	defer pb.Close()

	if err := b.Replay(pebbleBatchWriter{pb}); err != nil {
		return err
	}
	return pb.Commit(d.writeOpts(wo))
}

// pebbleBatchWriter adapts a pebble batch to KeyValueWriter. pebble copies
// keys and values into the batch representation.
type pebbleBatchWriter struct {
	b *pebble.Batch
}

func (w pebbleBatchWriter) Put(key, value []byte) error { return w.b.Set(key, value, nil) }
func (w pebbleBatchWriter) Delete(key []byte) error     { return w.b.Delete(key, nil) }

// pebbleIterator is a wrapper of underlying iterator in storage engine.
//
// The pebble iterator is not thread-safe.
type pebbleIterator struct {
	iter     *pebble.Iterator
	released bool
}

// NewIterator creates a binary-alphabetical iterator over the store, limited
// to the bounds in ro.
func (d *pebbleDB) NewIterator(ro *ReadOptions) (Iterator, error) {
	lower, upper := ro.bounds()
	iter, err := d.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return nil, err
	}
	return &pebbleIterator{iter: iter}, nil
}

func (iter *pebbleIterator) First() bool            { return iter.iter.First() }
func (iter *pebbleIterator) Last() bool             { return iter.iter.Last() }
func (iter *pebbleIterator) Next() bool             { return iter.iter.Next() }
func (iter *pebbleIterator) Prev() bool             { return iter.iter.Prev() }
func (iter *pebbleIterator) SeekGE(key []byte) bool { return iter.iter.SeekGE(key) }
func (iter *pebbleIterator) Error() error           { return iter.iter.Error() }
func (iter *pebbleIterator) Key() []byte            { return iter.iter.Key() }
func (iter *pebbleIterator) Value() []byte          { return iter.iter.Value() }

// Release releases associated resources. Release should always succeed and can
// be called multiple times without causing error.
func (iter *pebbleIterator) Release() error {
	if iter.released {
		return nil
	}
	iter.released = true
	return iter.iter.Close()
}
