// Package asyncdb runs a blocking embedded key-value engine behind an
// asynchronous, callback-driven API. Engine calls execute on a worker pool;
// every callback runs on a single control loop goroutine.
//
// # Overview
//
// asyncdb provides:
//   - A Dispatcher owning the worker pool and the control loop
//   - DB handles with an explicit Closed/Opening/Open/Closing state machine
//   - Atomic, ordered write batches that own their bytes
//   - A uniform callback convention that keeps "not found" apart from errors
//   - Pebble (default) and in-memory B-tree engines
//   - Table-based namespacing with prefix isolation
//
// # Quick Start
//
//	d, err := asyncdb.NewDispatcher(asyncdb.WithWorkers(4))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer d.Close()
//
//	db := asyncdb.NewDB(d)
//	db.Open("./data", func(err error) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    db.Put([]byte("key"), []byte("value"), nil, func(err error) {
//	        db.Get([]byte("key"), nil, func(value []byte, found bool, err error) {
//	            fmt.Printf("%s %v %v\n", value, found, err)
//	        })
//	    })
//	})
//
// # Callbacks
//
// Operations without a payload take a Callback, func(err error). Reads take a
// GetCallback, func(value []byte, found bool, err error):
//
//   - stored value: (value, true, nil); an empty value is a non-nil empty slice
//   - absent key:   (nil, false, nil)
//   - failure:      (nil, false, err)
//
// Callbacks may be nil. Every accepted operation invokes its callback exactly
// once, on the control loop, even when the engine fails. There is no
// cancellation and no timeout.
//
// # Lifecycle
//
// A DB starts Closed. Open moves it to Opening and then to Open or, on
// failure, back to Closed. Close moves it to Closing and then Closed. Calling
// Open on an open handle closes the current engine first; calling Close on a
// closed handle is a successful no-op.
//
// Open and Close never free an engine that is still in use. They wait until
// every read, write and iterator that obtained the engine before the request
// has been released, which includes running its callback. The wait does not
// occupy a worker, so other handles keep running. Reads and writes
// requested while the handle is not Open are accepted and fail with
// ErrNotOpen:
//
//	for i := 0; i < 100; i++ {
//	    db.Put(key(i), value(i), nil, onPut) // all 100 callbacks run first
//	}
//	db.Close(onClose)
//	db.Put(key(100), value(100), nil, onPut) // ErrNotOpen
//
// # Batch Operations
//
// Batches accumulate Put and Delete records and apply them atomically, in
// insertion order. A later record for the same key wins:
//
//	b := asyncdb.NewWriteBatch()
//	b.Put([]byte("a"), []byte("1"))
//	b.Delete([]byte("a"))
//	b.Put([]byte("a"), []byte("2"))
//	db.Write(b, nil, func(err error) { /* a == 2 */ })
//
// The batch stays owned by the caller and is never reset by asyncdb. DB.Put
// and DB.Delete build a pooled single-record batch internally and recycle it
// after the callback.
//
// # Tables (Namespacing)
//
// Tables provide logical separation of data using key prefixes:
//
//	users := asyncdb.NewTable(db, []byte("users:"))
//	users.Put([]byte("alice"), []byte("user data"), nil, cb) // stored as "users:alice"
//
// A shared WriteBatch commits records of several tables atomically:
//
//	shared := asyncdb.NewWriteBatch()
//	users.NewBatchFrom(shared).Put([]byte("alice"), data)
//	settings.NewBatchFrom(shared).Put([]byte("alice:theme"), []byte("dark"))
//	db.Write(shared, nil, cb)
//
// # Iteration
//
// Iterators are created synchronously and hold the engine open until
// released:
//
//	iter, err := db.NewIterator(&asyncdb.ReadOptions{Prefix: []byte("users:")})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer iter.Release()
//
//	for valid := iter.First(); valid && iter.Error() == nil; valid = iter.Next() {
//	    fmt.Printf("%s: %s\n", iter.Key(), iter.Value())
//	}
//
// # Configuration Options
//
// Open, Destroy and Repair accept engine options:
//   - WithCache(cacheMB int) - Set cache size in MB (minimum 16 MB)
//   - WithHandles(handles int) - Set max open file handles (minimum 16)
//   - WithReadonly(readonly bool) - Open the store read-only
//   - WithNoSync(noSync bool) - Default writes to no fsync
//   - WithWALBytesPerSync(bytes int) - Set WAL sync threshold
//   - WithIdealWALBytesPerSync() - Auto-set WAL sync (5x IdealBatchSize)
//   - WithPebbleLevels(levels []LevelOptions) - Fine-grained LSM tree tuning
//   - WithPebbleLogger(logger pebble.Logger) - Engine logger
//   - WithFS(fs vfs.FS) - Filesystem, e.g. vfs.NewMem()
//   - WithCreateIfMissing(bool), WithErrorIfExists(bool)
//   - WithDriver(driver Driver) - PebbleDriver (default) or MemoryDriver
//
// The dispatcher accepts WithWorkers, WithLogger and WithRegisterer.
//
// # Error Handling
//
//   - ErrInvalidArgument, ErrEmptyKey: returned synchronously, no callback
//   - ErrNotOpen: delivered to the callback
//   - *EngineError: engine failures, delivered to the callback
//   - ErrNotImplemented: snapshot, property and size placeholders
//   - ErrDispatcherClosed: returned synchronously after Dispatcher.Close
package asyncdb
