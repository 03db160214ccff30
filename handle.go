package asyncdb

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// State is the lifecycle state of a DB handle.
type State uint8

const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

type event uint8

const (
	evOpen event = iota
	evOpenOK
	evOpenFailed
	evClose
	evClosed
)

func (e event) String() string {
	return [...]string{"open", "open_ok", "open_failed", "close", "closed"}[e]
}

// transitions lists every legal state change. Open and Close requests are
// accepted in every state; completion events only in the state their request
// produced.
var transitions = map[State]map[event]State{
	StateClosed: {
		evOpen:  StateOpening,
		evClose: StateClosed,
	},
	StateOpening: {
		evOpen:       StateOpening,
		evOpenOK:     StateOpen,
		evOpenFailed: StateClosed,
		evClose:      StateClosing,
	},
	StateOpen: {
		evOpen:  StateOpening,
		evClose: StateClosing,
	},
	StateClosing: {
		evOpen:   StateOpening,
		evClose:  StateClosing,
		evClosed: StateClosed,
	},
}

func transition(from State, ev event) (State, error) {
	to, ok := transitions[from][ev]
	if !ok {
		return from, errors.Wrapf(ErrInvalidTransition, "%s on %s handle", ev, from)
	}
	return to, nil
}

// DB is a handle to at most one open engine instance. All methods return
// immediately and are safe to call from any goroutine; callbacks always run on
// the dispatcher's control loop.
//
// Open and Close drain the handle before touching the engine: they run only
// after every read, write and iterator that obtained the engine earlier has
// been released. Until then they wait parked on the handle, not on a worker.
// Operations requested while the handle is not open are still accepted and
// fail with ErrNotOpen.
type DB struct {
	d *Dispatcher

	mu     sync.Mutex
	state  State
	engine Engine
	path   string
	active int // tasks and iterators holding engine

	// lifecycle holds accepted open and close tasks in request order. Only
	// the head runs, and only while active is zero. running is set once the
	// head was handed to the workers.
	lifecycle []*task
	running   bool
	seq       uint64 // seq of the most recent lifecycle request

	outstanding atomic.Int64
}

// NewDB creates a closed handle whose tasks run on d.
func NewDB(d *Dispatcher) *DB {
	return &DB{d: d}
}

// State returns the current lifecycle state.
func (db *DB) State() State {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state
}

// IsOpen reports whether the handle is open.
func (db *DB) IsOpen() bool {
	return db.State() == StateOpen
}

// Outstanding returns the number of submitted tasks whose callback has not yet
// run. A closed handle with no outstanding tasks may be discarded.
func (db *DB) Outstanding() int64 {
	return db.outstanding.Load()
}

// Path returns the path of the most recently opened store.
func (db *DB) Path() string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.path
}

// Open opens the store at path. If the handle is already open the current
// engine is closed first, once earlier operations have drained.
func (db *DB) Open(path string, cb Callback, opts ...Option) error {
	if path == "" {
		return invalidArgument("open expects a path")
	}
	o := newOptions(opts...)
	o.events = db.d.metrics
	return db.submitLifecycle(&task{
		db:   db,
		kind: KindOpen,
		path: path,
		opts: o,
		cb:   cb,
	}, evOpen)
}

// Close closes the engine once earlier operations have drained. Closing a
// closed or closing handle succeeds without doing anything.
func (db *DB) Close(cb Callback) error {
	return db.submitLifecycle(&task{
		db:   db,
		kind: KindClose,
		cb:   cb,
	}, evClose)
}

func (db *DB) submitLifecycle(t *task, ev event) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	next, err := transition(db.state, ev)
	if err != nil {
		return err
	}
	t.seq = db.seq + 1

	db.outstanding.Add(1)
	if err := db.d.accept(t); err != nil {
		db.outstanding.Add(-1)
		return err
	}
	db.seq = t.seq
	db.state = next
	db.lifecycle = append(db.lifecycle, t)
	db.schedule()
	return nil
}

// schedule hands the head lifecycle task to the workers once nothing holds
// the engine. Callers hold db.mu.
func (db *DB) schedule() {
	if db.running || db.active > 0 || len(db.lifecycle) == 0 {
		return
	}
	db.running = true
	db.d.enqueue(db.lifecycle[0])
}

// lifecycleDone pops the head lifecycle task after its callback ran and
// schedules the next one.
func (db *DB) lifecycleDone() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.lifecycle[0] = nil
	db.lifecycle = db.lifecycle[1:]
	db.running = false
	db.schedule()
}

// detach takes the engine away from the handle. Lifecycle tasks only run
// with no holders left, and no new holder can appear while the state is not
// Open. The caller owns the returned engine.
func (db *DB) detach() Engine {
	db.mu.Lock()
	defer db.mu.Unlock()

	eng := db.engine
	db.engine = nil
	return eng
}

// latest reports whether t is the most recent lifecycle request. Only the
// latest request may settle the state. Callers hold db.mu.
func (db *DB) latest(t *task) bool {
	return db.seq == t.seq
}

// settle applies a completion event. An illegal transition here is a bug in
// the handle, never a caller error.
func (db *DB) settle(ev event) {
	next, err := transition(db.state, ev)
	if err != nil {
		db.d.logger.Error("Handle state corrupted", "path", db.path, "err", err)
		return
	}
	db.state = next
}

func (db *DB) executeOpen(t *task) Status {
	if old := db.detach(); old != nil {
		if err := old.Close(); err != nil {
			db.d.logger.Warn("Failed to close engine before reopening", "path", db.Path(), "err", err)
		}
	}

	eng, err := t.opts.driver.Open(t.path, t.opts)

	db.mu.Lock()
	defer db.mu.Unlock()

	driver := t.opts.driver.Name()
	if err != nil {
		db.d.metrics.engineOpenTotal.WithLabelValues(driver, CodeError.String()).Inc()
		if db.latest(t) {
			db.settle(evOpenFailed)
		}
		db.d.logger.Warn("Failed to open store", "path", t.path, "driver", driver, "err", err)
		return statusError(engineError("open", err))
	}

	db.d.metrics.engineOpenTotal.WithLabelValues(driver, CodeOK.String()).Inc()
	db.engine = eng
	db.path = t.path
	if db.latest(t) {
		db.settle(evOpenOK)
	}
	db.d.logger.Info("Store opened", "path", t.path, "driver", driver)
	return statusOK()
}

func (db *DB) executeClose(t *task) Status {
	eng := db.detach()
	var err error
	if eng != nil {
		err = eng.Close()
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.latest(t) && db.state == StateClosing {
		db.settle(evClosed)
	}
	if eng != nil {
		db.d.logger.Info("Store closed", "path", db.path, "err", err)
	}
	return statusFromWrite("close", err)
}

// acquireEngine returns the engine and counts the caller as a holder, or nil
// if the handle is not open. Callers hold db.mu.
func (db *DB) acquireEngine() Engine {
	if db.state != StateOpen {
		return nil
	}
	db.active++
	return db.engine
}

func (db *DB) releaseEngine() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.unhold()
}

// unhold drops one engine holder. The last one lets a parked lifecycle task
// run. Callers hold db.mu.
func (db *DB) unhold() {
	db.active--
	if db.active == 0 {
		db.schedule()
	}
}

// submitData captures the engine for t and enqueues it.
func (db *DB) submitData(t *task) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	t.engine = db.acquireEngine()
	db.outstanding.Add(1)
	if err := db.d.submit(t); err != nil {
		db.outstanding.Add(-1)
		if t.engine != nil {
			db.unhold()
		}
		return err
	}
	return nil
}

// Put stores value at key.
func (db *DB) Put(key, value []byte, wo *WriteOptions, cb Callback) error {
	b := getPooledBatch()
	if err := b.Put(key, value); err != nil {
		b.dispose()
		return err
	}
	return db.write(b, wo, cb)
}

// Delete removes key.
func (db *DB) Delete(key []byte, wo *WriteOptions, cb Callback) error {
	b := getPooledBatch()
	if err := b.Delete(key); err != nil {
		b.dispose()
		return err
	}
	return db.write(b, wo, cb)
}

// Write applies every record of b atomically, in insertion order. The batch
// still belongs to the caller, who must not modify it until cb runs.
func (db *DB) Write(b *WriteBatch, wo *WriteOptions, cb Callback) error {
	if b == nil {
		return invalidArgument("write expects a batch")
	}
	return db.write(b, wo, cb)
}

func (db *DB) write(b *WriteBatch, wo *WriteOptions, cb Callback) error {
	err := db.submitData(&task{
		db:    db,
		kind:  KindWrite,
		batch: b,
		wo:    wo,
		cb:    cb,
	})
	if err != nil {
		b.dispose()
	}
	return err
}

// Get reads key. cb receives found == false and a nil error when the key is
// absent.
func (db *DB) Get(key []byte, ro *ReadOptions, cb GetCallback) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	return db.submitData(&task{
		db:     db,
		kind:   KindRead,
		key:    append([]byte(nil), key...),
		ro:     ro,
		readCb: cb,
	})
}

// NewIterator creates an iterator synchronously on the calling goroutine. The
// iterator keeps the engine alive: Close and re-Open wait until it is
// released.
func (db *DB) NewIterator(ro *ReadOptions) (Iterator, error) {
	db.mu.Lock()
	eng := db.acquireEngine()
	db.mu.Unlock()
	if eng == nil {
		return nil, ErrNotOpen
	}

	iter, err := eng.NewIterator(ro)
	if err != nil {
		db.releaseEngine()
		return nil, engineError("iterator", err)
	}
	return &handleIterator{Iterator: iter, db: db}, nil
}

// handleIterator releases its engine reference exactly once.
type handleIterator struct {
	Iterator
	db   *DB
	once sync.Once
}

func (it *handleIterator) Release() error {
	var err error
	it.once.Do(func() {
		err = it.Iterator.Release()
		it.db.releaseEngine()
	})
	return err
}

// Snapshot is an opaque engine snapshot reference.
type Snapshot struct{}

// GetSnapshot is not implemented.
func (db *DB) GetSnapshot() (*Snapshot, error) {
	return nil, ErrNotImplemented
}

// ReleaseSnapshot is not implemented.
func (db *DB) ReleaseSnapshot(*Snapshot) error {
	return ErrNotImplemented
}

// GetProperty is not implemented.
func (db *DB) GetProperty(string) (string, error) {
	return "", ErrNotImplemented
}

// Range is a key range [Start, Limit).
type Range struct {
	Start []byte
	Limit []byte
}

// GetApproximateSizes is not implemented.
func (db *DB) GetApproximateSizes([]Range) ([]uint64, error) {
	return nil, ErrNotImplemented
}
