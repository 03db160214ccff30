package asyncdb

import (
	"bytes"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/btree"
)

// MemoryDriver keeps stores in process memory, keyed by path. A store
// survives Close and is visible to a later Open of the same path until it is
// destroyed, like an on-disk store would be.
var MemoryDriver Driver = newMemoryDriver()

type memoryDriver struct {
	mu     sync.Mutex
	stores map[string]*memoryStore
}

func newMemoryDriver() *memoryDriver {
	return &memoryDriver{stores: make(map[string]*memoryStore)}
}

// NewMemoryDriver returns a driver with its own private namespace of stores.
func NewMemoryDriver() Driver {
	return newMemoryDriver()
}

func (*memoryDriver) Name() string { return "memory" }

type memItem struct {
	key   []byte
	value []byte
}

func memItemLess(a, b memItem) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// memoryStore is the persistent state of one path.
type memoryStore struct {
	mu     sync.RWMutex
	tree   *btree.BTreeG[memItem]
	locked bool
}

func (d *memoryDriver) Open(path string, o *options) (Engine, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.stores[path]
	switch {
	case ok && o.errorIfExists:
		return nil, errors.Newf("memory: %s: already exists", path)
	case !ok && !o.createIfMissing:
		return nil, errors.Newf("memory: %s: does not exist", path)
	case !ok:
		s = &memoryStore{tree: btree.NewG(32, memItemLess)}
		d.stores[path] = s
	}
	if s.locked {
		return nil, errors.Wrapf(ErrStoreLocked, "memory: open %s", path)
	}
	s.locked = true

	return &memoryEngine{
		driver:   d,
		store:    s,
		readonly: o.readonly,
	}, nil
}

func (d *memoryDriver) Destroy(path string, _ *options) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.stores[path]
	if !ok {
		return nil
	}
	if s.locked {
		return errors.Wrapf(ErrStoreLocked, "memory: destroy %s", path)
	}
	delete(d.stores, path)
	return nil
}

// Repair has nothing to recover for an in-memory store; it only checks the
// store is not in use.
func (d *memoryDriver) Repair(path string, _ *options) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.stores[path]
	if !ok {
		return errors.Newf("memory: repair %s: does not exist", path)
	}
	if s.locked {
		return errors.Wrapf(ErrStoreLocked, "memory: repair %s", path)
	}
	return nil
}

// memoryEngine is one open instance of a memoryStore.
type memoryEngine struct {
	driver   *memoryDriver
	store    *memoryStore
	readonly bool
	closed   bool
}

var errMemoryReadOnly = errors.New("memory: read-only")

func (e *memoryEngine) Get(key []byte, _ *ReadOptions) ([]byte, error) {
	e.store.mu.RLock()
	defer e.store.mu.RUnlock()

	it, ok := e.store.tree.Get(memItem{key: key})
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(it.value), nil
}

func (e *memoryEngine) Put(key, value []byte, _ *WriteOptions) error {
	if e.readonly {
		return errMemoryReadOnly
	}
	e.store.mu.Lock()
	defer e.store.mu.Unlock()

	e.store.put(key, value)
	return nil
}

func (e *memoryEngine) Delete(key []byte, _ *WriteOptions) error {
	if e.readonly {
		return errMemoryReadOnly
	}
	e.store.mu.Lock()
	defer e.store.mu.Unlock()

	e.store.tree.Delete(memItem{key: key})
	return nil
}

// Write holds the store lock for the whole batch, so readers see either none
// or all of its records.
func (e *memoryEngine) Write(b *WriteBatch, _ *WriteOptions) error {
	if e.readonly {
		return errMemoryReadOnly
	}
	e.store.mu.Lock()
	defer e.store.mu.Unlock()

	// Apply to a copy-on-write clone so a failing replay leaves the store
	// untouched.
	next := e.store.tree.Clone()
	if err := b.Replay(memoryWriter{next}); err != nil {
		return err
	}
	e.store.tree = next
	return nil
}

func (s *memoryStore) put(key, value []byte) {
	s.tree.ReplaceOrInsert(memItem{key: slices.Clone(key), value: slices.Clone(value)})
}

type memoryWriter struct {
	tree *btree.BTreeG[memItem]
}

func (w memoryWriter) Put(key, value []byte) error {
	w.tree.ReplaceOrInsert(memItem{key: slices.Clone(key), value: slices.Clone(value)})
	return nil
}

func (w memoryWriter) Delete(key []byte) error {
	w.tree.Delete(memItem{key: key})
	return nil
}

func (e *memoryEngine) Close() error {
	e.driver.mu.Lock()
	defer e.driver.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.store.locked = false
	return nil
}

// NewIterator iterates over a point-in-time copy of the tree, so writes made
// after creation are not observed.
func (e *memoryEngine) NewIterator(ro *ReadOptions) (Iterator, error) {
	lower, upper := ro.bounds()

	e.store.mu.RLock()
	snap := e.store.tree.Clone()
	e.store.mu.RUnlock()

	items := make([]memItem, 0, snap.Len())
	visit := func(it memItem) bool {
		if upper != nil && bytes.Compare(it.key, upper) >= 0 {
			return false
		}
		items = append(items, it)
		return true
	}
	if lower != nil {
		snap.AscendGreaterOrEqual(memItem{key: lower}, visit)
	} else {
		snap.Ascend(visit)
	}
	return &memoryIterator{items: items, pos: -1}, nil
}

// memoryIterator walks a sorted slice of items. pos is -1 or len(items) when
// the iterator is not positioned.
type memoryIterator struct {
	items    []memItem
	pos      int
	released bool
}

func (it *memoryIterator) valid() bool {
	return !it.released && it.pos >= 0 && it.pos < len(it.items)
}

func (it *memoryIterator) First() bool {
	it.pos = 0
	return it.valid()
}

func (it *memoryIterator) Last() bool {
	it.pos = len(it.items) - 1
	return it.valid()
}

func (it *memoryIterator) Next() bool {
	if it.pos < len(it.items) {
		it.pos++
	}
	return it.valid()
}

func (it *memoryIterator) Prev() bool {
	if it.pos >= 0 {
		it.pos--
	}
	return it.valid()
}

func (it *memoryIterator) SeekGE(key []byte) bool {
	it.pos, _ = slices.BinarySearchFunc(it.items, key, func(item memItem, k []byte) int {
		return bytes.Compare(item.key, k)
	})
	return it.valid()
}

func (it *memoryIterator) Error() error { return nil }

func (it *memoryIterator) Key() []byte {
	if !it.valid() {
		return nil
	}
	return it.items[it.pos].key
}

func (it *memoryIterator) Value() []byte {
	if !it.valid() {
		return nil
	}
	return it.items[it.pos].value
}

func (it *memoryIterator) Release() error {
	it.released = true
	it.items = nil
	return nil
}
