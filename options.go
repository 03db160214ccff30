package asyncdb

import (
	"github.com/cockroachdb/pebble/v2"
	"github.com/cockroachdb/pebble/v2/vfs"
)

type options struct {
	cache           int
	handles         int
	readonly        bool
	noSync          bool
	walBytesPerSync int
	pebbleLevels    []pebble.LevelOptions
	pebbleLogger    pebble.Logger
	fs              vfs.FS
	createIfMissing bool
	errorIfExists   bool
	driver          Driver

	// events is set by the handle, not by callers.
	events engineEvents
}

// Option configures how a store is opened, destroyed or repaired. Options are
// passed through to the engine untouched.
type Option func(*options)

func newOptions(opts ...Option) *options {
	o := &options{
		cache:           minCache,
		handles:         minHandles,
		pebbleLevels:    DefaultPebbleLevels,
		pebbleLogger:    pebble.DefaultLogger,
		fs:              vfs.Default,
		createIfMissing: true,
		driver:          PebbleDriver,
	}

	for _, opt := range opts {
		opt(o)
	}

	// Ensure we have some minimal caching and file guarantees
	if o.cache < minCache {
		o.cache = minCache
	}
	if o.handles < minHandles {
		o.handles = minHandles
	}
	if o.driver == nil {
		o.driver = PebbleDriver
	}
	return o
}

func WithCache(cache int) Option {
	return func(o *options) {
		o.cache = cache
	}
}

func WithHandles(handles int) Option {
	return func(o *options) {
		o.handles = handles
	}
}

func WithReadonly(readonly bool) Option {
	return func(o *options) {
		o.readonly = readonly
	}
}

// WithNoSync makes writes without an explicit WriteOptions.Sync asynchronous.
func WithNoSync(noSync bool) Option {
	return func(o *options) {
		o.noSync = noSync
	}
}

func WithWALBytesPerSync(walBytesPerSync int) Option {
	return func(o *options) {
		o.walBytesPerSync = walBytesPerSync
	}
}

// WithIdealWALBytesPerSync sets the WALBytesPerSync to 5 times the IdealBatchSize.
//
// With NoSync writes return as soon as the data is cached in memory. Setting
// WALBytesPerSync makes the cached WAL writes flush in the background once
// the accumulated size exceeds this threshold.
func WithIdealWALBytesPerSync() Option {
	return func(o *options) {
		o.walBytesPerSync = IdealBatchSize * 5
	}
}

func WithPebbleLevels(levels []pebble.LevelOptions) Option {
	return func(o *options) {
		o.pebbleLevels = levels
	}
}

// WithPebbleLogger sets the logger pebble reports engine events to.
func WithPebbleLogger(logger pebble.Logger) Option {
	return func(o *options) {
		o.pebbleLogger = logger
	}
}

// WithFS sets the filesystem the pebble driver stores files on. Pass
// vfs.NewMem() for a store that never touches disk; reuse the same FS value
// across Destroy, Repair and Open calls that must see the same files.
func WithFS(fs vfs.FS) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithCreateIfMissing controls whether Open creates a missing store. Defaults
// to true.
func WithCreateIfMissing(create bool) Option {
	return func(o *options) {
		o.createIfMissing = create
	}
}

// WithErrorIfExists makes Open fail if the store already exists.
func WithErrorIfExists(errorIfExists bool) Option {
	return func(o *options) {
		o.errorIfExists = errorIfExists
	}
}

// WithDriver selects the storage engine. Defaults to PebbleDriver.
func WithDriver(driver Driver) Option {
	return func(o *options) {
		o.driver = driver
	}
}

// ReadOptions are per-call read settings handed to the engine.
type ReadOptions struct {
	// LowerBound and UpperBound limit iterators to [LowerBound, UpperBound).
	LowerBound []byte
	UpperBound []byte

	// Prefix limits iterators to keys starting with Prefix. It overrides the
	// bounds.
	Prefix []byte
}

// bounds returns the effective iterator bounds.
func (ro *ReadOptions) bounds() (lower, upper []byte) {
	if ro == nil {
		return nil, nil
	}
	if ro.Prefix != nil {
		return ro.Prefix, UpperBound(ro.Prefix)
	}
	return ro.LowerBound, ro.UpperBound
}

// WriteOptions are per-call write settings handed to the engine.
type WriteOptions struct {
	// Sync forces (true) or skips (false) an fsync for this write. Nil uses the
	// store's WithNoSync setting.
	Sync *bool
}

// Sync is a WriteOptions that forces an fsync.
func Sync() *WriteOptions {
	s := true
	return &WriteOptions{Sync: &s}
}

// NoSync is a WriteOptions that skips the fsync.
func NoSync() *WriteOptions {
	s := false
	return &WriteOptions{Sync: &s}
}
