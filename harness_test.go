package asyncdb_test

import (
	"testing"
	"time"

	"github.com/cockroachdb/pebble/v2/vfs"
	"github.com/stretchr/testify/require"
	"github.com/sxwebdev/asyncdb"
)

const callbackTimeout = 10 * time.Second

// driverCase describes one engine configuration every handle test runs
// against. Each call to opts returns options bound to a fresh namespace.
type driverCase struct {
	name string
	opts func(t *testing.T) (path string, opts []asyncdb.Option)
}

var driverCases = []driverCase{
	{
		name: "pebble_memfs",
		opts: func(t *testing.T) (string, []asyncdb.Option) {
			return "db", []asyncdb.Option{asyncdb.WithFS(vfs.NewMem())}
		},
	},
	{
		name: "pebble_disk",
		opts: func(t *testing.T) (string, []asyncdb.Option) {
			return t.TempDir(), []asyncdb.Option{asyncdb.WithNoSync(true)}
		},
	},
	{
		name: "memory",
		opts: func(t *testing.T) (string, []asyncdb.Option) {
			return "db", []asyncdb.Option{asyncdb.WithDriver(asyncdb.NewMemoryDriver())}
		},
	},
}

func forEachDriver(t *testing.T, fn func(t *testing.T, path string, opts []asyncdb.Option)) {
	for _, dc := range driverCases {
		t.Run(dc.name, func(t *testing.T) {
			path, opts := dc.opts(t)
			fn(t, path, opts)
		})
	}
}

func newDispatcher(t *testing.T, opts ...asyncdb.DispatcherOption) *asyncdb.Dispatcher {
	t.Helper()

	d, err := asyncdb.NewDispatcher(append([]asyncdb.DispatcherOption{asyncdb.WithWorkers(4)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, d.Close())
	})
	return d
}

// openDB opens a handle and closes it when the test ends.
func openDB(t *testing.T, d *asyncdb.Dispatcher, path string, opts ...asyncdb.Option) *asyncdb.DB {
	t.Helper()

	db := asyncdb.NewDB(d)
	require.NoError(t, await(t, func(cb asyncdb.Callback) error {
		return db.Open(path, cb, opts...)
	}))
	t.Cleanup(func() {
		_ = await(t, db.Close)
	})
	return db
}

// await submits an operation and blocks the test goroutine until its
// callback ran.
func await(t *testing.T, submit func(cb asyncdb.Callback) error) error {
	t.Helper()

	ch := make(chan error, 1)
	require.NoError(t, submit(func(err error) { ch <- err }))
	select {
	case err := <-ch:
		return err
	case <-time.After(callbackTimeout):
		t.Fatal("callback not delivered")
		return nil
	}
}

type getResult struct {
	value []byte
	found bool
	err   error
}

func awaitGet(t *testing.T, db *asyncdb.DB, key []byte) getResult {
	t.Helper()

	ch := make(chan getResult, 1)
	require.NoError(t, db.Get(key, nil, func(value []byte, found bool, err error) {
		ch <- getResult{value: value, found: found, err: err}
	}))
	select {
	case r := <-ch:
		return r
	case <-time.After(callbackTimeout):
		t.Fatal("get callback not delivered")
		return getResult{}
	}
}

func put(db *asyncdb.DB, key, value string) func(asyncdb.Callback) error {
	return func(cb asyncdb.Callback) error {
		return db.Put([]byte(key), []byte(value), nil, cb)
	}
}

func del(db *asyncdb.DB, key string) func(asyncdb.Callback) error {
	return func(cb asyncdb.Callback) error {
		return db.Delete([]byte(key), nil, cb)
	}
}

// syncLoop waits until everything posted to the control loop so far, including
// task releases, has run.
func syncLoop(t *testing.T, d *asyncdb.Dispatcher) {
	t.Helper()

	done := make(chan struct{})
	require.NoError(t, d.Post(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(callbackTimeout):
		t.Fatal("control loop stalled")
	}
}
