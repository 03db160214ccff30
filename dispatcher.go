package asyncdb

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

type dispatcherOptions struct {
	workers    int
	logger     Logger
	registerer prometheus.Registerer
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*dispatcherOptions)

// WithWorkers sets the number of worker goroutines running blocking engine
// calls. Defaults to GOMAXPROCS.
func WithWorkers(n int) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.workers = n
	}
}

// WithLogger sets the dispatcher logger. Defaults to NopLogger.
func WithLogger(logger Logger) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.logger = logger
	}
}

// WithRegisterer registers the dispatcher metrics with r.
func WithRegisterer(r prometheus.Registerer) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.registerer = r
	}
}

// Dispatcher runs task execute phases on a worker pool and their completion
// phases on a single control loop goroutine.
//
// Tasks are dequeued by the workers in submission order. They may complete in
// any order.
type Dispatcher struct {
	tasks   *queue[*task]
	loop    *loop
	workers errgroup.Group

	logger  Logger
	metrics *metrics

	mu      sync.RWMutex // protects closed against concurrent submits
	closed  bool
	pending sync.WaitGroup // tasks whose callback has not yet run
}

// NewDispatcher starts the worker pool and the control loop.
func NewDispatcher(opts ...DispatcherOption) (*Dispatcher, error) {
	o := &dispatcherOptions{
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	if o.logger == nil {
		o.logger = NopLogger()
	}

	m := newMetrics()
	if o.registerer != nil {
		if err := m.register(o.registerer); err != nil {
			return nil, err
		}
	}

	d := &Dispatcher{
		tasks:   newQueue[*task](),
		logger:  o.logger,
		metrics: m,
	}
	d.loop = newLoop(o.logger, m.callbackPanics.Inc)

	go d.loop.run()
	for i := 0; i < o.workers; i++ {
		d.workers.Go(d.work)
	}

	d.logger.Debug("Dispatcher started", "workers", o.workers)
	return d, nil
}

func (d *Dispatcher) work() error {
	for {
		t, ok := d.tasks.pop()
		if !ok {
			return nil
		}
		d.metrics.queued.Dec()

		t.execute()

		// The loop is closed only after every pending task completed, so
		// this push cannot be rejected.
		d.loop.post(func() {
			defer d.finish(t)
			t.deliver()
		})
	}
}

// submit accepts and enqueues t. It never blocks on the worker pool.
func (d *Dispatcher) submit(t *task) error {
	if err := d.accept(t); err != nil {
		return err
	}
	d.enqueue(t)
	return nil
}

// accept counts t as pending. An accepted task must be enqueued eventually;
// Close waits for it.
func (d *Dispatcher) accept(t *task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}
	d.pending.Add(1)
	d.metrics.submitted.WithLabelValues(t.kind.String()).Inc()
	d.metrics.outstanding.Inc()
	return nil
}

// enqueue hands an accepted task to the workers. The task queue stays open
// until every accepted task finished, so the push cannot fail.
func (d *Dispatcher) enqueue(t *task) {
	d.metrics.queued.Inc()
	d.tasks.push(t)
}

// finish releases t after its callback returned or panicked.
func (d *Dispatcher) finish(t *task) {
	t.release()
	d.metrics.completed.WithLabelValues(t.kind.String(), t.status.Code.String()).Inc()
	d.metrics.outstanding.Dec()
	d.pending.Done()
}

// Post runs fn on the control loop.
func (d *Dispatcher) Post(fn func()) error {
	if !d.loop.post(fn) {
		return ErrDispatcherClosed
	}
	return nil
}

// Destroy removes the store at path on a worker goroutine and reports the
// outcome to cb on the control loop.
func (d *Dispatcher) Destroy(path string, cb Callback, opts ...Option) error {
	if path == "" {
		return invalidArgument("destroy expects a path")
	}
	return d.submit(&task{
		kind: KindDestroy,
		path: path,
		opts: newOptions(opts...),
		cb:   cb,
	})
}

// Repair attempts to recover the store at path on a worker goroutine and
// reports the outcome to cb on the control loop.
func (d *Dispatcher) Repair(path string, cb Callback, opts ...Option) error {
	if path == "" {
		return invalidArgument("repair expects a path")
	}
	return d.submit(&task{
		kind: KindRepair,
		path: path,
		opts: newOptions(opts...),
		cb:   cb,
	})
}

// Close stops accepting tasks, waits until every accepted task delivered its
// callback, then stops the workers and the control loop. It must not be
// called from the control loop. Handles left open keep their engines; close
// them first. A close or open still waiting for an iterator keeps Close
// waiting until the iterator is released.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.pending.Wait()
	d.tasks.close()
	err := d.workers.Wait()
	d.loop.stop()

	d.logger.Debug("Dispatcher stopped")
	return err
}
