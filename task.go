package asyncdb

// TaskKind identifies what a task does.
type TaskKind uint8

const (
	KindOpen TaskKind = iota + 1
	KindClose
	KindWrite
	KindRead
	KindDestroy
	KindRepair
)

func (k TaskKind) String() string {
	switch k {
	case KindOpen:
		return "open"
	case KindClose:
		return "close"
	case KindWrite:
		return "write"
	case KindRead:
		return "read"
	case KindDestroy:
		return "destroy"
	case KindRepair:
		return "repair"
	default:
		return "unknown"
	}
}

// task carries one operation from the submitting goroutine to a worker and
// back to the control loop.
//
// execute runs on a worker and performs exactly one blocking engine call.
// deliver and release run on the control loop.
type task struct {
	db   *DB // nil for destroy and repair
	kind TaskKind

	// open, destroy, repair
	path string
	opts *options

	// read
	key []byte
	ro  *ReadOptions

	// write
	batch *WriteBatch
	wo    *WriteOptions

	// engine is captured at submission for reads and writes. A nil engine
	// means the handle was not open and the task fails fast.
	engine Engine

	// seq orders open and close requests of one handle.
	seq uint64

	cb     Callback
	readCb GetCallback
	status Status
}

func (t *task) execute() {
	switch t.kind {
	case KindOpen:
		t.status = t.db.executeOpen(t)
	case KindClose:
		t.status = t.db.executeClose(t)
	case KindRead:
		if t.engine == nil {
			t.status = statusError(ErrNotOpen)
			return
		}
		t.status = statusFromRead(t.engine.Get(t.key, t.ro))
	case KindWrite:
		if t.engine == nil {
			t.status = statusError(ErrNotOpen)
			return
		}
		t.status = statusFromWrite("write", t.engine.Write(t.batch, t.wo))
	case KindDestroy:
		t.status = statusFromWrite("destroy", t.opts.driver.Destroy(t.path, t.opts))
	case KindRepair:
		t.status = statusFromWrite("repair", t.opts.driver.Repair(t.path, t.opts))
	}
}

// deliver maps the status to the callback convention of the task kind.
func (t *task) deliver() {
	if t.kind == KindRead {
		t.status.deliverRead(t.readCb)
		return
	}
	t.status.deliver(t.cb)
}

// release drops the task's engine and handle references and disposes a
// synthesized batch.
func (t *task) release() {
	if t.engine != nil {
		t.db.releaseEngine()
		t.engine = nil
	}
	if t.db != nil {
		t.db.outstanding.Add(-1)
	}
	if t.batch != nil {
		t.batch.dispose()
		t.batch = nil
	}
	if t.kind == KindOpen || t.kind == KindClose {
		t.db.lifecycleDone()
	}
}
