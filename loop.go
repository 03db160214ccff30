package asyncdb

import (
	"fmt"
	"runtime/debug"
)

// loop is the single control goroutine. Every completion callback runs on it,
// one at a time, in the order completions were posted.
type loop struct {
	funcs  *queue[func()]
	done   chan struct{}
	logger Logger
	panics func()
}

func newLoop(logger Logger, panics func()) *loop {
	return &loop{
		funcs:  newQueue[func()](),
		done:   make(chan struct{}),
		logger: logger,
		panics: panics,
	}
}

func (l *loop) run() {
	defer close(l.done)
	for {
		fn, ok := l.funcs.pop()
		if !ok {
			return
		}
		l.call(fn)
	}
}

// call runs fn and recovers a consumer panic so the loop keeps serving other
// completions.
func (l *loop) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Callback panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			if l.panics != nil {
				l.panics()
			}
		}
	}()
	fn()
}

func (l *loop) post(fn func()) bool {
	return l.funcs.push(fn)
}

func (l *loop) stop() {
	l.funcs.close()
	<-l.done
}
