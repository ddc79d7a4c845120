package eventloop

import (
	"log/slog"
	"sync"
)

// Loop runs posted tasks one at a time, in the order they were posted, on a
// single goroutine. Post never blocks, so producers such as store deliveries
// and timers can hand work to the loop while the loop itself is busy waiting
// on them.
type Loop struct {
	name string

	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake   chan struct{}
	exited chan struct{}
}

// New creates a loop. Call Start to begin processing.
func New(name string) *Loop {
	return &Loop{
		name:   name,
		wake:   make(chan struct{}, 1),
		exited: make(chan struct{}),
	}
}

// Start runs the loop on its own goroutine.
func (l *Loop) Start() *Loop {
	go l.Run()
	return l
}

// Run processes tasks until Stop is called. It must run in a single goroutine.
func (l *Loop) Run() {
	defer close(l.exited)

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.stopped {
			l.mu.Unlock()
			<-l.wake
			l.mu.Lock()
		}
		if l.stopped {
			l.mu.Unlock()
			return
		}
		task := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.run(task)
	}
}

func (l *Loop) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in event loop task", "loop", l.name, "panic", r)
		}
	}()
	task()
}

// Post queues fn for execution. It reports false when the loop has been
// stopped, in which case fn is dropped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Stop discards pending tasks and ends the loop after the current task
// finishes. It is safe to call from inside a task and more than once.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	l.queue = nil
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Stopped reports whether Stop has been called.
func (l *Loop) Stopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.exited
}
