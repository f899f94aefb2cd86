package mqtt

import "sync"

// dispatcher runs queued callbacks one at a time on a single goroutine.
//
// It exists between StartLoop and StopLoop. Posting after stop drops the
// callback instead of blocking.
type dispatcher struct {
	queue chan func()
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newDispatcher(size int) *dispatcher {
	d := &dispatcher{
		queue: make(chan func(), size),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.stop:
			return
		case fn := <-d.queue:
			fn()
		}
	}
}

// post queues fn, waiting for room unless the dispatcher stops first.
func (d *dispatcher) post(fn func()) bool {
	select {
	case <-d.stop:
		return false
	default:
	}

	select {
	case d.queue <- fn:
		return true
	case <-d.stop:
		return false
	}
}

// tryPost queues fn only if there is room right now.
func (d *dispatcher) tryPost(fn func()) bool {
	select {
	case <-d.stop:
		return false
	default:
	}

	select {
	case d.queue <- fn:
		return true
	default:
		return false
	}
}

// close stops the dispatcher. It does not wait for a running callback, so it
// is safe to call from inside one.
func (d *dispatcher) close() {
	d.once.Do(func() { close(d.stop) })
}
